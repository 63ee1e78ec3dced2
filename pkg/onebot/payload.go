package onebot

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ParsePayload decodes a wire frame into a *Request, *Response or Event.
// The three shapes carry no explicit tag and are discriminated by field
// presence: requests have action+echo, responses echo+status/retcode,
// events a post_type.
func ParsePayload(raw []byte) (any, error) {
	switch {
	case gjson.GetBytes(raw, "action").Exists() && gjson.GetBytes(raw, "echo").Exists():
		req := new(Request)
		if err := json.Unmarshal(raw, req); err != nil {
			return nil, fmt.Errorf("decoding request: %w", err)
		}
		return req, nil
	case gjson.GetBytes(raw, "echo").Exists():
		resp := new(Response)
		if err := json.Unmarshal(raw, resp); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return resp, nil
	case gjson.GetBytes(raw, "post_type").Exists():
		return ParseEvent(raw)
	default:
		return nil, fmt.Errorf("unrecognized payload shape")
	}
}

// ParseEvent decodes an event frame based on its post_type.
func ParseEvent(raw []byte) (Event, error) {
	var evt Event
	postType := gjson.GetBytes(raw, "post_type").String()
	switch postType {
	case "message", "message_sent":
		evt = new(MessageEvent)
	case "meta_event":
		evt = new(MetaEvent)
	case "notice":
		evt = new(NoticeEvent)
	case "request":
		evt = new(RequestEvent)
	default:
		return nil, fmt.Errorf("unsupported post_type %q", postType)
	}
	if err := json.Unmarshal(raw, evt); err != nil {
		return nil, fmt.Errorf("decoding %s event: %w", postType, err)
	}
	return evt, nil
}

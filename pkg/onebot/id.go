package onebot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier field on the OneBot wire. Adapters disagree on whether
// ids are JSON numbers or JSON strings, so decoding accepts both and
// canonicalizes to the string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	// Numbers are kept verbatim so 64-bit QQ ids never lose precision.
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("invalid id value %s", data)
	}
	*id = ID(data)
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// Int64 parses the canonical string form. Returns 0 for empty or
// non-numeric ids.
func (id ID) Int64() int64 {
	n, _ := strconv.ParseInt(string(id), 10, 64)
	return n
}

func (id ID) IsZero() bool {
	return id == "" || id == "0"
}

func (id ID) String() string {
	return string(id)
}

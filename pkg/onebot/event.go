package onebot

import (
	"encoding/json"
	"fmt"
)

// ChatKind distinguishes the two remote conversation shapes.
type ChatKind string

const (
	ChatPrivate ChatKind = "private"
	ChatGroup   ChatKind = "group"
)

// Chat identifies a remote conversation on a single endpoint.
type Chat struct {
	Kind ChatKind
	ID   ID
}

func (c Chat) String() string {
	return fmt.Sprintf("%s %s", c.Kind, c.ID)
}

// Sender describes who produced a message event.
type Sender struct {
	UserID   ID     `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"`
}

// DisplayName prefers the group card over the nickname.
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	return s.Nickname
}

// Anonymous identifies the mask an anonymous group sender posted under.
type Anonymous struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

// Event is any payload pushed by an endpoint, discriminated by post_type.
type Event interface {
	EventType() string
}

type MessageEvent struct {
	Time        int64      `json:"time,omitempty"`
	SelfID      ID         `json:"self_id,omitempty"`
	PostType    string     `json:"post_type"`
	MessageType string     `json:"message_type"`
	SubType     string     `json:"sub_type,omitempty"`
	MessageID   ID         `json:"message_id"`
	GroupID     ID         `json:"group_id,omitempty"`
	UserID      ID         `json:"user_id"`
	TargetID    ID         `json:"target_id,omitempty"`
	Message     []Segment  `json:"message"`
	Anonymous   *Anonymous `json:"anonymous,omitempty"`
	Sender      Sender     `json:"sender"`
}

func (evt *MessageEvent) EventType() string {
	return evt.PostType
}

// Outgoing reports whether the bot account itself sent the message on the
// remote platform (post_type message_sent).
func (evt *MessageEvent) Outgoing() bool {
	return evt.PostType == "message_sent"
}

// Chat resolves the conversation the message belongs to. Private messages
// the bot account sent carry the peer in target_id rather than user_id.
func (evt *MessageEvent) Chat() Chat {
	if evt.MessageType == "group" {
		return Chat{Kind: ChatGroup, ID: evt.GroupID}
	}
	if evt.TargetID != "" {
		return Chat{Kind: ChatPrivate, ID: evt.TargetID}
	}
	return Chat{Kind: ChatPrivate, ID: evt.UserID}
}

// NoticeEvent is a platform notification. The set of notice_type values is
// open ended; fields not applicable to a given type are simply absent.
type NoticeEvent struct {
	Time       int64  `json:"time,omitempty"`
	SelfID     ID     `json:"self_id,omitempty"`
	PostType   string `json:"post_type"`
	NoticeType string `json:"notice_type"`
	SubType    string `json:"sub_type,omitempty"`
	GroupID    ID     `json:"group_id,omitempty"`
	UserID     ID     `json:"user_id,omitempty"`
	OperatorID ID     `json:"operator_id,omitempty"`
	TargetID   ID     `json:"target_id,omitempty"`
	MessageID  ID     `json:"message_id,omitempty"`
	CardOld    string `json:"card_old,omitempty"`
	CardNew    string `json:"card_new,omitempty"`
}

func (evt *NoticeEvent) EventType() string {
	return evt.PostType
}

// Chat resolves the conversation a notice applies to. Adapters set group_id
// to 0 rather than omitting it for private notices.
func (evt *NoticeEvent) Chat() Chat {
	if !evt.GroupID.IsZero() {
		return Chat{Kind: ChatGroup, ID: evt.GroupID}
	}
	return Chat{Kind: ChatPrivate, ID: evt.UserID}
}

type RequestEvent struct {
	Time        int64  `json:"time,omitempty"`
	SelfID      ID     `json:"self_id,omitempty"`
	PostType    string `json:"post_type"`
	RequestType string `json:"request_type"`
	SubType     string `json:"sub_type,omitempty"`
	UserID      ID     `json:"user_id,omitempty"`
	GroupID     ID     `json:"group_id,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Flag        string `json:"flag,omitempty"`
}

func (evt *RequestEvent) EventType() string {
	return evt.PostType
}

type MetaEvent struct {
	Time          int64           `json:"time,omitempty"`
	SelfID        ID              `json:"self_id,omitempty"`
	PostType      string          `json:"post_type"`
	MetaEventType string          `json:"meta_event_type"`
	SubType       string          `json:"sub_type,omitempty"`
	Status        json.RawMessage `json:"status,omitempty"`
	Interval      int64           `json:"interval,omitempty"`
}

func (evt *MetaEvent) EventType() string {
	return evt.PostType
}

// Lifecycle meta event sub_types. "disconnect" is synthesized locally when
// an endpoint connection drops; adapters never send it.
const (
	LifecycleConnect    = "connect"
	LifecycleEnable     = "enable"
	LifecycleDisable    = "disable"
	LifecycleDisconnect = "disconnect"
)

// NewLifecycleEvent builds a lifecycle meta event on behalf of an endpoint.
func NewLifecycleEvent(selfID ID, subType string, time int64) *MetaEvent {
	return &MetaEvent{
		Time:          time,
		SelfID:        selfID,
		PostType:      "meta_event",
		MetaEventType: "lifecycle",
		SubType:       subType,
	}
}

package onebot

import (
	"encoding/json"
	"fmt"
)

// Response is the reply to a Request, correlated by echo.
type Response struct {
	Echo    string          `json:"echo"`
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK reports whether the endpoint accepted the request.
func (r *Response) OK() bool {
	return r.Status == "ok"
}

// DecodeData unmarshals the response payload into the type the action is
// documented to return.
func DecodeData[T any](r *Response) (*T, error) {
	data := new(T)
	if err := json.Unmarshal(r.Data, data); err != nil {
		return nil, fmt.Errorf("decoding response data: %w", err)
	}
	return data, nil
}

// UserInfo is returned by get_login_info and get_stranger_info, and listed
// by get_friend_list.
type UserInfo struct {
	UserID   ID     `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// DisplayName prefers the friend remark over the nickname.
func (u *UserInfo) DisplayName() string {
	if u.Remark != "" {
		return u.Remark
	}
	return u.Nickname
}

// GroupInfo is returned by get_group_info and listed by get_group_list.
type GroupInfo struct {
	GroupID   ID     `json:"group_id"`
	GroupName string `json:"group_name"`
	Avatar    string `json:"avatar,omitempty"`
}

func (g *GroupInfo) DisplayName() string {
	return g.GroupName
}

// MemberInfo is returned by get_group_member_info and listed by
// get_group_member_list.
type MemberInfo struct {
	UserID   ID     `json:"user_id"`
	GroupID  ID     `json:"group_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"`
	Role     string `json:"role,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

// DisplayName prefers the group card over the nickname.
func (m *MemberInfo) DisplayName() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}

// MessageIDData is returned by send_msg.
type MessageIDData struct {
	MessageID ID `json:"message_id"`
}

// FileInfo is returned by get_image, get_record and get_file. Adapters
// colocated with this process return the payload inline as base64.
type FileInfo struct {
	File     string `json:"file"`
	FileName string `json:"file_name"`
	FileSize ID     `json:"file_size,omitempty"`
	URL      string `json:"url,omitempty"`
	Base64   string `json:"base64,omitempty"`
}

// ForwardMessageData is returned by get_forward_msg.
type ForwardMessageData struct {
	Messages []MessageEvent `json:"messages"`
}

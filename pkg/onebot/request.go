package onebot

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
)

// Request is an API call sent to a connected endpoint. The echo token is
// unique for the lifetime of the process so responses can be correlated.
type Request struct {
	Action string          `json:"action"`
	Echo   string          `json:"echo"`
	Params json.RawMessage `json:"params,omitempty"`
}

var echoCounter atomic.Uint64

func nextEcho() string {
	return strconv.FormatUint(echoCounter.Add(1), 10)
}

func newRequest(action string, params any) *Request {
	req := &Request{Action: action, Echo: nextEcho()}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			panic(fmt.Errorf("marshaling %s params: %w", action, err))
		}
		req.Params = raw
	}
	return req
}

type GetStrangerInfoParams struct {
	UserID  ID   `json:"user_id"`
	NoCache bool `json:"no_cache"`
}

type GetGroupInfoParams struct {
	GroupID ID   `json:"group_id"`
	NoCache bool `json:"no_cache"`
}

type GetGroupMemberListParams struct {
	GroupID ID `json:"group_id"`
}

type GetGroupMemberInfoParams struct {
	GroupID ID   `json:"group_id"`
	UserID  ID   `json:"user_id"`
	NoCache bool `json:"no_cache"`
}

type GetRecordParams struct {
	File      string `json:"file"`
	OutFormat string `json:"out_format"`
}

type GetImageParams struct {
	File    string `json:"file"`
	FileID  string `json:"file_id"`
	EmojiID string `json:"emoji_id,omitempty"`
}

type GetFileParams struct {
	File   string `json:"file"`
	FileID string `json:"file_id"`
}

type DeleteMsgParams struct {
	MessageID ID `json:"message_id"`
}

type SendMsgParams struct {
	MessageType string    `json:"message_type"`
	UserID      ID        `json:"user_id,omitempty"`
	GroupID     ID        `json:"group_id,omitempty"`
	Message     []Segment `json:"message"`
}

func GetLoginInfo() *Request {
	return newRequest("get_login_info", nil)
}

func GetFriendList() *Request {
	return newRequest("get_friend_list", nil)
}

func GetGroupList() *Request {
	return newRequest("get_group_list", nil)
}

func GetStrangerInfo(userID ID, noCache bool) *Request {
	return newRequest("get_stranger_info", &GetStrangerInfoParams{UserID: userID, NoCache: noCache})
}

func GetGroupInfo(groupID ID, noCache bool) *Request {
	return newRequest("get_group_info", &GetGroupInfoParams{GroupID: groupID, NoCache: noCache})
}

func GetGroupMemberList(groupID ID) *Request {
	return newRequest("get_group_member_list", &GetGroupMemberListParams{GroupID: groupID})
}

func GetGroupMemberInfo(groupID, userID ID, noCache bool) *Request {
	return newRequest("get_group_member_info", &GetGroupMemberInfoParams{
		GroupID: groupID,
		UserID:  userID,
		NoCache: noCache,
	})
}

func GetRecord(file, outFormat string) *Request {
	return newRequest("get_record", &GetRecordParams{File: file, OutFormat: outFormat})
}

func GetImage(file, fileID, emojiID string) *Request {
	return newRequest("get_image", &GetImageParams{File: file, FileID: fileID, EmojiID: emojiID})
}

func GetFile(file, fileID string) *Request {
	return newRequest("get_file", &GetFileParams{File: file, FileID: fileID})
}

func DeleteMsg(messageID ID) *Request {
	return newRequest("delete_msg", &DeleteMsgParams{MessageID: messageID})
}

func SendMsg(params *SendMsgParams) *Request {
	return newRequest("send_msg", params)
}

package onebot_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterhq/porter/pkg/onebot"
)

func TestParsePayloadMessageEvent(t *testing.T) {
	// Numeric and string ids must decode to the same normalized event.
	raw := `{
		"post_type": "message",
		"message_type": "private",
		"self_id": 10001,
		"user_id": 42,
		"message_id": 7,
		"message": [{"type": "text", "data": {"text": "hi"}}],
		"sender": {"user_id": 42, "nickname": "A"}
	}`
	payload, err := onebot.ParsePayload([]byte(raw))
	require.NoError(t, err)
	evt, ok := payload.(*onebot.MessageEvent)
	require.True(t, ok)
	assert.Equal(t, onebot.ID("10001"), evt.SelfID)
	assert.Equal(t, onebot.ID("42"), evt.UserID)
	assert.Equal(t, onebot.ID("7"), evt.MessageID)
	assert.Equal(t, "A", evt.Sender.DisplayName())
	assert.False(t, evt.Outgoing())
	assert.Equal(t, onebot.Chat{Kind: onebot.ChatPrivate, ID: "42"}, evt.Chat())

	quoted := `{
		"post_type": "message",
		"message_type": "private",
		"self_id": "10001",
		"user_id": "42",
		"message_id": "7",
		"message": [{"type": "text", "data": {"text": "hi"}}],
		"sender": {"user_id": "42", "nickname": "A"}
	}`
	payload2, err := onebot.ParsePayload([]byte(quoted))
	require.NoError(t, err)
	assert.Equal(t, evt, payload2.(*onebot.MessageEvent))
}

func TestParsePayloadMessageSent(t *testing.T) {
	raw := `{
		"post_type": "message_sent",
		"message_type": "private",
		"self_id": 10001,
		"user_id": 10001,
		"target_id": 42,
		"message_id": 8,
		"message": [{"type": "text", "data": {"text": "re"}}],
		"sender": {"user_id": 10001, "nickname": "me"}
	}`
	payload, err := onebot.ParsePayload([]byte(raw))
	require.NoError(t, err)
	evt := payload.(*onebot.MessageEvent)
	assert.True(t, evt.Outgoing())
	assert.Equal(t, onebot.Chat{Kind: onebot.ChatPrivate, ID: "42"}, evt.Chat())
}

func TestParsePayloadNotice(t *testing.T) {
	raw := `{
		"post_type": "notice",
		"notice_type": "group_recall",
		"self_id": 10001,
		"group_id": 88888,
		"user_id": 42,
		"operator_id": 42,
		"message_id": 7
	}`
	payload, err := onebot.ParsePayload([]byte(raw))
	require.NoError(t, err)
	evt := payload.(*onebot.NoticeEvent)
	assert.Equal(t, "group_recall", evt.NoticeType)
	assert.Equal(t, onebot.Chat{Kind: onebot.ChatGroup, ID: "88888"}, evt.Chat())

	// Adapters send group_id 0 on private notify notices.
	notify := `{"post_type":"notice","notice_type":"notify","sub_type":"poke","group_id":0,"user_id":42}`
	payload, err = onebot.ParsePayload([]byte(notify))
	require.NoError(t, err)
	assert.Equal(t, onebot.Chat{Kind: onebot.ChatPrivate, ID: "42"}, payload.(*onebot.NoticeEvent).Chat())
}

func TestParsePayloadMeta(t *testing.T) {
	raw := `{"post_type":"meta_event","meta_event_type":"lifecycle","sub_type":"connect","self_id":10001,"time":1700000000}`
	payload, err := onebot.ParsePayload([]byte(raw))
	require.NoError(t, err)
	evt := payload.(*onebot.MetaEvent)
	assert.Equal(t, "lifecycle", evt.MetaEventType)
	assert.Equal(t, onebot.LifecycleConnect, evt.SubType)

	heartbeat := `{"post_type":"meta_event","meta_event_type":"heartbeat","self_id":10001,"status":{"online":true,"good":true},"interval":5000}`
	payload, err = onebot.ParsePayload([]byte(heartbeat))
	require.NoError(t, err)
	assert.EqualValues(t, 5000, payload.(*onebot.MetaEvent).Interval)
}

func TestParsePayloadResponse(t *testing.T) {
	raw := `{"echo":"3","status":"ok","retcode":0,"data":{"user_id":10001,"nickname":"bot"}}`
	payload, err := onebot.ParsePayload([]byte(raw))
	require.NoError(t, err)
	resp, ok := payload.(*onebot.Response)
	require.True(t, ok)
	assert.True(t, resp.OK())

	user, err := onebot.DecodeData[onebot.UserInfo](resp)
	require.NoError(t, err)
	assert.Equal(t, onebot.ID("10001"), user.UserID)
	assert.Equal(t, "bot", user.DisplayName())
}

func TestParsePayloadRequest(t *testing.T) {
	raw := `{"action":"send_msg","echo":"9","params":{"message_type":"private","user_id":"42","message":[]}}`
	payload, err := onebot.ParsePayload([]byte(raw))
	require.NoError(t, err)
	req, ok := payload.(*onebot.Request)
	require.True(t, ok)
	assert.Equal(t, "send_msg", req.Action)
	assert.Equal(t, "9", req.Echo)
}

func TestParsePayloadErrors(t *testing.T) {
	_, err := onebot.ParsePayload([]byte(`{"foo":"bar"}`))
	assert.Error(t, err)

	_, err = onebot.ParsePayload([]byte(`{"post_type":"weird"}`))
	assert.Error(t, err)
}

func TestRequestEchoesAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		req := onebot.GetLoginInfo()
		_, dup := seen[req.Echo]
		require.False(t, dup, "echo %s issued twice", req.Echo)
		seen[req.Echo] = struct{}{}
	}
}

func TestMemberInfoDisplayName(t *testing.T) {
	m := &onebot.MemberInfo{Nickname: "nick", Card: "card"}
	assert.Equal(t, "card", m.DisplayName())
	m.Card = ""
	assert.Equal(t, "nick", m.DisplayName())

	u := &onebot.UserInfo{Nickname: "nick", Remark: "remark"}
	assert.Equal(t, "remark", u.DisplayName())
	u.Remark = ""
	assert.Equal(t, "nick", u.DisplayName())
}

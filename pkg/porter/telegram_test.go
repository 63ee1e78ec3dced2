package porter

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/porterhq/porter/pkg/store"
)

func TestSentMessages(t *testing.T) {
	t.Run("short sent", func(t *testing.T) {
		sent := sentMessages(&tg.UpdateShortSentMessage{ID: 7, Date: 1700000000})
		require.Len(t, sent, 1)
		assert.Equal(t, sentMessage{ID: 7, Date: 1700000000}, sent[0])
	})
	t.Run("updates box", func(t *testing.T) {
		updates := &tg.Updates{Updates: []tg.UpdateClass{
			&tg.UpdateMessageID{ID: 12},
			&tg.UpdateNewMessage{Message: &tg.Message{ID: 11, Date: 1700000050}},
			&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 12, Date: 1700000051}},
		}}
		sent := sentMessages(updates)
		require.Len(t, sent, 2)
		assert.Equal(t, sentMessage{ID: 11, Date: 1700000050}, sent[0])
		assert.Equal(t, sentMessage{ID: 12, Date: 1700000051}, sent[1])
	})
	t.Run("id update without message", func(t *testing.T) {
		updates := &tg.UpdatesCombined{Updates: []tg.UpdateClass{
			&tg.UpdateMessageID{ID: 3},
		}}
		sent := sentMessages(updates)
		require.Len(t, sent, 1)
		assert.Equal(t, sentMessage{ID: 3}, sent[0])
	})
	t.Run("unknown box", func(t *testing.T) {
		assert.Nil(t, sentMessages(&tg.UpdatesTooLong{}))
	})
}

func TestTopicServiceMessageID(t *testing.T) {
	updates := []tg.UpdateClass{
		&tg.UpdateNewChannelMessage{Message: &tg.Message{ID: 5}},
		&tg.UpdateNewChannelMessage{Message: &tg.MessageService{
			ID:     9,
			Action: &tg.MessageActionTopicCreate{Title: "👤 Alice"},
		}},
	}
	assert.Equal(t, 9, topicServiceMessageID(updates))
	assert.Equal(t, 0, topicServiceMessageID(nil))
}

func TestMessageTopicID(t *testing.T) {
	t.Run("no reply header", func(t *testing.T) {
		assert.Equal(t, 0, messageTopicID(&tg.Message{}))
	})
	t.Run("reply inside topic", func(t *testing.T) {
		header := &tg.MessageReplyHeader{ForumTopic: true}
		header.SetReplyToMsgID(120)
		header.SetReplyToTopID(42)
		msg := &tg.Message{}
		msg.SetReplyTo(header)
		assert.Equal(t, 42, messageTopicID(msg))
	})
	t.Run("plain message inside topic", func(t *testing.T) {
		header := &tg.MessageReplyHeader{ForumTopic: true}
		header.SetReplyToMsgID(42)
		msg := &tg.Message{}
		msg.SetReplyTo(header)
		assert.Equal(t, 42, messageTopicID(msg))
	})
	t.Run("plain reply outside topics", func(t *testing.T) {
		header := &tg.MessageReplyHeader{}
		header.SetReplyToMsgID(15)
		msg := &tg.Message{}
		msg.SetReplyTo(header)
		assert.Equal(t, 0, messageTopicID(msg))
	})
}

func TestReplyMessageID(t *testing.T) {
	t.Run("no reply header", func(t *testing.T) {
		assert.Equal(t, 0, replyMessageID(&tg.Message{}))
	})
	t.Run("plain reply", func(t *testing.T) {
		header := &tg.MessageReplyHeader{}
		header.SetReplyToMsgID(15)
		msg := &tg.Message{}
		msg.SetReplyTo(header)
		assert.Equal(t, 15, replyMessageID(msg))
	})
	t.Run("reply inside topic", func(t *testing.T) {
		header := &tg.MessageReplyHeader{ForumTopic: true}
		header.SetReplyToMsgID(120)
		header.SetReplyToTopID(42)
		msg := &tg.Message{}
		msg.SetReplyTo(header)
		assert.Equal(t, 120, replyMessageID(msg))
	})
	t.Run("topic header is not a reply", func(t *testing.T) {
		header := &tg.MessageReplyHeader{ForumTopic: true}
		header.SetReplyToMsgID(42)
		msg := &tg.Message{}
		msg.SetReplyTo(header)
		assert.Equal(t, 0, replyMessageID(msg))
	})
}

func TestTargetReplyHeader(t *testing.T) {
	assert.Nil(t, tgTarget{}.replyHeader())

	header := tgTarget{replyTo: 9}.replyHeader()
	require.IsType(t, &tg.InputReplyToMessage{}, header)
	assert.Equal(t, 9, header.(*tg.InputReplyToMessage).ReplyToMsgID)
}

func TestPeerHelpers(t *testing.T) {
	assert.Equal(t, int64(10), peerChatID(&tg.PeerUser{UserID: 10}))
	assert.Equal(t, int64(20), peerChatID(&tg.PeerChat{ChatID: 20}))
	assert.Equal(t, int64(30), peerChatID(&tg.PeerChannel{ChannelID: 30}))

	assert.Equal(t, store.PeerTypeUser, peerType(&tg.PeerUser{UserID: 10}))
	assert.Equal(t, store.PeerTypeChat, peerType(&tg.PeerChat{ChatID: 20}))
	assert.Equal(t, store.PeerTypeChannel, peerType(&tg.PeerChannel{ChannelID: 30}))
}

func TestVenueMedia(t *testing.T) {
	venue := venueMedia(39.9, 116.4, "Cafe", "1 Main St")
	assert.Equal(t, "Cafe", venue.Title)
	assert.Equal(t, "1 Main St", venue.Address)
	geo, ok := venue.GeoPoint.(*tg.InputGeoPoint)
	require.True(t, ok)
	assert.Equal(t, 39.9, geo.Lat)
	assert.Equal(t, 116.4, geo.Long)
}

package porter

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gotd/td/tg"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/util/dbutil"
	"go.mau.fi/util/exsync"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/store"
)

var qqEndpoint = onebot.Endpoint{Platform: onebot.PlatformQQ, ID: "10001"}

// newTestBridge builds a bridge with a real store but no Telegram or OneBot
// connection, enough for the routing and caching paths.
func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	db, err := dbutil.NewWithDialect(filepath.Join(t.TempDir(), "porter.db"), "sqlite3")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	container := store.NewStore(db, dbutil.ZeroLogger(zerolog.Nop()))
	require.NoError(t, container.Upgrade(context.Background()))
	return &Bridge{
		log:         zerolog.Nop(),
		cfg:         &Config{Telegram: TelegramConfig{AdminID: 777}},
		db:          container,
		remoteChats: exsync.NewMap[remoteChatKey, *store.RemoteChat](),
		peers:       exsync.NewMap[peerKey, int64](),
	}
}

func TestResolveRouteLink(t *testing.T) {
	br := newTestBridge(t)
	ctx := context.Background()

	rc := &store.RemoteChat{Endpoint: qqEndpoint, ChatType: onebot.ChatPrivate, TargetID: "20002", Name: "Alice"}
	require.NoError(t, br.db.RemoteChat.Insert(ctx, rc))
	require.NoError(t, br.db.Link.Insert(ctx, &store.Link{
		TGChatType:   store.PeerTypeChat,
		TGChatID:     500,
		RemoteChatID: rc.ID,
	}))

	target, title, err := br.resolveRoute(ctx, qqEndpoint, rc, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice:", title)
	assert.Equal(t, int64(500), target.chatID)
	assert.Equal(t, 0, target.replyTo)
	require.IsType(t, &tg.InputPeerChat{}, target.peer)
	assert.Equal(t, int64(500), target.peer.(*tg.InputPeerChat).ChatID)
}

func TestResolveRouteArchiveTopic(t *testing.T) {
	br := newTestBridge(t)
	ctx := context.Background()

	rc := &store.RemoteChat{Endpoint: qqEndpoint, ChatType: onebot.ChatGroup, TargetID: "30003", Name: "Friends"}
	require.NoError(t, br.db.RemoteChat.Insert(ctx, rc))
	archive := &store.Archive{Endpoint: qqEndpoint, TGChatID: 600}
	require.NoError(t, br.db.Archive.Insert(ctx, archive))
	require.NoError(t, br.db.Topic.Insert(ctx, &store.Topic{
		ArchiveID:    archive.ID,
		TGTopicID:    42,
		RemoteChatID: rc.ID,
	}))
	br.peers.Set(peerKey{Type: store.PeerTypeChannel, ID: 600}, 987654)

	target, title, err := br.resolveRoute(ctx, qqEndpoint, rc, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob:", title)
	assert.Equal(t, int64(600), target.chatID)
	assert.Equal(t, 42, target.replyTo)
	assert.Equal(t, 42, target.topicID)
	channel, ok := target.peer.(*tg.InputPeerChannel)
	require.True(t, ok)
	assert.Equal(t, int64(600), channel.ChannelID)
	assert.Equal(t, int64(987654), channel.AccessHash)
}

func TestResolveRouteAdminFallback(t *testing.T) {
	br := newTestBridge(t)
	ctx := context.Background()
	br.peers.Set(peerKey{Type: store.PeerTypeUser, ID: 777}, 111)

	private := &store.RemoteChat{ID: 1, Endpoint: qqEndpoint, ChatType: onebot.ChatPrivate, TargetID: "2", Name: "Alice"}
	target, title, err := br.resolveRoute(ctx, qqEndpoint, private, "Alice")
	require.NoError(t, err)
	assert.Equal(t, "👤 Alice:", title)
	assert.Equal(t, int64(777), target.chatID)
	user, ok := target.peer.(*tg.InputPeerUser)
	require.True(t, ok)
	assert.Equal(t, int64(777), user.UserID)
	assert.Equal(t, int64(111), user.AccessHash)

	group := &store.RemoteChat{ID: 2, Endpoint: qqEndpoint, ChatType: onebot.ChatGroup, TargetID: "3", Name: "Friends"}
	_, title, err = br.resolveRoute(ctx, qqEndpoint, group, "Bob")
	require.NoError(t, err)
	assert.Equal(t, "👥 Bob [Friends]:", title)
}

func TestResolveRouteMissingAccessHash(t *testing.T) {
	br := newTestBridge(t)
	rc := &store.RemoteChat{ID: 1, Endpoint: qqEndpoint, ChatType: onebot.ChatPrivate, TargetID: "2", Name: "Alice"}
	_, _, err := br.resolveRoute(context.Background(), qqEndpoint, rc, "Alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access hash")
}

func TestRouteToRemote(t *testing.T) {
	br := newTestBridge(t)
	ctx := context.Background()

	linked := &store.RemoteChat{Endpoint: qqEndpoint, ChatType: onebot.ChatPrivate, TargetID: "20002", Name: "Alice"}
	require.NoError(t, br.db.RemoteChat.Insert(ctx, linked))
	require.NoError(t, br.db.Link.Insert(ctx, &store.Link{
		TGChatType:   store.PeerTypeChat,
		TGChatID:     500,
		RemoteChatID: linked.ID,
	}))

	archived := &store.RemoteChat{Endpoint: qqEndpoint, ChatType: onebot.ChatGroup, TargetID: "30003", Name: "Friends"}
	require.NoError(t, br.db.RemoteChat.Insert(ctx, archived))
	archive := &store.Archive{Endpoint: qqEndpoint, TGChatID: 600}
	require.NoError(t, br.db.Archive.Insert(ctx, archive))
	require.NoError(t, br.db.Topic.Insert(ctx, &store.Topic{
		ArchiveID:    archive.ID,
		TGTopicID:    42,
		RemoteChatID: archived.ID,
	}))

	quoted := &store.RemoteChat{Endpoint: qqEndpoint, ChatType: onebot.ChatPrivate, TargetID: "40004", Name: "Carol"}
	require.NoError(t, br.db.RemoteChat.Insert(ctx, quoted))
	require.NoError(t, br.db.Message.Insert(ctx, &store.Message{
		TGChatID:       777,
		TGMsgID:        15,
		RemoteChatID:   quoted.ID,
		RemoteMsgID:    "9001",
		Content:        "hi",
		DeliveryStatus: store.DeliverySent,
	}))

	t.Run("linked chat wins", func(t *testing.T) {
		rc, err := br.routeToRemote(ctx, 500, &tg.Message{})
		require.NoError(t, err)
		require.NotNil(t, rc)
		assert.Equal(t, linked.ID, rc.ID)
	})
	t.Run("archive topic", func(t *testing.T) {
		header := &tg.MessageReplyHeader{ForumTopic: true}
		header.SetReplyToMsgID(120)
		header.SetReplyToTopID(42)
		msg := &tg.Message{}
		msg.SetReplyTo(header)

		rc, err := br.routeToRemote(ctx, 600, msg)
		require.NoError(t, err)
		require.NotNil(t, rc)
		assert.Equal(t, archived.ID, rc.ID)
	})
	t.Run("topic root header", func(t *testing.T) {
		header := &tg.MessageReplyHeader{ForumTopic: true}
		header.SetReplyToMsgID(42)
		msg := &tg.Message{}
		msg.SetReplyTo(header)

		rc, err := br.routeToRemote(ctx, 600, msg)
		require.NoError(t, err)
		require.NotNil(t, rc)
		assert.Equal(t, archived.ID, rc.ID)
	})
	t.Run("quoted mapped message", func(t *testing.T) {
		header := &tg.MessageReplyHeader{}
		header.SetReplyToMsgID(15)
		msg := &tg.Message{}
		msg.SetReplyTo(header)

		rc, err := br.routeToRemote(ctx, 777, msg)
		require.NoError(t, err)
		require.NotNil(t, rc)
		assert.Equal(t, quoted.ID, rc.ID)
	})
	t.Run("nothing matches", func(t *testing.T) {
		rc, err := br.routeToRemote(ctx, 888, &tg.Message{})
		require.NoError(t, err)
		assert.Nil(t, rc)
	})
	t.Run("unmapped quote", func(t *testing.T) {
		header := &tg.MessageReplyHeader{}
		header.SetReplyToMsgID(99)
		msg := &tg.Message{}
		msg.SetReplyTo(header)

		rc, err := br.routeToRemote(ctx, 777, msg)
		require.NoError(t, err)
		assert.Nil(t, rc)
	})
}

func TestRemoteChatCaching(t *testing.T) {
	br := newTestBridge(t)
	ctx := context.Background()

	seed := &store.RemoteChat{Endpoint: qqEndpoint, ChatType: onebot.ChatPrivate, TargetID: "20002", Name: "Alice"}
	require.NoError(t, br.db.RemoteChat.Insert(ctx, seed))

	got, err := br.remoteChat(ctx, qqEndpoint, onebot.ChatPrivate, "20002")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Alice", got.Name)

	// Repeat lookups are served from the cache, not the database.
	renamed := *seed
	renamed.Name = "Alice Chan"
	require.NoError(t, br.db.RemoteChat.Upsert(ctx, &renamed))

	got, err = br.remoteChat(ctx, qqEndpoint, onebot.ChatPrivate, "20002")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Name)
}

package porter

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/porterhq/porter/pkg/onebot"
)

func TestQQCardVenue(t *testing.T) {
	raw := `{"app":"com.tencent.map","meta":{"Location.Search":{"name":"Cafe","address":"1 Main St","lat":"39.90421","lng":"116.40739"}}}`
	venue, err := qqCardVenue(gjson.Parse(raw))
	require.NoError(t, err)
	assert.Equal(t, "Cafe", venue.Title)
	assert.Equal(t, "1 Main St", venue.Address)
	geo, ok := venue.GeoPoint.(*tg.InputGeoPoint)
	require.True(t, ok)
	assert.InDelta(t, 39.90421, geo.Lat, 1e-9)
	assert.InDelta(t, 116.40739, geo.Long, 1e-9)
}

func TestQQCardVenueMissingFields(t *testing.T) {
	_, err := qqCardVenue(gjson.Parse(`{"meta":{"Location.Search":{"name":"Cafe"}}}`))
	assert.Error(t, err)
}

func TestQQCardShare(t *testing.T) {
	t.Run("docs card", func(t *testing.T) {
		raw := `{"prompt":"[分享]Quarterly notes","meta":{"detail":{"qqdocurl":"https://docs.qq.com/x","title":"Docs","desc":"A shared doc"}}}`
		text, err := qqCardShare(gjson.Parse(raw))
		require.NoError(t, err)
		assert.Equal(t, "<u>[分享]Quarterly notes</u>\n\nA shared doc\n\nvia <a href=\"https://docs.qq.com/x\">Docs</a>", text)
	})
	t.Run("jump url fallback", func(t *testing.T) {
		raw := `{"prompt":"[分享]News","meta":{"news":{"jumpUrl":"https://example.com/n","tag":"NewsApp","desc":"headline"}}}`
		text, err := qqCardShare(gjson.Parse(raw))
		require.NoError(t, err)
		assert.Equal(t, "<u>[分享]News</u>\n\nheadline\n\nvia <a href=\"https://example.com/n\">NewsApp</a>", text)
	})
	t.Run("no recognized link", func(t *testing.T) {
		text, err := qqCardShare(gjson.Parse(`{"view":"miniapp","meta":{"d":{"title":"x"}}}`))
		require.NoError(t, err)
		assert.Empty(t, text)
	})
	t.Run("missing fields", func(t *testing.T) {
		_, err := qqCardShare(gjson.Parse(`{"meta":{"d":{"qqdocurl":"https://x"}}}`))
		assert.Error(t, err)
	})
	t.Run("html escaped", func(t *testing.T) {
		raw := `{"prompt":"<b>","meta":{"d":{"qqdocurl":"https://x?a=1&b=2","title":"T&Co","desc":"a<b"}}}`
		text, err := qqCardShare(gjson.Parse(raw))
		require.NoError(t, err)
		assert.Equal(t, "<u>&lt;b&gt;</u>\n\na&lt;b\n\nvia <a href=\"https://x?a=1&amp;b=2\">T&amp;Co</a>", text)
	})
}

func TestDocumentMedia(t *testing.T) {
	up := &uploadedInfo{
		file:     &tg.InputFile{ID: 1, Name: "report.pdf"},
		name:     "report.pdf",
		mimeType: "application/pdf",
	}
	doc := documentMedia(up, true)
	assert.True(t, doc.ForceFile)
	assert.Equal(t, "application/pdf", doc.MimeType)
	require.Len(t, doc.Attributes, 1)
	assert.Equal(t, &tg.DocumentAttributeFilename{FileName: "report.pdf"}, doc.Attributes[0])

	assert.False(t, documentMedia(up, false).ForceFile)
}

func TestStickerMedia(t *testing.T) {
	up := &uploadedInfo{
		file:     &tg.InputFile{ID: 2, Name: "face.webp"},
		name:     "face.webp",
		mimeType: "image/webp",
	}
	doc := stickerMedia(up)
	assert.False(t, doc.ForceFile)
	assert.Equal(t, "image/webp", doc.MimeType)
	require.Len(t, doc.Attributes, 2)
	sticker, ok := doc.Attributes[1].(*tg.DocumentAttributeSticker)
	require.True(t, ok)
	assert.Equal(t, "😊", sticker.Alt)
	assert.IsType(t, &tg.InputStickerSetEmpty{}, sticker.Stickerset)
}

func TestIsSticker(t *testing.T) {
	assert.True(t, isSticker(onebot.Segment{Type: "mface", Data: &onebot.MfaceData{EmojiID: "e1"}}))
	assert.True(t, isSticker(onebot.Segment{Type: "image", Data: &onebot.ImageData{File: "a.gif", EmojiID: "e1"}}))
	assert.True(t, isSticker(onebot.Segment{Type: "image", Data: &onebot.ImageData{File: "a.gif", Summary: "[动画表情]"}}))
	assert.False(t, isSticker(onebot.Segment{Type: "image", Data: &onebot.ImageData{File: "a.jpg"}}))
	assert.False(t, isSticker(onebot.Segment{Type: "record", Data: &onebot.RecordData{File: "v.amr"}}))
}

func TestEventLockKey(t *testing.T) {
	endpoint := onebot.Endpoint{Platform: onebot.PlatformQQ, ID: "10001"}

	group := &onebot.EndpointEvent{
		Endpoint: endpoint,
		Event:    &onebot.MessageEvent{PostType: "message", MessageType: "group", GroupID: "30003", UserID: "20002"},
	}
	assert.Equal(t, remoteChatKey{Endpoint: endpoint, ChatType: onebot.ChatGroup, TargetID: "30003"}, eventLockKey(group))

	private := &onebot.EndpointEvent{
		Endpoint: endpoint,
		Event:    &onebot.MessageEvent{PostType: "message", MessageType: "private", UserID: "20002"},
	}
	assert.Equal(t, remoteChatKey{Endpoint: endpoint, ChatType: onebot.ChatPrivate, TargetID: "20002"}, eventLockKey(private))

	meta := &onebot.EndpointEvent{
		Endpoint: endpoint,
		Event:    &onebot.MetaEvent{PostType: "meta_event", MetaEventType: "heartbeat"},
	}
	assert.Equal(t, remoteChatKey{Endpoint: endpoint, ChatType: onebot.ChatPrivate}, eventLockKey(meta))
}

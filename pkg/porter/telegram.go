package porter

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/gotd/td/telegram/dcs"
	"github.com/gotd/td/telegram/message/entity"
	"github.com/gotd/td/telegram/message/html"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"golang.org/x/net/proxy"

	"github.com/porterhq/porter/pkg/store"
)

type updateDispatcher struct {
	tg.UpdateDispatcher
	EntityHandler func(context.Context, tg.Entities) error
}

func (u updateDispatcher) Handle(ctx context.Context, updates tg.UpdatesClass) error {
	var e tg.Entities
	switch u := updates.(type) {
	case *tg.Updates:
		e.Users = u.MapUsers().NotEmptyToMap()
		chats := u.MapChats()
		e.Chats = chats.ChatToMap()
		e.Channels = chats.ChannelToMap()
	case *tg.UpdatesCombined:
		e.Users = u.MapUsers().NotEmptyToMap()
		chats := u.MapChats()
		e.Chats = chats.ChatToMap()
		e.Channels = chats.ChannelToMap()
	}
	if u.EntityHandler != nil {
		u.EntityHandler(ctx, e)
	}

	return u.UpdateDispatcher.Handle(ctx, updates)
}

func (br *Bridge) onEntities(ctx context.Context, e tg.Entities) error {
	for _, user := range e.Users {
		if user.Min {
			continue
		}
		if hash, ok := user.GetAccessHash(); ok {
			br.rememberPeer(ctx, store.PeerTypeUser, user.ID, hash)
		}
	}
	for _, channel := range e.Channels {
		if channel.Min {
			continue
		}
		if hash, ok := channel.GetAccessHash(); ok {
			br.rememberPeer(ctx, store.PeerTypeChannel, channel.ID, hash)
		}
	}
	return nil
}

// rememberPeer persists an access hash so the bot can still address the peer
// after a restart.
func (br *Bridge) rememberPeer(ctx context.Context, peerType store.PeerType, id, accessHash int64) {
	key := peerKey{Type: peerType, ID: id}
	if hash, ok := br.peers.Get(key); ok && hash == accessHash {
		return
	}
	br.peers.Set(key, accessHash)
	if err := br.db.Peer.SetAccessHash(ctx, peerType, id, accessHash); err != nil {
		br.log.Warn().Err(err).
			Str("peer_type", string(peerType)).
			Int64("peer_id", id).
			Msg("Failed to save access hash")
	}
}

func (br *Bridge) accessHash(ctx context.Context, peerType store.PeerType, id int64) (int64, error) {
	key := peerKey{Type: peerType, ID: id}
	if hash, ok := br.peers.Get(key); ok {
		return hash, nil
	}
	hash, found, err := br.db.Peer.GetAccessHash(ctx, peerType, id)
	if err != nil {
		return 0, err
	} else if !found {
		return 0, fmt.Errorf("no access hash for %s %d", peerType, id)
	}
	br.peers.Set(key, hash)
	return hash, nil
}

func (br *Bridge) inputPeer(ctx context.Context, peerType store.PeerType, id int64) (tg.InputPeerClass, error) {
	if peerType == store.PeerTypeChat {
		return &tg.InputPeerChat{ChatID: id}, nil
	}
	hash, err := br.accessHash(ctx, peerType, id)
	if err != nil {
		return nil, err
	}
	if peerType == store.PeerTypeUser {
		return &tg.InputPeerUser{UserID: id, AccessHash: hash}, nil
	}
	return &tg.InputPeerChannel{ChannelID: id, AccessHash: hash}, nil
}

func (br *Bridge) inputChannel(ctx context.Context, id int64) (*tg.InputChannel, error) {
	hash, err := br.accessHash(ctx, store.PeerTypeChannel, id)
	if err != nil {
		return nil, err
	}
	return &tg.InputChannel{ChannelID: id, AccessHash: hash}, nil
}

// socksResolver builds a DC resolver that dials Telegram through the
// configured SOCKS5 proxy.
func socksResolver(proxyURL string) (dcs.Resolver, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy url: %w", err)
	}
	var auth *proxy.Auth
	if u.User != nil {
		auth = &proxy.Auth{User: u.User.Username()}
		if password, ok := u.User.Password(); ok {
			auth.Password = password
		}
	}
	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("proxy dialer does not support context")
	}
	return dcs.Plain(dcs.PlainOptions{Dial: contextDialer.DialContext}), nil
}

// signIn authorizes the bot account if the stored session has expired.
func (br *Bridge) signIn(ctx context.Context) error {
	status, err := br.client.Auth().Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get auth status: %w", err)
	}
	if !status.Authorized {
		if _, err = br.client.Auth().Bot(ctx, br.cfg.Telegram.BotToken); err != nil {
			return fmt.Errorf("failed to sign in as bot: %w", err)
		}
	}
	self, err := br.client.Self(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch self: %w", err)
	}
	br.self = self
	return nil
}

// tgTarget addresses one Telegram conversation, optionally inside a forum
// topic or as a reply to an existing message.
type tgTarget struct {
	peer    tg.InputPeerClass
	chatID  int64
	replyTo int
	topicID int
}

func (t tgTarget) replyHeader() tg.InputReplyToClass {
	if t.replyTo == 0 {
		return nil
	}
	return &tg.InputReplyToMessage{ReplyToMsgID: t.replyTo}
}

type textMessage struct {
	text    string
	html    bool
	preview bool
	markup  tg.ReplyMarkupClass
}

// sentMessage is the id and date Telegram assigned to a relayed message.
type sentMessage struct {
	ID   int
	Date int
}

func (br *Bridge) sendText(ctx context.Context, target tgTarget, msg textMessage) ([]sentMessage, error) {
	if err := br.limiter.Wait(ctx, target.chatID); err != nil {
		return nil, err
	}
	text := msg.text
	var entities []tg.MessageEntityClass
	if msg.html {
		var err error
		text, entities, err = parseHTML(msg.text)
		if err != nil {
			return nil, err
		}
	}
	randomID, err := br.client.RandInt64()
	if err != nil {
		return nil, err
	}
	updates, err := br.api.MessagesSendMessage(ctx, &tg.MessagesSendMessageRequest{
		NoWebpage:   !msg.preview,
		Peer:        target.peer,
		ReplyTo:     target.replyHeader(),
		Message:     text,
		RandomID:    randomID,
		ReplyMarkup: msg.markup,
		Entities:    entities,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	return sentMessages(updates), nil
}

func (br *Bridge) sendMedia(ctx context.Context, target tgTarget, media tg.InputMediaClass, caption string, markup tg.ReplyMarkupClass) ([]sentMessage, error) {
	if err := br.limiter.Wait(ctx, target.chatID); err != nil {
		return nil, err
	}
	randomID, err := br.client.RandInt64()
	if err != nil {
		return nil, err
	}
	updates, err := br.api.MessagesSendMedia(ctx, &tg.MessagesSendMediaRequest{
		Peer:        target.peer,
		ReplyTo:     target.replyHeader(),
		Media:       media,
		Message:     caption,
		RandomID:    randomID,
		ReplyMarkup: markup,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send media: %w", err)
	}
	return sentMessages(updates), nil
}

// sendAlbum registers every uploaded file with the server first, because
// messages.sendMultiMedia only accepts media referenced by server id.
func (br *Bridge) sendAlbum(ctx context.Context, target tgTarget, files []tg.InputFileClass, caption string) ([]sentMessage, error) {
	if err := br.limiter.Wait(ctx, target.chatID); err != nil {
		return nil, err
	}
	multi := make([]tg.InputSingleMedia, 0, len(files))
	for _, file := range files {
		uploaded, err := br.api.MessagesUploadMedia(ctx, &tg.MessagesUploadMediaRequest{
			Peer:  target.peer,
			Media: &tg.InputMediaUploadedPhoto{File: file},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to upload media: %w", err)
		}
		media, err := referenceMedia(uploaded)
		if err != nil {
			return nil, err
		}
		randomID, err := br.client.RandInt64()
		if err != nil {
			return nil, err
		}
		multi = append(multi, tg.InputSingleMedia{
			Media:    media,
			RandomID: randomID,
			Message:  caption,
		})
	}
	updates, err := br.api.MessagesSendMultiMedia(ctx, &tg.MessagesSendMultiMediaRequest{
		Peer:       target.peer,
		ReplyTo:    target.replyHeader(),
		MultiMedia: multi,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send album: %w", err)
	}
	return sentMessages(updates), nil
}

func referenceMedia(media tg.MessageMediaClass) (tg.InputMediaClass, error) {
	switch m := media.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, fmt.Errorf("unexpected photo class %T", m.Photo)
		}
		return &tg.InputMediaPhoto{ID: &tg.InputPhoto{
			ID:            photo.ID,
			AccessHash:    photo.AccessHash,
			FileReference: photo.FileReference,
		}}, nil
	case *tg.MessageMediaDocument:
		document, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, fmt.Errorf("unexpected document class %T", m.Document)
		}
		return &tg.InputMediaDocument{ID: &tg.InputDocument{
			ID:            document.ID,
			AccessHash:    document.AccessHash,
			FileReference: document.FileReference,
		}}, nil
	}
	return nil, fmt.Errorf("unexpected media class %T", media)
}

func (br *Bridge) editMessage(ctx context.Context, peer tg.InputPeerClass, chatID int64, msgID int, msg textMessage) error {
	if err := br.limiter.Wait(ctx, chatID); err != nil {
		return err
	}
	text := msg.text
	var entities []tg.MessageEntityClass
	if msg.html {
		var err error
		text, entities, err = parseHTML(msg.text)
		if err != nil {
			return err
		}
	}
	_, err := br.api.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		NoWebpage:   !msg.preview,
		Peer:        peer,
		ID:          msgID,
		Message:     text,
		ReplyMarkup: msg.markup,
		Entities:    entities,
	})
	if err != nil && !tgerr.Is(err, "MESSAGE_NOT_MODIFIED") {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// answerCallback dismisses the client-side spinner on an inline button.
func (br *Bridge) answerCallback(ctx context.Context, queryID int64) {
	_, err := br.api.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: queryID,
	})
	if err != nil {
		br.log.Warn().Err(err).Int64("query_id", queryID).Msg("Failed to answer callback query")
	}
}

// createForumTopic opens a new topic and returns the id of its service
// message, which doubles as the topic id for replies.
func (br *Bridge) createForumTopic(ctx context.Context, channel tg.InputChannelClass, title string) (int, error) {
	randomID, err := br.client.RandInt64()
	if err != nil {
		return 0, err
	}
	updates, err := br.api.ChannelsCreateForumTopic(ctx, &tg.ChannelsCreateForumTopicRequest{
		Channel:  channel,
		Title:    title,
		RandomID: randomID,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create forum topic: %w", err)
	}
	switch u := updates.(type) {
	case *tg.Updates:
		if id := topicServiceMessageID(u.Updates); id != 0 {
			return id, nil
		}
	case *tg.UpdatesCombined:
		if id := topicServiceMessageID(u.Updates); id != 0 {
			return id, nil
		}
	}
	return 0, fmt.Errorf("no topic id in create response")
}

func topicServiceMessageID(updates []tg.UpdateClass) int {
	for _, upd := range updates {
		u, ok := upd.(*tg.UpdateNewChannelMessage)
		if !ok {
			continue
		}
		service, ok := u.Message.(*tg.MessageService)
		if !ok {
			continue
		}
		if _, ok = service.Action.(*tg.MessageActionTopicCreate); ok {
			return service.ID
		}
	}
	return 0
}

// sentMessages extracts the ids of the messages a send call produced. Bots
// get a short update for plain sends and a full update box for everything
// else.
func sentMessages(updates tg.UpdatesClass) []sentMessage {
	switch u := updates.(type) {
	case *tg.UpdateShortSentMessage:
		return []sentMessage{{ID: u.ID, Date: u.Date}}
	case *tg.Updates:
		return collectSent(u.Updates)
	case *tg.UpdatesCombined:
		return collectSent(u.Updates)
	}
	return nil
}

func collectSent(updates []tg.UpdateClass) []sentMessage {
	dates := make(map[int]int)
	for _, upd := range updates {
		switch u := upd.(type) {
		case *tg.UpdateMessageID:
			if _, ok := dates[u.ID]; !ok {
				dates[u.ID] = 0
			}
		case *tg.UpdateNewMessage:
			if msg, ok := u.Message.(*tg.Message); ok {
				dates[msg.ID] = msg.Date
			}
		case *tg.UpdateNewChannelMessage:
			if msg, ok := u.Message.(*tg.Message); ok {
				dates[msg.ID] = msg.Date
			}
		}
	}
	sent := make([]sentMessage, 0, len(dates))
	for id, date := range dates {
		sent = append(sent, sentMessage{ID: id, Date: date})
	}
	sort.Slice(sent, func(i, j int) bool { return sent[i].ID < sent[j].ID })
	return sent
}

// parseHTML converts an HTML-formatted body into plain text plus Telegram
// formatting entities.
func parseHTML(text string) (string, []tg.MessageEntityClass, error) {
	var builder entity.Builder
	if err := html.HTML(strings.NewReader(text), &builder, html.Options{}); err != nil {
		return "", nil, fmt.Errorf("failed to parse html: %w", err)
	}
	msg, entities := builder.Complete()
	return msg, entities, nil
}

func venueMedia(lat, long float64, title, address string) *tg.InputMediaVenue {
	return &tg.InputMediaVenue{
		GeoPoint: &tg.InputGeoPoint{Lat: lat, Long: long},
		Title:    title,
		Address:  address,
	}
}

// messageTopicID returns the forum topic a message belongs to, or 0 outside
// topics. Messages inside a topic always carry a reply header naming it.
func messageTopicID(msg *tg.Message) int {
	reply, ok := msg.GetReplyTo()
	if !ok {
		return 0
	}
	header, ok := reply.(*tg.MessageReplyHeader)
	if !ok || !header.ForumTopic {
		return 0
	}
	if topID, ok := header.GetReplyToTopID(); ok {
		return topID
	}
	if msgID, ok := header.GetReplyToMsgID(); ok {
		return msgID
	}
	return 0
}

// replyMessageID returns the message a reply targets, or 0. Inside a forum
// topic the header always names the topic, so a real reply exists only when
// both ids are present.
func replyMessageID(msg *tg.Message) int {
	reply, ok := msg.GetReplyTo()
	if !ok {
		return 0
	}
	header, ok := reply.(*tg.MessageReplyHeader)
	if !ok {
		return 0
	}
	msgID, hasMsg := header.GetReplyToMsgID()
	if !hasMsg {
		return 0
	}
	if header.ForumTopic {
		if _, hasTop := header.GetReplyToTopID(); !hasTop {
			return 0
		}
	}
	return msgID
}

func peerChatID(peer tg.PeerClass) int64 {
	switch p := peer.(type) {
	case *tg.PeerUser:
		return p.UserID
	case *tg.PeerChat:
		return p.ChatID
	case *tg.PeerChannel:
		return p.ChannelID
	}
	return 0
}

func peerType(peer tg.PeerClass) store.PeerType {
	switch peer.(type) {
	case *tg.PeerChat:
		return store.PeerTypeChat
	case *tg.PeerChannel:
		return store.PeerTypeChannel
	default:
		return store.PeerTypeUser
	}
}

package porter

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/search"
	"github.com/porterhq/porter/pkg/store"
)

const helpText = "help - Show command list.\n" +
	"link - Manage remote chat link.\n" +
	"archive - Archive remote chat.\n" +
	"search - Search messages in current chat."

// CommandCallback is the state behind one inline keyboard button. Telegram
// caps callback data at 64 bytes, so buttons carry a token into the in-memory
// cache instead of the state itself. Search callbacks hold the forum topic id
// in Page and the pagination cursor in Data.
type CommandCallback struct {
	Category string
	Action   string
	Page     int
	Keyword  string
	Data     string
}

// putCallback caches the state and returns the token to put on the button.
// The token is a stable hash of the state, so re-rendering the same button
// overwrites its cache entry rather than piling up a new one.
func (br *Bridge) putCallback(cb CommandCallback) []byte {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%d|%s|%s", cb.Category, cb.Action, cb.Page, cb.Keyword, cb.Data)
	token := strconv.FormatUint(h.Sum64(), 10)
	br.callbacks.Set(token, cb)
	return []byte(token)
}

func (br *Bridge) button(text string, cb CommandCallback) *tg.KeyboardButtonCallback {
	return &tg.KeyboardButtonCallback{Text: text, Data: br.putCallback(cb)}
}

// placeholderButton fills an unavailable pagination slot. Its data misses the
// callback cache on purpose.
func placeholderButton() *tg.KeyboardButtonCallback {
	return &tg.KeyboardButtonCallback{Text: " ", Data: []byte(placeholderData)}
}

func buttonRow(buttons ...tg.KeyboardButtonClass) tg.KeyboardButtonRow {
	return tg.KeyboardButtonRow{Buttons: buttons}
}

// uiContext identifies the message a command UI lives in. editID is set when
// re-rendering from a callback, so the bot edits its own message in place
// instead of sending a fresh one.
type uiContext struct {
	peer     tg.InputPeerClass
	chatID   int64
	chatType store.PeerType
	editID   int
	replyTo  int
}

func (br *Bridge) render(ctx context.Context, ui uiContext, msg textMessage) error {
	if ui.editID != 0 {
		return br.editMessage(ctx, ui.peer, ui.chatID, ui.editID, msg)
	}
	target := tgTarget{peer: ui.peer, chatID: ui.chatID, replyTo: ui.replyTo}
	_, err := br.sendText(ctx, target, msg)
	return err
}

// forumChannel reports whether the message was posted in a forum supergroup.
func forumChannel(e tg.Entities, peer tg.PeerClass) bool {
	ch, ok := peer.(*tg.PeerChannel)
	if !ok {
		return false
	}
	channel, ok := e.Channels[ch.ChannelID]
	return ok && channel.Megagroup && channel.Forum
}

// plainGroup reports whether the message was posted in a basic group or a
// non-forum supergroup. Links are not supported in topic groups.
func plainGroup(e tg.Entities, peer tg.PeerClass) bool {
	switch p := peer.(type) {
	case *tg.PeerChat:
		return true
	case *tg.PeerChannel:
		channel, ok := e.Channels[p.ChannelID]
		return ok && channel.Megagroup && !channel.Forum
	}
	return false
}

func supergroup(e tg.Entities, peer tg.PeerClass) bool {
	ch, ok := peer.(*tg.PeerChannel)
	if !ok {
		return false
	}
	channel, ok := e.Channels[ch.ChannelID]
	return ok && channel.Megagroup
}

func (br *Bridge) handleCommand(ctx context.Context, e tg.Entities, msg *tg.Message, cmd, args string) error {
	if !br.fromAdmin(msg) {
		return nil
	}
	target, err := br.messageTarget(ctx, msg)
	if err != nil {
		return err
	}
	ui := uiContext{peer: target.peer, chatID: target.chatID, chatType: peerType(msg.PeerID)}

	switch cmd {
	case "/help":
		return br.render(ctx, ui, textMessage{text: helpText, html: true})
	case "/archive":
		if !forumChannel(e, msg.PeerID) {
			return br.render(ctx, ui, textMessage{text: "<b>Currently, archive is only supported in forum groups</b>", html: true})
		}
		return br.renderArchiveList(ctx, ui)
	case "/link":
		if !plainGroup(e, msg.PeerID) {
			return br.render(ctx, ui, textMessage{text: "<b>Currently, link creation is only supported in regular groups</b>", html: true})
		}
		cb := CommandCallback{Category: "link", Action: "list", Keyword: args}
		return br.renderLinkList(ctx, ui, cb)
	case "/search":
		if !supergroup(e, msg.PeerID) {
			return br.render(ctx, ui, textMessage{text: "<b>Currently, search is only supported in supergroups</b>", html: true})
		}
		return br.cmdSearch(ctx, ui, msg, args)
	default:
		return br.render(ctx, ui, textMessage{text: "<b>Command not supported</b>", html: true})
	}
}

func (br *Bridge) handleTGCallback(ctx context.Context, update *tg.UpdateBotCallbackQuery) {
	chatID := peerChatID(update.Peer)
	log := br.log.With().
		Int64("tg_chat_id", chatID).
		Int("tg_msg_id", update.MsgID).
		Logger()
	ctx = log.WithContext(ctx)
	log.Debug().Msg("Received Telegram callback")

	unlock := br.tgLocks.Lock(chatID)
	defer unlock()

	if err := br.processCallback(ctx, update); err != nil {
		log.Warn().Err(err).Msg("Failed to process Telegram callback")
	}
}

func (br *Bridge) processCallback(ctx context.Context, update *tg.UpdateBotCallbackQuery) error {
	defer br.answerCallback(ctx, update.QueryID)

	data, _ := update.GetData()
	cb, ok := br.callbacks.Pop(string(data))
	if !ok {
		// Placeholder buttons and stale keyboards.
		return nil
	}

	chatID := peerChatID(update.Peer)
	peer, err := br.inputPeer(ctx, peerType(update.Peer), chatID)
	if err != nil {
		return err
	}
	ui := uiContext{peer: peer, chatID: chatID, chatType: peerType(update.Peer), editID: update.MsgID}

	cancelled := textMessage{text: "<del>Cancelled by the user</del>", html: true}
	switch cb.Category {
	case "archive":
		switch cb.Action {
		case "create":
			br.createArchive(ctx, ui, cb)
			return br.renderArchiveList(ctx, ui)
		case "delete":
			br.deleteArchive(ctx, cb)
			return br.renderArchiveList(ctx, ui)
		case "cancel":
			return br.render(ctx, ui, cancelled)
		}
	case "link":
		switch cb.Action {
		case "create":
			br.createLink(ctx, ui, cb)
			return br.renderLinkList(ctx, ui, cb)
		case "delete":
			br.deleteLink(ctx, cb)
			return br.renderLinkList(ctx, ui, cb)
		case "list":
			return br.renderLinkList(ctx, ui, cb)
		case "cancel":
			return br.render(ctx, ui, cancelled)
		}
	case "search":
		switch cb.Action {
		case "list":
			return br.renderSearchPage(ctx, ui, cb)
		case "cancel":
			return br.render(ctx, ui, cancelled)
		}
	}
	return nil
}

// createArchive binds an endpoint to the current forum group. Failures only
// warn; the list re-render shows the user the actual state either way.
func (br *Bridge) createArchive(ctx context.Context, ui uiContext, cb CommandCallback) {
	log := zerolog.Ctx(ctx)
	endpoint, err := onebot.ParseEndpoint(cb.Data)
	if err != nil {
		log.Warn().Str("data", cb.Data).Msg("Invalid endpoint")
		return
	}
	err = br.db.Archive.Insert(ctx, &store.Archive{Endpoint: endpoint, TGChatID: ui.chatID})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create archive")
		return
	}
	log.Info().Msg("Created archive successfully")
}

func (br *Bridge) deleteArchive(ctx context.Context, cb CommandCallback) {
	log := zerolog.Ctx(ctx)
	id, err := strconv.ParseInt(cb.Data, 10, 64)
	if err != nil {
		log.Warn().Str("data", cb.Data).Msg("Invalid archive id")
		return
	}
	if err = br.db.Archive.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Msg("Failed to delete archive")
		return
	}
	log.Info().Msg("Deleted archive successfully")
}

func (br *Bridge) createLink(ctx context.Context, ui uiContext, cb CommandCallback) {
	log := zerolog.Ctx(ctx)
	remoteChatID, err := strconv.ParseInt(cb.Data, 10, 64)
	if err != nil {
		log.Warn().Str("data", cb.Data).Msg("Invalid remote chat id")
		return
	}
	err = br.db.Link.Insert(ctx, &store.Link{
		TGChatType:   ui.chatType,
		TGChatID:     ui.chatID,
		RemoteChatID: remoteChatID,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create link")
		return
	}
	log.Info().Msg("Created link successfully")
}

func (br *Bridge) deleteLink(ctx context.Context, cb CommandCallback) {
	log := zerolog.Ctx(ctx)
	id, err := strconv.ParseInt(cb.Data, 10, 64)
	if err != nil {
		log.Warn().Str("data", cb.Data).Msg("Invalid link id")
		return
	}
	if err = br.db.Link.Delete(ctx, id); err != nil {
		log.Warn().Err(err).Msg("Failed to delete link")
		return
	}
	log.Info().Msg("Deleted link successfully")
}

func (br *Bridge) renderArchiveList(ctx context.Context, ui uiContext) error {
	archives, err := br.db.Archive.List(ctx)
	if err != nil {
		return err
	}

	content := "Archive: "
	byEndpoint := make(map[onebot.Endpoint]*store.Archive, len(archives))
	for _, archive := range archives {
		if archive.TGChatID == ui.chatID {
			content += archive.Endpoint.String()
		}
		byEndpoint[archive.Endpoint] = archive
	}

	endpoints, err := br.db.RemoteChat.ListEndpoints(ctx)
	if err != nil {
		return err
	}

	var rows []tg.KeyboardButtonRow
	for _, endpoint := range endpoints {
		if archive, ok := byEndpoint[endpoint]; ok {
			cb := CommandCallback{Category: "archive", Action: "delete", Data: strconv.FormatInt(archive.ID, 10)}
			rows = append(rows, buttonRow(br.button("🗃"+endpoint.String(), cb)))
		} else {
			cb := CommandCallback{Category: "archive", Action: "create", Data: endpoint.String()}
			rows = append(rows, buttonRow(br.button(endpoint.String(), cb)))
		}
	}
	rows = append(rows, buttonRow(br.button("cancel", CommandCallback{Category: "archive", Action: "cancel"})))

	return br.render(ctx, ui, textMessage{text: content, markup: &tg.ReplyInlineMarkup{Rows: rows}})
}

func (br *Bridge) renderLinkList(ctx context.Context, ui uiContext, cb CommandCallback) error {
	count, err := br.db.RemoteChat.Count(ctx, cb.Keyword)
	if err != nil {
		return err
	}
	if count == 0 {
		return br.render(ctx, ui, textMessage{text: "<b>There are no remote chats avaiable</b>", html: true})
	}

	content := "Link:"
	link, linked, err := br.db.Link.GetByTGChat(ctx, ui.chatID)
	if err != nil {
		return err
	}
	if link != nil && linked != nil {
		content = fmt.Sprintf("Link: 🔗%s(%s) from (%s)", linked.Name, linked.TargetID, linked.Endpoint)
	}

	page, err := br.db.RemoteChat.List(ctx, cb.Keyword, pageSize, cb.Page*pageSize)
	if err != nil {
		return err
	}

	var rows []tg.KeyboardButtonRow
	for _, item := range page {
		marker := ""
		if item.Link != nil {
			marker = "🔗"
		}
		kind := "👤"
		if item.Chat.ChatType == onebot.ChatGroup {
			kind = "👥"
		}
		text := fmt.Sprintf("%s%s%s(%s) from (%s)", marker, kind, item.Chat.Name, item.Chat.TargetID, item.Chat.Endpoint)
		itemCB := CommandCallback{Category: "link", Page: cb.Page, Keyword: cb.Keyword}
		if item.Link != nil {
			itemCB.Action = "delete"
			itemCB.Data = strconv.FormatInt(item.Link.ID, 10)
		} else {
			itemCB.Action = "create"
			itemCB.Data = strconv.FormatInt(item.Chat.ID, 10)
		}
		rows = append(rows, buttonRow(br.button(text, itemCB)))
	}

	totalPages := (count + pageSize - 1) / pageSize
	var bottom []tg.KeyboardButtonClass
	if cb.Page > 0 {
		prev := CommandCallback{Category: "link", Action: "list", Page: cb.Page - 1, Keyword: cb.Keyword, Data: cb.Data}
		bottom = append(bottom, br.button("< Prev", prev))
	} else {
		bottom = append(bottom, placeholderButton())
	}
	cancel := CommandCallback{Category: "link", Action: "cancel", Page: cb.Page, Keyword: cb.Keyword}
	bottom = append(bottom, br.button(fmt.Sprintf("%d/%d | Cancel", cb.Page+1, totalPages), cancel))
	if cb.Page < totalPages-1 {
		next := CommandCallback{Category: "link", Action: "list", Page: cb.Page + 1, Keyword: cb.Keyword, Data: cb.Data}
		bottom = append(bottom, br.button("Next >", next))
	} else {
		bottom = append(bottom, placeholderButton())
	}
	rows = append(rows, buttonRow(bottom...))

	return br.render(ctx, ui, textMessage{text: content, markup: &tg.ReplyInlineMarkup{Rows: rows}})
}

func (br *Bridge) cmdSearch(ctx context.Context, ui uiContext, msg *tg.Message, keyword string) error {
	if br.index == nil {
		return br.render(ctx, ui, textMessage{text: "<b>Search is not enabled</b>", html: true})
	}
	if keyword == "" {
		return br.render(ctx, ui, textMessage{text: "<b>Please provide a keyword to search</b>", html: true})
	}
	// Keep the result UI inside the topic the command came from. Topic 0
	// searches the whole chat.
	topic := messageTopicID(msg)
	ui.replyTo = topic
	cb := CommandCallback{Category: "search", Action: "list", Page: topic, Keyword: keyword}
	return br.renderSearchPage(ctx, ui, cb)
}

func (br *Bridge) renderSearchPage(ctx context.Context, ui uiContext, cb CommandCallback) error {
	var lastID int64
	if cb.Data != "" {
		var err error
		if lastID, err = strconv.ParseInt(cb.Data, 10, 64); err != nil {
			zerolog.Ctx(ctx).Warn().Str("data", cb.Data).Msg("Invalid search cursor")
			lastID = 0
		}
	}

	hits, err := br.index.Search(ctx, search.Query{
		ChatID:   ui.chatID,
		ReplyTo:  int64(cb.Page),
		Keyword:  cb.Keyword,
		LastID:   lastID,
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return br.render(ctx, ui, textMessage{text: "Have reached the edge of the world."})
	}

	lines := make([]string, 0, len(hits))
	for _, hit := range hits {
		link := fmt.Sprintf("https://t.me/c/%d/%d", ui.chatID, hit.MessageID)
		if cb.Page != 0 {
			link = fmt.Sprintf("https://t.me/c/%d/%d/%d", ui.chatID, cb.Page, hit.MessageID)
		}
		ts := hit.Timestamp.Format(time.DateTime)
		lines = append(lines, fmt.Sprintf("<a href=\"%s\">%s</a>\n<blockquote>%s</blockquote>", link, ts, hit.Snippet))
	}

	bottom := []tg.KeyboardButtonClass{
		br.button("Cancel", CommandCallback{Category: "search", Action: "cancel"}),
	}
	if len(hits) == pageSize {
		next := CommandCallback{
			Category: "search",
			Action:   "list",
			Page:     cb.Page,
			Keyword:  cb.Keyword,
			Data:     strconv.FormatInt(hits[len(hits)-1].MessageID, 10),
		}
		bottom = append(bottom, br.button("Next >", next))
	}

	return br.render(ctx, ui, textMessage{
		text:   strings.Join(lines, "\n"),
		html:   true,
		markup: &tg.ReplyInlineMarkup{Rows: []tg.KeyboardButtonRow{buttonRow(bottom...)}},
	})
}

// porter - A Telegram <-> OneBot (QQ/WeChat) relay bridge.
// Copyright (C) 2025 The Porter Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package porter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/porter/media"
	"github.com/porterhq/porter/pkg/store"
)

func (br *Bridge) onNewMessage(ctx context.Context, e tg.Entities, msg tg.MessageClass) error {
	m, ok := msg.(*tg.Message)
	if !ok {
		// Service messages (topic created, member joins) carry nothing
		// relayable.
		return nil
	}
	go br.handleTGMessage(ctx, e, m)
	return nil
}

func (br *Bridge) onCallbackQuery(ctx context.Context, update *tg.UpdateBotCallbackQuery) error {
	go br.handleTGCallback(ctx, update)
	return nil
}

func (br *Bridge) handleTGMessage(ctx context.Context, e tg.Entities, msg *tg.Message) {
	if msg.Out {
		return
	}
	chatID := peerChatID(msg.PeerID)
	log := br.log.With().
		Int64("tg_chat_id", chatID).
		Int("tg_msg_id", msg.ID).
		Logger()
	ctx = log.WithContext(ctx)
	log.Info().Msg("Received Telegram message")

	unlock := br.tgLocks.Lock(chatID)
	defer unlock()

	if cmd, args, ok := botCommand(msg); ok {
		if err := br.handleCommand(ctx, e, msg, cmd, args); err != nil {
			log.Warn().Err(err).Msg("Failed to process Telegram command")
			br.bestEffortReply(ctx, msg, "<b>[WARN] Failed to process command</b>")
		}
		return
	}
	if err := br.relayToRemote(ctx, msg); err != nil {
		log.Warn().Err(err).Msg("Failed to process Telegram message")
		br.bestEffortReply(ctx, msg, "<b>[WARN] Failed to process message</b>")
	}
}

// fromAdmin reports whether a message was sent by the configured admin
// account. Everything else is silently ignored.
func (br *Bridge) fromAdmin(msg *tg.Message) bool {
	if msg.Out {
		return false
	}
	sender, ok := msg.GetFromID()
	if !ok {
		sender = msg.PeerID
	}
	user, ok := sender.(*tg.PeerUser)
	return ok && user.UserID == br.cfg.Telegram.AdminID
}

// botCommand extracts a leading bot command and its arguments. A command
// elsewhere in the text does not trigger dispatch.
func botCommand(msg *tg.Message) (cmd, args string, ok bool) {
	if len(msg.Entities) == 0 {
		return "", "", false
	}
	ent, isCmd := msg.Entities[0].(*tg.MessageEntityBotCommand)
	if !isCmd || ent.Offset != 0 || ent.Length > len(msg.Message) {
		return "", "", false
	}
	cmd = msg.Message[:ent.Length]
	cmd, _, _ = strings.Cut(cmd, "@")
	args = strings.TrimSpace(msg.Message[ent.Length:])
	return cmd, args, true
}

func (br *Bridge) messageTarget(ctx context.Context, msg *tg.Message) (tgTarget, error) {
	chatID := peerChatID(msg.PeerID)
	peer, err := br.inputPeer(ctx, peerType(msg.PeerID), chatID)
	if err != nil {
		return tgTarget{}, err
	}
	return tgTarget{peer: peer, chatID: chatID}, nil
}

// replyHTML posts an HTML advisory as a reply to a Telegram message.
func (br *Bridge) replyHTML(ctx context.Context, msg *tg.Message, text string) error {
	target, err := br.messageTarget(ctx, msg)
	if err != nil {
		return err
	}
	target.replyTo = msg.ID
	_, err = br.sendText(ctx, target, textMessage{text: text, html: true})
	return err
}

func (br *Bridge) bestEffortReply(ctx context.Context, msg *tg.Message, text string) {
	if err := br.replyHTML(ctx, msg, text); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to send advisory reply")
	}
}

func (br *Bridge) relayToRemote(ctx context.Context, msg *tg.Message) error {
	if !br.fromAdmin(msg) {
		return nil
	}
	rc, err := br.routeToRemote(ctx, peerChatID(msg.PeerID), msg)
	if err != nil {
		return err
	}
	if rc == nil {
		return br.replyHTML(ctx, msg, "<b>The message can't be mapped to a remote chat</b>")
	}

	unlock := br.chatLocks.Lock(remoteChatKey{
		Endpoint: rc.Endpoint,
		ChatType: rc.ChatType,
		TargetID: rc.TargetID,
	})
	defer unlock()

	return br.convertAndSend(ctx, rc, msg)
}

// routeToRemote resolves which remote chat a Telegram message addresses: the
// chat's link, the enclosing archive topic, or the quoted message's origin.
func (br *Bridge) routeToRemote(ctx context.Context, chatID int64, msg *tg.Message) (*store.RemoteChat, error) {
	link, rc, err := br.db.Link.GetByTGChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if link != nil {
		return rc, nil
	}

	reply, ok := msg.GetReplyTo()
	if !ok {
		return nil, nil
	}
	header, ok := reply.(*tg.MessageReplyHeader)
	if !ok {
		return nil, nil
	}
	if header.ForumTopic {
		topicID, ok := header.GetReplyToTopID()
		if !ok {
			topicID, ok = header.GetReplyToMsgID()
		}
		if !ok {
			return nil, nil
		}
		return br.db.Topic.GetRemoteChat(ctx, chatID, int64(topicID))
	}
	msgID, ok := header.GetReplyToMsgID()
	if !ok {
		return nil, nil
	}
	_, rc, err = br.db.Message.GetByTG(ctx, chatID, int64(msgID))
	return rc, err
}

func (br *Bridge) convertAndSend(ctx context.Context, rc *store.RemoteChat, msg *tg.Message) error {
	log := zerolog.Ctx(ctx)

	params := &onebot.SendMsgParams{MessageType: "private", UserID: onebot.ID(rc.TargetID)}
	if rc.ChatType == onebot.ChatGroup {
		params = &onebot.SendMsgParams{MessageType: "group", GroupID: onebot.ID(rc.TargetID)}
	}

	var segments []onebot.Segment
	if mediaClass, ok := msg.GetMedia(); ok {
		seg, err := br.convertTGMedia(ctx, rc.Endpoint.Platform, mediaClass)
		if err != nil {
			return err
		}
		if seg != nil {
			segments = append(segments, *seg)
		}
	}
	if msg.Message != "" {
		segments = append(segments, onebot.Text(msg.Message))
	}
	if len(segments) == 0 {
		return br.replyHTML(ctx, msg, "<b>Failed to convert message for remote</b>")
	}

	if replyID := replyMessageID(msg); replyID != 0 {
		mapped, _, err := br.db.Message.GetByTG(ctx, peerChatID(msg.PeerID), int64(replyID))
		if err != nil {
			return err
		}
		if mapped != nil {
			// QQ appends a stray @ to the text when the reply segment is
			// not the first one.
			segments = append([]onebot.Segment{onebot.Reply(onebot.ID(mapped.RemoteMsgID))}, segments...)
		}
	}
	params.Message = segments

	sentID, err := br.sendRemoteMsg(ctx, rc.Endpoint, params)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to send message to remote")
		return br.replyHTML(ctx, msg, "<b>Failed to send message to remote</b>")
	}

	mapping := &store.Message{
		TGChatID:       peerChatID(msg.PeerID),
		TGMsgID:        int64(msg.ID),
		RemoteChatID:   rc.ID,
		RemoteMsgID:    sentID.String(),
		Content:        msg.Message,
		DeliveryStatus: store.DeliverySent,
	}
	return br.db.Message.Insert(ctx, mapping)
}

// convertTGMedia turns a Telegram media attachment into at most one OneBot
// segment. Unconvertible media is dropped with a warning so any text still
// goes through.
func (br *Bridge) convertTGMedia(ctx context.Context, platform onebot.Platform, mediaClass tg.MessageMediaClass) (*onebot.Segment, error) {
	log := zerolog.Ctx(ctx)

	switch m := mediaClass.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := m.Photo.(*tg.Photo)
		if !ok {
			return nil, nil
		}
		data, _, _, _, err := media.DownloadPhoto(ctx, br.api, photo)
		if err != nil {
			return nil, err
		}
		name := strconv.FormatInt(photo.ID, 10) + ".jpg"
		seg := onebot.Image(base64URI(data), name)
		return &seg, nil

	case *tg.MessageMediaDocument:
		doc, ok := m.Document.(*tg.Document)
		if !ok {
			return nil, nil
		}
		data, err := media.DownloadDocument(ctx, br.api, doc)
		if err != nil {
			return nil, err
		}
		name := media.DocumentFilename(doc, data)

		var sticker, rawPhoto, animated bool
		for _, attr := range doc.Attributes {
			switch attr.(type) {
			case *tg.DocumentAttributeSticker:
				sticker = true
			case *tg.DocumentAttributeImageSize:
				rawPhoto = true
			case *tg.DocumentAttributeVideo:
				animated = true
			}
		}

		switch {
		case sticker:
			return br.convertTGSticker(ctx, doc, name, data)
		case m.Voice:
			// Telegram hands voice notes out with an oga suffix, which
			// WeChat refuses to play.
			seg := onebot.Record(base64URI(data), media.FixExt(name, "ogg"))
			return &seg, nil
		case m.Video:
			seg := onebot.Video(base64URI(data), name)
			return &seg, nil
		case rawPhoto:
			seg := onebot.Image(base64URI(data), name)
			return &seg, nil
		case animated:
			// GIFs are stored by Telegram as soundless MP4. Big ones are
			// relayed as video since WeChat chokes on large GIFs.
			if len(data) > gifThreshold {
				seg := onebot.Video(base64URI(data), name)
				return &seg, nil
			}
			gif, err := media.VideoToGIF(ctx, data)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to convert video to gif")
				return nil, nil
			}
			seg := onebot.Image(base64URI(gif), media.FixExt(name, "gif"))
			return &seg, nil
		default:
			seg := onebot.File(base64URI(data), name)
			return &seg, nil
		}

	case *tg.MessageMediaGeo:
		geo, ok := m.Geo.(*tg.GeoPoint)
		if !ok {
			return nil, nil
		}
		content := fmt.Sprintf("Latitude: %.5f Longitude: %.5f", geo.Lat, geo.Long)
		seg, err := locationSegment(platform, "Location", content, geo.Lat, geo.Long)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to convert location")
			return nil, nil
		}
		return seg, nil

	case *tg.MessageMediaVenue:
		geo, ok := m.Geo.(*tg.GeoPoint)
		if !ok {
			return nil, nil
		}
		seg, err := locationSegment(platform, m.Title, m.Address, geo.Lat, geo.Long)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to convert venue")
			return nil, nil
		}
		return seg, nil
	}

	// Other media (webpage previews, polls, dice) is dropped.
	return nil, nil
}

func (br *Bridge) convertTGSticker(ctx context.Context, doc *tg.Document, name string, data []byte) (*onebot.Segment, error) {
	log := zerolog.Ctx(ctx)
	switch doc.MimeType {
	case "video/webm":
		gif, err := media.WebMToGIF(ctx, data)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to convert webm to gif")
			return nil, nil
		}
		seg := onebot.Image(base64URI(gif), media.FixExt(name, "gif"))
		return &seg, nil
	case "application/x-tgsticker":
		gif, err := media.TGSToGIF(ctx, data)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to convert tgs to gif")
			return nil, nil
		}
		seg := onebot.Image(base64URI(gif), media.FixExt(name, "gif"))
		return &seg, nil
	case "":
		return nil, nil
	default:
		seg := onebot.File(base64URI(data), name)
		return &seg, nil
	}
}

type qqLocationCard struct {
	App    string           `json:"app"`
	Desc   string           `json:"desc"`
	View   string           `json:"view"`
	Ver    string           `json:"ver"`
	Prompt string           `json:"prompt"`
	From   int              `json:"from"`
	Meta   qqLocationMeta   `json:"meta"`
	Config qqLocationConfig `json:"config"`
}

type qqLocationMeta struct {
	Search qqLocationSearch `json:"Location.Search"`
}

type qqLocationSearch struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Lat     string `json:"lat"`
	Lng     string `json:"lng"`
	From    string `json:"from"`
}

type qqLocationConfig struct {
	Forward  int    `json:"forward"`
	Autosize int    `json:"autosize"`
	Type     string `json:"type"`
}

// locationSegment renders a location for the platform. WeChat understands
// native location segments, QQ only renders map share cards.
func locationSegment(platform onebot.Platform, title, content string, lat, lon float64) (*onebot.Segment, error) {
	switch platform {
	case onebot.PlatformQQ:
		card := qqLocationCard{
			App:    "com.tencent.map",
			Desc:   "地图",
			View:   "LocationShare",
			Ver:    "0.0.0.1",
			Prompt: "[位置]" + title,
			From:   1,
			Meta: qqLocationMeta{Search: qqLocationSearch{
				ID:      "12250896297164027526",
				Name:    title,
				Address: content,
				Lat:     fmt.Sprintf("%.5f", lat),
				Lng:     fmt.Sprintf("%.5f", lon),
				From:    "plusPanel",
			}},
			Config: qqLocationConfig{Forward: 1, Autosize: 1, Type: "card"},
		}
		raw, err := json.Marshal(card)
		if err != nil {
			return nil, err
		}
		seg := onebot.JSONCard(string(raw))
		return &seg, nil
	case onebot.PlatformWeChat:
		seg := onebot.Location(lat, lon, title, content)
		return &seg, nil
	}
	return nil, fmt.Errorf("invalid endpoint")
}

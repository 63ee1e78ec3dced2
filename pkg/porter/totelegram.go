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
	"encoding/hex"
	"fmt"
	"html"
	"time"

	"github.com/google/uuid"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/porter/emojis"
	"github.com/porterhq/porter/pkg/search"
	"github.com/porterhq/porter/pkg/store"
)

// tgMsgType is the Telegram shape a converted remote message is sent as.
// Later media segments override earlier ones the way the last word wins.
type tgMsgType int

const (
	msgText tgMsgType = iota
	msgHTML
	msgPhoto
	msgSticker
	msgVoice
	msgVideo
	msgDocument
	msgLocation
)

func (br *Bridge) relayEvent(ctx context.Context, endpoint onebot.Endpoint, event onebot.Event) error {
	switch e := event.(type) {
	case *onebot.MessageEvent:
		return br.relayMessage(ctx, endpoint, e)
	case *onebot.MetaEvent:
		return br.handleMeta(ctx, endpoint, e)
	case *onebot.NoticeEvent:
		return br.handleNotice(ctx, endpoint, e)
	default:
		zerolog.Ctx(ctx).Debug().Str("post_type", event.EventType()).Msg("Ignoring event")
		return nil
	}
}

func (br *Bridge) relayMessage(ctx context.Context, endpoint onebot.Endpoint, e *onebot.MessageEvent) error {
	log := zerolog.Ctx(ctx)
	log.Info().
		Str("message_id", e.MessageID.String()).
		Stringer("chat", e.Chat()).
		Msg("Received OneBot message")

	if len(e.Message) == 0 {
		return nil
	}

	chat := e.Chat()
	rc, err := br.remoteChat(ctx, endpoint, chat.Kind, chat.ID.String())
	if err != nil {
		return err
	}

	// Adapters may replay events after a reconnect.
	if seen, err := br.db.Message.GetByRemote(ctx, rc.ID, e.MessageID.String()); err != nil {
		return err
	} else if seen != nil {
		log.Info().Str("message_id", e.MessageID.String()).Msg("Ignoring duplicated message")
		return nil
	}

	target, title, err := br.resolveRoute(ctx, endpoint, rc, e.Sender.DisplayName())
	if err != nil {
		return err
	}

	msgType := msgText
	var content string
	var uploads []*uploadedInfo
	var location *tg.InputMediaVenue

segments:
	for _, seg := range e.Message {
		switch data := seg.Data.(type) {
		case *onebot.TextData:
			if endpoint.Platform == onebot.PlatformWeChat {
				content += emojis.ReplaceWeChatEmoji(data.Text)
			} else {
				content += data.Text
			}
		case *onebot.FaceData:
			if endpoint.Platform == onebot.PlatformQQ {
				content += emojis.ReplaceQQFace(data.ID.String())
			} else {
				content += fmt.Sprintf("/[Face%s]", data.ID)
			}
		case *onebot.AtData:
			member, err := br.getGroupMemberInfo(ctx, endpoint, e.GroupID, data.QQ, true)
			if err != nil {
				content += "@" + data.QQ.String()
			} else {
				content += "@" + member.DisplayName()
			}
		case *onebot.ImageData:
			if uploaded, err := br.uploadSegment(ctx, endpoint, seg); err != nil {
				content += "[图片上传失败]"
				log.Warn().Err(err).Msg("Failed to upload photo")
			} else {
				uploads = append(uploads, uploaded)
				content += "[图片]"
				if isSticker(seg) {
					msgType = msgSticker
				} else {
					msgType = msgPhoto
				}
			}
		case *onebot.MfaceData:
			if uploaded, err := br.uploadSegment(ctx, endpoint, seg); err != nil {
				content += "[表情上传失败]"
				log.Warn().Err(err).Msg("Failed to upload sticker")
			} else {
				uploads = append(uploads, uploaded)
				content += "[表情]"
				msgType = msgSticker
			}
		case *onebot.RecordData:
			if uploaded, err := br.uploadSegment(ctx, endpoint, seg); err != nil {
				content += "[语音上传失败]"
				log.Warn().Err(err).Msg("Failed to upload record")
			} else {
				uploads = append(uploads, uploaded)
				content += "[语音]"
				msgType = msgVoice
			}
		case *onebot.VideoData:
			if uploaded, err := br.uploadSegment(ctx, endpoint, seg); err != nil {
				content += "[视频上传失败]"
				log.Warn().Err(err).Msg("Failed to upload video")
			} else {
				uploads = append(uploads, uploaded)
				content += "[视频]"
				msgType = msgVideo
			}
		case *onebot.FileData:
			if uploaded, err := br.uploadSegment(ctx, endpoint, seg); err != nil {
				content += "[文件上传失败]"
				log.Warn().Err(err).Msg("Failed to upload file")
			} else {
				uploads = append(uploads, uploaded)
				content += "[文件]"
				msgType = msgDocument
			}
		case *onebot.ReplyData:
			mapped, err := br.db.Message.GetByRemote(ctx, rc.ID, data.ID.String())
			if err != nil {
				return err
			}
			if mapped != nil {
				target.replyTo = int(mapped.TGMsgID)
			}
		case *onebot.ForwardData:
			content += "[合并消息]"
		case *onebot.LocationData:
			location = venueMedia(data.Lat, data.Lon, data.Title, data.Content)
			msgType = msgLocation
		case *onebot.ShareData:
			content += fmt.Sprintf("<u>%s</u>\n\n%s\n\nvia <a href=\"%s\">%s</a>",
				html.EscapeString(data.Title),
				html.EscapeString(data.Content),
				html.EscapeString(data.URL),
				html.EscapeString(data.Title))
			msgType = msgHTML
		case *onebot.JSONData:
			if gjson.Valid(data.Data) {
				card := gjson.Parse(data.Data)
				if card.Get("view").String() == "LocationShare" {
					location, err = qqCardVenue(card)
					if err != nil {
						return err
					}
					msgType = msgLocation
					break segments
				}
				share, err := qqCardShare(card)
				if err != nil {
					return err
				}
				if share != "" {
					content += share
					msgType = msgHTML
					break segments
				}
			}
			content += data.Data
		default:
			content += seg.Fallback()
		}
	}

	var results []sentMessage
	var body string
	switch msgType {
	case msgText:
		body = title + "\n" + content
		results, err = br.sendText(ctx, target, textMessage{text: body})
	case msgHTML:
		body = title + "\n" + content
		results, err = br.sendText(ctx, target, textMessage{text: body, html: true, preview: true})
	case msgPhoto:
		if len(uploads) == 1 {
			body = title
			if len(e.Message) > 1 {
				body += "\n" + content
			}
			up := uploads[0]
			var media tg.InputMediaClass
			if up.size > bigFileSize || up.width > imageSideLimit || up.height > imageSideLimit {
				media = documentMedia(up, false)
			} else {
				media = &tg.InputMediaUploadedPhoto{File: up.file}
			}
			results, err = br.sendMedia(ctx, target, media, body, nil)
		} else {
			body = title + "\n" + content
			files := make([]tg.InputFileClass, len(uploads))
			for i, up := range uploads {
				files[i] = up.file
			}
			results, err = br.sendAlbum(ctx, target, files, body)
		}
	case msgSticker:
		// TODO: QQ mixes market faces with text, which is dropped here.
		up := uploads[len(uploads)-1]
		body = title
		markup := &tg.ReplyInlineMarkup{Rows: []tg.KeyboardButtonRow{{
			Buttons: []tg.KeyboardButtonClass{&tg.KeyboardButtonURL{Text: title, URL: "tg://sticker"}},
		}}}
		results, err = br.sendMedia(ctx, target, stickerMedia(up), body, markup)
	case msgVoice, msgVideo:
		up := uploads[len(uploads)-1]
		body = title
		results, err = br.sendMedia(ctx, target, documentMedia(up, false), body, nil)
	case msgDocument:
		up := uploads[len(uploads)-1]
		body = title
		results, err = br.sendMedia(ctx, target, documentMedia(up, true), body, nil)
	case msgLocation:
		body = title
		results, err = br.sendMedia(ctx, target, location, body, nil)
	}
	if err != nil {
		return err
	}
	log.Debug().Int("messages", len(results)).Msg("Relayed message to Telegram")

	for _, sent := range results {
		br.indexSent(ctx, target, sent, body)
		mapping := &store.Message{
			TGChatID:       target.chatID,
			TGMsgID:        int64(sent.ID),
			RemoteChatID:   rc.ID,
			RemoteMsgID:    e.MessageID.String(),
			Content:        body,
			DeliveryStatus: store.DeliverySent,
		}
		if err := br.db.Message.Insert(ctx, mapping); err != nil {
			log.Warn().Err(err).Msg("Failed to insert message mapping")
		}
	}
	return nil
}

// indexSent adds a relayed message to the search index. Indexing failures
// never block delivery.
func (br *Bridge) indexSent(ctx context.Context, target tgTarget, sent sentMessage, body string) {
	if br.index == nil {
		return
	}
	timestamp := int64(sent.Date)
	if timestamp == 0 {
		timestamp = time.Now().Unix()
	}
	err := br.index.Add(ctx, search.Document{
		ChatID:    target.chatID,
		MessageID: int64(sent.ID),
		ReplyTo:   int64(target.topicID),
		Timestamp: timestamp,
		Content:   body,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to index message")
	}
}

// resolveRoute picks the Telegram conversation a remote message lands in. An
// explicit link wins, then the endpoint's archive group inside the chat's
// topic, and everything else goes to the admin DM.
func (br *Bridge) resolveRoute(ctx context.Context, endpoint onebot.Endpoint, rc *store.RemoteChat, senderName string) (tgTarget, string, error) {
	link, err := br.db.Link.GetByRemoteChat(ctx, rc.ID)
	if err != nil {
		return tgTarget{}, "", err
	}
	if link != nil {
		peer, err := br.inputPeer(ctx, link.TGChatType, link.TGChatID)
		if err != nil {
			return tgTarget{}, "", err
		}
		return tgTarget{peer: peer, chatID: link.TGChatID}, senderName + ":", nil
	}

	archive, err := br.db.Archive.GetByEndpoint(ctx, endpoint)
	if err != nil {
		return tgTarget{}, "", err
	}
	if archive != nil {
		topicID, err := br.topicFor(ctx, archive, rc)
		if err != nil {
			return tgTarget{}, "", err
		}
		peer, err := br.inputPeer(ctx, store.PeerTypeChannel, archive.TGChatID)
		if err != nil {
			return tgTarget{}, "", err
		}
		target := tgTarget{peer: peer, chatID: archive.TGChatID, replyTo: topicID, topicID: topicID}
		return target, senderName + ":", nil
	}

	peer, err := br.inputPeer(ctx, store.PeerTypeUser, br.cfg.Telegram.AdminID)
	if err != nil {
		return tgTarget{}, "", err
	}
	title := fmt.Sprintf("👤 %s:", rc.Name)
	if rc.ChatType == onebot.ChatGroup {
		title = fmt.Sprintf("👥 %s [%s]:", senderName, rc.Name)
	}
	return tgTarget{peer: peer, chatID: br.cfg.Telegram.AdminID}, title, nil
}

// topicFor returns the archive topic bound to a remote chat, creating the
// forum topic on first use.
func (br *Bridge) topicFor(ctx context.Context, archive *store.Archive, rc *store.RemoteChat) (int, error) {
	topic, err := br.db.Topic.GetByRemoteChat(ctx, rc.ID)
	if err != nil {
		return 0, err
	}
	if topic != nil {
		return int(topic.TGTopicID), nil
	}

	channel, err := br.inputChannel(ctx, archive.TGChatID)
	if err != nil {
		return 0, err
	}
	title := "👤 " + rc.Name
	if rc.ChatType == onebot.ChatGroup {
		title = "👥 " + rc.Name
	}
	topicID, err := br.createForumTopic(ctx, channel, title)
	if err != nil {
		return 0, err
	}
	err = br.db.Topic.Insert(ctx, &store.Topic{
		ArchiveID:    archive.ID,
		TGTopicID:    int64(topicID),
		RemoteChatID: rc.ID,
	})
	if err != nil {
		return 0, err
	}
	return topicID, nil
}

func (br *Bridge) handleMeta(ctx context.Context, endpoint onebot.Endpoint, e *onebot.MetaEvent) error {
	log := zerolog.Ctx(ctx)
	log.Debug().Str("meta_event_type", e.MetaEventType).Str("sub_type", e.SubType).Msg("Received meta event")
	if e.MetaEventType != "lifecycle" {
		return nil
	}
	switch e.SubType {
	case onebot.LifecycleConnect:
		friends, err := br.getFriendList(ctx, endpoint)
		if err != nil {
			return err
		}
		for _, friend := range friends {
			rc := &store.RemoteChat{
				Endpoint: endpoint,
				ChatType: onebot.ChatPrivate,
				TargetID: friend.UserID.String(),
				Name:     friend.DisplayName(),
			}
			if err = br.db.RemoteChat.Upsert(ctx, rc); err != nil {
				log.Warn().Err(err).Msg("Failed to update remote private chat")
			}
		}
		groups, err := br.getGroupList(ctx, endpoint)
		if err != nil {
			return err
		}
		for _, group := range groups {
			rc := &store.RemoteChat{
				Endpoint: endpoint,
				ChatType: onebot.ChatGroup,
				TargetID: group.GroupID.String(),
				Name:     group.DisplayName(),
			}
			if err = br.db.RemoteChat.Upsert(ctx, rc); err != nil {
				log.Warn().Err(err).Msg("Failed to update remote group chat")
			}
		}
		return br.notifyAdmin(ctx, fmt.Sprintf("<b>[INFO] %s connected</b>", endpoint))
	case onebot.LifecycleDisconnect:
		return br.notifyAdmin(ctx, fmt.Sprintf("<b>[INFO] %s disconnected</b>", endpoint))
	}
	return nil
}

func (br *Bridge) notifyAdmin(ctx context.Context, text string) error {
	peer, err := br.inputPeer(ctx, store.PeerTypeUser, br.cfg.Telegram.AdminID)
	if err != nil {
		return err
	}
	target := tgTarget{peer: peer, chatID: br.cfg.Telegram.AdminID}
	_, err = br.sendText(ctx, target, textMessage{text: text, html: true})
	return err
}

// handleNotice relays recall notices. The mapped Telegram message cannot be
// deleted by a bot after 48 hours, so the recall is announced as a reply
// instead.
func (br *Bridge) handleNotice(ctx context.Context, endpoint onebot.Endpoint, e *onebot.NoticeEvent) error {
	zerolog.Ctx(ctx).Debug().Str("notice_type", e.NoticeType).Msg("Received notice")

	var senderName string
	var rc *store.RemoteChat
	switch e.NoticeType {
	case "friend_recall":
		// A self recall in a DM carries no peer identity at all.
		if e.SelfID == e.UserID {
			return nil
		}
		user, err := br.getStrangerInfo(ctx, endpoint, e.UserID, false)
		if err != nil {
			return err
		}
		senderName = user.DisplayName()
		rc, err = br.remoteChat(ctx, endpoint, onebot.ChatPrivate, e.UserID.String())
		if err != nil {
			return err
		}
	case "group_recall":
		member, err := br.getGroupMemberInfo(ctx, endpoint, e.GroupID, e.UserID, false)
		if err != nil {
			return err
		}
		senderName = member.DisplayName()
		rc, err = br.remoteChat(ctx, endpoint, onebot.ChatGroup, e.GroupID.String())
		if err != nil {
			return err
		}
	default:
		return nil
	}

	mapped, err := br.db.Message.GetByRemote(ctx, rc.ID, e.MessageID.String())
	if err != nil {
		return err
	}
	if mapped == nil {
		return nil
	}
	if err = br.db.Message.SetDeliveryStatus(ctx, mapped.ID, store.DeliveryRecalled); err != nil {
		return err
	}

	target, title, err := br.resolveRoute(ctx, endpoint, rc, senderName)
	if err != nil {
		return err
	}
	target.replyTo = int(mapped.TGMsgID)

	body := title + "\n<del>Recalled this message</del>"
	results, err := br.sendText(ctx, target, textMessage{text: body, html: true})
	if err != nil {
		return err
	}

	u := uuid.New()
	fakeID := "fake:" + hex.EncodeToString(u[:])
	for _, sent := range results {
		mapping := &store.Message{
			TGChatID:       target.chatID,
			TGMsgID:        int64(sent.ID),
			RemoteChatID:   rc.ID,
			RemoteMsgID:    fakeID,
			Content:        body,
			DeliveryStatus: store.DeliverySent,
		}
		if err = br.db.Message.Insert(ctx, mapping); err != nil {
			return err
		}
	}
	return nil
}

// documentMedia wraps an upload as a document send. force keeps Telegram
// from rendering the file as a playable video or audio.
func documentMedia(up *uploadedInfo, force bool) *tg.InputMediaUploadedDocument {
	return &tg.InputMediaUploadedDocument{
		ForceFile: force,
		File:      up.file,
		MimeType:  up.mimeType,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: up.name},
		},
	}
}

func stickerMedia(up *uploadedInfo) *tg.InputMediaUploadedDocument {
	return &tg.InputMediaUploadedDocument{
		File:     up.file,
		MimeType: up.mimeType,
		Attributes: []tg.DocumentAttributeClass{
			&tg.DocumentAttributeFilename{FileName: up.name},
			&tg.DocumentAttributeSticker{
				Alt:        "😊",
				Stickerset: &tg.InputStickerSetEmpty{},
			},
		},
	}
}

// qqCardVenue extracts the venue out of a QQ map share card.
func qqCardVenue(card gjson.Result) (*tg.InputMediaVenue, error) {
	title := card.Get("meta.*.name")
	address := card.Get("meta.*.address")
	lat := card.Get("meta.*.lat")
	lng := card.Get("meta.*.lng")
	if !title.Exists() || !address.Exists() || !lat.Exists() || !lng.Exists() {
		return nil, fmt.Errorf("location card is missing venue fields")
	}
	return venueMedia(lat.Float(), lng.Float(), title.String(), address.String()), nil
}

// qqCardShare formats a QQ share card as HTML. Cards without a recognized
// link produce an empty string so the raw payload is relayed instead.
func qqCardShare(card gjson.Result) (string, error) {
	url := card.Get("meta.*.qqdocurl")
	source := card.Get("meta.*.title")
	if !url.Exists() {
		url = card.Get("meta.*.jumpUrl")
		source = card.Get("meta.*.tag")
		if !url.Exists() {
			return "", nil
		}
	}
	description := card.Get("meta.*.desc")
	title := card.Get("prompt")
	if !source.Exists() || !description.Exists() || !title.Exists() {
		return "", fmt.Errorf("share card is missing fields")
	}
	return fmt.Sprintf("<u>%s</u>\n\n%s\n\nvia <a href=\"%s\">%s</a>",
		html.EscapeString(title.String()),
		html.EscapeString(description.String()),
		html.EscapeString(url.String()),
		html.EscapeString(source.String())), nil
}

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
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
	"go.mau.fi/zerozap"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/porter/util"
	"github.com/porterhq/porter/pkg/search"
	"github.com/porterhq/porter/pkg/store"
)

const (
	// tgRateLimit is how many messages per minute the bot may push into a
	// single Telegram chat before the API starts throwing FLOOD_WAIT.
	tgRateLimit = 19

	// bigFileSize is the threshold above which photos are relayed as
	// documents, matching the Bot API limit for photo uploads.
	bigFileSize = 10 * 1024 * 1024

	// imageSideLimit is the longest side Telegram accepts for a photo.
	imageSideLimit = 2560

	// gifThreshold decides whether an animated document is re-encoded to
	// GIF or relayed as a video segment.
	gifThreshold = 100 * 1024

	pageSize        = 10
	placeholderData = "porter"

	sessionFile = "bot.session"

	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/87.0.4280.88 Safari/537.36 Edg/87.0.664.66"
)

type remoteChatKey struct {
	Endpoint onebot.Endpoint
	ChatType onebot.ChatKind
	TargetID string
}

type peerKey struct {
	Type store.PeerType
	ID   int64
}

// Bridge relays messages between one Telegram bot account and any number of
// OneBot endpoints.
type Bridge struct {
	log   zerolog.Logger
	cfg   *Config
	db    *store.Container
	index *search.Index // nil when search is disabled
	ob    *onebot.Server

	client   *telegram.Client
	api      *tg.Client
	uploader *uploader.Uploader
	self     *tg.User

	httpClient *http.Client

	remoteChats *exsync.Map[remoteChatKey, *store.RemoteChat]
	peers       *exsync.Map[peerKey, int64]
	callbacks   *exsync.Map[string, CommandCallback]

	// chatLocks serializes work per remote chat, tgLocks per Telegram
	// chat. A Telegram handler may take a chat lock while holding a tg
	// lock, never the other way around.
	chatLocks *util.KeyedMutex[remoteChatKey]
	tgLocks   *util.KeyedMutex[int64]
	limiter   *util.KeyedLimiter[int64]
}

func NewBridge(log zerolog.Logger, cfg *Config, db *store.Container, index *search.Index, ob *onebot.Server) (*Bridge, error) {
	br := &Bridge{
		log:   log,
		cfg:   cfg,
		db:    db,
		index: index,
		ob:    ob,

		httpClient: &http.Client{Timeout: onebot.APITimeout},

		remoteChats: exsync.NewMap[remoteChatKey, *store.RemoteChat](),
		peers:       exsync.NewMap[peerKey, int64](),
		callbacks:   exsync.NewMap[string, CommandCallback](),

		chatLocks: util.NewKeyedMutex[remoteChatKey](),
		tgLocks:   util.NewKeyedMutex[int64](),
		limiter:   util.NewKeyedLimiter[int64](rate.Every(time.Minute/tgRateLimit), tgRateLimit),
	}

	dispatcher := updateDispatcher{
		UpdateDispatcher: tg.NewUpdateDispatcher(),
		EntityHandler:    br.onEntities,
	}
	dispatcher.OnNewMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewMessage) error {
		return br.onNewMessage(ctx, e, update.Message)
	})
	dispatcher.OnNewChannelMessage(func(ctx context.Context, e tg.Entities, update *tg.UpdateNewChannelMessage) error {
		return br.onNewMessage(ctx, e, update.Message)
	})
	dispatcher.OnBotCallbackQuery(func(ctx context.Context, e tg.Entities, update *tg.UpdateBotCallbackQuery) error {
		return br.onCallbackQuery(ctx, update)
	})

	opts := telegram.Options{
		SessionStorage: &session.FileStorage{Path: sessionFile},
		Logger:         zap.New(zerozap.New(log.With().Str("component", "gotd").Logger())),
		UpdateHandler:  dispatcher,
		ReconnectionBackoff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(5 * time.Second)
		},
	}
	if cfg.Telegram.ProxyURL != "" {
		resolver, err := socksResolver(cfg.Telegram.ProxyURL)
		if err != nil {
			return nil, err
		}
		opts.Resolver = resolver
	}

	br.client = telegram.NewClient(cfg.Telegram.APIID, cfg.Telegram.APIHash, opts)
	br.api = br.client.API()
	br.uploader = uploader.NewUploader(br.api)
	return br, nil
}

// Run connects the Telegram client and then pumps OneBot events until the
// context is cancelled. Each event is handled on its own goroutine so one
// slow endpoint cannot stall the others.
func (br *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Block until the client is connected and signed in while Run keeps
	// the connection alive in the background.
	// Technique from: https://github.com/gotd/contrib/blob/master/bg/connect.go
	errC := make(chan error, 1)
	initDone := make(chan struct{})
	go func() {
		defer close(errC)
		errC <- br.client.Run(ctx, func(ctx context.Context) error {
			if err := br.signIn(ctx); err != nil {
				return err
			}
			close(initDone)
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		})
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errC:
		return err
	case <-initDone:
	}
	br.log.Info().
		Int64("bot_id", br.self.ID).
		Str("username", br.self.Username).
		Msg("Telegram bot connected")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errC:
			return err
		case evt := <-br.ob.Events():
			go br.handleEvent(ctx, evt)
		}
	}
}

func (br *Bridge) handleEvent(ctx context.Context, evt *onebot.EndpointEvent) {
	log := br.log.With().Stringer("endpoint", evt.Endpoint).Logger()
	ctx = log.WithContext(ctx)

	unlock := br.chatLocks.Lock(eventLockKey(evt))
	defer unlock()

	if err := br.relayEvent(ctx, evt.Endpoint, evt.Event); err != nil {
		log.Warn().Err(err).Msg("Failed to handle OneBot event")
	}
}

// eventLockKey serializes events of the same remote conversation while
// letting different conversations proceed in parallel.
func eventLockKey(evt *onebot.EndpointEvent) remoteChatKey {
	var chat onebot.Chat
	switch e := evt.Event.(type) {
	case *onebot.MessageEvent:
		chat = e.Chat()
	case *onebot.NoticeEvent:
		chat = e.Chat()
	default:
		return remoteChatKey{Endpoint: evt.Endpoint, ChatType: onebot.ChatPrivate}
	}
	return remoteChatKey{Endpoint: evt.Endpoint, ChatType: chat.Kind, TargetID: chat.ID.String()}
}

// remoteChat resolves the stored row for a remote conversation, creating it
// on first contact by asking the endpoint who the peer is.
func (br *Bridge) remoteChat(ctx context.Context, endpoint onebot.Endpoint, chatType onebot.ChatKind, targetID string) (*store.RemoteChat, error) {
	key := remoteChatKey{Endpoint: endpoint, ChatType: chatType, TargetID: targetID}
	if rc, ok := br.remoteChats.Get(key); ok {
		return rc, nil
	}
	rc, err := br.db.RemoteChat.Get(ctx, endpoint, chatType, targetID)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		var name string
		if chatType == onebot.ChatPrivate {
			user, err := br.getStrangerInfo(ctx, endpoint, onebot.ID(targetID), true)
			if err != nil {
				return nil, err
			}
			name = user.DisplayName()
		} else {
			group, err := br.getGroupInfo(ctx, endpoint, onebot.ID(targetID), true)
			if err != nil {
				return nil, err
			}
			name = group.DisplayName()
		}
		rc = &store.RemoteChat{
			Endpoint: endpoint,
			ChatType: chatType,
			TargetID: targetID,
			Name:     name,
		}
		if err = br.db.RemoteChat.Insert(ctx, rc); err != nil {
			return nil, fmt.Errorf("failed to save remote chat: %w", err)
		}
	}
	br.remoteChats.Set(key, rc)
	return rc, nil
}

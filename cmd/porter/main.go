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
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"go.mau.fi/util/dbutil"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/porterhq/porter/pkg/onebot"
	"github.com/porterhq/porter/pkg/porter"
	"github.com/porterhq/porter/pkg/search"
	"github.com/porterhq/porter/pkg/store"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to the TOML config file")
	flag.Parse()

	writer := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339},
		&lumberjack.Logger{
			Filename: "logs/porter.log",
			MaxSize:  100,
			MaxAge:   7,
			Compress: true,
		},
	)
	log := zerolog.New(writer).With().Timestamp().Logger()

	cfg, err := porter.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	level, _ := cfg.LogLevel()
	log = log.Level(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := dbutil.NewWithDialect("porter.db", "sqlite3")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		_ = db.Close()
	}()
	container := store.NewStore(db, dbutil.ZeroLogger(log.With().Str("component", "database").Logger()))
	if err = container.Upgrade(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to upgrade database schema")
	}

	var index *search.Index
	if cfg.Telegram.EnableSearch {
		index, err = search.Open(log.With().Str("component", "search").Logger(), "index")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open search index")
		}
	}

	server := onebot.NewServer(log.With().Str("component", "onebot").Logger(), cfg.OneBot.Addr, cfg.OneBot.Token)

	bridge, err := porter.NewBridge(log, cfg, container, index, server)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize bridge")
	}

	log.Info().Str("onebot_addr", cfg.OneBot.Addr).Msg("Starting porter")

	group, runCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return server.Run(runCtx) })
	group.Go(func() error { return bridge.Run(runCtx) })
	if index != nil {
		group.Go(func() error { return index.Run(runCtx) })
	}

	if err = group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Porter exited with error")
	}
	if index != nil {
		// The writer commits queued documents before exiting, closing only
		// releases the lock.
		if err = index.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close search index")
		}
	}
	log.Info().Msg("Shutdown complete")
}

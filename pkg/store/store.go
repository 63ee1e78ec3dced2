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

package store

import (
	"context"

	"go.mau.fi/util/dbutil"

	"github.com/porterhq/porter/pkg/store/upgrades"
)

type Container struct {
	db *dbutil.Database

	RemoteChat *RemoteChatQuery
	Archive    *ArchiveQuery
	Topic      *TopicQuery
	Link       *LinkQuery
	Message    *MessageQuery
	Peer       *PeerQuery
}

func NewStore(db *dbutil.Database, log dbutil.DatabaseLogger) *Container {
	child := db.Child("porter_version", upgrades.Table, log)
	return &Container{
		db:         child,
		RemoteChat: &RemoteChatQuery{db: child},
		Archive:    &ArchiveQuery{db: child},
		Topic:      &TopicQuery{db: child},
		Link:       &LinkQuery{db: child},
		Message:    &MessageQuery{db: child},
		Peer:       &PeerQuery{db: child},
	}
}

func (c *Container) Upgrade(ctx context.Context) error {
	return c.db.Upgrade(ctx)
}

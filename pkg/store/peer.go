package store

import (
	"context"
	"database/sql"
	"errors"

	"go.mau.fi/util/dbutil"
)

// PeerType classifies a Telegram peer the way MTProto input peers do.
type PeerType string

const (
	PeerTypeUser    PeerType = "user"
	PeerTypeChat    PeerType = "chat"
	PeerTypeChannel PeerType = "channel"
)

// PeerQuery persists the access hashes the bot has seen, so chats and users
// stay addressable across restarts. Bots can't re-resolve peers on their own.
type PeerQuery struct {
	db *dbutil.Database
}

const (
	getPeerAccessHashQuery = `SELECT access_hash FROM tg_peer WHERE peer_type=$1 AND peer_id=$2`
	setPeerAccessHashQuery = `
		INSERT INTO tg_peer (peer_type, peer_id, access_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (peer_type, peer_id) DO UPDATE SET access_hash=excluded.access_hash
	`
)

func (pq *PeerQuery) GetAccessHash(ctx context.Context, peerType PeerType, peerID int64) (accessHash int64, found bool, err error) {
	err = pq.db.QueryRow(ctx, getPeerAccessHashQuery, peerType, peerID).Scan(&accessHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return accessHash, err == nil, err
}

func (pq *PeerQuery) SetAccessHash(ctx context.Context, peerType PeerType, peerID, accessHash int64) error {
	_, err := pq.db.Exec(ctx, setPeerAccessHashQuery, peerType, peerID, accessHash)
	return err
}

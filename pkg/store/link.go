package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mau.fi/util/dbutil"
)

// Link binds one Telegram chat 1:1 to one remote chat. Messages flow both
// ways without sender prefixes once a link exists.
type Link struct {
	ID           int64
	TGChatType   PeerType
	TGChatID     int64
	RemoteChatID int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LinkQuery struct {
	db *dbutil.Database
}

const (
	getLinkByRemoteChatQuery = `
		SELECT id, tg_chat_type, tg_chat_id, remote_chat_id, created_at, updated_at
		FROM link WHERE remote_chat_id=$1
	`
	getLinkByTGChatQuery = `
		SELECT l.id, l.tg_chat_type, l.tg_chat_id, l.remote_chat_id, l.created_at, l.updated_at,
		       rc.id, rc.endpoint, rc.chat_type, rc.target_id, rc.name, rc.created_at, rc.updated_at
		FROM link l
		LEFT JOIN remote_chat rc ON rc.id=l.remote_chat_id
		WHERE l.tg_chat_id=$1
	`
	insertLinkQuery = `
		INSERT INTO link (tg_chat_type, tg_chat_id, remote_chat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	deleteLinkQuery = `DELETE FROM link WHERE id=$1`
)

func scanLink(row dbutil.Scannable) (*Link, error) {
	var link Link
	var createdAt, updatedAt int64
	err := row.Scan(&link.ID, &link.TGChatType, &link.TGChatID, &link.RemoteChatID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	link.CreatedAt = time.Unix(createdAt, 0)
	link.UpdatedAt = time.Unix(updatedAt, 0)
	return &link, nil
}

func (lq *LinkQuery) GetByRemoteChat(ctx context.Context, remoteChatID int64) (*Link, error) {
	return scanLink(lq.db.QueryRow(ctx, getLinkByRemoteChatQuery, remoteChatID))
}

// GetByTGChat returns the link for a Telegram chat together with the remote
// chat it points at. Both are nil when the chat isn't linked.
func (lq *LinkQuery) GetByTGChat(ctx context.Context, tgChatID int64) (*Link, *RemoteChat, error) {
	var link Link
	var linkCreatedAt, linkUpdatedAt int64
	var rcID, rcCreatedAt, rcUpdatedAt sql.NullInt64
	var rcEndpoint, rcChatType, rcTargetID, rcName sql.NullString
	err := lq.db.QueryRow(ctx, getLinkByTGChatQuery, tgChatID).Scan(
		&link.ID, &link.TGChatType, &link.TGChatID, &link.RemoteChatID, &linkCreatedAt, &linkUpdatedAt,
		&rcID, &rcEndpoint, &rcChatType, &rcTargetID, &rcName, &rcCreatedAt, &rcUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	link.CreatedAt = time.Unix(linkCreatedAt, 0)
	link.UpdatedAt = time.Unix(linkUpdatedAt, 0)
	if !rcID.Valid {
		return &link, nil, nil
	}
	rc, err := remoteChatFromNullable(rcID, rcEndpoint, rcChatType, rcTargetID, rcName, rcCreatedAt, rcUpdatedAt)
	if err != nil {
		return nil, nil, err
	}
	return &link, rc, nil
}

func (lq *LinkQuery) Insert(ctx context.Context, link *Link) error {
	link.CreatedAt = time.Now()
	link.UpdatedAt = link.CreatedAt
	return lq.db.
		QueryRow(ctx, insertLinkQuery, link.TGChatType, link.TGChatID, link.RemoteChatID, link.CreatedAt.Unix(), link.UpdatedAt.Unix()).
		Scan(&link.ID)
}

func (lq *LinkQuery) Delete(ctx context.Context, id int64) error {
	_, err := lq.db.Exec(ctx, deleteLinkQuery, id)
	return err
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mau.fi/util/dbutil"

	"github.com/porterhq/porter/pkg/onebot"
)

// RemoteChat is one conversation (friend or group) on a remote endpoint.
// The (endpoint, chat_type, target_id) triple is unique; rows are created
// lazily the first time a message is observed from or about the chat.
type RemoteChat struct {
	ID        int64
	Endpoint  onebot.Endpoint
	ChatType  onebot.ChatKind
	TargetID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemoteChatLink pairs a remote chat with the link bound to it, if any.
type RemoteChatLink struct {
	Chat *RemoteChat
	Link *Link
}

type RemoteChatQuery struct {
	db *dbutil.Database
}

const (
	getRemoteChatQuery = `
		SELECT id, endpoint, chat_type, target_id, name, created_at, updated_at
		FROM remote_chat WHERE endpoint=$1 AND chat_type=$2 AND target_id=$3
	`
	getRemoteChatByIDQuery = `
		SELECT id, endpoint, chat_type, target_id, name, created_at, updated_at
		FROM remote_chat WHERE id=$1
	`
	insertRemoteChatQuery = `
		INSERT INTO remote_chat (endpoint, chat_type, target_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	upsertRemoteChatQuery = `
		INSERT INTO remote_chat (endpoint, chat_type, target_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (endpoint, chat_type, target_id) DO UPDATE
			SET name=excluded.name, updated_at=excluded.updated_at
	`
	listRemoteChatEndpointsQuery = `SELECT DISTINCT endpoint FROM remote_chat ORDER BY endpoint`
	countRemoteChatsQuery        = `SELECT COUNT(*) FROM remote_chat WHERE name LIKE $1`
	listRemoteChatsQuery         = `
		SELECT rc.id, rc.endpoint, rc.chat_type, rc.target_id, rc.name, rc.created_at, rc.updated_at,
		       l.id, l.tg_chat_type, l.tg_chat_id
		FROM remote_chat rc
		LEFT JOIN link l ON l.remote_chat_id=rc.id
		WHERE rc.name LIKE $1
		ORDER BY rc.id LIMIT $2 OFFSET $3
	`
)

func scanRemoteChat(row dbutil.Scannable) (*RemoteChat, error) {
	var rc RemoteChat
	var endpoint string
	var createdAt, updatedAt int64
	err := row.Scan(&rc.ID, &endpoint, &rc.ChatType, &rc.TargetID, &rc.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	rc.Endpoint, err = onebot.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	rc.CreatedAt = time.Unix(createdAt, 0)
	rc.UpdatedAt = time.Unix(updatedAt, 0)
	return &rc, nil
}

func remoteChatFromNullable(id sql.NullInt64, endpoint, chatType, targetID, name sql.NullString, createdAt, updatedAt sql.NullInt64) (*RemoteChat, error) {
	parsed, err := onebot.ParseEndpoint(endpoint.String)
	if err != nil {
		return nil, err
	}
	return &RemoteChat{
		ID:        id.Int64,
		Endpoint:  parsed,
		ChatType:  onebot.ChatKind(chatType.String),
		TargetID:  targetID.String,
		Name:      name.String,
		CreatedAt: time.Unix(createdAt.Int64, 0),
		UpdatedAt: time.Unix(updatedAt.Int64, 0),
	}, nil
}

// Get returns the chat identified by the unique (endpoint, chat type, target id)
// triple, or nil if it hasn't been seen yet.
func (rcq *RemoteChatQuery) Get(ctx context.Context, endpoint onebot.Endpoint, chatType onebot.ChatKind, targetID string) (*RemoteChat, error) {
	return scanRemoteChat(rcq.db.QueryRow(ctx, getRemoteChatQuery, endpoint.String(), chatType, targetID))
}

func (rcq *RemoteChatQuery) GetByID(ctx context.Context, id int64) (*RemoteChat, error) {
	return scanRemoteChat(rcq.db.QueryRow(ctx, getRemoteChatByIDQuery, id))
}

// Insert stores a new remote chat and fills in its assigned row id.
func (rcq *RemoteChatQuery) Insert(ctx context.Context, rc *RemoteChat) error {
	rc.CreatedAt = time.Now()
	rc.UpdatedAt = rc.CreatedAt
	return rcq.db.
		QueryRow(ctx, insertRemoteChatQuery, rc.Endpoint.String(), rc.ChatType, rc.TargetID, rc.Name, rc.CreatedAt.Unix(), rc.UpdatedAt.Unix()).
		Scan(&rc.ID)
}

// Upsert inserts the chat or, if the triple already exists, refreshes its name.
func (rcq *RemoteChatQuery) Upsert(ctx context.Context, rc *RemoteChat) error {
	now := time.Now()
	_, err := rcq.db.Exec(ctx, upsertRemoteChatQuery, rc.Endpoint.String(), rc.ChatType, rc.TargetID, rc.Name, now.Unix(), now.Unix())
	return err
}

// ListEndpoints returns every distinct endpoint that has at least one known chat.
func (rcq *RemoteChatQuery) ListEndpoints(ctx context.Context) ([]onebot.Endpoint, error) {
	rows, err := rcq.db.Query(ctx, listRemoteChatEndpointsQuery)
	if err != nil {
		return nil, err
	}
	var endpoints []onebot.Endpoint
	var raw string
	for rows.Next() {
		if err = rows.Scan(&raw); err != nil {
			return nil, err
		}
		endpoint, err := onebot.ParseEndpoint(raw)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, endpoint)
	}
	return endpoints, rows.Err()
}

// Count returns how many chats match the name keyword ("" matches all).
func (rcq *RemoteChatQuery) Count(ctx context.Context, keyword string) (count int, err error) {
	err = rcq.db.QueryRow(ctx, countRemoteChatsQuery, "%"+keyword+"%").Scan(&count)
	return
}

// List returns one page of chats matching the name keyword, oldest first,
// each paired with the link bound to it if one exists.
func (rcq *RemoteChatQuery) List(ctx context.Context, keyword string, limit, offset int) ([]RemoteChatLink, error) {
	rows, err := rcq.db.Query(ctx, listRemoteChatsQuery, "%"+keyword+"%", limit, offset)
	if err != nil {
		return nil, err
	}
	var page []RemoteChatLink
	for rows.Next() {
		var rc RemoteChat
		var endpoint string
		var createdAt, updatedAt int64
		var linkID, linkChatID sql.NullInt64
		var linkChatType sql.NullString
		err = rows.Scan(
			&rc.ID, &endpoint, &rc.ChatType, &rc.TargetID, &rc.Name, &createdAt, &updatedAt,
			&linkID, &linkChatType, &linkChatID,
		)
		if err != nil {
			return nil, err
		}
		rc.Endpoint, err = onebot.ParseEndpoint(endpoint)
		if err != nil {
			return nil, err
		}
		rc.CreatedAt = time.Unix(createdAt, 0)
		rc.UpdatedAt = time.Unix(updatedAt, 0)
		item := RemoteChatLink{Chat: &rc}
		if linkID.Valid {
			item.Link = &Link{
				ID:           linkID.Int64,
				TGChatType:   PeerType(linkChatType.String),
				TGChatID:     linkChatID.Int64,
				RemoteChatID: rc.ID,
			}
		}
		page = append(page, item)
	}
	return page, rows.Err()
}

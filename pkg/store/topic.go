package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mau.fi/util/dbutil"
)

// Topic records which forum topic of an archive supergroup carries a given
// remote chat. One topic per remote chat.
type Topic struct {
	ID           int64
	ArchiveID    int64
	TGTopicID    int64
	RemoteChatID int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TopicQuery struct {
	db *dbutil.Database
}

const (
	getTopicByRemoteChatQuery = `
		SELECT id, archive_id, tg_topic_id, remote_chat_id, created_at, updated_at
		FROM topic WHERE remote_chat_id=$1
	`
	insertTopicQuery = `
		INSERT INTO topic (archive_id, tg_topic_id, remote_chat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	getTopicRemoteChatQuery = `
		SELECT rc.id, rc.endpoint, rc.chat_type, rc.target_id, rc.name, rc.created_at, rc.updated_at
		FROM topic t
		JOIN archive a ON a.id=t.archive_id
		JOIN remote_chat rc ON rc.id=t.remote_chat_id
		WHERE a.tg_chat_id=$1 AND t.tg_topic_id=$2
	`
)

func (tq *TopicQuery) GetByRemoteChat(ctx context.Context, remoteChatID int64) (*Topic, error) {
	var topic Topic
	var createdAt, updatedAt int64
	err := tq.db.
		QueryRow(ctx, getTopicByRemoteChatQuery, remoteChatID).
		Scan(&topic.ID, &topic.ArchiveID, &topic.TGTopicID, &topic.RemoteChatID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	topic.CreatedAt = time.Unix(createdAt, 0)
	topic.UpdatedAt = time.Unix(updatedAt, 0)
	return &topic, nil
}

func (tq *TopicQuery) Insert(ctx context.Context, topic *Topic) error {
	topic.CreatedAt = time.Now()
	topic.UpdatedAt = topic.CreatedAt
	return tq.db.
		QueryRow(ctx, insertTopicQuery, topic.ArchiveID, topic.TGTopicID, topic.RemoteChatID, topic.CreatedAt.Unix(), topic.UpdatedAt.Unix()).
		Scan(&topic.ID)
}

// GetRemoteChat resolves a forum topic of an archive supergroup back to the
// remote chat it carries, or nil if the topic isn't part of any archive.
func (tq *TopicQuery) GetRemoteChat(ctx context.Context, tgChatID, tgTopicID int64) (*RemoteChat, error) {
	return scanRemoteChat(tq.db.QueryRow(ctx, getTopicRemoteChatQuery, tgChatID, tgTopicID))
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mau.fi/util/dbutil"
)

// DeliveryStatus tracks what happened to a relayed message.
type DeliveryStatus string

const (
	DeliveryPending  DeliveryStatus = "pending"
	DeliveryFailed   DeliveryStatus = "failed"
	DeliverySent     DeliveryStatus = "sent"
	DeliveryRecalled DeliveryStatus = "recalled"
)

// Message maps one remote message to the Telegram message it was relayed as
// (or vice versa). Synthetic rows (recall notices) carry a fake remote id.
type Message struct {
	ID             int64
	TGChatID       int64
	TGMsgID        int64
	RemoteChatID   int64
	RemoteMsgID    string
	Content        string
	DeliveryStatus DeliveryStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MessageQuery struct {
	db *dbutil.Database
}

const (
	getMessageByRemoteQuery = `
		SELECT id, tg_chat_id, tg_msg_id, remote_chat_id, remote_msg_id, content, delivery_status, created_at, updated_at
		FROM message WHERE remote_chat_id=$1 AND remote_msg_id=$2
	`
	getMessageByTGQuery = `
		SELECT m.id, m.tg_chat_id, m.tg_msg_id, m.remote_chat_id, m.remote_msg_id, m.content, m.delivery_status, m.created_at, m.updated_at,
		       rc.id, rc.endpoint, rc.chat_type, rc.target_id, rc.name, rc.created_at, rc.updated_at
		FROM message m
		LEFT JOIN remote_chat rc ON rc.id=m.remote_chat_id
		WHERE m.tg_chat_id=$1 AND m.tg_msg_id=$2
	`
	insertMessageQuery = `
		INSERT INTO message (tg_chat_id, tg_msg_id, remote_chat_id, remote_msg_id, content, delivery_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	setMessageDeliveryStatusQuery = `UPDATE message SET delivery_status=$1, updated_at=$2 WHERE id=$3`
)

func scanMessage(row dbutil.Scannable) (*Message, error) {
	var msg Message
	var createdAt, updatedAt int64
	err := row.Scan(
		&msg.ID, &msg.TGChatID, &msg.TGMsgID, &msg.RemoteChatID, &msg.RemoteMsgID,
		&msg.Content, &msg.DeliveryStatus, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	msg.CreatedAt = time.Unix(createdAt, 0)
	msg.UpdatedAt = time.Unix(updatedAt, 0)
	return &msg, nil
}

// GetByRemote looks up the mapping for a message id as reported by the remote
// endpoint. Used both for reply resolution and for deduplication.
func (mq *MessageQuery) GetByRemote(ctx context.Context, remoteChatID int64, remoteMsgID string) (*Message, error) {
	return scanMessage(mq.db.QueryRow(ctx, getMessageByRemoteQuery, remoteChatID, remoteMsgID))
}

// GetByTG resolves a Telegram message back to its mapping and the remote chat
// it belongs to. The remote chat may be nil if the row has gone stale.
func (mq *MessageQuery) GetByTG(ctx context.Context, tgChatID, tgMsgID int64) (*Message, *RemoteChat, error) {
	var msg Message
	var msgCreatedAt, msgUpdatedAt int64
	var rcID, rcCreatedAt, rcUpdatedAt sql.NullInt64
	var rcEndpoint, rcChatType, rcTargetID, rcName sql.NullString
	err := mq.db.QueryRow(ctx, getMessageByTGQuery, tgChatID, tgMsgID).Scan(
		&msg.ID, &msg.TGChatID, &msg.TGMsgID, &msg.RemoteChatID, &msg.RemoteMsgID,
		&msg.Content, &msg.DeliveryStatus, &msgCreatedAt, &msgUpdatedAt,
		&rcID, &rcEndpoint, &rcChatType, &rcTargetID, &rcName, &rcCreatedAt, &rcUpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil
	} else if err != nil {
		return nil, nil, err
	}
	msg.CreatedAt = time.Unix(msgCreatedAt, 0)
	msg.UpdatedAt = time.Unix(msgUpdatedAt, 0)
	if !rcID.Valid {
		return &msg, nil, nil
	}
	rc, err := remoteChatFromNullable(rcID, rcEndpoint, rcChatType, rcTargetID, rcName, rcCreatedAt, rcUpdatedAt)
	if err != nil {
		return nil, nil, err
	}
	return &msg, rc, nil
}

func (mq *MessageQuery) Insert(ctx context.Context, msg *Message) error {
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	return mq.db.
		QueryRow(ctx, insertMessageQuery,
			msg.TGChatID, msg.TGMsgID, msg.RemoteChatID, msg.RemoteMsgID,
			msg.Content, msg.DeliveryStatus, msg.CreatedAt.Unix(), msg.UpdatedAt.Unix()).
		Scan(&msg.ID)
}

func (mq *MessageQuery) SetDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus) error {
	_, err := mq.db.Exec(ctx, setMessageDeliveryStatusQuery, status, time.Now().Unix(), id)
	return err
}

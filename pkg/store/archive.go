package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.mau.fi/util/dbutil"

	"github.com/porterhq/porter/pkg/onebot"
)

// Archive mirrors every conversation of one endpoint into a single Telegram
// forum supergroup, one topic per remote chat. At most one archive per endpoint.
type Archive struct {
	ID        int64
	Endpoint  onebot.Endpoint
	TGChatID  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ArchiveQuery struct {
	db *dbutil.Database
}

const (
	getArchiveByEndpointQuery = `
		SELECT id, endpoint, tg_chat_id, created_at, updated_at FROM archive WHERE endpoint=$1
	`
	listArchivesQuery = `
		SELECT id, endpoint, tg_chat_id, created_at, updated_at FROM archive ORDER BY id
	`
	insertArchiveQuery = `
		INSERT INTO archive (endpoint, tg_chat_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	deleteArchiveQuery       = `DELETE FROM archive WHERE id=$1`
	deleteArchiveTopicsQuery = `DELETE FROM topic WHERE archive_id=$1`
)

func scanArchive(row dbutil.Scannable) (*Archive, error) {
	var archive Archive
	var endpoint string
	var createdAt, updatedAt int64
	err := row.Scan(&archive.ID, &endpoint, &archive.TGChatID, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	archive.Endpoint, err = onebot.ParseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	archive.CreatedAt = time.Unix(createdAt, 0)
	archive.UpdatedAt = time.Unix(updatedAt, 0)
	return &archive, nil
}

func (aq *ArchiveQuery) GetByEndpoint(ctx context.Context, endpoint onebot.Endpoint) (*Archive, error) {
	return scanArchive(aq.db.QueryRow(ctx, getArchiveByEndpointQuery, endpoint.String()))
}

func (aq *ArchiveQuery) List(ctx context.Context) ([]*Archive, error) {
	rows, err := aq.db.Query(ctx, listArchivesQuery)
	if err != nil {
		return nil, err
	}
	var archives []*Archive
	for rows.Next() {
		archive, err := scanArchive(rows)
		if err != nil {
			return nil, err
		}
		archives = append(archives, archive)
	}
	return archives, rows.Err()
}

func (aq *ArchiveQuery) Insert(ctx context.Context, archive *Archive) error {
	archive.CreatedAt = time.Now()
	archive.UpdatedAt = archive.CreatedAt
	return aq.db.
		QueryRow(ctx, insertArchiveQuery, archive.Endpoint.String(), archive.TGChatID, archive.CreatedAt.Unix(), archive.UpdatedAt.Unix()).
		Scan(&archive.ID)
}

// Delete removes the archive along with all topics created under it.
func (aq *ArchiveQuery) Delete(ctx context.Context, id int64) error {
	return aq.db.DoTxn(ctx, nil, func(ctx context.Context) error {
		if _, err := aq.db.Exec(ctx, deleteArchiveTopicsQuery, id); err != nil {
			return err
		}
		_, err := aq.db.Exec(ctx, deleteArchiveQuery, id)
		return err
	})
}

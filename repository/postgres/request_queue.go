package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type requestQueueRepo basePostgresRepo

func NewRequestQueueRepo(table string, db *db.DB) entity.RequestQueueRepo {
	return (*requestQueueRepo)(newBasePostgresRepo(table, db))
}

func (r *requestQueueRepo) Enqueue(ctx context.Context, req *entity.Request) error {
	blob, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("can't encode request: %w", err)
	}
	q, args, err := sq.Insert(r.table).
		Columns("data").
		Values(blob).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't enqueue request: %w", err)
	}
	return nil
}

func (r *requestQueueRepo) Dequeue(ctx context.Context) (*entity.Request, error) {
	q := fmt.Sprintf(
		"DELETE FROM %s WHERE id = (SELECT id FROM %s ORDER BY id LIMIT 1) RETURNING data",
		r.table, r.table,
	)
	var blob []byte
	if err := r.db.GetContext(ctx, &blob, q); err != nil {
		return nil, err
	}
	req := new(entity.Request)
	if err := json.Unmarshal(blob, req); err != nil {
		return nil, fmt.Errorf("can't decode request: %w", err)
	}
	return req, nil
}

func (r *requestQueueRepo) Len(ctx context.Context) (uint, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	if err = r.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, fmt.Errorf("can't count queued requests: %w", err)
	}
	return count, nil
}

func (r *requestQueueRepo) List(ctx context.Context) ([]*entity.Request, error) {
	q, args, err := sq.Select("data").
		From(r.table).
		OrderBy("id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var blobs [][]byte
	if err = r.db.SelectContext(ctx, &blobs, q, args...); err != nil {
		return nil, fmt.Errorf("can't list queued requests: %w", err)
	}
	reqs := make([]*entity.Request, len(blobs))
	for i, blob := range blobs {
		reqs[i] = new(entity.Request)
		if err = json.Unmarshal(blob, reqs[i]); err != nil {
			return nil, fmt.Errorf("can't decode request: %w", err)
		}
	}
	return reqs, nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type activeRequestRepo basePostgresRepo

func NewActiveRequestRepo(table string, db *db.DB) entity.ActiveRequestRepo {
	return (*activeRequestRepo)(newBasePostgresRepo(table, db))
}

func (r *activeRequestRepo) Get(ctx context.Context) (*entity.ActiveRequest, error) {
	q, args, err := sq.Select("data").
		From(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var blob []byte
	if err = r.db.GetContext(ctx, &blob, q, args...); err != nil {
		return nil, err
	}
	req := new(entity.ActiveRequest)
	if err = json.Unmarshal(blob, req); err != nil {
		return nil, fmt.Errorf("can't decode active request: %w", err)
	}
	return req, nil
}

func (r *activeRequestRepo) Put(ctx context.Context, req *entity.ActiveRequest) error {
	blob, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("can't encode active request: %w", err)
	}
	q, args, err := sq.Insert(r.table).
		Columns("singleton", "data").
		Values(true, blob).
		Suffix("ON CONFLICT (singleton) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't upsert active request: %w", err)
	}
	return nil
}

func (r *activeRequestRepo) Delete(ctx context.Context) error {
	q, args, err := sq.Delete(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete active request: %w", err)
	}
	return nil
}

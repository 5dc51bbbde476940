package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type activeRangeRepo basePostgresRepo

func NewActiveRangeRepo(table string, db *db.DB) entity.ActiveRangeRepo {
	return (*activeRangeRepo)(newBasePostgresRepo(table, db))
}

func (r *activeRangeRepo) Get(ctx context.Context) (*entity.ActiveRange, error) {
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
	activeRange := new(entity.ActiveRange)
	if err = json.Unmarshal(blob, activeRange); err != nil {
		return nil, fmt.Errorf("can't decode active range: %w", err)
	}
	return activeRange, nil
}

func (r *activeRangeRepo) Put(ctx context.Context, activeRange *entity.ActiveRange) error {
	blob, err := json.Marshal(activeRange)
	if err != nil {
		return fmt.Errorf("can't encode active range: %w", err)
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
		return fmt.Errorf("can't upsert active range: %w", err)
	}
	return nil
}

func (r *activeRangeRepo) Delete(ctx context.Context) error {
	q, args, err := sq.Delete(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete active range: %w", err)
	}
	return nil
}

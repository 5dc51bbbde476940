package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type slotRepo basePostgresRepo

func NewSlotRepo(table string, db *db.DB) entity.SlotRepo {
	return (*slotRepo)(newBasePostgresRepo(table, db))
}

func (r *slotRepo) Get(ctx context.Context) (*entity.Slot, error) {
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
	slot := new(entity.Slot)
	if err = json.Unmarshal(blob, slot); err != nil {
		return nil, fmt.Errorf("can't decode slot: %w", err)
	}
	return slot, nil
}

func (r *slotRepo) Put(ctx context.Context, slot *entity.Slot) error {
	blob, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("can't encode slot: %w", err)
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
		return fmt.Errorf("can't upsert slot: %w", err)
	}
	return nil
}

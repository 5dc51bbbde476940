package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type eventChecksRepo basePostgresRepo

func NewEventChecksRepo(table string, db *db.DB) entity.EventChecksRepo {
	return (*eventChecksRepo)(newBasePostgresRepo(table, db))
}

func (r *eventChecksRepo) Insert(ctx context.Context, check *entity.EventCheck) error {
	blob, err := json.Marshal(check)
	if err != nil {
		return fmt.Errorf("can't encode event check: %w", err)
	}
	q, args, err := sq.Insert(r.table).
		Columns("event_type", "event_tx_hash", "data").
		Values(check.Event.Type, check.Event.TxHash, blob).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert event check: %w", err)
	}
	return nil
}

func (r *eventChecksRepo) GetByEventID(ctx context.Context, id entity.EventID) (*entity.EventCheck, error) {
	q, args, err := sq.Select("data").
		From(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var blob []byte
	if err = r.db.GetContext(ctx, &blob, q, args...); err != nil {
		return nil, err
	}
	check := new(entity.EventCheck)
	if err = json.Unmarshal(blob, check); err != nil {
		return nil, fmt.Errorf("can't decode event check: %w", err)
	}
	return check, nil
}

func (r *eventChecksRepo) List(ctx context.Context) ([]*entity.EventCheck, error) {
	q, args, err := sq.Select("data").
		From(r.table).
		OrderBy("created_at").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var blobs [][]byte
	if err = r.db.SelectContext(ctx, &blobs, q, args...); err != nil {
		return nil, fmt.Errorf("can't list event checks: %w", err)
	}
	checks := make([]*entity.EventCheck, len(blobs))
	for i, blob := range blobs {
		checks[i] = new(entity.EventCheck)
		if err = json.Unmarshal(blob, checks[i]); err != nil {
			return nil, fmt.Errorf("can't decode event check: %w", err)
		}
	}
	return checks, nil
}

func (r *eventChecksRepo) DeleteByEventID(ctx context.Context, id entity.EventID) error {
	q, args, err := sq.Delete(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete event check: %w", err)
	}
	return nil
}

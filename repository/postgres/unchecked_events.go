package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type uncheckedEventsRepo basePostgresRepo

func NewUncheckedEventsRepo(table string, db *db.DB) entity.UncheckedEventsRepo {
	return (*uncheckedEventsRepo)(newBasePostgresRepo(table, db))
}

func (r *uncheckedEventsRepo) Insert(ctx context.Context, event *entity.UncheckedEvent) error {
	blob, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("can't encode unchecked event: %w", err)
	}
	q, args, err := sq.Insert(r.table).
		Columns("ingress_counter", "event_type", "event_tx_hash", "data").
		Values(event.IngressCounter, event.Event.Type, event.Event.TxHash, blob).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert unchecked event: %w", err)
	}
	return nil
}

func (r *uncheckedEventsRepo) List(ctx context.Context) ([]*entity.UncheckedEvent, error) {
	q, args, err := sq.Select("data").
		From(r.table).
		OrderBy("ingress_counter").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var blobs [][]byte
	if err = r.db.SelectContext(ctx, &blobs, q, args...); err != nil {
		return nil, fmt.Errorf("can't list unchecked events: %w", err)
	}
	events := make([]*entity.UncheckedEvent, len(blobs))
	for i, blob := range blobs {
		events[i] = new(entity.UncheckedEvent)
		if err = json.Unmarshal(blob, events[i]); err != nil {
			return nil, fmt.Errorf("can't decode unchecked event: %w", err)
		}
	}
	return events, nil
}

func (r *uncheckedEventsRepo) ExistsByEventID(ctx context.Context, id entity.EventID) (bool, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	if err = r.db.GetContext(ctx, &count, q, args...); err != nil {
		return false, fmt.Errorf("can't count unchecked events: %w", err)
	}
	return count > 0, nil
}

func (r *uncheckedEventsRepo) DeleteByIngressCounter(ctx context.Context, ingressCounter uint64) error {
	q, args, err := sq.Delete(r.table).
		Where(sq.Eq{"ingress_counter": ingressCounter}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete unchecked event: %w", err)
	}
	return nil
}

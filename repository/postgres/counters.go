package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type countersRepo basePostgresRepo

func NewCountersRepo(table string, db *db.DB) entity.CountersRepo {
	return (*countersRepo)(newBasePostgresRepo(table, db))
}

func (r *countersRepo) next(ctx context.Context, name string) (uint64, error) {
	q, args, err := sq.Insert(r.table).
		Columns("name", "next_value").
		Values(name, 1).
		Suffix("ON CONFLICT (name) DO UPDATE SET next_value = " + r.table + ".next_value + 1 RETURNING next_value - 1").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var value uint64
	if err = r.db.GetContext(ctx, &value, q, args...); err != nil {
		return 0, fmt.Errorf("can't advance counter %s: %w", name, err)
	}
	return value, nil
}

func (r *countersRepo) NextTxID(ctx context.Context) (uint32, error) {
	value, err := r.next(ctx, "tx_id")
	return uint32(value), err
}

func (r *countersRepo) SetNextTxID(ctx context.Context, next uint32) error {
	q, args, err := sq.Insert(r.table).
		Columns("name", "next_value").
		Values("tx_id", next).
		Suffix("ON CONFLICT (name) DO UPDATE SET next_value = EXCLUDED.next_value").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't set tx id counter: %w", err)
	}
	return nil
}

func (r *countersRepo) NextSenderNonce(ctx context.Context) (uint64, error) {
	return r.next(ctx, "sender_nonce")
}

func (r *countersRepo) NextIngressCounter(ctx context.Context) (uint64, error) {
	return r.next(ctx, "ingress_counter")
}

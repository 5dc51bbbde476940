package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type processedEventsRepo basePostgresRepo

func NewProcessedEventsRepo(table string, db *db.DB) entity.ProcessedEventsRepo {
	return (*processedEventsRepo)(newBasePostgresRepo(table, db))
}

func (r *processedEventsRepo) Ensure(ctx context.Context, event *entity.ProcessedEvent) error {
	// An accepted record is never downgraded.
	q, args, err := sq.Insert(r.table).
		Columns("tx_hash", "event_type", "accepted").
		Values(event.TxHash, event.EventType, event.Accepted).
		Suffix("ON CONFLICT (tx_hash) DO UPDATE SET accepted = " + r.table + ".accepted OR EXCLUDED.accepted").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert processed event: %w", err)
	}
	return nil
}

func (r *processedEventsRepo) GetByTxHash(ctx context.Context, txHash common.Hash) (*entity.ProcessedEvent, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"tx_hash": txHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	event := new(entity.ProcessedEvent)
	if err = r.db.GetContext(ctx, event, q, args...); err != nil {
		return nil, err
	}
	return event, nil
}

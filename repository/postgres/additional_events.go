package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type additionalEventsRepo basePostgresRepo

func NewAdditionalEventsRepo(table string, db *db.DB) entity.AdditionalEventsRepo {
	return (*additionalEventsRepo)(newBasePostgresRepo(table, db))
}

func (r *additionalEventsRepo) Enqueue(ctx context.Context, txHash common.Hash) error {
	q, args, err := sq.Insert(r.table).
		Columns("tx_hash").
		Values(txHash).
		Suffix("ON CONFLICT (tx_hash) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't queue additional event: %w", err)
	}
	return nil
}

func (r *additionalEventsRepo) Drain(ctx context.Context) ([]common.Hash, error) {
	q := fmt.Sprintf("DELETE FROM %s RETURNING tx_hash", r.table)
	var hashes []common.Hash
	if err := r.db.SelectContext(ctx, &hashes, q); err != nil {
		return nil, fmt.Errorf("can't drain additional events: %w", err)
	}
	return hashes, nil
}

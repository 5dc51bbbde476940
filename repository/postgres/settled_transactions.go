package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type settledTransactionsRepo basePostgresRepo

func NewSettledTransactionsRepo(table string, db *db.DB) entity.SettledTransactionsRepo {
	return (*settledTransactionsRepo)(newBasePostgresRepo(table, db))
}

func (r *settledTransactionsRepo) Insert(ctx context.Context, tx *entity.SettledTransaction) error {
	q, args, err := sq.Insert(r.table).
		Columns("tx_id", "function_name", "caller_id", "sender", "eth_tx_hash", "succeeded", "replay_attempt", "settled_at_block").
		Values(tx.TxID, tx.FunctionName, tx.CallerID, tx.Sender, tx.EthTxHash, tx.Succeeded, tx.ReplayAttempt, tx.SettledAtBlock).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert settled transaction: %w", err)
	}
	return nil
}

func (r *settledTransactionsRepo) GetByTxID(ctx context.Context, txID uint32) (*entity.SettledTransaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		Where(sq.Eq{"tx_id": txID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	tx := new(entity.SettledTransaction)
	if err = r.db.GetContext(ctx, tx, q, args...); err != nil {
		return nil, err
	}
	return tx, nil
}

func (r *settledTransactionsRepo) List(ctx context.Context, limit uint) ([]*entity.SettledTransaction, error) {
	q, args, err := sq.Select("*").
		From(r.table).
		OrderBy("tx_id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var txs []*entity.SettledTransaction
	if err = r.db.SelectContext(ctx, &txs, q, args...); err != nil {
		return nil, fmt.Errorf("can't list settled transactions: %w", err)
	}
	return txs, nil
}

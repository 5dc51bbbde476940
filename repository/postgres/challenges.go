package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type challengesRepo basePostgresRepo

func NewChallengesRepo(table string, db *db.DB) entity.ChallengesRepo {
	return (*challengesRepo)(newBasePostgresRepo(table, db))
}

func (r *challengesRepo) Insert(ctx context.Context, challenge *entity.Challenge) error {
	q, args, err := sq.Insert(r.table).
		Columns("event_type", "event_tx_hash", "challenged_by").
		Values(challenge.EventType, challenge.EventTxHash, challenge.ChallengedBy).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert challenge: %w", err)
	}
	return nil
}

func (r *challengesRepo) Exists(ctx context.Context, id entity.EventID, author common.Address) (bool, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash, "challenged_by": author}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	if err = r.db.GetContext(ctx, &count, q, args...); err != nil {
		return false, fmt.Errorf("can't count challenges by author: %w", err)
	}
	return count > 0, nil
}

func (r *challengesRepo) CountByEventID(ctx context.Context, id entity.EventID) (uint, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	if err = r.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, fmt.Errorf("can't count challenges: %w", err)
	}
	return count, nil
}

func (r *challengesRepo) ListByEventID(ctx context.Context, id entity.EventID) ([]*entity.Challenge, error) {
	q, args, err := sq.Select("event_type", "event_tx_hash", "challenged_by", "created_at").
		From(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var challenges []*entity.Challenge
	if err = r.db.SelectContext(ctx, &challenges, q, args...); err != nil {
		return nil, fmt.Errorf("can't list challenges: %w", err)
	}
	return challenges, nil
}

func (r *challengesRepo) DeleteByEventID(ctx context.Context, id entity.EventID) error {
	q, args, err := sq.Delete(r.table).
		Where(sq.Eq{"event_type": id.Type, "event_tx_hash": id.TxHash}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete challenges: %w", err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type partitionVotesRepo basePostgresRepo

func NewPartitionVotesRepo(table string, db *db.DB) entity.PartitionVotesRepo {
	return (*partitionVotesRepo)(newBasePostgresRepo(table, db))
}

func (r *partitionVotesRepo) Insert(ctx context.Context, vote *entity.PartitionVote) error {
	q, args, err := sq.Insert(r.table).
		Columns("author", "partition_id").
		Values(vote.Author, vote.PartitionID).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert partition vote: %w", err)
	}
	return nil
}

func (r *partitionVotesRepo) ExistsByAuthor(ctx context.Context, author common.Address) (bool, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"author": author}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	if err = r.db.GetContext(ctx, &count, q, args...); err != nil {
		return false, fmt.Errorf("can't count partition votes by author: %w", err)
	}
	return count > 0, nil
}

func (r *partitionVotesRepo) CountByPartition(ctx context.Context, partitionID common.Hash) (uint, error) {
	q, args, err := sq.Select("COUNT(*)").
		From(r.table).
		Where(sq.Eq{"partition_id": partitionID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("can't build query: %w", err)
	}
	var count uint
	if err = r.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, fmt.Errorf("can't count partition votes: %w", err)
	}
	return count, nil
}

func (r *partitionVotesRepo) VotersExcept(ctx context.Context, partitionID common.Hash) ([]common.Address, error) {
	q, args, err := sq.Select("author").
		From(r.table).
		Where(sq.NotEq{"partition_id": partitionID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var voters []common.Address
	if err = r.db.SelectContext(ctx, &voters, q, args...); err != nil {
		return nil, fmt.Errorf("can't list dissenting voters: %w", err)
	}
	return voters, nil
}

func (r *partitionVotesRepo) DeleteAll(ctx context.Context) error {
	q, args, err := sq.Delete(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete partition votes: %w", err)
	}
	return nil
}

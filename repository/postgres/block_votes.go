package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type blockVotesRepo basePostgresRepo

func NewBlockVotesRepo(table string, db *db.DB) entity.BlockVotesRepo {
	return (*blockVotesRepo)(newBasePostgresRepo(table, db))
}

func (r *blockVotesRepo) Insert(ctx context.Context, vote *entity.BlockVote) error {
	q, args, err := sq.Insert(r.table).
		Columns("author", "window_start").
		Values(vote.Author, vote.WindowStart).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert block vote: %w", err)
	}
	return nil
}

func (r *blockVotesRepo) ExistsByAuthor(ctx context.Context, author common.Address) (bool, error) {
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
		return false, fmt.Errorf("can't count block votes by author: %w", err)
	}
	return count > 0, nil
}

func (r *blockVotesRepo) List(ctx context.Context) ([]*entity.BlockVote, error) {
	q, args, err := sq.Select("author", "window_start").
		From(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var votes []*entity.BlockVote
	if err = r.db.SelectContext(ctx, &votes, q, args...); err != nil {
		return nil, fmt.Errorf("can't list block votes: %w", err)
	}
	return votes, nil
}

func (r *blockVotesRepo) DeleteAll(ctx context.Context) error {
	q, args, err := sq.Delete(r.table).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete block votes: %w", err)
	}
	return nil
}

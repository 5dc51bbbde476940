package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type offencesRepo basePostgresRepo

func NewOffencesRepo(table string, db *db.DB) entity.OffencesRepo {
	return (*offencesRepo)(newBasePostgresRepo(table, db))
}

func (r *offencesRepo) Insert(ctx context.Context, offence *entity.Offence) error {
	offenders, err := json.Marshal(offence.Offenders)
	if err != nil {
		return fmt.Errorf("can't encode offenders: %w", err)
	}
	q, args, err := sq.Insert(r.table).
		Columns("reporter", "offenders", "offence_type", "validator_count", "created_at_block").
		Values(offence.Reporter, offenders, offence.Type, offence.ValidatorCount, offence.CreatedAtBlock).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't insert offence: %w", err)
	}
	return nil
}

func (r *offencesRepo) List(ctx context.Context, limit uint) ([]*entity.Offence, error) {
	q, args, err := sq.Select("id", "reporter", "offenders", "offence_type", "validator_count", "created_at_block", "created_at").
		From(r.table).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var rows []*offenceRow
	if err = r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("can't list offences: %w", err)
	}
	offences := make([]*entity.Offence, len(rows))
	for i, row := range rows {
		offences[i], err = row.toEntity()
		if err != nil {
			return nil, err
		}
	}
	return offences, nil
}

type offenceRow struct {
	ID             uint64         `db:"id"`
	Reporter       common.Address `db:"reporter"`
	Offenders      []byte         `db:"offenders"`
	OffenceType    string         `db:"offence_type"`
	ValidatorCount uint           `db:"validator_count"`
	CreatedAtBlock uint64         `db:"created_at_block"`
	CreatedAt      *time.Time     `db:"created_at"`
}

func (row *offenceRow) toEntity() (*entity.Offence, error) {
	var offenders []common.Address
	if err := json.Unmarshal(row.Offenders, &offenders); err != nil {
		return nil, fmt.Errorf("can't decode offenders: %w", err)
	}
	return &entity.Offence{
		ID:             row.ID,
		Reporter:       row.Reporter,
		Offenders:      offenders,
		Type:           row.OffenceType,
		ValidatorCount: row.ValidatorCount,
		CreatedAtBlock: row.CreatedAtBlock,
		CreatedAt:      row.CreatedAt,
	}, nil
}

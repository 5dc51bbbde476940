package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fedbridge/bridge-node/db"
	"github.com/fedbridge/bridge-node/entity"
)

type votingSessionsRepo basePostgresRepo

func NewVotingSessionsRepo(table string, db *db.DB) entity.VotingSessionsRepo {
	return (*votingSessionsRepo)(newBasePostgresRepo(table, db))
}

func (r *votingSessionsRepo) Get(ctx context.Context, id common.Hash) (*entity.VotingSession, error) {
	q, args, err := sq.Select("data").
		From(r.table).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("can't build query: %w", err)
	}
	var blob []byte
	if err = r.db.GetContext(ctx, &blob, q, args...); err != nil {
		return nil, err
	}
	session := new(entity.VotingSession)
	if err = json.Unmarshal(blob, session); err != nil {
		return nil, fmt.Errorf("can't decode voting session: %w", err)
	}
	return session, nil
}

func (r *votingSessionsRepo) Put(ctx context.Context, session *entity.VotingSession) error {
	blob, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("can't encode voting session: %w", err)
	}
	q, args, err := sq.Insert(r.table).
		Columns("id", "data").
		Values(session.ID, blob).
		Suffix("ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't upsert voting session: %w", err)
	}
	return nil
}

func (r *votingSessionsRepo) Delete(ctx context.Context, id common.Hash) error {
	q, args, err := sq.Delete(r.table).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("can't build query: %w", err)
	}
	if _, err = r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("can't delete voting session: %w", err)
	}
	return nil
}

func (r *votingSessionsRepo) List(ctx context.Context) ([]*entity.VotingSession, error) {
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
		return nil, fmt.Errorf("can't list voting sessions: %w", err)
	}
	sessions := make([]*entity.VotingSession, len(blobs))
	for i, blob := range blobs {
		sessions[i] = new(entity.VotingSession)
		if err = json.Unmarshal(blob, sessions[i]); err != nil {
			return nil, fmt.Errorf("can't decode voting session: %w", err)
		}
	}
	return sessions, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// RunStore implements domain.RunStore using PostgreSQL.
type RunStore struct {
	pool *pgxpool.Pool
}

// NewRunStore creates a new RunStore backed by the given connection pool.
func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{pool: pool}
}

// Start inserts a new run row.
func (s *RunStore) Start(ctx context.Context, run domain.SaleRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sale_runs (
			id, contract_address, from_block, to_block, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.ContractAddress, int64(run.FromBlock), int64(run.ToBlock),
		string(run.Status), run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: start run %s: %w", run.ID, err)
	}
	return nil
}

// Finish stores the final counters and status of a run.
func (s *RunStore) Finish(ctx context.Context, run domain.SaleRun) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sale_runs SET
			pages = $2, fetched = $3, exported = $4, skipped = $5,
			status = $6, error = $7, finished_at = $8
		WHERE id = $1`,
		run.ID, run.Pages, run.Fetched, run.Exported, run.Skipped,
		string(run.Status), run.Error, run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: finish run %s: %w", run.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID returns a run by ID, or domain.ErrNotFound.
func (s *RunStore) GetByID(ctx context.Context, id string) (domain.SaleRun, error) {
	var (
		run        domain.SaleRun
		from, to   int64
		status     string
		finishedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, contract_address, from_block, to_block,
			pages, fetched, exported, skipped,
			status, error, started_at, finished_at
		FROM sale_runs WHERE id = $1`, id,
	).Scan(
		&run.ID, &run.ContractAddress, &from, &to,
		&run.Pages, &run.Fetched, &run.Exported, &run.Skipped,
		&status, &run.Error, &run.StartedAt, &finishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SaleRun{}, domain.ErrNotFound
		}
		return domain.SaleRun{}, fmt.Errorf("postgres: get run %s: %w", id, err)
	}

	run.FromBlock = uint64(from)
	run.ToBlock = uint64(to)
	run.Status = domain.RunStatus(status)
	if finishedAt != nil {
		run.FinishedAt = *finishedAt
	}
	return run, nil
}

// Compile-time interface check.
var _ domain.RunStore = (*RunStore)(nil)

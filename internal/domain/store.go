package domain

import "context"

// SaleStore persists normalized sales.
type SaleStore interface {
	InsertBatch(ctx context.Context, runID string, sales []SaleRecord) (int64, error)
	CountByRun(ctx context.Context, runID string) (int64, error)
}

// RunStore persists export run summaries.
type RunStore interface {
	Start(ctx context.Context, run SaleRun) error
	Finish(ctx context.Context, run SaleRun) error
	GetByID(ctx context.Context, id string) (SaleRun, error)
}

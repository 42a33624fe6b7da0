package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// Notification event names.
const (
	EventExportComplete = "export_complete"
	EventExportFailed   = "export_failed"
)

// Notifier announces run outcomes.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// JobOption configures a SalesJob.
type JobOption func(*SalesJob)

// WithRunStore records run summaries in store.
func WithRunStore(store domain.RunStore) JobOption {
	return func(j *SalesJob) { j.runs = store }
}

// WithLock holds a lock on the contract and block range for the whole run.
func WithLock(locks domain.LockManager, ttl time.Duration) JobOption {
	return func(j *SalesJob) {
		j.locks = locks
		j.lockTTL = ttl
	}
}

// WithNotifier announces run outcomes through n.
func WithNotifier(n Notifier) JobOption {
	return func(j *SalesJob) { j.notifier = n }
}

// SalesJob fetches every sale of a query, normalizes it into an in-memory
// table, and exports the table once pagination is exhausted.
type SalesJob struct {
	fetcher  *SalesFetcher
	exporter *Exporter
	runs     domain.RunStore
	locks    domain.LockManager
	lockTTL  time.Duration
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewSalesJob creates a SalesJob.
func NewSalesJob(fetcher *SalesFetcher, exporter *Exporter, logger *slog.Logger, opts ...JobOption) *SalesJob {
	j := &SalesJob{
		fetcher:  fetcher,
		exporter: exporter,
		logger:   logger.With(slog.String("component", "sales_job")),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run executes one export. Nothing is exported when fetching fails; the
// returned summary then carries the failure.
func (j *SalesJob) Run(ctx context.Context, q domain.SalesQuery) (domain.SaleRun, error) {
	run := domain.SaleRun{
		ID:              j.newID(),
		ContractAddress: q.ContractAddress,
		FromBlock:       q.FromBlock,
		ToBlock:         q.ToBlock,
		Status:          domain.RunStatusRunning,
		StartedAt:       j.now(),
	}
	logger := j.logger.With(
		slog.String("run_id", run.ID),
		slog.String("contract", q.ContractAddress),
		slog.Uint64("from_block", q.FromBlock),
		slog.Uint64("to_block", q.ToBlock),
	)

	if j.locks != nil {
		unlock, err := j.locks.Acquire(ctx, LockKey(q), j.lockTTL)
		if err != nil {
			return run, fmt.Errorf("sales job: acquire lock: %w", err)
		}
		defer unlock()
	}

	if j.runs != nil {
		if err := j.runs.Start(ctx, run); err != nil {
			return run, fmt.Errorf("sales job: record run start: %w", err)
		}
	}

	logger.InfoContext(ctx, "fetching nft sales")

	records, err := j.collect(ctx, q, &run, logger)
	if err == nil {
		err = j.exporter.Export(ctx, run, records)
	}

	run.FinishedAt = j.now()
	if err != nil {
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
	} else {
		run.Status = domain.RunStatusSucceeded
		run.Exported = len(records)
	}

	j.finish(ctx, run, logger)

	if err != nil {
		logger.ErrorContext(ctx, "nft sales export failed",
			slog.Int("pages", run.Pages),
			slog.String("error", err.Error()),
		)
		return run, fmt.Errorf("sales job: %w", err)
	}

	logger.InfoContext(ctx, "nft sales export complete",
		slog.Int("pages", run.Pages),
		slog.Int("fetched", run.Fetched),
		slog.Int("exported", run.Exported),
		slog.Int("skipped", run.Skipped),
		slog.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)
	return run, nil
}

// collect walks every page and appends each normalized sale to one ordered
// table.
func (j *SalesJob) collect(ctx context.Context, q domain.SalesQuery, run *domain.SaleRun, logger *slog.Logger) ([]domain.SaleRecord, error) {
	var records []domain.SaleRecord

	err := j.fetcher.Each(ctx, q, func(page int, sales []domain.RawSale) error {
		run.Pages = page
		run.Fetched += len(sales)

		for i, raw := range sales {
			res := Normalize(raw)
			if !res.OK() {
				run.Skipped++
				logger.DebugContext(ctx, "sale skipped",
					slog.Int("page", page),
					slog.Int("index", i),
					slog.String("reason", res.Skipped),
				)
				continue
			}
			records = append(records, res.Record)
		}

		logger.InfoContext(ctx, "sales page processed",
			slog.Int("page", page),
			slog.Int("sales", len(sales)),
			slog.Int("rows", len(records)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// finish records the run outcome and announces it. Failures here are logged
// and do not change the result of the run.
func (j *SalesJob) finish(ctx context.Context, run domain.SaleRun, logger *slog.Logger) {
	// The run may have been cancelled; bookkeeping still gets a short window.
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if j.runs != nil {
		if err := j.runs.Finish(bctx, run); err != nil {
			logger.WarnContext(ctx, "failed to record run outcome", slog.String("error", err.Error()))
		}
	}

	if j.notifier == nil {
		return
	}
	event, title := EventExportComplete, "NFT sales export complete"
	if run.Status == domain.RunStatusFailed {
		event, title = EventExportFailed, "NFT sales export failed"
	}
	if err := j.notifier.Notify(bctx, event, title, RunSummary(run)); err != nil && !errors.Is(err, context.Canceled) {
		logger.WarnContext(ctx, "failed to send notification", slog.String("error", err.Error()))
	}
}

// LockKey identifies the contract and block range of q.
func LockKey(q domain.SalesQuery) string {
	return strings.ToLower(q.ContractAddress) + ":" +
		strconv.FormatUint(q.FromBlock, 10) + "-" + strconv.FormatUint(q.ToBlock, 10)
}

// RunSummary renders a run as a short multi-line message.
func RunSummary(run domain.SaleRun) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "contract: %s\n", run.ContractAddress)
	fmt.Fprintf(&sb, "blocks: %d-%d\n", run.FromBlock, run.ToBlock)
	fmt.Fprintf(&sb, "pages: %d, fetched: %d, exported: %d, skipped: %d", run.Pages, run.Fetched, run.Exported, run.Skipped)
	if run.Error != "" {
		fmt.Fprintf(&sb, "\nerror: %s", run.Error)
	}
	return sb.String()
}

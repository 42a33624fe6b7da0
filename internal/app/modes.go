package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/nftsales/internal/domain"
	"github.com/alanyoungcy/nftsales/internal/pipeline"
)

// ExportMode fetches every sale for the configured contract and block range
// and delivers the table to all configured sinks.
func (a *App) ExportMode(ctx context.Context, deps *Dependencies) error {
	var opts []pipeline.JobOption
	if deps.RunStore != nil {
		opts = append(opts, pipeline.WithRunStore(deps.RunStore))
	}
	if deps.LockManager != nil {
		opts = append(opts, pipeline.WithLock(deps.LockManager, a.cfg.Redis.LockTTL.Duration))
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		opts = append(opts, pipeline.WithNotifier(deps.Notifier))
	}

	job := pipeline.NewSalesJob(deps.Fetcher, deps.Exporter, a.base, opts...)

	run, err := job.Run(ctx, domain.SalesQuery{
		ContractAddress: a.cfg.Job.ContractAddress,
		FromBlock:       a.cfg.Job.StartBlock,
		ToBlock:         a.cfg.Job.EndBlock,
	})
	if err != nil {
		return fmt.Errorf("export mode: %w", err)
	}

	a.logger.InfoContext(ctx, "export written",
		slog.String("run_id", run.ID),
		slog.String("path", a.cfg.Output.Path),
		slog.Int("rows", run.Exported),
	)
	return nil
}

// CheckMode pings every enabled backend and reports all failures together.
func (a *App) CheckMode(ctx context.Context, deps *Dependencies) error {
	var errs []error
	for _, hc := range deps.checks {
		if err := hc.check(ctx); err != nil {
			a.logger.ErrorContext(ctx, "backend unhealthy",
				slog.String("backend", hc.name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", hc.name, err))
			continue
		}
		a.logger.InfoContext(ctx, "backend healthy", slog.String("backend", hc.name))
	}

	if len(errs) > 0 {
		return fmt.Errorf("check mode: %w", errors.Join(errs...))
	}
	return nil
}

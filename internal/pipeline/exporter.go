package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// Export is a finished sales table handed to every sink. CSV is rendered once
// and shared read-only.
type Export struct {
	Run     domain.SaleRun
	Records []domain.SaleRecord
	CSV     []byte
}

// Sink is one destination for a finished export.
type Sink interface {
	Name() string
	Write(ctx context.Context, exp Export) error
}

// Exporter renders the sales table and delivers it to all sinks.
type Exporter struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewExporter creates an Exporter for the given sinks.
func NewExporter(sinks []Sink, logger *slog.Logger) *Exporter {
	return &Exporter{
		sinks:  sinks,
		logger: logger.With(slog.String("component", "exporter")),
	}
}

// Export renders records to CSV and writes them to every sink concurrently.
// The first sink error is returned after all sinks have finished.
func (e *Exporter) Export(ctx context.Context, run domain.SaleRun, records []domain.SaleRecord) error {
	data, err := SalesToCSV(records)
	if err != nil {
		return fmt.Errorf("exporter: render csv: %w", err)
	}

	exp := Export{Run: run, Records: records, CSV: data}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range e.sinks {
		s := s
		g.Go(func() error {
			if err := s.Write(gctx, exp); err != nil {
				return fmt.Errorf("exporter: sink %s: %w", s.Name(), err)
			}
			e.logger.InfoContext(gctx, "sales exported",
				slog.String("sink", s.Name()),
				slog.Int("rows", len(records)),
			)
			return nil
		})
	}

	return g.Wait()
}

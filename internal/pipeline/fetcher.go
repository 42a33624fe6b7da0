package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// Retry defaults for a single page request.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// SalesSource retrieves one page of raw sales.
type SalesSource interface {
	FetchSalesPage(ctx context.Context, q domain.SalesQuery) (domain.SalesPage, error)
}

// Pacer spaces out upstream requests. Wait blocks until the next request may
// be sent.
type Pacer interface {
	Wait(ctx context.Context) error
}

// PageFunc receives each page of raw sales in order. page is 1-based.
type PageFunc func(page int, sales []domain.RawSale) error

// FetcherOption configures a SalesFetcher.
type FetcherOption func(*SalesFetcher)

// WithMaxAttempts sets the total number of attempts per page.
func WithMaxAttempts(n int) FetcherOption {
	return func(f *SalesFetcher) {
		if n > 0 {
			f.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the fixed delay between attempts.
func WithRetryDelay(d time.Duration) FetcherOption {
	return func(f *SalesFetcher) {
		if d >= 0 {
			f.retryDelay = d
		}
	}
}

// WithPacer throttles every request through p.
func WithPacer(p Pacer) FetcherOption {
	return func(f *SalesFetcher) {
		f.pacer = p
	}
}

// WithSleep replaces the delay function used between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *SalesFetcher) {
		f.sleep = sleep
	}
}

// SalesFetcher walks the upstream pagination cursor for one query, one page
// at a time, retrying a failed page a fixed number of times.
type SalesFetcher struct {
	source      SalesSource
	maxAttempts int
	retryDelay  time.Duration
	pacer       Pacer
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *slog.Logger
}

// NewSalesFetcher creates a SalesFetcher reading from source.
func NewSalesFetcher(source SalesSource, logger *slog.Logger, opts ...FetcherOption) *SalesFetcher {
	f := &SalesFetcher{
		source:      source,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		sleep:       sleepContext,
		logger:      logger.With(slog.String("component", "sales_fetcher")),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Each fetches every page for q, starting from the first page regardless of
// q.PageKey, and hands each page to fn before requesting the next. It stops
// when a page carries no continuation key. A page that still fails after the
// retry budget is spent aborts the walk with an error wrapping
// domain.ErrFetchFailure.
func (f *SalesFetcher) Each(ctx context.Context, q domain.SalesQuery, fn PageFunc) error {
	q.PageKey = ""

	for page := 1; ; page++ {
		p, err := f.fetchPage(ctx, q, page)
		if err != nil {
			return err
		}

		if err := fn(page, p.Sales); err != nil {
			return err
		}

		if p.PageKey == "" {
			return nil
		}
		q.PageKey = p.PageKey
	}
}

// FetchAll returns the concatenation of every page's raw sales, in order.
func (f *SalesFetcher) FetchAll(ctx context.Context, q domain.SalesQuery) ([]domain.RawSale, error) {
	var all []domain.RawSale
	err := f.Each(ctx, q, func(_ int, sales []domain.RawSale) error {
		all = append(all, sales...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return all, nil
}

// fetchPage requests a single page, retrying network, status and decode
// failures alike. Context cancellation is returned immediately.
func (f *SalesFetcher) fetchPage(ctx context.Context, q domain.SalesQuery, page int) (domain.SalesPage, error) {
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := f.sleep(ctx, f.retryDelay); err != nil {
				return domain.SalesPage{}, err
			}
		}

		if f.pacer != nil {
			if err := f.pacer.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return domain.SalesPage{}, ctx.Err()
				}
				f.logger.WarnContext(ctx, "request pacer unavailable, sending unpaced",
					slog.String("error", err.Error()),
				)
			}
		}

		p, err := f.source.FetchSalesPage(ctx, q)
		if err == nil {
			return p, nil
		}
		if ctx.Err() != nil {
			return domain.SalesPage{}, ctx.Err()
		}

		lastErr = err
		f.logger.WarnContext(ctx, "sales page request failed",
			slog.Int("page", page),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", f.maxAttempts),
			slog.String("error", err.Error()),
		)
	}

	return domain.SalesPage{}, fmt.Errorf("%w: page %d after %d attempts: %w",
		domain.ErrFetchFailure, page, f.maxAttempts, lastErr)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

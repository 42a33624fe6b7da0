package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawSale(t *testing.T, s string) domain.RawSale {
	t.Helper()
	var raw domain.RawSale
	require.NoError(t, json.Unmarshal([]byte(s), &raw))
	return raw
}

// scriptedSource replays a fixed sequence of responses, one per call.
type scriptedSource struct {
	responses []scriptedResponse
	queries   []domain.SalesQuery
}

type scriptedResponse struct {
	page domain.SalesPage
	err  error
}

func (s *scriptedSource) FetchSalesPage(_ context.Context, q domain.SalesQuery) (domain.SalesPage, error) {
	s.queries = append(s.queries, q)
	if len(s.queries) > len(s.responses) {
		return domain.SalesPage{}, errors.New("unexpected request")
	}
	r := s.responses[len(s.queries)-1]
	return r.page, r.err
}

func (s *scriptedSource) calls() int { return len(s.queries) }

// sleepRecorder counts retry delays without waiting.
type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

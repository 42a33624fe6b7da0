package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

type memRunStore struct {
	started  []domain.SaleRun
	finished []domain.SaleRun
}

func (s *memRunStore) Start(_ context.Context, run domain.SaleRun) error {
	s.started = append(s.started, run)
	return nil
}

func (s *memRunStore) Finish(_ context.Context, run domain.SaleRun) error {
	s.finished = append(s.finished, run)
	return nil
}

func (s *memRunStore) GetByID(_ context.Context, id string) (domain.SaleRun, error) {
	for _, r := range s.finished {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.SaleRun{}, domain.ErrNotFound
}

type memLocks struct {
	held     map[string]bool
	acquired []string
	released []string
}

func (l *memLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return func() {
		delete(l.held, key)
		l.released = append(l.released, key)
	}, nil
}

type notification struct {
	event, title, message string
}

type recordingNotifier struct {
	sent []notification
}

func (n *recordingNotifier) Notify(_ context.Context, event, title, message string) error {
	n.sent = append(n.sent, notification{event, title, message})
	return nil
}

const brokenSale = `{
	"marketplace": "looksrare",
	"quantity": "1",
	"buyerAddress": "0x3333333333333333333333333333333333333333",
	"sellerAddress": "0x4444444444444444444444444444444444444444",
	"taker": "SELLER",
	"blockNumber": 15979190,
	"transactionHash": "0xdeadbeef"
}`

func newTestJob(src SalesSource, path string, opts ...JobOption) *SalesJob {
	rec := &sleepRecorder{}
	fetcher := NewSalesFetcher(src, testLogger(), WithSleep(rec.sleep))
	exporter := NewExporter([]Sink{NewFileSink(path)}, testLogger())
	job := NewSalesJob(fetcher, exporter, testLogger(), opts...)
	job.newID = func() string { return "run-1" }
	return job
}

func TestSalesJob_EndToEnd(t *testing.T) {
	src := &scriptedSource{responses: []scriptedResponse{
		{page: domain.SalesPage{Sales: []domain.RawSale{
			rawSale(t, validSale),
			rawSale(t, brokenSale),
		}}},
	}}
	path := filepath.Join(t.TempDir(), "sales.csv")
	runs := &memRunStore{}
	notifier := &recordingNotifier{}
	job := newTestJob(src, path, WithRunStore(runs), WithNotifier(notifier))

	run, err := job.Run(context.Background(), domain.SalesQuery{
		ContractAddress: "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d",
		FromBlock:       15979000,
		ToBlock:         15980000,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, domain.RunStatusSucceeded, run.Status)
	assert.Equal(t, 1, run.Pages)
	assert.Equal(t, 2, run.Fetched)
	assert.Equal(t, 1, run.Exported)
	assert.Equal(t, 1, run.Skipped)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readCSV(t, data)
	require.Len(t, rows, 2, "header plus the single valid sale")

	row := map[string]string{}
	for i, col := range domain.SaleColumns {
		row[col] = rows[1][i]
	}
	assert.Equal(t, "2", row["seller_fee"])
	assert.Equal(t, sellerAddr, row["maker"])
	assert.Equal(t, buyerAddr, row["taker"])
	assert.Equal(t, "0x9e2a1d3f", row["transaction_hash"])

	require.Len(t, runs.started, 1)
	assert.Equal(t, domain.RunStatusRunning, runs.started[0].Status)
	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.RunStatusSucceeded, runs.finished[0].Status)

	require.Len(t, notifier.sent, 1)
	assert.Equal(t, EventExportComplete, notifier.sent[0].event)
	assert.Contains(t, notifier.sent[0].message, "exported: 1")
}

func TestSalesJob_FetchFailureWritesNothing(t *testing.T) {
	src := &scriptedSource{responses: []scriptedResponse{
		{page: domain.SalesPage{Sales: []domain.RawSale{rawSale(t, validSale)}, PageKey: "k1"}},
		{err: errTransient},
		{err: errTransient},
		{err: errTransient},
	}}
	path := filepath.Join(t.TempDir(), "sales.csv")
	runs := &memRunStore{}
	notifier := &recordingNotifier{}
	job := newTestJob(src, path, WithRunStore(runs), WithNotifier(notifier))

	run, err := job.Run(context.Background(), domain.SalesQuery{ContractAddress: "0xabc"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFetchFailure)

	assert.Equal(t, domain.RunStatusFailed, run.Status)
	assert.NotEmpty(t, run.Error)
	assert.Equal(t, 0, run.Exported)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no output file after a fetch failure")

	require.Len(t, runs.finished, 1)
	assert.Equal(t, domain.RunStatusFailed, runs.finished[0].Status)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, EventExportFailed, notifier.sent[0].event)
}

func TestSalesJob_HoldsLockForRun(t *testing.T) {
	src := &scriptedSource{responses: []scriptedResponse{
		{page: domain.SalesPage{}},
	}}
	locks := &memLocks{}
	path := filepath.Join(t.TempDir(), "sales.csv")
	job := newTestJob(src, path, WithLock(locks, time.Minute))

	q := domain.SalesQuery{ContractAddress: "0xABC", FromBlock: 1, ToBlock: 9}
	_, err := job.Run(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, []string{"0xabc:1-9"}, locks.acquired)
	assert.Equal(t, locks.acquired, locks.released)
}

func TestSalesJob_LockHeld(t *testing.T) {
	src := &scriptedSource{}
	q := domain.SalesQuery{ContractAddress: "0xabc", FromBlock: 1, ToBlock: 9}
	locks := &memLocks{held: map[string]bool{LockKey(q): true}}
	path := filepath.Join(t.TempDir(), "sales.csv")
	job := newTestJob(src, path, WithLock(locks, time.Minute))

	_, err := job.Run(context.Background(), q)
	assert.ErrorIs(t, err, domain.ErrLockHeld)
	assert.Equal(t, 0, src.calls())
}

func TestRunSummary(t *testing.T) {
	msg := RunSummary(domain.SaleRun{
		ContractAddress: "0xabc",
		FromBlock:       1,
		ToBlock:         2,
		Pages:           3,
		Fetched:         10,
		Exported:        9,
		Skipped:         1,
		Error:           "boom",
	})
	assert.Contains(t, msg, "contract: 0xabc")
	assert.Contains(t, msg, "blocks: 1-2")
	assert.Contains(t, msg, "pages: 3, fetched: 10, exported: 9, skipped: 1")
	assert.Contains(t, msg, "error: boom")
}

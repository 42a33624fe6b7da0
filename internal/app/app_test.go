package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftsales/internal/config"
)

const salesBody = `{"nftSales":[{
	"marketplace": "seaport",
	"tokenId": "7",
	"quantity": "1",
	"buyerAddress": "0x2222222222222222222222222222222222222222",
	"sellerAddress": "0x1111111111111111111111111111111111111111",
	"taker": "BUYER",
	"sellerFee": {"amount": "2000000000000000000", "tokenAddress": "0x0000000000000000000000000000000000000000"},
	"protocolFee": {"amount": "5", "tokenAddress": "0x00000000000000000000000000000000000000aa"},
	"royaltyFee": {"amount": "100000000000000000", "tokenAddress": "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
	"blockNumber": 15000001,
	"transactionHash": "0xabc"
}]}`

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Alchemy.BaseURL = baseURL
	cfg.Alchemy.APIKey = "key"
	cfg.Alchemy.RetryDelay.Duration = time.Millisecond
	cfg.Job.ContractAddress = "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"
	cfg.Job.StartBlock = 15000000
	cfg.Job.EndBlock = 15000100
	cfg.Output.Path = filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, cfg.Validate())
	return &cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExportModeWritesCSV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/key/getNFTSales", r.URL.Path)
		_, _ = io.WriteString(w, salesBody)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	a := New(cfg, discardLogger())
	defer a.Close()

	require.NoError(t, a.Run(context.Background(), ModeExport))

	data, err := os.ReadFile(cfg.Output.Path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "transaction_hash,block_number,asset_id,marketplace,seller,buyer,maker,taker,seller_fee,protocol_fee,royalty_fee,quantity", lines[0])
	assert.Equal(t,
		"0xabc,15000001,7,seaport,0x1111111111111111111111111111111111111111,0x2222222222222222222222222222222222222222,"+
			"0x1111111111111111111111111111111111111111,0x2222222222222222222222222222222222222222,2,0,0.1,1",
		lines[1])
}

func TestExportModeFetchFailureWritesNothing(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	a := New(cfg, discardLogger())
	defer a.Close()

	err := a.Run(context.Background(), ModeExport)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	_, statErr := os.Stat(cfg.Output.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCheckModeWithoutBackends(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	a := New(cfg, discardLogger())
	defer a.Close()

	require.NoError(t, a.Run(context.Background(), ModeCheck))
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	a := New(cfg, discardLogger())
	defer a.Close()

	err := a.Run(context.Background(), "trade")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}

package alchemy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

const testContract = "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"

func TestClient_FetchSalesPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/nft/v2/test-key/getNFTSales", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		q := r.URL.Query()
		assert.Equal(t, "100", q.Get("fromBlock"))
		assert.Equal(t, "200", q.Get("toBlock"))
		assert.Equal(t, "asc", q.Get("order"))
		assert.Equal(t, testContract, q.Get("contractAddress"))
		assert.Equal(t, "cursor-1", q.Get("pageKey"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"nftSales": [
				{"transactionHash": "0xabc", "blockNumber": 150, "tokenId": "7"},
				42
			],
			"pageKey": "cursor-2"
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/nft/v2", "test-key", time.Second)
	page, err := client.FetchSalesPage(context.Background(), domain.SalesQuery{
		ContractAddress: testContract,
		FromBlock:       100,
		ToBlock:         200,
		PageKey:         "cursor-1",
	})
	require.NoError(t, err)

	require.Len(t, page.Sales, 2)
	assert.Equal(t, `"0xabc"`, string(page.Sales[0]["transactionHash"]))
	assert.Empty(t, page.Sales[1], "non-object entries decode to an empty sale")
	assert.Equal(t, "cursor-2", page.PageKey)
}

func TestClient_FetchSalesPage_FirstPageOmitsPageKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := r.URL.Query()["pageKey"]
		assert.False(t, ok, "first page must not send a pageKey")
		w.Write([]byte(`{"nftSales": []}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", time.Second)
	page, err := client.FetchSalesPage(context.Background(), domain.SalesQuery{ContractAddress: testContract})
	require.NoError(t, err)

	assert.Empty(t, page.Sales)
	assert.Empty(t, page.PageKey, "absent pageKey means the cursor is exhausted")
}

func TestClient_FetchSalesPage_MissingSales(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": "something went wrong"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", time.Second)
	_, err := client.FetchSalesPage(context.Background(), domain.SalesQuery{ContractAddress: testContract})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMissingField)
}

func TestClient_FetchSalesPage_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "k", time.Second)
	_, err := client.FetchSalesPage(context.Background(), domain.SalesQuery{ContractAddress: testContract})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode nft sales")
}

func TestClient_FetchSalesPage_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, domain.ErrRateLimited},
		{"unauthorized", http.StatusUnauthorized, domain.ErrUnauthorized},
		{"forbidden", http.StatusForbidden, domain.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, "k", time.Second)
			_, err := client.FetchSalesPage(context.Background(), domain.SalesQuery{ContractAddress: testContract})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_ErrorsDoNotLeakAPIKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("invalid key secret-key-123"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "secret-key-123", time.Second)
	_, err := client.FetchSalesPage(context.Background(), domain.SalesQuery{ContractAddress: testContract})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 500")
	assert.NotContains(t, err.Error(), "secret-key-123")

	// Connection failures embed the request URL.
	server.Close()
	_, err = client.FetchSalesPage(context.Background(), domain.SalesQuery{ContractAddress: testContract})
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-key-123")
}

// Package alchemy is an HTTP client for the Alchemy NFT API, used to page
// through historical marketplace sales of a single NFT contract.
package alchemy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// DefaultBaseURL is the Ethereum mainnet NFT API v2 root.
const DefaultBaseURL = "https://eth-mainnet.g.alchemy.com/nft/v2"

// Client queries the getNFTSales endpoint. The API key is part of the request
// path, so it is scrubbed from any error the client returns.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new Alchemy NFT API client. An empty baseURL selects
// DefaultBaseURL and a non-positive timeout falls back to 30 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// salesResponse is the getNFTSales response envelope. Pointers distinguish an
// absent field from an empty one.
type salesResponse struct {
	NftSales *[]json.RawMessage `json:"nftSales"`
	PageKey  *string            `json:"pageKey"`
}

// FetchSalesPage requests one page of sales in ascending block order. The
// returned page has an empty PageKey when the upstream signals no more pages.
func (c *Client) FetchSalesPage(ctx context.Context, q domain.SalesQuery) (domain.SalesPage, error) {
	endpoint, err := c.salesURL(q)
	if err != nil {
		return domain.SalesPage{}, fmt.Errorf("alchemy: build url: %w", err)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return domain.SalesPage{}, fmt.Errorf("alchemy: get nft sales: %w", err)
	}

	var resp salesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.SalesPage{}, fmt.Errorf("alchemy: decode nft sales: %w", err)
	}
	if resp.NftSales == nil {
		return domain.SalesPage{}, fmt.Errorf("alchemy: decode nft sales: nftSales: %w", domain.ErrMissingField)
	}

	page := domain.SalesPage{
		Sales: make([]domain.RawSale, 0, len(*resp.NftSales)),
	}
	for _, entry := range *resp.NftSales {
		// An entry that is not a JSON object is kept as an empty sale; the
		// normalizer skips it for lacking every required field.
		var sale domain.RawSale
		if err := json.Unmarshal(entry, &sale); err != nil {
			sale = domain.RawSale{}
		}
		page.Sales = append(page.Sales, sale)
	}
	if resp.PageKey != nil {
		page.PageKey = *resp.PageKey
	}

	return page, nil
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func (c *Client) salesURL(q domain.SalesQuery) (string, error) {
	base, err := url.JoinPath(c.baseURL, c.apiKey, "getNFTSales")
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("fromBlock", strconv.FormatUint(q.FromBlock, 10))
	params.Set("toBlock", strconv.FormatUint(q.ToBlock, 10))
	params.Set("order", "asc")
	params.Set("contractAddress", q.ContractAddress)
	if q.PageKey != "" {
		params.Set("pageKey", q.PageKey)
	}

	return base + "?" + params.Encode(), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %s", c.scrub(err.Error()))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = c.scrub(urlErr.URL)
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("HTTP %d: %w", resp.StatusCode, domain.ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, c.scrub(string(body)))
	}

	return body, nil
}

// scrub removes the API key from s.
func (c *Client) scrub(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, "***")
}

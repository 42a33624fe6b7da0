package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// SaleColumns is the header row of the exported sales table, in column order.
var SaleColumns = []string{
	"transaction_hash",
	"block_number",
	"asset_id",
	"marketplace",
	"seller",
	"buyer",
	"maker",
	"taker",
	"seller_fee",
	"protocol_fee",
	"royalty_fee",
	"quantity",
}

// SaleRecord is one normalized NFT sale. Fees are denominated in ETH.
type SaleRecord struct {
	TransactionHash string
	BlockNumber     int64
	AssetID         string
	Marketplace     string
	Seller          string
	Buyer           string
	Maker           string
	Taker           string
	SellerFee       float64
	ProtocolFee     float64
	RoyaltyFee      float64
	Quantity        decimal.Decimal
}

// RawSale is a single entry of the upstream nftSales array. Fields are kept
// undecoded so a malformed field only affects its own extraction.
type RawSale map[string]json.RawMessage

// SalesQuery selects the sales of one contract over an inclusive block range.
// PageKey is empty for the first page.
type SalesQuery struct {
	ContractAddress string
	FromBlock       uint64
	ToBlock         uint64
	PageKey         string
}

// SalesPage is one page of raw sales. An empty PageKey means there are no
// further pages.
type SalesPage struct {
	Sales   []RawSale
	PageKey string
}

// RunStatus is the terminal state of an export run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// SaleRun summarises a single export run.
type SaleRun struct {
	ID              string
	ContractAddress string
	FromBlock       uint64
	ToBlock         uint64
	Pages           int
	Fetched         int
	Exported        int
	Skipped         int
	Status          RunStatus
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// TakerBuyer is the upstream taker marker meaning the buyer accepted the order.
const TakerBuyer = "BUYER"

// feeDecimals is the number of decimals of every allow-listed fee currency.
const feeDecimals = 18

// FeeCurrencies are the only currencies whose fee amounts are reported. Fees
// paid in any other token normalize to zero.
var FeeCurrencies = map[common.Address]string{
	common.HexToAddress("0x0000000000000000000000000000000000000000"): "ETH",
	common.HexToAddress("0xC02aaa39b223FE8D0A0e5C4F27eAD9083C756Cc2"): "WETH",
	common.HexToAddress("0x0000000000A39bb272e79075ade125fd351887Ac"): "Blur Pool",
}

// Result is the outcome of normalizing one raw sale: either a record, or a
// non-empty Skipped reason.
type Result struct {
	Record  domain.SaleRecord
	Skipped string
}

// OK reports whether the sale produced a record.
func (r Result) OK() bool {
	return r.Skipped == ""
}

// Normalize converts one raw sale into a SaleRecord. A sale missing any
// required field, or carrying one of the wrong shape, is skipped with the
// failing field as the reason. Fees never cause a skip.
func Normalize(raw domain.RawSale) Result {
	fr := fieldReader{raw: raw}

	rec := domain.SaleRecord{
		TransactionHash: fr.str("transactionHash"),
		BlockNumber:     fr.blockNumber("blockNumber"),
		AssetID:         fr.text("tokenId"),
		Marketplace:     fr.str("marketplace"),
		Seller:          fr.str("sellerAddress"),
		Buyer:           fr.str("buyerAddress"),
		Quantity:        fr.decimal("quantity"),
	}
	taker := fr.str("taker")

	if fr.err != nil {
		return Result{Skipped: fr.err.Error()}
	}

	if taker == TakerBuyer {
		rec.Taker, rec.Maker = rec.Buyer, rec.Seller
	} else {
		rec.Taker, rec.Maker = rec.Seller, rec.Buyer
	}

	rec.SellerFee = ClassifyFee(raw["sellerFee"])
	rec.ProtocolFee = ClassifyFee(raw["protocolFee"])
	rec.RoyaltyFee = ClassifyFee(raw["royaltyFee"])

	return Result{Record: rec}
}

// NormalizeAll normalizes sales in order, returning the records and the
// number of skipped sales.
func NormalizeAll(sales []domain.RawSale) ([]domain.SaleRecord, int) {
	records := make([]domain.SaleRecord, 0, len(sales))
	skipped := 0
	for _, raw := range sales {
		res := Normalize(raw)
		if !res.OK() {
			skipped++
			continue
		}
		records = append(records, res.Record)
	}
	return records, skipped
}

// ClassifyFee converts a fee object {"tokenAddress", "amount"} into an ETH
// denominated amount. It returns 0 when the object is absent or malformed,
// or when the currency is not in FeeCurrencies.
func ClassifyFee(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var fee struct {
		TokenAddress string          `json:"tokenAddress"`
		Amount       json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(raw, &fee); err != nil {
		return 0
	}
	if !IsFeeCurrency(fee.TokenAddress) {
		return 0
	}

	amount, err := parseDecimal(fee.Amount)
	if err != nil {
		return 0
	}
	return amount.Shift(-feeDecimals).InexactFloat64()
}

// IsFeeCurrency reports whether addr is a 0x-prefixed hex address in
// FeeCurrencies, ignoring case.
func IsFeeCurrency(addr string) bool {
	if len(addr) < 2 || addr[0] != '0' || (addr[1] != 'x' && addr[1] != 'X') {
		return false
	}
	if !common.IsHexAddress(addr) {
		return false
	}
	_, ok := FeeCurrencies[common.HexToAddress(addr)]
	return ok
}

// fieldReader extracts typed fields from a raw sale, keeping the first
// failure.
type fieldReader struct {
	raw domain.RawSale
	err error
}

func (r *fieldReader) lookup(key string) (json.RawMessage, bool) {
	if r.err != nil {
		return nil, false
	}
	b, ok := r.raw[key]
	if !ok || len(b) == 0 || string(b) == "null" {
		r.err = fmt.Errorf("%s: %w", key, domain.ErrMissingField)
		return nil, false
	}
	return b, true
}

func (r *fieldReader) fail(key string, err error) {
	r.err = fmt.Errorf("%s: %w", key, err)
}

// str reads a JSON string.
func (r *fieldReader) str(key string) string {
	b, ok := r.lookup(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		r.fail(key, err)
		return ""
	}
	return s
}

// text reads a JSON string or number as text.
func (r *fieldReader) text(key string) string {
	b, ok := r.lookup(key)
	if !ok {
		return ""
	}
	s, err := textValue(b)
	if err != nil {
		r.fail(key, err)
		return ""
	}
	return s
}

// blockNumber reads a JSON number, a decimal string or a 0x-prefixed hex
// string.
func (r *fieldReader) blockNumber(key string) int64 {
	s := r.text(key)
	if r.err != nil {
		return 0
	}

	var (
		n   int64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err = strconv.ParseInt(s[2:], 16, 64)
	} else {
		n, err = strconv.ParseInt(s, 10, 64)
	}
	if err != nil {
		r.fail(key, err)
		return 0
	}
	return n
}

func (r *fieldReader) decimal(key string) decimal.Decimal {
	b, ok := r.lookup(key)
	if !ok {
		return decimal.Zero
	}
	d, err := parseDecimal(b)
	if err != nil {
		r.fail(key, err)
		return decimal.Zero
	}
	return d
}

// textValue returns a JSON string's contents or a JSON number's literal.
func textValue(b json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func parseDecimal(b json.RawMessage) (decimal.Decimal, error) {
	if len(b) == 0 || string(b) == "null" {
		return decimal.Zero, domain.ErrMissingField
	}
	s, err := textValue(b)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(strings.TrimSpace(s))
}

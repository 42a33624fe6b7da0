package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// SalesToCSV renders sales as CSV bytes with a domain.SaleColumns header row.
func SalesToCSV(sales []domain.SaleRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(domain.SaleColumns); err != nil {
		return nil, fmt.Errorf("writing CSV header: %w", err)
	}

	for _, s := range sales {
		row := []string{
			s.TransactionHash,
			strconv.FormatInt(s.BlockNumber, 10),
			s.AssetID,
			s.Marketplace,
			s.Seller,
			s.Buyer,
			s.Maker,
			s.Taker,
			formatFee(s.SellerFee),
			formatFee(s.ProtocolFee),
			formatFee(s.RoyaltyFee),
			s.Quantity.String(),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing CSV writer: %w", err)
	}

	return buf.Bytes(), nil
}

func formatFee(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

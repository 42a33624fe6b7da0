package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nftsales/internal/domain"
)

// insertChunkSize bounds the number of statements queued in one pgx batch.
const insertChunkSize = 1000

// SaleStore implements domain.SaleStore using PostgreSQL.
type SaleStore struct {
	pool *pgxpool.Pool
}

// NewSaleStore creates a new SaleStore backed by the given connection pool.
func NewSaleStore(pool *pgxpool.Pool) *SaleStore {
	return &SaleStore{pool: pool}
}

// InsertBatch inserts sales for a run, preserving their order in row_idx.
// Rows already stored for the same run and index are skipped, so a retried
// insert is harmless. It returns the number of rows inserted.
func (s *SaleStore) InsertBatch(ctx context.Context, runID string, sales []domain.SaleRecord) (int64, error) {
	var inserted int64
	for start := 0; start < len(sales); start += insertChunkSize {
		end := min(start+insertChunkSize, len(sales))
		n, err := s.insertChunk(ctx, runID, start, sales[start:end])
		inserted += n
		if err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

func (s *SaleStore) insertChunk(ctx context.Context, runID string, offset int, sales []domain.SaleRecord) (int64, error) {
	const query = `
		INSERT INTO nft_sales (
			run_id, row_idx, transaction_hash, block_number, asset_id,
			marketplace, seller, buyer, maker, taker,
			seller_fee, protocol_fee, royalty_fee, quantity
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14::numeric
		) ON CONFLICT (run_id, row_idx) DO NOTHING`

	batch := &pgx.Batch{}
	for i, r := range sales {
		batch.Queue(query,
			runID, offset+i, r.TransactionHash, r.BlockNumber, r.AssetID,
			r.Marketplace, r.Seller, r.Buyer, r.Maker, r.Taker,
			r.SellerFee, r.ProtocolFee, r.RoyaltyFee, r.Quantity.String(),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var inserted int64
	for i := range sales {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("postgres: insert sale batch item %d: %w", offset+i, err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// CountByRun returns the number of sales stored for a run.
func (s *SaleStore) CountByRun(ctx context.Context, runID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM nft_sales WHERE run_id = $1", runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count sales for run %s: %w", runID, err)
	}
	return n, nil
}

// ListByRun returns the sales stored for a run in export order.
func (s *SaleStore) ListByRun(ctx context.Context, runID string) ([]domain.SaleRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT transaction_hash, block_number, asset_id, marketplace,
			seller, buyer, maker, taker,
			seller_fee, protocol_fee, royalty_fee, quantity::text
		FROM nft_sales WHERE run_id = $1 ORDER BY row_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list sales for run %s: %w", runID, err)
	}
	defer rows.Close()

	var sales []domain.SaleRecord
	for rows.Next() {
		var (
			r   domain.SaleRecord
			qty string
		)
		if err := rows.Scan(
			&r.TransactionHash, &r.BlockNumber, &r.AssetID, &r.Marketplace,
			&r.Seller, &r.Buyer, &r.Maker, &r.Taker,
			&r.SellerFee, &r.ProtocolFee, &r.RoyaltyFee, &qty,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan sale: %w", err)
		}
		if err := r.Quantity.UnmarshalText([]byte(qty)); err != nil {
			return nil, fmt.Errorf("postgres: parse quantity %q: %w", qty, err)
		}
		sales = append(sales, r)
	}
	return sales, rows.Err()
}

// Compile-time interface check.
var _ domain.SaleStore = (*SaleStore)(nil)

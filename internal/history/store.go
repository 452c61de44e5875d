// Package history keeps a price snapshot for every record a search returns,
// so price and stock changes can be looked up later.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

var ErrDisabled = errors.New("price history is disabled")

const schema = `
CREATE TABLE IF NOT EXISTS price_snapshots (
	id             UUID PRIMARY KEY,
	search_id      UUID NOT NULL,
	brand          TEXT NOT NULL,
	query          TEXT NOT NULL,
	code           TEXT,
	cas            TEXT NOT NULL DEFAULT '',
	name           TEXT NOT NULL DEFAULT '',
	pack           TEXT NOT NULL DEFAULT '',
	price          BIGINT,
	discount_price BIGINT,
	stock_label    TEXT NOT NULL DEFAULT '',
	labels         JSONB NOT NULL DEFAULT '[]',
	captured_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_price_snapshots_brand_code
	ON price_snapshots (brand, code, captured_at DESC);
`

// Snapshot is one stored record.
type Snapshot struct {
	ID            uuid.UUID `json:"id"`
	SearchID      uuid.UUID `json:"search_id"`
	Brand         string    `json:"brand"`
	Query         string    `json:"q"`
	Code          *string   `json:"code"`
	CAS           string    `json:"cas,omitempty"`
	Name          string    `json:"name,omitempty"`
	Pack          string    `json:"pack,omitempty"`
	Price         *int64    `json:"price"`
	DiscountPrice *int64    `json:"discount_price"`
	StockLabel    string    `json:"stock_label"`
	Labels        []string  `json:"labels"`
	CapturedAt    time.Time `json:"captured_at"`
}

type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Record stores every record of one search in a single transaction.
func (s *Store) Record(ctx context.Context, searchID uuid.UUID, query string, records []supplier.Record) error {
	if len(records) == 0 {
		return nil
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			labels, err := json.Marshal(r.Labels)
			if err != nil {
				return fmt.Errorf("failed to encode labels: %w", err)
			}

			batch.Queue(`
				INSERT INTO price_snapshots
					(id, search_id, brand, query, code, cas, name, pack, price, discount_price, stock_label, labels)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				uuid.New(), searchID, r.Brand, query, r.Code, r.CAS, r.Name, r.Pack,
				r.Price, r.DiscountPrice, r.StockLabel, labels,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert snapshots: %w", err)
		}
		return nil
	})
}

// List returns the newest snapshots for brand, optionally narrowed to code.
func (s *Store) List(ctx context.Context, brand, code string, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.pool.Query(ctx, `
		SELECT id, search_id, brand, query, code, cas, name, pack, price, discount_price,
		       stock_label, labels, captured_at
		FROM price_snapshots
		WHERE ($1::text = '' OR lower(brand) = lower($1::text))
		  AND ($2::text = '' OR code = $2::text)
		ORDER BY captured_at DESC
		LIMIT $3`, brand, code, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var (
			snap   Snapshot
			labels []byte
		)
		if err := rows.Scan(
			&snap.ID, &snap.SearchID, &snap.Brand, &snap.Query, &snap.Code, &snap.CAS,
			&snap.Name, &snap.Pack, &snap.Price, &snap.DiscountPrice, &snap.StockLabel,
			&labels, &snap.CapturedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if err := json.Unmarshal(labels, &snap.Labels); err != nil {
			return nil, fmt.Errorf("failed to decode labels: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}

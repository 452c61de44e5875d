// Package supplier holds the domain model shared by every vendor scraper:
// search queries, normalized product records, the error taxonomy and the
// table extraction strategy used to turn vendor HTML into rows.
package supplier

import (
	"context"
	"errors"

	"github.com/maltedev/chem-supplier-scraper/internal/textnorm"
)

var (
	ErrInputNotFound     = errors.New("search input not found")
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrNoResults         = errors.New("no results found")
	ErrLabelFetchFailed  = errors.New("label fetch failed")
	ErrUnknownSupplier   = errors.New("unknown supplier")
)

// Query is a single search against one vendor.
type Query struct {
	Text          string `json:"q"`
	FirstOnly     bool   `json:"first_only"`
	IncludeLabels bool   `json:"include_labels"`
}

// Record is one normalized product row. DiscountPrice is always derived from
// Price by NewRecord and never set independently.
type Record struct {
	Brand         string            `json:"brand"`
	Code          *string           `json:"code"`
	CAS           string            `json:"cas,omitempty"`
	Name          string            `json:"name,omitempty"`
	Pack          string            `json:"pack,omitempty"`
	Price         *int64            `json:"price"`
	DiscountPrice *int64            `json:"discount_price"`
	StockLabel    string            `json:"stock_label"`
	Stock         map[string]string `json:"stock,omitempty"`
	Labels        []string          `json:"labels"`
	LabelsError   string            `json:"labels_error,omitempty"`
}

// NewRecord builds a record for brand with the discount derived from price.
func NewRecord(brand string, code string, price *int64) Record {
	r := Record{
		Brand:  brand,
		Labels: []string{},
	}
	if code != "" {
		r.Code = &code
	}
	r.SetPrice(price)
	return r
}

// SetPrice replaces the price and recomputes the discount.
func (r *Record) SetPrice(price *int64) {
	r.Price = price
	r.DiscountPrice = textnorm.DiscountPrice(price)
}

// Result is the envelope returned for one search call.
type Result struct {
	SearchID string   `json:"search_id,omitempty"`
	Query    string   `json:"q"`
	Brand    string   `json:"brand"`
	Items    []Record `json:"items"`
	TookMS   int64    `json:"took_ms"`
	Cached   bool     `json:"cached"`
}

// Searcher is implemented by every vendor pipeline.
type Searcher interface {
	Brand() string
	Search(ctx context.Context, q Query) ([]Record, error)
}

// Limiter paces requests to one vendor and learns from their outcome.
type Limiter interface {
	Wait(ctx context.Context) error
	RecordSuccess()
	RecordError()
}

// NoLimit is a Limiter that never waits.
type NoLimit struct{}

func (NoLimit) Wait(context.Context) error { return nil }
func (NoLimit) RecordSuccess()             {}
func (NoLimit) RecordError()               {}

// Pinger is implemented by searchers that can check vendor reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

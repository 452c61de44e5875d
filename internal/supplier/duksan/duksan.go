// Package duksan scrapes price and per-warehouse stock from the Duksan
// product search. The search page is plain server-rendered HTML, so no
// browser is involved.
package duksan

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html/charset"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
	"github.com/maltedev/chem-supplier-scraper/internal/textnorm"
)

const Brand = "Duksan"

type Config struct {
	BaseURL    string
	SearchPath string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryWait  time.Duration
	Layout     supplier.Layout
}

func DefaultConfig() Config {
	return Config{
		BaseURL:    "https://duksan.kr",
		SearchPath: "/products/prd_search.php",
		UserAgent:  "Mozilla/5.0",
		Timeout:    15 * time.Second,
		MaxRetries: 3,
		RetryWait:  time.Second,
		Layout:     DefaultLayout(),
	}
}

// DefaultLayout reads price and stock from the trailing cells of product rows,
// which are the rows carrying a numeric id.
func DefaultLayout() supplier.Layout {
	return supplier.Layout{
		RowSelector: "tr[id]",
		MinCells:    3,
		Columns: map[supplier.Field]int{
			supplier.FieldPrice: -3,
			supplier.FieldStock: -2,
		},
		RowFilter: numericID,
	}
}

func (c Config) SearchURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.SearchPath
}

type Scraper struct {
	cfg     Config
	client  *resty.Client
	limiter supplier.Limiter
	logger  *slog.Logger
}

func New(cfg Config, limiter supplier.Limiter, logger *slog.Logger) *Scraper {
	if limiter == nil {
		limiter = supplier.NoLimit{}
	}
	if cfg.Layout.RowSelector == "" {
		cfg.Layout = DefaultLayout()
	}

	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(max(cfg.MaxRetries-1, 0)).
		SetRetryWaitTime(cfg.RetryWait)

	return &Scraper{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		logger:  logger.With("component", "duksan"),
	}
}

func (s *Scraper) Brand() string {
	return Brand
}

func (s *Scraper) Ping(ctx context.Context) error {
	return supplier.PingURL(ctx, s.client, s.cfg.BaseURL)
}

// Search returns one record per product row. The vendor table is keyed by
// the searched code, so the code of every record is the query text. Duksan
// has no label popup; IncludeLabels is ignored.
func (s *Scraper) Search(ctx context.Context, q supplier.Query) ([]supplier.Record, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	doc, err := s.fetch(ctx, q.Text)
	if err != nil {
		s.limiter.RecordError()
		return nil, err
	}
	s.limiter.RecordSuccess()

	rows := s.cfg.Layout.Extract(doc)
	if len(rows) == 0 {
		s.logger.Info("no results", "q", q.Text)
		return []supplier.Record{}, nil
	}

	if q.FirstOnly {
		rows = rows[:1]
	}

	records := make([]supplier.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, toRecord(q.Text, row))
	}

	s.logger.Info("search finished", "q", q.Text, "records", len(records))
	return records, nil
}

func (s *Scraper) fetch(ctx context.Context, keyword string) (*goquery.Document, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("keyword", keyword).
		SetDoNotParseResponse(true).
		Get(s.cfg.SearchURL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search page: %w", err)
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search page answered %d", res.StatusCode())
	}

	reader, err := charset.NewReader(body, res.Header().Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode search page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

func toRecord(code string, row supplier.Row) supplier.Record {
	rec := supplier.NewRecord(Brand, code, textnorm.ExtractIntPtr(textnorm.StripSpace(row.Price)))

	ansan, jincheon := splitStock(row.Stock)
	rec.Stock = map[string]string{
		"ansan":    ansan,
		"jincheon": jincheon,
	}
	rec.StockLabel = fmt.Sprintf("%s(안산재고) | %s(진천재고)", ansan, jincheon)
	return rec
}

// splitStock reads "<ansan>|<jincheon>" with any whitespace removed. Missing
// parts count as "0".
func splitStock(raw string) (string, string) {
	parts := strings.Split(textnorm.StripSpace(raw), "|")

	get := func(i int) string {
		if i < len(parts) && parts[i] != "" {
			return parts[i]
		}
		return "0"
	}
	return get(0), get(1)
}

func numericID(tr *goquery.Selection) bool {
	id, ok := tr.Attr("id")
	if !ok || id == "" {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var (
	_ supplier.Searcher = (*Scraper)(nil)
	_ supplier.Pinger   = (*Scraper)(nil)
)

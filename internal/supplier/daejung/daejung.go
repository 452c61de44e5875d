// Package daejung scrapes product rows and regulatory labels from the
// Daejung Chemicals catalogue. The search form is rendered by script, so the
// pipeline drives a real browser.
package daejung

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/chem-supplier-scraper/internal/browser"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

const Brand = "Daejung"

var ErrBrowserDisconnected = errors.New("browser is not connected")

type Config struct {
	BaseURL          string
	SearchPath       string
	PopupPath        string
	ResultsSelector  string
	LabelWait        string
	LabelSelector    string
	LabelTimeout     time.Duration
	InputSelectors   []string
	SubmitSelectors  []string
	OverlaySelectors []string
	Keywords         []string
	Layout           supplier.Layout
}

func DefaultConfig() Config {
	return Config{
		BaseURL:         "https://www.daejungchem.co.kr",
		SearchPath:      "/02_product/search/",
		PopupPath:       "/02_product/popup/",
		ResultsSelector: "table",
		LabelWait:       "div.control_wrap2",
		LabelSelector:   "div.control_wrap2 p.pp",
		LabelTimeout:    25 * time.Second,
		InputSelectors: []string{
			"input[name='search_text']",
			"#search_text",
			"input[name='keyword']",
			"form[action*=search] input[type=text]",
			"input[type=search]",
		},
		SubmitSelectors: []string{
			"button[type=submit]",
			"#btn_search",
			"form[action*=search] button",
		},
		OverlaySelectors: []string{
			".layer_popup .btn_close",
			"a:has-text('오늘 하루')",
			"button:has-text('닫기')",
		},
		Keywords: supplier.DefaultLabelKeywords,
		Layout:   DefaultLayout(),
	}
}

// DefaultLayout is the positional layout of the product search table.
func DefaultLayout() supplier.Layout {
	return supplier.Layout{
		RowSelector:    "table tr",
		HeaderKeywords: []string{"CAS", "CODE", "NAME"},
		MinCells:       6,
		Columns: map[supplier.Field]int{
			supplier.FieldCAS:   1,
			supplier.FieldCode:  2,
			supplier.FieldName:  3,
			supplier.FieldPack:  5,
			supplier.FieldPrice: 6,
			supplier.FieldStock: 7,
		},
		PopupSelector: "a[onclick], a[href]",
	}
}

func (c Config) SearchURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.SearchPath
}

func (c Config) PopupURL(idx string) string {
	return strings.TrimRight(c.BaseURL, "/") + c.PopupPath + "?idx=" + idx
}

// session is the browser surface the orchestrator needs. The playwright
// implementation lives in session.go.
type session interface {
	Open(ctx context.Context, url string) error
	Submit(query string) error
	ResultsHTML(ctx context.Context) (string, error)
	PopupHTML(ctx context.Context, url string) ([]string, error)
	Close() error
}

type Scraper struct {
	cfg       Config
	open      func(ctx context.Context) (session, error)
	connected func() bool
	limiter   supplier.Limiter
	client    *resty.Client
	logger    *slog.Logger
}

func New(b *browser.Browser, cfg Config, limiter supplier.Limiter, logger *slog.Logger) *Scraper {
	s := newScraper(cfg, limiter, logger)
	s.open = func(ctx context.Context) (session, error) {
		bs, err := b.NewSession(ctx)
		if err != nil {
			return nil, err
		}
		return &pwSession{browser: b, session: bs, cfg: &s.cfg, logger: s.logger}, nil
	}
	s.connected = b.Connected
	return s
}

func newScraper(cfg Config, limiter supplier.Limiter, logger *slog.Logger) *Scraper {
	if limiter == nil {
		limiter = supplier.NoLimit{}
	}
	if cfg.Layout.RowSelector == "" {
		cfg.Layout = DefaultLayout()
	}
	if cfg.LabelTimeout <= 0 {
		cfg.LabelTimeout = 25 * time.Second
	}

	return &Scraper{
		cfg:     cfg,
		limiter: limiter,
		client:  resty.New().SetTimeout(10 * time.Second),
		logger:  logger.With("component", "daejung"),
	}
}

func (s *Scraper) Brand() string {
	return Brand
}

// Ping fails without a network round trip when the shared Chromium process
// has gone away.
func (s *Scraper) Ping(ctx context.Context) error {
	if s.connected != nil && !s.connected() {
		return ErrBrowserDisconnected
	}
	return supplier.PingURL(ctx, s.client, s.cfg.BaseURL)
}

// Search runs navigate, submit, wait, parse and the optional per-row label
// fetch. An empty table is an empty result; a failed popup only clears that
// row's labels. Once rows are parsed the records are always returned: when
// ctx ends during label fetching the remaining rows carry a label error.
func (s *Scraper) Search(ctx context.Context, q supplier.Query) ([]supplier.Record, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sess, err := s.open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			s.logger.Warn("failed to close session", "error", err)
		}
	}()

	if err := sess.Open(ctx, s.cfg.SearchURL()); err != nil {
		s.limiter.RecordError()
		return nil, fmt.Errorf("%w: %w", supplier.ErrNavigationTimeout, err)
	}

	if err := sess.Submit(q.Text); err != nil {
		s.limiter.RecordError()
		return nil, fmt.Errorf("failed to submit query: %w", err)
	}

	html, err := sess.ResultsHTML(ctx)
	if err != nil {
		s.limiter.RecordError()
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	s.limiter.RecordSuccess()

	rows, err := parseRows(html, s.cfg.Layout)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s.logger.Info("no results", "q", q.Text)
		return []supplier.Record{}, nil
	}

	records := make([]supplier.Record, 0, len(rows))
	for _, row := range rows {
		rec := toRecord(row)
		if q.IncludeLabels {
			labels, err := s.fetchLabels(ctx, sess, row)
			if err != nil {
				s.logger.Warn("label fetch failed", "code", row.Code, "error", err)
				rec.LabelsError = err.Error()
			} else {
				rec.Labels = labels
			}
		}

		records = append(records, rec)
		if q.FirstOnly {
			break
		}
	}

	s.logger.Info("search finished", "q", q.Text, "rows", len(rows), "records", len(records))
	return records, nil
}

var (
	_ supplier.Searcher = (*Scraper)(nil)
	_ supplier.Pinger   = (*Scraper)(nil)
)

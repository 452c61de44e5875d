// Package search is the entry point used by the API and the CLI. It routes a
// query to the right vendor, caches the result and collapses identical
// searches that are in flight at the same time.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/maltedev/chem-supplier-scraper/internal/cache"
	"github.com/maltedev/chem-supplier-scraper/internal/history"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

// Recorder persists and lists price snapshots.
type Recorder interface {
	Record(ctx context.Context, searchID uuid.UUID, query string, records []supplier.Record) error
	List(ctx context.Context, brand, code string, limit int) ([]history.Snapshot, error)
}

type Options struct {
	DefaultBrand  string
	Cache         cache.Cache
	TTL           time.Duration
	History       Recorder
	SearchTimeout time.Duration
}

// persistTimeout bounds the detached cache and history writes after a
// search. A search may return records after its own deadline.
const persistTimeout = 10 * time.Second

type Service struct {
	suppliers     map[string]supplier.Searcher
	defaultBrand  string
	cache         cache.Cache
	ttl           time.Duration
	history       Recorder
	searchTimeout time.Duration
	group         singleflight.Group
	logger        *slog.Logger
}

func NewService(searchers []supplier.Searcher, opts Options, logger *slog.Logger) *Service {
	s := &Service{
		suppliers:     make(map[string]supplier.Searcher, len(searchers)),
		defaultBrand:  strings.ToLower(opts.DefaultBrand),
		cache:         opts.Cache,
		ttl:           opts.TTL,
		history:       opts.History,
		searchTimeout: opts.SearchTimeout,
		logger:        logger.With("component", "search"),
	}

	for _, sr := range searchers {
		s.suppliers[strings.ToLower(sr.Brand())] = sr
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.searchTimeout <= 0 {
		s.searchTimeout = 3 * time.Minute
	}
	if s.defaultBrand == "" && len(searchers) > 0 {
		s.defaultBrand = strings.ToLower(searchers[0].Brand())
	}

	return s
}

// Brands lists the registered suppliers in lower case, sorted.
func (s *Service) Brands() []string {
	brands := make([]string, 0, len(s.suppliers))
	for b := range s.suppliers {
		brands = append(brands, b)
	}
	sort.Strings(brands)
	return brands
}

func (s *Service) DefaultBrand() string {
	return s.defaultBrand
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// Search answers q from the cache when possible. Concurrent callers with the
// same key share one vendor round trip; a caller whose ctx ends stops
// waiting without cancelling the shared search.
func (s *Service) Search(ctx context.Context, brand string, q supplier.Query) (*supplier.Result, error) {
	searcher, err := s.lookup(brand)
	if err != nil {
		return nil, err
	}

	q.Text = strings.TrimSpace(q.Text)
	key := cache.Key(searcher.Brand(), q)

	if res, err := s.cache.Get(ctx, key); err == nil {
		res.Cached = true
		return res, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("cache read failed", "key", key, "error", err)
	}

	ch := s.group.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.searchTimeout)
		defer cancel()
		return s.run(runCtx, key, searcher, q)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		res := *r.Val.(*supplier.Result)
		if r.Shared {
			s.logger.Debug("shared in-flight search", "key", key)
		}
		return &res, nil
	}
}

func (s *Service) run(ctx context.Context, key string, searcher supplier.Searcher, q supplier.Query) (*supplier.Result, error) {
	start := time.Now()

	records, err := searcher.Search(ctx, q)
	if err != nil {
		s.logger.Error("search failed", "brand", searcher.Brand(), "q", q.Text, "error", err)
		return nil, err
	}
	if records == nil {
		records = []supplier.Record{}
	}

	searchID := uuid.New()
	res := &supplier.Result{
		SearchID: searchID.String(),
		Query:    q.Text,
		Brand:    searcher.Brand(),
		Items:    records,
		TookMS:   time.Since(start).Milliseconds(),
	}

	persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := s.cache.Set(persistCtx, key, res, s.ttl); err != nil {
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}

	if s.history != nil {
		if err := s.history.Record(persistCtx, searchID, q.Text, records); err != nil {
			s.logger.Warn("failed to record history", "search_id", searchID, "error", err)
		}
	}

	s.logger.Info("search completed",
		"brand", res.Brand,
		"q", q.Text,
		"items", len(records),
		"took_ms", res.TookMS,
	)

	return res, nil
}

// History lists stored snapshots.
func (s *Service) History(ctx context.Context, brand, code string, limit int) ([]history.Snapshot, error) {
	if s.history == nil {
		return nil, history.ErrDisabled
	}
	if brand != "" {
		sr, err := s.lookup(brand)
		if err != nil {
			return nil, err
		}
		brand = sr.Brand()
	}
	return s.history.List(ctx, brand, code, limit)
}

// Ping checks every supplier that can be pinged, plus the cache and history
// backends when they are remote. A nil entry means reachable.
func (s *Service) Ping(ctx context.Context) map[string]error {
	out := make(map[string]error, len(s.suppliers)+2)
	for name, sr := range s.suppliers {
		p, ok := sr.(supplier.Pinger)
		if !ok {
			continue
		}
		out[name] = p.Ping(ctx)
	}
	if p, ok := s.cache.(supplier.Pinger); ok {
		out["cache"] = p.Ping(ctx)
	}
	if p, ok := s.history.(supplier.Pinger); ok {
		out["history"] = p.Ping(ctx)
	}
	return out
}

func (s *Service) lookup(brand string) (supplier.Searcher, error) {
	name := strings.ToLower(strings.TrimSpace(brand))
	if name == "" {
		name = s.defaultBrand
	}

	sr, ok := s.suppliers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", supplier.ErrUnknownSupplier, brand)
	}
	return sr, nil
}

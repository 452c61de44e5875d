// Package app wires configuration into a ready search service. Both the HTTP
// server and the CLI build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/chem-supplier-scraper/internal/browser"
	"github.com/maltedev/chem-supplier-scraper/internal/cache"
	"github.com/maltedev/chem-supplier-scraper/internal/config"
	"github.com/maltedev/chem-supplier-scraper/internal/history"
	"github.com/maltedev/chem-supplier-scraper/internal/ratelimit"
	"github.com/maltedev/chem-supplier-scraper/internal/search"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier/daejung"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier/duksan"
)

type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Service *search.Service

	browser *browser.Browser
	redis   *redis.Client
	db      *history.DB
	cancel  context.CancelFunc
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New starts every enabled dependency. On error anything already started is
// closed before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	bgCtx, cancel := context.WithCancel(context.Background())
	a := &App{Config: cfg, Logger: logger, cancel: cancel}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var searchers []supplier.Searcher

	if cfg.Daejung.Enabled {
		a.browser, err = browser.New(BrowserOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize browser: %w", err)
		}
		limiter := newLimiter(cfg.Scraper)
		searchers = append(searchers, daejung.New(a.browser, DaejungConfig(cfg), limiter, logger))
	}

	if cfg.Duksan.Enabled {
		searchers = append(searchers, duksan.New(DuksanConfig(cfg), newLimiter(cfg.Scraper), logger))
	}

	c, err := a.newCache(ctx, bgCtx)
	if err != nil {
		return nil, err
	}

	opts := search.Options{
		DefaultBrand:  cfg.Server.DefaultBrand,
		Cache:         c,
		TTL:           cfg.Cache.TTL,
		SearchTimeout: cfg.Server.RequestTimeout,
	}

	if cfg.Database.Enabled() {
		a.db, err = history.Open(ctx, history.Config{
			DSN:      cfg.Database.DSN(),
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		store := history.NewStore(a.db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare history schema: %w", err)
		}
		opts.History = store
		logger.Info("price history enabled")
	}

	a.Service = search.NewService(searchers, opts, logger)
	logger.Info("search service ready",
		"suppliers", a.Service.Brands(),
		"default_brand", a.Service.DefaultBrand(),
		"cache", cfg.Cache.Backend,
	)

	return a, nil
}

func (a *App) newCache(ctx, bgCtx context.Context) (cache.Cache, error) {
	cfg := a.Config.Cache

	switch strings.ToLower(cfg.Backend) {
	case "none":
		return cache.Nop{}, nil
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rc := cache.NewRedis(a.redis)
		if err := rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return rc, nil
	default:
		m := cache.NewMemory()
		go m.StartJanitor(bgCtx, max(cfg.TTL, time.Second))
		return m, nil
	}
}

// Close releases everything New started.
func (a *App) Close() error {
	var errs []error

	if a.cancel != nil {
		a.cancel()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("browser: %w", err))
		}
	}

	return errors.Join(errs...)
}

func BrowserOptions(cfg *config.Config) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Browser.Headless
	opts.NavigationTimeout = cfg.Browser.NavigationTimeout
	opts.ElementTimeout = cfg.Browser.ElementTimeout
	opts.MaxSessions = cfg.Browser.MaxSessions
	opts.MaxRetries = cfg.Scraper.MaxRetries
	opts.RetryBackoff = cfg.Scraper.RetryDelay
	opts.AcceptLanguage = cfg.Browser.AcceptLanguage
	opts.TimezoneID = cfg.Browser.TimezoneID
	opts.Locale = cfg.Browser.Locale
	opts.ProxyServer = cfg.Browser.ProxyServer
	opts.BlockedResources = cfg.Browser.BlockedResources
	if cfg.Browser.UserAgent != "" {
		opts.UserAgent = cfg.Browser.UserAgent
	}
	return opts
}

func DaejungConfig(cfg *config.Config) daejung.Config {
	dc := daejung.DefaultConfig()
	dc.BaseURL = cfg.Daejung.BaseURL
	dc.SearchPath = cfg.Daejung.SearchPath
	dc.PopupPath = cfg.Daejung.PopupPath
	dc.LabelWait = cfg.Daejung.LabelWait
	dc.LabelSelector = cfg.Daejung.LabelSelector
	dc.LabelTimeout = cfg.Daejung.LabelTimeout
	if len(cfg.Scraper.LabelKeywords) > 0 {
		dc.Keywords = cfg.Scraper.LabelKeywords
	}
	dc.OverlaySelectors = append(dc.OverlaySelectors, cfg.Scraper.OverlayButtons...)
	return dc
}

func DuksanConfig(cfg *config.Config) duksan.Config {
	dc := duksan.DefaultConfig()
	dc.BaseURL = cfg.Duksan.BaseURL
	dc.SearchPath = cfg.Duksan.SearchPath
	dc.UserAgent = cfg.Scraper.UserAgent
	dc.Timeout = cfg.Scraper.HTTPTimeout
	dc.MaxRetries = cfg.Scraper.MaxRetries
	dc.RetryWait = cfg.Scraper.RetryDelay
	return dc
}

func newLimiter(cfg config.ScraperConfig) *ratelimit.VendorLimiter {
	return ratelimit.NewVendorLimiter(cfg.RatePerSecond, cfg.RateBurst, cfg.RateLimitMin, cfg.RateLimitMax)
}

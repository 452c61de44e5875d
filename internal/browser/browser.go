package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
	"golang.org/x/sync/semaphore"
)

var ErrNoMatch = errors.New("no selector matched")

// Browser owns one playwright driver and one Chromium process for the whole
// service. Every search gets its own BrowserContext through NewSession.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options
	slots   *semaphore.Weighted
	logger  *slog.Logger
}

type Options struct {
	Headless          bool
	NavigationTimeout time.Duration
	ElementTimeout    time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	MaxSessions       int
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	AcceptLanguage    string
	TimezoneID        string
	Locale            string
	ProxyServer       string
	BlockedResources  []string
	ExtraHeaders      map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:          true,
		NavigationTimeout: 35 * time.Second,
		ElementTimeout:    25 * time.Second,
		MaxRetries:        3,
		RetryBackoff:      time.Second,
		MaxSessions:       2,
		UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:     1366,
		ViewportHeight:    900,
		AcceptLanguage:    "ko-KR,ko;q=0.9,en;q=0.8",
		TimezoneID:        "Asia/Seoul",
		Locale:            "ko-KR",
		BlockedResources:  []string{"image", "media", "font"},
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.MaxSessions < 1 {
		opts.MaxSessions = 1
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
		},
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    *opts,
		slots:   semaphore.NewWeighted(int64(opts.MaxSessions)),
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// Connected reports whether the Chromium process is still usable.
func (b *Browser) Connected() bool {
	return b.browser != nil && b.browser.IsConnected()
}

func (b *Browser) Close() error {
	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Session is an isolated browser context with one page. It must be closed to
// release its slot.
type Session struct {
	Context playwright.BrowserContext
	Page    playwright.Page

	browser *Browser
	release func()
}

// NewSession waits for a free slot and opens a fresh context with resource
// blocking installed.
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	if err := b.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire browser slot: %w", err)
	}
	release := func() { b.slots.Release(1) }

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         &b.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &b.opts.Locale,
		TimezoneId:        &b.opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
		ExtraHttpHeaders: b.headers(),
	})
	if err != nil {
		release()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := bctx.Route("**/*", b.routeHandler); err != nil {
		bctx.Close()
		release()
		return nil, fmt.Errorf("failed to install resource blocking: %w", err)
	}

	s := &Session{Context: bctx, browser: b, release: release}

	page, err := s.NewPage()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Page = page

	return s, nil
}

// NewPage opens another page in the session's context with the session's
// default timeouts.
func (s *Session) NewPage() (playwright.Page, error) {
	page, err := s.Context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(s.browser.opts.ElementTimeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(s.browser.opts.NavigationTimeout.Milliseconds()))

	return page, nil
}

func (s *Session) Close() error {
	defer s.release()

	if err := s.Context.Close(); err != nil {
		return fmt.Errorf("failed to close context: %w", err)
	}
	return nil
}

func (b *Browser) headers() map[string]string {
	h := make(map[string]string, len(b.opts.ExtraHeaders)+1)
	for k, v := range b.opts.ExtraHeaders {
		h[k] = v
	}
	if b.opts.AcceptLanguage != "" {
		h["Accept-Language"] = b.opts.AcceptLanguage
	}
	return h
}

func (b *Browser) routeHandler(route playwright.Route) {
	if b.ShouldBlock(route.Request().ResourceType()) {
		if err := route.Abort(); err != nil {
			b.logger.Debug("failed to abort request", "error", err)
		}
		return
	}
	if err := route.Continue(); err != nil {
		b.logger.Debug("failed to continue request", "error", err)
	}
}

// ShouldBlock reports whether requests of resourceType are rejected.
func (b *Browser) ShouldBlock(resourceType string) bool {
	for _, t := range b.opts.BlockedResources {
		if t == resourceType {
			return true
		}
	}
	return false
}

// NavigateWithRetry loads url until DOMContentLoaded, retrying with a linear
// backoff. No attempt outlives ctx's deadline. Only the last error is
// returned.
func (b *Browser) NavigateWithRetry(ctx context.Context, page playwright.Page, url string) error {
	attempts := b.opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return fmt.Errorf("%w (last error: %v)", err, lastErr)
			}
			return err
		}

		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(Backoff(b.opts.RetryBackoff, i)):
			}
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(AttemptTimeout(ctx, b.opts.NavigationTimeout).Milliseconds())),
		})
		if err == nil {
			return nil
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1, "url", url)
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}

// AttemptTimeout caps d by the time left before ctx's deadline.
func AttemptTimeout(ctx context.Context, d time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return d
	}
	if left := time.Until(deadline); left < d {
		if left < time.Millisecond {
			return time.Millisecond
		}
		return left
	}
	return d
}

// Backoff is the wait before retry number attempt (1-based).
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * base
}

// FirstMatch probes selectors in order and returns the first locator that
// resolves to at least one element.
func FirstMatch(page playwright.Page, selectors []string) (playwright.Locator, string, error) {
	for _, selector := range selectors {
		loc := page.Locator(selector).First()

		count, err := loc.Count()
		if err != nil || count == 0 {
			continue
		}

		return loc, selector, nil
	}

	return nil, "", fmt.Errorf("%w: tried %d selectors", ErrNoMatch, len(selectors))
}

// WaitVisible waits up to the element timeout, or ctx's deadline if sooner,
// for selector. A timeout is reported as false without an error.
func (b *Browser) WaitVisible(ctx context.Context, page playwright.Page, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	err := page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(AttemptTimeout(ctx, b.opts.ElementTimeout).Milliseconds())),
	})
	if err == nil {
		return true, nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return false, nil
	}
	return false, err
}

// DismissOverlays clicks the first visible close button of a notice layer.
// Vendor sites open "do not show today" layers over the search form.
func (b *Browser) DismissOverlays(page playwright.Page, selectors []string) bool {
	for _, selector := range selectors {
		button := page.Locator(selector).First()

		visible, err := button.IsVisible()
		if err != nil || !visible {
			continue
		}

		b.logger.Debug("dismissing overlay", "selector", selector)

		if err := button.Click(playwright.LocatorClickOptions{
			Timeout: playwright.Float(2000),
		}); err != nil {
			b.logger.Warn("failed to dismiss overlay", "selector", selector, "error", err)
			continue
		}
		return true
	}

	return false
}

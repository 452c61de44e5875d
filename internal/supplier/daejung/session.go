package daejung

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/playwright-community/playwright-go"

	"github.com/maltedev/chem-supplier-scraper/internal/browser"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

// pwSession drives one isolated browser context: the search page plus a
// second page reused for every label popup of the search.
type pwSession struct {
	browser *browser.Browser
	session *browser.Session
	popup   playwright.Page
	cfg     *Config
	logger  *slog.Logger
}

func (p *pwSession) Open(ctx context.Context, url string) error {
	if err := p.browser.NavigateWithRetry(ctx, p.session.Page, url); err != nil {
		return err
	}

	if p.browser.DismissOverlays(p.session.Page, p.cfg.OverlaySelectors) {
		p.logger.Debug("overlay dismissed", "url", url)
	}
	return nil
}

// Submit fills the first search input found and submits the form, falling
// back to Enter when no submit button can be clicked.
func (p *pwSession) Submit(query string) error {
	page := p.session.Page

	input, selector, err := browser.FirstMatch(page, p.cfg.InputSelectors)
	if err != nil {
		return fmt.Errorf("%w: %w", supplier.ErrInputNotFound, err)
	}

	if err := input.Fill(query); err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}

	for _, sel := range p.cfg.SubmitSelectors {
		button := page.Locator(sel).First()

		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}

		if err := button.Click(); err != nil {
			p.logger.Debug("submit click failed", "selector", sel, "error", err)
			continue
		}
		return nil
	}

	if err := input.Press("Enter"); err != nil {
		return fmt.Errorf("failed to submit search: %w", err)
	}
	return nil
}

// ResultsHTML waits for the results table and returns the rendered document.
// A missing table is not an error: the caller sees an empty result.
func (p *pwSession) ResultsHTML(ctx context.Context) (string, error) {
	page := p.session.Page

	if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State: playwright.LoadStateDomcontentloaded,
	}); err != nil {
		return "", fmt.Errorf("results page did not load: %w", err)
	}

	found, err := p.browser.WaitVisible(ctx, page, p.cfg.ResultsSelector)
	if err != nil {
		return "", err
	}
	if !found {
		p.logger.Info("results table not found", "selector", p.cfg.ResultsSelector)
	}

	return page.Content()
}

// PopupHTML loads a label popup and returns the HTML of the main document and
// of every frame it contains.
func (p *pwSession) PopupHTML(ctx context.Context, url string) ([]string, error) {
	if p.popup == nil {
		page, err := p.session.NewPage()
		if err != nil {
			return nil, err
		}
		p.popup = page
	}

	if err := p.browser.NavigateWithRetry(ctx, p.popup, url); err != nil {
		return nil, err
	}

	if found, err := p.browser.WaitVisible(ctx, p.popup, p.cfg.LabelWait); err != nil || !found {
		p.logger.Debug("label container not found", "url", url, "error", err)
	}

	var docs []string
	for _, frame := range p.popup.Frames() {
		html, err := frame.Content()
		if err != nil {
			p.logger.Debug("failed to read frame", "frame", frame.URL(), "error", err)
			continue
		}
		docs = append(docs, html)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no readable document at %s", url)
	}
	return docs, nil
}

func (p *pwSession) Close() error {
	return p.session.Close()
}

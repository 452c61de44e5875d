package daejung

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

// fetchLabels opens the row's popup and returns its regulatory labels. A row
// without a popup reference has no labels and no error. Each popup gets at
// most LabelTimeout of the search's remaining time.
func (s *Scraper) fetchLabels(ctx context.Context, sess session, row supplier.Row) ([]string, error) {
	idx, ok := supplier.PopupID(row.PopupRef)
	if !ok {
		s.logger.Debug("no popup id", "code", row.Code, "ref", row.PopupRef)
		return []string{}, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: idx %s: %w", supplier.ErrLabelFetchFailed, idx, err)
	}

	popupCtx, cancel := context.WithTimeout(ctx, s.cfg.LabelTimeout)
	defer cancel()

	docs, err := sess.PopupHTML(popupCtx, s.cfg.PopupURL(idx))
	if err != nil {
		return nil, fmt.Errorf("%w: idx %s: %w", supplier.ErrLabelFetchFailed, idx, err)
	}

	return extractLabels(docs, s.cfg.LabelSelector, s.cfg.Keywords), nil
}

// extractLabels collects the text of selector from every document and keeps
// the keyword-matching lines in first-seen order. A <br> inside a node starts
// a new line.
func extractLabels(docs []string, selector string, keywords []string) []string {
	var lines []string

	for _, html := range docs {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			continue
		}

		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			sel.Find("br").ReplaceWithHtml("\n")
			lines = append(lines, strings.Split(sel.Text(), "\n")...)
		})
	}

	return supplier.FilterLabels(lines, keywords)
}

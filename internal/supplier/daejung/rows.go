package daejung

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
	"github.com/maltedev/chem-supplier-scraper/internal/textnorm"
)

func parseRows(html string, extractor supplier.Extractor) ([]supplier.Row, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return extractor.Extract(doc), nil
}

func toRecord(row supplier.Row) supplier.Record {
	rec := supplier.NewRecord(Brand, row.Code, textnorm.ExtractIntPtr(row.Price))
	rec.CAS = row.CAS
	rec.Name = row.Name
	rec.Pack = row.Pack
	rec.StockLabel = row.Stock
	return rec
}

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

// printRecords prints records in a card layout for humans.
func printRecords(w io.Writer, records []supplier.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, " no results")
		return
	}

	for i, r := range records {
		if i > 0 {
			fmt.Fprintln(w)
		}

		code := "-"
		if r.Code != nil {
			code = *r.Code
		}
		fmt.Fprintf(w, " %d. [%s] %s %s\n", i+1, code, r.Name, r.Pack)

		priceLine := "    Price: " + formatWon(r.Price)
		if r.DiscountPrice != nil {
			priceLine += "  (discounted " + formatWon(r.DiscountPrice) + ")"
		}
		if r.StockLabel != "" {
			priceLine += "  |  Stock: " + r.StockLabel
		}
		fmt.Fprintln(w, priceLine)

		if r.CAS != "" {
			fmt.Fprintf(w, "    CAS: %s\n", r.CAS)
		}
		if len(r.Labels) > 0 {
			tags := make([]string, 0, len(r.Labels))
			for _, l := range r.Labels {
				tags = append(tags, "["+l+"]")
			}
			fmt.Fprintf(w, "    %s\n", strings.Join(tags, " "))
		}
		if r.LabelsError != "" {
			fmt.Fprintf(w, "    labels unavailable: %s\n", r.LabelsError)
		}
	}
}

// formatWon formats a price as "12,300원", or "-" when unknown.
func formatWon(p *int64) string {
	if p == nil {
		return "-"
	}

	n := *p
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + "원"
}

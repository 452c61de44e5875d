// Package textnorm normalizes the loosely formatted text scraped from vendor
// pages: prices written as "12,300원", stock cells padded with NBSP, and label
// lines repeated across frames.
package textnorm

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var intPattern = regexp.MustCompile(`\d[\d,]*`)

// ExtractInt returns the first run of digits in s with thousands separators
// removed. It reports false when s holds no digits or the number overflows.
func ExtractInt(s string) (int64, bool) {
	match := intPattern.FindString(s)
	if match == "" {
		return 0, false
	}

	n, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractIntPtr is ExtractInt for nullable fields.
func ExtractIntPtr(s string) *int64 {
	n, ok := ExtractInt(s)
	if !ok {
		return nil
	}
	return &n
}

// DiscountPrice applies the 10% dealer discount and rounds up to the next
// 100 won: ceil(p*0.9/100)*100, computed without floating point. The
// thousands and the remainder are scaled separately so p*9 never overflows.
func DiscountPrice(price *int64) *int64 {
	if price == nil {
		return nil
	}

	p := *price
	if p <= 0 {
		d := int64(0)
		return &d
	}

	d := p/1000*900 + (p%1000*9+999)/1000*100
	return &d
}

// CollapseSpace trims s and folds every whitespace run, NBSP included, into
// a single ASCII space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripSpace removes all whitespace, NBSP included.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Dedup collapses whitespace in every line, drops empty ones and keeps the
// first occurrence of each remaining line in order.
func Dedup(lines []string) []string {
	out := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))

	for _, line := range lines {
		line = CollapseSpace(line)
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}

	return out
}

// Package cache stores finished search results for a short TTL so repeated
// lookups of the same product skip the vendor round trip.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

var ErrMiss = errors.New("cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (*supplier.Result, error)
	Set(ctx context.Context, key string, result *supplier.Result, ttl time.Duration) error
}

// Key identifies a search by supplier, query text and flags.
func Key(brand string, q supplier.Query) string {
	return fmt.Sprintf("%s|%s|first=%t|labels=%t",
		strings.ToLower(brand), strings.TrimSpace(q.Text), q.FirstOnly, q.IncludeLabels)
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (*supplier.Result, error) { return nil, ErrMiss }
func (Nop) Set(context.Context, string, *supplier.Result, time.Duration) error {
	return nil
}

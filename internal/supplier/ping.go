package supplier

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// PingURL checks that url answers with anything below 500.
func PingURL(ctx context.Context, client *resty.Client, url string) error {
	res, err := client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer res.RawBody().Close()

	if res.StatusCode() >= 500 {
		return fmt.Errorf("%s answered %d", url, res.StatusCode())
	}
	return nil
}

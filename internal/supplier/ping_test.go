package supplier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
)

func TestPingURL(t *testing.T) {
	status := http.StatusOK
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	client := resty.New()
	ctx := context.Background()

	assert.NoError(t, PingURL(ctx, client, srv.URL))

	status = http.StatusNotFound
	assert.NoError(t, PingURL(ctx, client, srv.URL), "a 404 still proves the host is up")

	status = http.StatusBadGateway
	assert.Error(t, PingURL(ctx, client, srv.URL))
}

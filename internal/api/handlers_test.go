package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/chem-supplier-scraper/internal/history"
	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Search(ctx context.Context, brand string, q supplier.Query) (*supplier.Result, error) {
	args := m.Called(ctx, brand, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.Result), args.Error(1)
}

func (m *MockService) History(ctx context.Context, brand, code string, limit int) ([]history.Snapshot, error) {
	args := m.Called(ctx, brand, code, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]history.Snapshot), args.Error(1)
}

func (m *MockService) Ping(ctx context.Context) map[string]error {
	return m.Called(ctx).Get(0).(map[string]error)
}

func (m *MockService) Brands() []string {
	return []string{"daejung", "duksan"}
}

func (m *MockService) TTL() time.Duration {
	return 30 * time.Second
}

func newTestServer(t *testing.T, svc *MockService) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(NewHandlers(svc, slog.Default()), RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body json.RawMessage
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestIndex(t *testing.T) {
	srv := newTestServer(t, new(MockService))

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var d Descriptor
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, serviceName, d.Service)
	assert.Equal(t, []string{"daejung", "duksan"}, d.Suppliers)
	assert.Equal(t, 30, d.TTLSeconds)
	assert.NotEmpty(t, d.Endpoints)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, new(MockService))

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	buf := make([]byte, 8)
	n, _ := resp.Body.Read(buf)
	assert.Equal(t, "ok", string(buf[:n]))
}

func TestHealthzDeep(t *testing.T) {
	svc := new(MockService)
	svc.On("Ping", mock.Anything).Return(map[string]error{
		"daejung": nil,
		"duksan":  errors.New("dial tcp: i/o timeout"),
	})
	srv := newTestServer(t, svc)

	resp, body := get(t, srv.URL+"/healthz?deep=true")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var h HealthResponse
	require.NoError(t, json.Unmarshal(body, &h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "ok", h.Checks["daejung"])
	assert.Contains(t, h.Checks["duksan"], "timeout")
}

func TestSearchDefaults(t *testing.T) {
	svc := new(MockService)
	want := supplier.Query{Text: "5062-8825", FirstOnly: false, IncludeLabels: true}
	svc.On("Search", mock.Anything, "", want).Return(&supplier.Result{
		SearchID: "abc",
		Query:    "5062-8825",
		Brand:    "Daejung",
		Items:    []supplier.Record{},
	}, nil)
	srv := newTestServer(t, svc)

	resp, body := get(t, srv.URL+"/search?q=5062-8825")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var res supplier.Result
	require.NoError(t, json.Unmarshal(body, &res))
	assert.Equal(t, "Daejung", res.Brand)
	assert.Equal(t, "abc", res.SearchID)
	svc.AssertExpectations(t)
}

func TestSearchBrandPath(t *testing.T) {
	svc := new(MockService)
	want := supplier.Query{Text: "acetone", FirstOnly: true, IncludeLabels: false}
	svc.On("Search", mock.Anything, "duksan", want).Return(&supplier.Result{Brand: "Duksan"}, nil)
	srv := newTestServer(t, svc)

	resp, _ := get(t, srv.URL+"/duksan/search?q=acetone&first_only=1&include_labels=false")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestSearchBadRequest(t *testing.T) {
	srv := newTestServer(t, new(MockService))
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"missing q", "", "q is required"},
		{"blank q", "q=%20%20", "q is required"},
		{"oversized q", "q=" + string(long), "q must be at most 200"},
		{"bad bool", "q=acetone&first_only=maybe", "first_only"},
		{"bad labels", "q=acetone&include_labels=2", "include_labels"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+"/search?"+tt.query)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			var e ErrorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.Contains(t, e.Error, tt.want)
		})
	}
}

func TestSearchUnknownBrand(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, "sigma", mock.Anything).
		Return(nil, fmt.Errorf("%w: %q", supplier.ErrUnknownSupplier, "sigma"))
	srv := newTestServer(t, svc)

	resp, _ := get(t, srv.URL+"/sigma/search?q=acetone")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSearchFailureHasTrace(t *testing.T) {
	svc := new(MockService)
	svc.On("Search", mock.Anything, "", mock.Anything).
		Return(nil, fmt.Errorf("%w: net::ERR_TIMED_OUT", supplier.ErrNavigationTimeout))
	srv := newTestServer(t, svc)

	resp, body := get(t, srv.URL+"/search?q=acetone")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var e ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Contains(t, e.Error, supplier.ErrNavigationTimeout.Error())
	assert.NotEmpty(t, e.Trace)
}

func TestHistory(t *testing.T) {
	svc := new(MockService)
	svc.On("History", mock.Anything, "daejung", "1009-4400", 5).
		Return([]history.Snapshot{{Brand: "Daejung"}}, nil)
	srv := newTestServer(t, svc)

	resp, body := get(t, srv.URL+"/history?brand=daejung&code=1009-4400&limit=5")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snaps []history.Snapshot
	require.NoError(t, json.Unmarshal(body, &snaps))
	assert.Len(t, snaps, 1)
}

func TestHistoryDisabled(t *testing.T) {
	svc := new(MockService)
	svc.On("History", mock.Anything, "", "", 0).Return(nil, history.ErrDisabled)
	srv := newTestServer(t, svc)

	resp, _ := get(t, srv.URL+"/history")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHistoryBadLimit(t *testing.T) {
	srv := newTestServer(t, new(MockService))

	resp, _ := get(t, srv.URL+"/history?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = get(t, srv.URL+"/history?limit=1000")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestParseBool(t *testing.T) {
	v, err := parseBool("", true)
	require.NoError(t, err)
	assert.True(t, v)

	v, err = parseBool("Off", true)
	require.NoError(t, err)
	assert.False(t, v)

	_, err = parseBool("maybe", false)
	assert.Error(t, err)
}

package duksan

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/maltedev/chem-supplier-scraper/internal/supplier"
)

const searchPage = `<html><head><title>덕산 제품검색</title></head><body>
<table>
	<tr id="head"><th>코드</th><th>제품명</th><th>용량</th><th>가격</th><th>재고</th><th></th></tr>
	<tr id="1201">
		<td>D1201</td><td>Acetone</td><td>500ml</td>
		<td>12,345&nbsp;원</td><td>3 | 12</td><td><button>담기</button></td>
	</tr>
	<tr id="1202">
		<td>D1202</td><td>Acetone</td><td>4L</td>
		<td>45,000원</td><td>&nbsp;0&nbsp;|</td><td><button>담기</button></td>
	</tr>
	<tr id="note"><td colspan="6">안산 | 진천</td></tr>
</table>
</body></html>`

const emptyPage = `<html><body><table><tr><td>검색결과가 없습니다.</td></tr></table></body></html>`

func newTestServer(t *testing.T, body string, contentType string, status int) (*httptest.Server, *http.Request) {
	t.Helper()

	var last http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = *r
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv, &last
}

func newTestScraper(baseURL string) *Scraper {
	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.MaxRetries = 1
	cfg.RetryWait = 10 * time.Millisecond
	return New(cfg, nil, slog.Default())
}

func TestSearch(t *testing.T) {
	srv, req := newTestServer(t, searchPage, "text/html; charset=utf-8", http.StatusOK)
	s := newTestScraper(srv.URL)

	records, err := s.Search(context.Background(), supplier.Query{Text: "D1201"})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "/products/prd_search.php", req.URL.Path)
	assert.Equal(t, "D1201", req.URL.Query().Get("keyword"))
	assert.Equal(t, "Mozilla/5.0", req.Header.Get("User-Agent"))

	first := records[0]
	assert.Equal(t, Brand, first.Brand)
	require.NotNil(t, first.Code)
	assert.Equal(t, "D1201", *first.Code)
	require.NotNil(t, first.Price)
	assert.Equal(t, int64(12345), *first.Price)
	require.NotNil(t, first.DiscountPrice)
	assert.Equal(t, int64(11200), *first.DiscountPrice)
	assert.Equal(t, "3(안산재고) | 12(진천재고)", first.StockLabel)
	assert.Equal(t, map[string]string{"ansan": "3", "jincheon": "12"}, first.Stock)
	assert.Empty(t, first.Labels)

	second := records[1]
	require.NotNil(t, second.Price)
	assert.Equal(t, int64(45000), *second.Price)
	assert.Equal(t, "0(안산재고) | 0(진천재고)", second.StockLabel)
}

func TestSearchFirstOnly(t *testing.T) {
	srv, _ := newTestServer(t, searchPage, "text/html; charset=utf-8", http.StatusOK)
	s := newTestScraper(srv.URL)

	records, err := s.Search(context.Background(), supplier.Query{Text: "D1201", FirstOnly: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(12345), *records[0].Price)
}

func TestSearchNoRows(t *testing.T) {
	srv, _ := newTestServer(t, emptyPage, "text/html; charset=utf-8", http.StatusOK)
	s := newTestScraper(srv.URL)

	records, err := s.Search(context.Background(), supplier.Query{Text: "nothing"})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestSearchDecodesEUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(searchPage)
	require.NoError(t, err)

	srv, _ := newTestServer(t, encoded, "text/html; charset=euc-kr", http.StatusOK)
	s := newTestScraper(srv.URL)

	records, err := s.Search(context.Background(), supplier.Query{Text: "D1201", FirstOnly: true})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "3(안산재고) | 12(진천재고)", records[0].StockLabel)
}

func TestSearchServerError(t *testing.T) {
	srv, _ := newTestServer(t, "oops", "text/plain", http.StatusInternalServerError)
	s := newTestScraper(srv.URL)

	records, err := s.Search(context.Background(), supplier.Query{Text: "D1201"})
	assert.Nil(t, records)
	assert.ErrorContains(t, err, "500")
}

func TestSplitStock(t *testing.T) {
	tests := []struct {
		raw      string
		ansan    string
		jincheon string
	}{
		{"3 | 12", "3", "12"},
		{" 5 | ", "5", "0"},
		{"", "0", "0"},
		{"10", "10", "0"},
		{"1|2|3", "1", "2"},
	}

	for _, tt := range tests {
		a, j := splitStock(tt.raw)
		assert.Equal(t, tt.ansan, a, "raw %q", tt.raw)
		assert.Equal(t, tt.jincheon, j, "raw %q", tt.raw)
	}
}

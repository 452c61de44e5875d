package textnorm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractInt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
		ok       bool
	}{
		{"Plain number", "12300", 12300, true},
		{"Thousands separators", "12,300", 12300, true},
		{"Currency suffix", "12,300원", 12300, true},
		{"NBSP padding", "\u00a0 45,000\u00a0원 ", 45000, true},
		{"First run only", "1,200 / 3,400", 1200, true},
		{"Label prefix", "가격: 980", 980, true},
		{"No digits", "문의", 0, false},
		{"Empty", "", 0, false},
		{"Overflow", "99999999999999999999999", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractInt(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestExtractIntPtr(t *testing.T) {
	assert.Nil(t, ExtractIntPtr("품절"))

	p := ExtractIntPtr("7,700")
	require.NotNil(t, p)
	assert.Equal(t, int64(7700), *p)
}

func TestDiscountPrice(t *testing.T) {
	assert.Nil(t, DiscountPrice(nil))

	tests := []struct {
		price    int64
		expected int64
	}{
		{10000, 9000},
		{12345, 11200},
		{100, 100},
		{111, 100},
		{112, 200},
		{35000, 31500},
		{0, 0},
	}

	for _, tt := range tests {
		p := tt.price
		got := DiscountPrice(&p)
		require.NotNil(t, got)
		assert.Equal(t, tt.expected, *got, "price %d", tt.price)
	}
}

func TestDiscountPriceMatchesCeilFormula(t *testing.T) {
	for p := int64(1); p <= 50000; p += 37 {
		price := p
		want := int64(math.Ceil(float64(p)*9/1000)) * 100
		got := DiscountPrice(&price)
		require.NotNil(t, got)
		if *got != want {
			t.Fatalf("DiscountPrice(%d) = %d, want %d", p, *got, want)
		}
	}
}

func TestDiscountPriceLargeValues(t *testing.T) {
	tests := []struct {
		price    int64
		expected int64
	}{
		{2_000_000_000_000_000_000, 1_800_000_000_000_000_000},
		{1_024_000_000_000_000_001, 921_600_000_000_000_100},
		{math.MaxInt64, 8_301_034_833_169_298_300},
	}

	for _, tt := range tests {
		p := tt.price
		got := DiscountPrice(&p)
		require.NotNil(t, got)
		assert.Equal(t, tt.expected, *got, "price %d", tt.price)
	}

	p, ok := ExtractInt("2,000,000,000,000,000,000원")
	require.True(t, ok)
	got := DiscountPrice(&p)
	require.NotNil(t, got)
	assert.Positive(t, *got)
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "유해 화학물질", CollapseSpace("  유해\u00a0\u00a0화학물질\n"))
	assert.Equal(t, "", CollapseSpace(" \t\u00a0"))
}

func TestStripSpace(t *testing.T) {
	assert.Equal(t, "3|12", StripSpace(" 3 |\u00a012 "))
}

func TestDedup(t *testing.T) {
	lines := []string{
		"유독물질",
		"  유독물질 ",
		"",
		"사고대비물질",
		"유독\u00a0물질",
		"사고대비물질",
	}

	assert.Equal(t, []string{"유독물질", "사고대비물질", "유독 물질"}, Dedup(lines))
	assert.Empty(t, Dedup(nil))
}

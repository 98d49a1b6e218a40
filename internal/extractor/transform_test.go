package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/user/content-crawler/internal/entity"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		locale string
		sep    string
		want   float64
		ok     bool
	}{
		{"vnd thousands dot", "350.000đ", "", "", 350000, true},
		{"vnd with currency sign", "₫ 1.250.000", "", "", 1250000, true},
		{"usd decimals", "$1,299.99", "", "", 1299.99, true},
		{"euro decimals", "1.299,99 €", "", "", 1299.99, true},
		{"short decimal dot", "19.99", "", "", 19.99, true},
		{"short decimal comma", "4,5", "", "", 4.5, true},
		{"comma thousands", "1,500", "", "", 1500, true},
		{"space grouping", "1 234,50 €", "", "", 1234.5, true},
		{"plain integer", "Price: 42 USD", "", "", 42, true},
		{"negative", "-15.00", "", "", -15, true},
		{"first number wins", "120.000đ - 150.000đ", "", "", 120000, true},

		{"vi locale", "350.000", "vi", "", 350000, true},
		{"vi region locale", "12,5", "vi-VN", "", 12.5, true},
		{"de locale thousands", "2.500", "de", "", 2500, true},
		{"id locale", "Rp 75.000", "id", "", 75000, true},
		{"en locale", "1.500", "en", "", 1.5, true},
		{"en locale thousands", "1,500", "en_US", "", 1500, true},
		{"explicit separator", "1.500", "", ",", 1500, true},
		{"explicit separator overrides locale", "1,500", "en", ",", 1.5, true},

		{"no digits", "Liên hệ", "", "", 0, false},
		{"empty", "", "", "", 0, false},
		{"repeated decimal", "1,2,3", "en", ",", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePrice(tt.raw, tt.locale, tt.sep)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exact", truncate("exact", 5))
	assert.Equal(t, "hello…", truncate("hello world again", 8))
	assert.Equal(t, "abcdefghi…", truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "unbounded text", truncate("unbounded text", 0))
	assert.Equal(t, "Tiếng…", truncate("Tiếng Việt có dấu", 8))
}

func TestApplyTransforms(t *testing.T) {
	got := applyTransforms("  <b>Hello</b>\n\n  <i>world</i>  ", []entity.Transform{
		{Type: entity.TransformStripHTML},
		{Type: entity.TransformCollapseWhitespace},
	})
	assert.Equal(t, "Hello world", got)

	got = applyTransforms("  keep  inner  ", []entity.Transform{{Type: entity.TransformTrim}})
	assert.Equal(t, "keep  inner", got)

	got = applyTransforms("120.000đ", []entity.Transform{{Type: entity.TransformCurrency, Locale: "vi"}})
	assert.Equal(t, "120.000đ", got)
}

func TestNumberHints(t *testing.T) {
	locale, sep := numberHints([]entity.Transform{
		{Type: entity.TransformTrim},
		{Type: entity.TransformNumber, Locale: "de"},
	})
	assert.Equal(t, "de", locale)
	assert.Empty(t, sep)
}

package extractor

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/kennygrant/sanitize"

	"github.com/user/content-crawler/internal/entity"
)

// Locales whose number formatting uses "," as the decimal separator.
var commaDecimalLocales = map[string]bool{
	"vi": true, "de": true, "id": true, "fr": true, "es": true, "it": true,
	"pt": true, "nl": true, "ru": true, "tr": true, "pl": true, "da": true,
	"sv": true, "nb": true, "fi": true, "cs": true, "ro": true, "uk": true,
}

// Locales whose number formatting uses "." as the decimal separator.
var dotDecimalLocales = map[string]bool{
	"en": true, "ja": true, "zh": true, "ko": true, "th": true, "ms": true,
	"hi": true, "he": true, "tl": true,
}

// applyTransforms runs the text directives of a field in order. Numeric
// directives only carry parsing hints and are skipped here.
func applyTransforms(value string, transforms []entity.Transform) string {
	for _, t := range transforms {
		switch t.Type {
		case entity.TransformTrim:
			value = strings.TrimSpace(value)
		case entity.TransformStripHTML:
			value = strings.TrimSpace(sanitize.HTML(value))
		case entity.TransformCollapseWhitespace:
			value = collapseWhitespace(value)
		case entity.TransformTruncate:
			value = truncate(value, t.MaxLength)
		}
	}
	return value
}

// numberHints returns the locale and decimal separator of the last numeric
// directive, if any.
func numberHints(transforms []entity.Transform) (locale, decimalSep string) {
	for _, t := range transforms {
		if t.Type == entity.TransformNumber || t.Type == entity.TransformCurrency {
			locale, decimalSep = t.Locale, t.DecimalSeparator
		}
	}
	return locale, decimalSep
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most maxLen runes, preferring a word boundary and
// ending with an ellipsis.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	cut := string(runes[:maxLen-1])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimRightFunc(cut, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",.;:-", r)
	}) + "…"
}

// ParsePrice reads a localized number such as "350.000đ", "$1,299.99" or
// "1.299,99 €". The decimal separator comes from decimalSep when set, then
// from the locale, then from the shape of the number itself.
func ParsePrice(raw, locale, decimalSep string) (float64, bool) {
	digits, negative := numericRun(raw)
	if digits == "" {
		return 0, false
	}

	dec := decimalSep
	if dec == "" {
		dec = localeDecimal(locale)
	}
	if dec == "" {
		dec = guessDecimal(digits)
	}

	var group string
	switch dec {
	case ",":
		group = "."
	case ".":
		group = ","
	default:
		group = ",."
	}

	cleaned := strings.Map(func(r rune) rune {
		if strings.ContainsRune(group, r) {
			return -1
		}
		return r
	}, digits)
	if dec != "" {
		if strings.Count(cleaned, dec) > 1 {
			return 0, false
		}
		cleaned = strings.Replace(cleaned, dec, ".", 1)
	}

	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	if negative {
		v = -v
	}
	return v, true
}

// numericRun extracts the first run of digits and separators, skipping
// currency symbols and grouping spaces.
func numericRun(s string) (string, bool) {
	runes := []rune(s)
	var b strings.Builder
	negative := false
	started := false

	for i, r := range runes {
		switch {
		case isDigit(r):
			if !started && i > 0 && runes[i-1] == '-' {
				negative = true
			}
			started = true
			b.WriteRune(r)
		case !started:
			continue
		case r == '.' || r == ',':
			b.WriteRune(r)
		case isGroupSpace(r) && i+1 < len(runes) && isDigit(runes[i+1]):
			continue
		default:
			return strings.TrimRight(b.String(), ".,"), negative
		}
	}
	return strings.TrimRight(b.String(), ".,"), negative
}

func isGroupSpace(r rune) bool {
	return r == ' ' || r == '\u00a0' || r == '\u202f' || r == '\''
}

func localeDecimal(locale string) string {
	lang := strings.ToLower(locale)
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		lang = lang[:i]
	}
	switch {
	case commaDecimalLocales[lang]:
		return ","
	case dotDecimalLocales[lang]:
		return "."
	}
	return ""
}

// guessDecimal infers the decimal separator without a locale hint, returning
// "" when every separator groups thousands. When both separators appear the
// last one is decimal. A separator that repeats, or appears once followed by
// exactly three digits, groups thousands.
func guessDecimal(digits string) string {
	lastDot := strings.LastIndex(digits, ".")
	lastComma := strings.LastIndex(digits, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			return "."
		}
		return ","
	case lastDot < 0 && lastComma < 0:
		return ""
	}

	sep, pos := ".", lastDot
	if lastComma >= 0 {
		sep, pos = ",", lastComma
	}
	if strings.Count(digits, sep) > 1 || len(digits)-pos-1 == 3 {
		return ""
	}
	return sep
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

package helpers

import (
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParsePrice turns a displayed price such as "$1,299" or "12.999" into a
// number. Thousands separators are dropped.
func ParsePrice(text string) (float64, bool) {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' || r == '.' {
			return r
		}
		return -1
	}, text)
	// a single dot with one or two trailing digits is a decimal point
	if strings.Count(cleaned, ".") > 0 && !hasDecimalSuffix(cleaned) {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}
	if cleaned == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func hasDecimalSuffix(s string) bool {
	if strings.Count(s, ".") != 1 {
		return false
	}
	digits := len(s) - strings.LastIndex(s, ".") - 1
	return digits == 1 || digits == 2
}

// Truncate shortens s to at most max runes
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// CleanText collapses whitespace runs into single spaces
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AbsoluteURL resolves href against base. Empty hrefs stay empty.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// Hostname returns the lower-cased host part of raw, without port
func Hostname(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

package helpers

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Find is Selection.Find for untrusted selectors: an invalid selector is
// returned as an error instead of panicking.
func Find(s *goquery.Selection, selector string) (*goquery.Selection, error) {
	matcher, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return s.FindMatcher(matcher), nil
}

// IsHidden reports whether the element is hidden by markup alone
func IsHidden(s *goquery.Selection) bool {
	if _, ok := s.Attr("hidden"); ok {
		return true
	}
	if v, ok := s.Attr("aria-hidden"); ok && v == "true" {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(s.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// VisibleText returns the element text with whitespace collapsed
func VisibleText(s *goquery.Selection) string {
	return CleanText(s.Text())
}

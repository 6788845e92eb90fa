package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoutErrorFormatting(t *testing.T) {
	err := NewNavigation("navigate_to_page", "goto failed", stderrors.New("net::ERR_TIMED_OUT"))
	assert.Equal(t, "[navigation] navigate_to_page: goto failed - net::ERR_TIMED_OUT", err.Error())
	assert.Equal(t, SeverityHigh, err.Severity)
	assert.True(t, err.IsRetryable())

	plain := NewExtraction("extract_products", "no cards", nil)
	assert.Equal(t, "[extraction] extract_products: no cards", plain.Error())
	assert.False(t, plain.IsRetryable())
}

func TestBlockedIsNotRetryable(t *testing.T) {
	err := NewNavigation("navigate_to_page", "blocked", ErrBlocked)
	assert.False(t, err.IsRetryable())
	assert.True(t, stderrors.Is(err, ErrBlocked))
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		msg      string
		category Category
		severity Severity
	}{
		{"Failed to navigate to url", CategoryNavigation, SeverityHigh},
		{"selector .foo not found", CategorySelector, SeverityMedium},
		{"selector syntax odd", CategorySelector, SeverityLow},
		{"No se pudo extraer datos", CategoryExtraction, SeverityMedium},
		{"search box missing", CategorySearch, SeverityMedium},
		{"botón siguiente deshabilitado", CategoryPagination, SeverityMedium},
		{"playwright browser closed", CategoryBrowser, SeverityCritical},
		{"connection reset by peer", CategoryUnknown, SeverityHigh},
		{"something odd", CategoryUnknown, SeverityMedium},
		{"page.goto aborted", CategoryUnknown, SeverityMedium},
		{"element is detached", CategoryUnknown, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			category, severity := ClassifyMessage(tt.msg)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.severity, severity)
		})
	}
}

func TestClassifyTypedError(t *testing.T) {
	wrapped := fmt.Errorf("tool: %w", NewPagination("navigate_pagination", "no next button", ErrNotFound))
	category, severity := Classify(wrapped)
	assert.Equal(t, CategoryPagination, category)
	assert.Equal(t, SeverityMedium, severity)

	category, severity = Classify(nil)
	assert.Equal(t, CategoryUnknown, category)
	assert.Equal(t, SeverityLow, severity)
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "selector_error", TypeName(NewSelector("test_selector", "x", nil)))
	assert.Equal(t, "not_found_error", TypeName(fmt.Errorf("wrap: %w", ErrNoProducts)))
	assert.Equal(t, "value_error", TypeName(ErrInvalidDomain))
	assert.Equal(t, "*errors.errorString", TypeName(stderrors.New("x")))
}

func TestSeverityRank(t *testing.T) {
	assert.Greater(t, SeverityCritical.Rank(), SeverityHigh.Rank())
	assert.Greater(t, SeverityHigh.Rank(), SeverityMedium.Rank())
	assert.Greater(t, SeverityMedium.Rank(), SeverityLow.Rank())
	assert.Equal(t, 0, Severity("other").Rank())
}

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// Category represents the kind of failure a tool ran into
type Category string

const (
	// CategoryNavigation represents page navigation failures
	CategoryNavigation Category = "navigation"
	// CategorySelector represents selector lookup failures
	CategorySelector Category = "selector"
	// CategoryExtraction represents data extraction failures
	CategoryExtraction Category = "extraction"
	// CategorySearch represents search box failures
	CategorySearch Category = "search"
	// CategoryPagination represents pagination failures
	CategoryPagination Category = "pagination"
	// CategoryBrowser represents browser engine failures
	CategoryBrowser Category = "browser"
	// CategoryUnknown is used when nothing else matches
	CategoryUnknown Category = "unknown"
)

// Severity represents how bad a failure is
type Severity string

const (
	// SeverityLow is for failures the agent can work around
	SeverityLow Severity = "low"
	// SeverityMedium is the default for unclassified failures
	SeverityMedium Severity = "medium"
	// SeverityHigh covers timeouts, network trouble and navigation failures
	SeverityHigh Severity = "high"
	// SeverityCritical means the browser crashed or was closed
	SeverityCritical Severity = "critical"
)

// Rank orders severities, critical highest
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

var (
	ErrNoPage        = stderrors.New("no page available")
	ErrNoProducts    = stderrors.New("no products found on page")
	ErrNotFound      = stderrors.New("element not found")
	ErrInvalidDomain = stderrors.New("url domain is not allowed")
	ErrBlocked       = stderrors.New("marketplace blocked the request")
	ErrUnsupported   = stderrors.New("operation not supported by browser engine")
)

// ScoutError represents a tool-level failure
type ScoutError struct {
	Category Category
	Severity Severity
	Tool     string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *ScoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Category, e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Tool, e.Message)
}

// Unwrap returns the underlying error
func (e *ScoutError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *ScoutError) IsRetryable() bool {
	if stderrors.Is(e.Err, ErrBlocked) || stderrors.Is(e.Err, ErrInvalidDomain) {
		return false
	}
	switch e.Category {
	case CategoryNavigation, CategoryBrowser:
		return true
	default:
		return false
	}
}

// New creates a new ScoutError with a severity derived from the message
func New(category Category, tool, message string, err error) *ScoutError {
	e := &ScoutError{
		Category: category,
		Tool:     tool,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
	e.Severity = severityFor(category, strings.ToLower(e.Error()))
	return e
}

// NewNavigation creates a new navigation error
func NewNavigation(tool, message string, err error) *ScoutError {
	return New(CategoryNavigation, tool, message, err)
}

// NewSelector creates a new selector error
func NewSelector(tool, message string, err error) *ScoutError {
	return New(CategorySelector, tool, message, err)
}

// NewExtraction creates a new extraction error
func NewExtraction(tool, message string, err error) *ScoutError {
	return New(CategoryExtraction, tool, message, err)
}

// NewSearch creates a new search error
func NewSearch(tool, message string, err error) *ScoutError {
	return New(CategorySearch, tool, message, err)
}

// NewPagination creates a new pagination error
func NewPagination(tool, message string, err error) *ScoutError {
	return New(CategoryPagination, tool, message, err)
}

// NewBrowser creates a new browser error
func NewBrowser(tool, message string, err error) *ScoutError {
	return New(CategoryBrowser, tool, message, err)
}

// TypeName returns a short name for the concrete failure, used in error
// signatures.
func TypeName(err error) string {
	var se *ScoutError
	if stderrors.As(err, &se) {
		return string(se.Category) + "_error"
	}
	switch {
	case stderrors.Is(err, ErrNoProducts), stderrors.Is(err, ErrNotFound):
		return "not_found_error"
	case stderrors.Is(err, ErrInvalidDomain):
		return "value_error"
	case stderrors.Is(err, ErrBlocked):
		return "blocked_error"
	case stderrors.Is(err, ErrUnsupported):
		return "unsupported_error"
	}
	return fmt.Sprintf("%T", err)
}

// Classify returns the category and severity of err. Typed errors keep their
// own category; anything else is classified by message keywords.
func Classify(err error) (Category, Severity) {
	if err == nil {
		return CategoryUnknown, SeverityLow
	}
	var se *ScoutError
	if stderrors.As(err, &se) {
		return se.Category, se.Severity
	}
	return ClassifyMessage(err.Error())
}

var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryNavigation, []string{"navigate", "navegar", "url", "página"}},
	{CategorySelector, []string{"selector", "query_selector", "elemento"}},
	{CategoryExtraction, []string{"extract", "extracción", "datos"}},
	{CategorySearch, []string{"search", "búsqueda", "buscar"}},
	{CategoryPagination, []string{"pagination", "paginación", "siguiente", "anterior"}},
	{CategoryBrowser, []string{"browser", "playwright", "chromium", "chromedp"}},
}

// ClassifyMessage classifies a raw error message by keyword
func ClassifyMessage(message string) (Category, Severity) {
	lower := strings.ToLower(message)
	category := CategoryUnknown
	for _, rule := range categoryKeywords {
		if containsAny(lower, rule.keywords) {
			category = rule.category
			break
		}
	}
	return category, severityFor(category, lower)
}

func severityFor(category Category, lower string) Severity {
	switch {
	case containsAny(lower, []string{"crash", "fatal", "browser closed", "browser has been closed"}):
		return SeverityCritical
	case containsAny(lower, []string{"timeout", "connection", "network"}):
		return SeverityHigh
	case category == CategoryNavigation:
		return SeverityHigh
	case category == CategorySelector:
		if containsAny(lower, []string{"not found", "no encontr"}) {
			return SeverityMedium
		}
		return SeverityLow
	default:
		return SeverityMedium
	}
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

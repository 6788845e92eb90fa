package learning

import (
	"time"

	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// ErrorPattern aggregates every occurrence of one error signature
type ErrorPattern struct {
	ErrorID        string                 `json:"error_id"`
	Category       scouterrors.Category   `json:"category"`
	Severity       scouterrors.Severity   `json:"severity"`
	ErrorMessage   string                 `json:"error_message"`
	OriginalError  string                 `json:"original_error"`
	ContextInfo    map[string]interface{} `json:"context_info"`
	Solution       string                 `json:"solution"`
	PreventionTips []string               `json:"prevention_tips"`
	Frequency      int                    `json:"frequency"`
	FirstSeen      time.Time              `json:"first_seen"`
	LastSeen       time.Time              `json:"last_seen"`
	ToolName       string                 `json:"tool_name"`
	PageType       string                 `json:"page_type"`
	QueryContext   string                 `json:"query_context"`
}

func (p *ErrorPattern) clone() *ErrorPattern {
	c := *p
	c.PreventionTips = append([]string(nil), p.PreventionTips...)
	if p.ContextInfo != nil {
		c.ContextInfo = make(map[string]interface{}, len(p.ContextInfo))
		for k, v := range p.ContextInfo {
			c.ContextInfo[k] = v
		}
	}
	return &c
}

// ErrorEvent is emitted on every captured error
type ErrorEvent struct {
	Signature  string               `json:"signature"`
	ToolName   string               `json:"tool_name"`
	Message    string               `json:"message"`
	Category   scouterrors.Category `json:"category"`
	Severity   scouterrors.Severity `json:"severity"`
	Frequency  int                  `json:"frequency"`
	Timestamp  time.Time            `json:"timestamp"`
	Resolution string               `json:"resolution"`
}

// SelectorRecord counts how often a selector worked for a field
type SelectorRecord struct {
	Selector  string    `json:"selector"`
	Field     string    `json:"field"`
	Successes int       `json:"successes"`
	Failures  int       `json:"failures"`
	LastUsed  time.Time `json:"last_used"`
}

// Uses returns the total number of recorded outcomes
func (r SelectorRecord) Uses() int {
	return r.Successes + r.Failures
}

// SuccessRate returns the share of successful uses, 0 when unused
func (r SelectorRecord) SuccessRate() float64 {
	if r.Uses() == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Uses())
}

func selectorKey(field, selector string) string {
	return field + "|" + selector
}

// Recommendation is a piece of prevention advice
type Recommendation struct {
	RecommendationID   string   `json:"recommendation_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	RelatedErrors      []string `json:"related_errors"`
	PreventionSteps    []string `json:"prevention_steps"`
	ApplicableContexts []string `json:"applicable_contexts"`
	Priority           int      `json:"priority"`
}

// CommonError summarises a frequent pattern
type CommonError struct {
	ErrorID   string `json:"error_id"`
	Message   string `json:"message"`
	Frequency int    `json:"frequency"`
	Category  string `json:"category"`
	Tool      string `json:"tool"`
}

// RecentError summarises a recently seen pattern
type RecentError struct {
	ErrorID  string    `json:"error_id"`
	Message  string    `json:"message"`
	LastSeen time.Time `json:"last_seen"`
	Tool     string    `json:"tool"`
}

// Statistics describes the whole store
type Statistics struct {
	TotalErrors         int            `json:"total_errors"`
	ErrorsByCategory    map[string]int `json:"errors_by_category"`
	ErrorsBySeverity    map[string]int `json:"errors_by_severity"`
	MostCommonErrors    []CommonError  `json:"most_common_errors"`
	RecentErrors        []RecentError  `json:"recent_errors"`
	LearningSuggestions []string       `json:"learning_suggestions"`
}

// SimilarError is one hit of a similarity search
type SimilarError struct {
	ErrorID         string    `json:"error_id"`
	SimilarityScore float64   `json:"similarity_score"`
	ErrorMessage    string    `json:"error_message"`
	Frequency       int       `json:"frequency"`
	Category        string    `json:"category"`
	Severity        string    `json:"severity"`
	Solution        string    `json:"solution"`
	PreventionTips  []string  `json:"prevention_tips"`
	ToolName        string    `json:"tool_name"`
	LastSeen        time.Time `json:"last_seen"`
}

// ToolFrequency counts errors per tool
type ToolFrequency struct {
	ToolName       string `json:"tool_name"`
	ErrorFrequency int    `json:"error_frequency"`
}

// InsightSummary holds the headline counts of Insights
type InsightSummary struct {
	TotalUniqueErrors int `json:"total_unique_errors"`
	RecentErrorsCount int `json:"recent_errors_count"`
	StableErrors      int `json:"stable_errors"`
	RecurringErrors   int `json:"recurring_errors"`
}

// Insights describes learning trends
type Insights struct {
	Summary                 InsightSummary   `json:"summary"`
	ProblematicTools        []ToolFrequency  `json:"problematic_tools"`
	CategoryAnalysis        map[string]int   `json:"category_analysis"`
	SeverityDistribution    map[string]int   `json:"severity_distribution"`
	LearningRecommendations []string         `json:"learning_recommendations"`
	SuccessIndicators       []string         `json:"success_indicators"`
	BestSelectors           []SelectorRecord `json:"best_selectors"`
	WorstSelectors          []SelectorRecord `json:"worst_selectors"`
	Timestamp               time.Time        `json:"timestamp"`
}

// FullExport is the complete dump of the store
type FullExport struct {
	TotalPatterns   int              `json:"total_patterns"`
	Patterns        []ErrorPattern   `json:"patterns"`
	Selectors       []SelectorRecord `json:"selectors"`
	Statistics      *Statistics      `json:"statistics"`
	ExportTimestamp time.Time        `json:"export_timestamp"`
}

// SummaryExport is the condensed export meant for a model to read
type SummaryExport struct {
	TotalErrors          int                 `json:"total_errors"`
	ExportTime           time.Time           `json:"export_time"`
	MostCommonErrors     []CommonError       `json:"most_common_errors"`
	LearningSuggestions  []string            `json:"learning_suggestions"`
	CategoryBreakdown    map[string]int      `json:"category_breakdown"`
	PreventionGuidelines map[string][]string `json:"prevention_guidelines"`
}

// Suggestion is one immediate hint produced after a failure
type Suggestion struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	BasedOn    string  `json:"based_on"`
}

// Analysis is the result of AnalyzeAndSuggest
type Analysis struct {
	ErrorID            string       `json:"error_id"`
	SimilarErrorsFound int          `json:"similar_errors_found"`
	Suggestions        []Suggestion `json:"suggestions"`
	ConfidenceLevel    string       `json:"confidence_level"`
	RecommendedAction  string       `json:"recommended_action"`
	Timestamp          time.Time    `json:"timestamp"`
}

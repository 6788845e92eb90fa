package extract

import (
	"time"

	"sjsage522/scoutmcp/internal/marketplace"
)

// Product is one product card
type Product struct {
	Title         string `json:"title"`
	Price         string `json:"price"`
	OriginalPrice string `json:"original_price"`
	Discount      string `json:"discount"`
	URL           string `json:"url"`
	ImageURL      string `json:"image_url"`
	Shipping      string `json:"shipping"`
	Seller        string `json:"seller"`
}

// PriceStatistics summarises the parsed prices of a product list
type PriceStatistics struct {
	TotalProductsWithPrice int     `json:"total_products_with_price"`
	AveragePriceMXN        float64 `json:"average_price_mxn"`
	MinPriceMXN            float64 `json:"min_price_mxn"`
	MaxPriceMXN            float64 `json:"max_price_mxn"`
	ProductsWithDiscount   int     `json:"products_with_discount"`
}

// FieldError reports a field selector that could not be applied
type FieldError struct {
	Field    string `json:"field"`
	Selector string `json:"selector"`
	Error    string `json:"error"`
}

// ExtractionInfo describes how a product extraction ran
type ExtractionInfo struct {
	ProductsFound     int                   `json:"products_found"`
	ProductsExtracted int                   `json:"products_extracted"`
	ExtractionErrors  int                   `json:"extraction_errors"`
	SelectorsUsed     marketplace.Selectors `json:"selectors_used"`
	PageURL           string                `json:"page_url"`
	Timestamp         time.Time             `json:"timestamp"`
}

// ProductExtraction is the result of ExtractProducts
type ProductExtraction struct {
	ExtractionInfo  ExtractionInfo   `json:"extraction_info"`
	PriceStatistics *PriceStatistics `json:"price_statistics"`
	Products        []Product        `json:"products"`
	Errors          []FieldError     `json:"errors"`
}

// DiscoveredSelector is a candidate selector found on the page
type DiscoveredSelector struct {
	Selector     string  `json:"selector"`
	Confidence   float64 `json:"confidence"`
	Description  string  `json:"description"`
	ElementCount int     `json:"element_count"`
}

// Discovery is the result of Discover
type Discovery struct {
	ElementType     string               `json:"element_type"`
	SelectorsFound  int                  `json:"selectors_found"`
	Selectors       []DiscoveredSelector `json:"selectors"`
	Recommendations []string             `json:"recommendations"`
	Timestamp       time.Time            `json:"timestamp"`
}

// SampleText is the text of one matched element
type SampleText struct {
	Index  int    `json:"index"`
	Text   string `json:"text"`
	Length int    `json:"length"`
}

// SelectorAnalysis describes the first elements matched by a selector
type SelectorAnalysis struct {
	ElementCount     int          `json:"element_count"`
	VisibleElements  int          `json:"visible_elements"`
	SampleTexts      []SampleText `json:"sample_texts"`
	ElementTypes     []string     `json:"element_types"`
	HasUsefulContent bool         `json:"has_useful_content"`
}

// SelectorTest is the result of TestSelector
type SelectorTest struct {
	Selector        string            `json:"selector"`
	Success         bool              `json:"success"`
	ElementCount    int               `json:"element_count"`
	Analysis        *SelectorAnalysis `json:"analysis"`
	UtilityScore    float64           `json:"utility_score"`
	Recommendations []string          `json:"recommendations"`
	IsUseful        bool              `json:"is_useful"`
	Message         string            `json:"message"`
	Timestamp       time.Time         `json:"timestamp"`
}

// HTMLInfo describes an HTML extraction
type HTMLInfo struct {
	Scope           string    `json:"scope"`
	SelectorUsed    string    `json:"selector_used"`
	OriginalLength  int       `json:"original_length"`
	ExtractedLength int       `json:"extracted_length"`
	Truncated       bool      `json:"truncated"`
	PrettyFormatted bool      `json:"pretty_formatted"`
	Timestamp       time.Time `json:"timestamp"`
}

// AnalysisHints points the caller at the usual marketplace markup
type AnalysisHints struct {
	MarketplacePatterns []string `json:"mercadolibre_patterns"`
	UsefulSelectors     []string `json:"useful_selectors"`
}

// HTMLExtraction is the result of PageHTML
type HTMLExtraction struct {
	ExtractionInfo HTMLInfo      `json:"extraction_info"`
	HTMLContent    string        `json:"html_content"`
	AnalysisHints  AnalysisHints `json:"analysis_hints"`
}

// TextExtraction is the result of Text
type TextExtraction struct {
	Selector              string       `json:"selector"`
	AllMatches            bool         `json:"all_matches"`
	ElementsFound         int          `json:"elements_found"`
	SuccessfulExtractions int          `json:"successful_extractions"`
	ExtractedTexts        []SampleText `json:"extracted_texts"`
	Timestamp             time.Time    `json:"timestamp"`
}

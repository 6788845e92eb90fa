package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sjsage522/scoutmcp/internal/extract"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

const flowTool = "smart_search_and_extract"

// Flow steps, reported in steps_completed
const (
	StepHome    = "Navegación a home"
	StepSearch  = "Búsqueda de productos"
	StepExtract = "Extracción de productos"
)

// FinalResults holds what the flow extracted
type FinalResults struct {
	SearchURL         string                   `json:"search_url"`
	ProductsFound     int                      `json:"products_found"`
	ProductsExtracted int                      `json:"products_extracted"`
	PriceStatistics   *extract.PriceStatistics `json:"price_statistics"`
	Products          []extract.Product        `json:"products"`
}

// FlowError describes where the flow stopped. FailedAtStep counts the steps
// completed before the failure.
type FlowError struct {
	ErrorID      string `json:"error_id"`
	Message      string `json:"message"`
	FailedAtStep int    `json:"failed_at_step"`
}

// SmartSearchResult is returned by smart_search_and_extract
type SmartSearchResult struct {
	SearchQuery        string        `json:"search_query"`
	AutoPreventionUsed bool          `json:"auto_prevention_used"`
	Success            bool          `json:"success"`
	StepsCompleted     []string      `json:"steps_completed"`
	ErrorsPrevented    []string      `json:"errors_prevented"`
	FinalResults       *FinalResults `json:"final_results"`
	Error              *FlowError    `json:"error"`
}

func (s *Server) registerFlowTools() {
	s.mcp.AddTool(mcp.NewTool(flowTool,
		mcp.WithDescription("Búsqueda inteligente: navega a home, busca y extrae productos aplicando consejos de prevención aprendidos."),
		mcp.WithString("search_query", mcp.Required(), mcp.Description("Término de búsqueda")),
		mcp.WithNumber("max_products", mcp.DefaultNumber(defaultProductLimit), mcp.Description("Número máximo de productos a extraer")),
		mcp.WithBoolean("auto_prevent_errors", mcp.DefaultBool(true), mcp.Description("Si consultar consejos de prevención antes de cada paso")),
	), s.plain(flowTool, s.smartSearch))
}

func (s *Server) smartSearch(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	query, err := req.RequireString("search_query")
	if err != nil {
		return nil, scouterrors.NewSearch(flowTool, err.Error(), nil)
	}
	maxProducts := req.GetInt("max_products", defaultProductLimit)
	prevent := req.GetBool("auto_prevent_errors", true)

	result := &SmartSearchResult{
		SearchQuery:        query,
		AutoPreventionUsed: prevent,
		StepsCompleted:     []string{},
		ErrorsPrevented:    []string{},
	}
	log := s.log.WithField("search_query", query)

	step := StepHome
	fail := func(err error) (any, error) {
		errorID := s.learning.CaptureError(ctx, err, flowTool, map[string]interface{}{
			"search_query": query,
			"max_products": maxProducts,
		}, query)
		log.Error().Err(err).Str("step", step).Str("error_id", errorID).Msg("Smart search failed")
		result.Error = &FlowError{
			ErrorID:      errorID,
			Message:      err.Error(),
			FailedAtStep: len(result.StepsCompleted),
		}
		return result, nil
	}

	if prevent {
		if advice := s.learning.PreventionAdvice("search_products", nil, query); len(advice) > 0 {
			result.ErrorsPrevented = append(result.ErrorsPrevented, fmt.Sprintf("Búsqueda: %d consejos", len(advice)))
		}
	}
	if _, err := s.browser.GoHome(ctx); err != nil {
		return fail(err)
	}
	result.StepsCompleted = append(result.StepsCompleted, StepHome)

	step = StepSearch
	searchURL, err := s.browser.Search(ctx, query)
	if err != nil {
		return fail(err)
	}
	result.StepsCompleted = append(result.StepsCompleted, StepSearch)

	step = StepExtract
	if prevent {
		if advice := s.learning.PreventionAdvice("extract_products", nil, query); len(advice) > 0 {
			result.ErrorsPrevented = append(result.ErrorsPrevented, fmt.Sprintf("Extracción: %d consejos", len(advice)))
		}
	}
	doc, pageURL, err := s.snapshot(ctx, flowTool)
	if err != nil {
		return fail(err)
	}
	extraction, err := s.extractor.ExtractProducts(ctx, doc, pageURL, maxProducts, nil)
	if err != nil {
		return fail(err)
	}
	s.metrics.AddProducts(len(extraction.Products))
	result.StepsCompleted = append(result.StepsCompleted, StepExtract)

	result.Success = true
	result.FinalResults = &FinalResults{
		SearchURL:         searchURL,
		ProductsFound:     extraction.ExtractionInfo.ProductsFound,
		ProductsExtracted: extraction.ExtractionInfo.ProductsExtracted,
		PriceStatistics:   extraction.PriceStatistics,
		Products:          extraction.Products,
	}
	log.Info().Int("products", len(extraction.Products)).Msg("Smart search completed")
	return result, nil
}

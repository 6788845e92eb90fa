package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"sjsage522/scoutmcp/internal/browser"
	"sjsage522/scoutmcp/internal/extract"
	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// visibilitySample is how many matches the browser checks for visibility
const visibilitySample = 10

// DiscoveryResult is returned by discover_selectors
type DiscoveryResult struct {
	*extract.Discovery
	PageInfo browser.PageInfo `json:"page_info"`
}

func (s *Server) registerSelectorTools() {
	s.mcp.AddTool(mcp.NewTool("discover_selectors",
		mcp.WithDescription("Descubre selectores CSS que funcionan en la página actual para un tipo de elemento."),
		mcp.WithString("element_type", mcp.DefaultString(marketplace.ElementProducts),
			mcp.Enum(marketplace.ElementProducts, marketplace.ElementPrices, marketplace.ElementTitles,
				marketplace.ElementNavigation, marketplace.ElementSearch),
			mcp.Description("Tipo de elemento a buscar")),
	), s.capture("discover_selectors", s.discoverSelectors))

	s.mcp.AddTool(mcp.NewTool("test_selector",
		mcp.WithDescription("Prueba un selector CSS y evalúa su utilidad para extraer datos."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Selector CSS a probar")),
		mcp.WithBoolean("extract_text", mcp.DefaultBool(true), mcp.Description("Si extraer texto de muestra")),
		mcp.WithBoolean("check_visibility", mcp.DefaultBool(true), mcp.Description("Si verificar la visibilidad de los elementos")),
	), s.capture("test_selector", s.testSelector))
}

func (s *Server) discoverSelectors(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	doc, _, err := s.snapshot(ctx, "discover_selectors")
	if err != nil {
		return nil, err
	}
	discovery, err := s.extractor.Discover(doc, req.GetString("element_type", marketplace.ElementProducts))
	if err != nil {
		return nil, err
	}
	page, err := s.browser.PageInfo(ctx)
	if err != nil {
		return nil, err
	}
	return DiscoveryResult{Discovery: discovery, PageInfo: page}, nil
}

func (s *Server) testSelector(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	selector, err := req.RequireString("selector")
	if err != nil {
		return nil, scouterrors.NewSelector("test_selector", err.Error(), nil)
	}
	doc, _, err := s.snapshot(ctx, "test_selector")
	if err != nil {
		return nil, err
	}

	checkVisibility := req.GetBool("check_visibility", true)
	var visible []bool
	if checkVisibility {
		if visible, err = s.browser.Visibility(ctx, selector, visibilitySample); err != nil {
			s.log.Debug().Err(err).Str("selector", selector).Msg("Browser visibility unavailable, using markup")
			visible = nil
		}
	}

	result, err := s.extractor.TestSelector(doc, selector, req.GetBool("extract_text", true), checkVisibility, visible)
	if err != nil {
		return nil, err
	}
	s.learning.RecordSelector(ctx, "manual", selector, result.IsUseful)
	return result, nil
}

package tools

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"sjsage522/scoutmcp/internal/browser"
	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// NavigationResult is returned by navigate_to_page and go_to_home
type NavigationResult struct {
	Success      bool      `json:"success"`
	RequestedURL string    `json:"requested_url"`
	FinalURL     string    `json:"final_url"`
	PageTitle    string    `json:"page_title"`
	IsMLMexico   bool      `json:"is_ml_mexico"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
}

// SearchResult is returned by search_products
type SearchResult struct {
	SearchQuery         string    `json:"search_query"`
	Success             bool      `json:"success"`
	ResultsURL          string    `json:"results_url"`
	PageTitle           string    `json:"page_title"`
	IsSearchResultsPage bool      `json:"is_search_results_page"`
	Timestamp           time.Time `json:"timestamp"`
}

// PaginationResult is returned by navigate_pagination
type PaginationResult struct {
	Direction   string    `json:"direction"`
	Success     bool      `json:"success"`
	PreviousURL string    `json:"previous_url"`
	CurrentURL  string    `json:"current_url"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

func (s *Server) registerNavigationTools() {
	s.mcp.AddTool(mcp.NewTool("navigate_to_page",
		mcp.WithDescription("Navega a una URL específica de MercadoLibre México."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL de MercadoLibre México a visitar")),
	), s.capture("navigate_to_page", s.navigateToPage))

	s.mcp.AddTool(mcp.NewTool("go_to_home",
		mcp.WithDescription("Navega a la página principal de MercadoLibre México."),
	), s.capture("go_to_home", s.goToHome))

	s.mcp.AddTool(mcp.NewTool("search_products",
		mcp.WithDescription("Busca productos usando la caja de búsqueda del sitio."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Término de búsqueda")),
	), s.capture("search_products", s.searchProducts))

	s.mcp.AddTool(mcp.NewTool("get_current_page_info",
		mcp.WithDescription("Obtiene URL, título, tipo de página y tarjetas de producto de la página actual."),
	), s.plain("get_current_page_info", s.currentPageInfo))

	s.mcp.AddTool(mcp.NewTool("navigate_pagination",
		mcp.WithDescription("Navega a la página siguiente o anterior de resultados."),
		mcp.WithString("direction", mcp.DefaultString("next"), mcp.Enum("next", "previous"),
			mcp.Description(`"next" o "previous"`)),
	), s.capture("navigate_pagination", s.navigatePagination))
}

func (s *Server) navigateToPage(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return nil, scouterrors.NewNavigation("navigate_to_page", err.Error(), nil)
	}
	return s.navigation(ctx, rawURL, func(ctx context.Context) (string, error) {
		return s.browser.Navigate(ctx, rawURL)
	})
}

func (s *Server) goToHome(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	return s.navigation(ctx, s.extractor.Profile().HomeURL(), s.browser.GoHome)
}

func (s *Server) navigation(ctx context.Context, requested string, navigate func(context.Context) (string, error)) (any, error) {
	final, err := navigate(ctx)
	if err != nil {
		return nil, err
	}
	page, err := s.browser.PageInfo(ctx)
	if err != nil {
		return nil, err
	}
	return NavigationResult{
		Success:      true,
		RequestedURL: requested,
		FinalURL:     final,
		PageTitle:    page.Title,
		IsMLMexico:   page.IsMLMexico,
		Timestamp:    s.now(),
		Message:      "Navegación exitosa a " + final,
	}, nil
}

func (s *Server) searchProducts(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return nil, scouterrors.NewSearch("search_products", err.Error(), nil)
	}
	return s.search(ctx, query)
}

// search makes sure a marketplace page is loaded before using its search box
func (s *Server) search(ctx context.Context, query string) (SearchResult, error) {
	if err := s.ensureMarketplacePage(ctx); err != nil {
		return SearchResult{}, err
	}
	resultsURL, err := s.browser.Search(ctx, query)
	if err != nil {
		return SearchResult{}, err
	}
	page, err := s.browser.PageInfo(ctx)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{
		SearchQuery:         query,
		Success:             true,
		ResultsURL:          resultsURL,
		PageTitle:           page.Title,
		IsSearchResultsPage: page.PageType == marketplace.PageSearchResults,
		Timestamp:           s.now(),
	}, nil
}

func (s *Server) ensureMarketplacePage(ctx context.Context) error {
	if s.browser.HasPage() {
		page, err := s.browser.PageInfo(ctx)
		if err == nil && page.IsMLMexico {
			return nil
		}
	}
	_, err := s.browser.GoHome(ctx)
	return err
}

func (s *Server) currentPageInfo(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	if !s.browser.HasPage() {
		return nil, scouterrors.NewNavigation("get_current_page_info",
			"No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	return s.browser.PageInfo(ctx)
}

func (s *Server) navigatePagination(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	direction := req.GetString("direction", "next")
	result := PaginationResult{Direction: direction, Timestamp: s.now()}
	if direction != browser.DirectionNext && direction != browser.DirectionPrevious {
		result.Message = "Dirección inválida: " + direction + ` (use "next" o "previous")`
		return result, nil
	}
	if page, err := s.browser.PageInfo(ctx); err == nil {
		result.PreviousURL = page.URL
	}

	current, err := s.browser.Paginate(ctx, direction)
	if stderrors.Is(err, scouterrors.ErrNotFound) {
		result.CurrentURL = result.PreviousURL
		result.Message = "No se pudo navegar - posiblemente no hay más páginas"
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Success = true
	result.CurrentURL = current
	result.Message = "Navegación " + direction + " exitosa"
	return result, nil
}

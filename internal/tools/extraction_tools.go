package tools

import (
	"context"

	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"

	"sjsage522/scoutmcp/internal/browser"
	"sjsage522/scoutmcp/internal/extract"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// HTMLResult is returned by extract_page_html
type HTMLResult struct {
	*extract.HTMLExtraction
	PageInfo browser.PageInfo `json:"page_info"`
}

func (s *Server) registerExtractionTools() {
	s.mcp.AddTool(mcp.NewTool("extract_page_html",
		mcp.WithDescription("Extrae el HTML de la página actual o de un elemento para analizar su estructura."),
		mcp.WithString("selector", mcp.Description("Selector CSS del elemento (opcional, por defecto toda la página)")),
		mcp.WithNumber("max_length", mcp.DefaultNumber(extract.DefaultMaxHTMLLength),
			mcp.Description("Longitud máxima del HTML en caracteres")),
		mcp.WithBoolean("pretty_format", mcp.DefaultBool(false), mcp.Description("Si formatear el HTML con indentación")),
	), s.capture("extract_page_html", s.extractPageHTML))

	s.mcp.AddTool(mcp.NewTool("extract_text_content",
		mcp.WithDescription("Extrae el texto visible de los elementos que coinciden con un selector."),
		mcp.WithString("selector", mcp.Required(), mcp.Description("Selector CSS")),
		mcp.WithBoolean("all_matches", mcp.DefaultBool(false), mcp.Description("Si extraer de todos los elementos o solo del primero")),
	), s.capture("extract_text_content", s.extractTextContent))
}

func (s *Server) extractPageHTML(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	doc, _, err := s.snapshot(ctx, "extract_page_html")
	if err != nil {
		return nil, err
	}
	selector := req.GetString("selector", "")
	var content string
	if selector == "" {
		content, err = s.browser.Content(ctx)
		if err != nil {
			return nil, scouterrors.NewExtraction("extract_page_html", "Error extrayendo HTML", err)
		}
	}
	out, err := s.extractor.PageHTML(doc, content, selector,
		req.GetInt("max_length", extract.DefaultMaxHTMLLength),
		req.GetBool("pretty_format", false),
	)
	if err != nil {
		return nil, err
	}
	page, err := s.browser.PageInfo(ctx)
	if err != nil {
		return nil, err
	}
	return HTMLResult{HTMLExtraction: out, PageInfo: page}, nil
}

func (s *Server) extractTextContent(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	selector, err := req.RequireString("selector")
	if err != nil {
		return nil, scouterrors.NewSelector("extract_text_content", err.Error(), nil)
	}
	doc, _, err := s.snapshot(ctx, "extract_text_content")
	if err != nil {
		return nil, err
	}
	return s.extractor.Text(doc, selector, req.GetBool("all_matches", false))
}

// snapshot parses the current page, failing when nothing is loaded
func (s *Server) snapshot(ctx context.Context, tool string) (*goquery.Document, string, error) {
	if !s.browser.HasPage() {
		return nil, "", scouterrors.NewExtraction(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	doc, pageURL, err := s.browser.Snapshot(ctx)
	if err != nil {
		return nil, "", scouterrors.NewExtraction(tool, "No se pudo leer la página", err)
	}
	return doc, pageURL, nil
}

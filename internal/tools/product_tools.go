package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

const defaultProductLimit = 20

func (s *Server) registerProductTools() {
	s.mcp.AddTool(mcp.NewTool("extract_products",
		mcp.WithDescription("Extrae productos de la página de resultados actual con precios, descuentos y estadísticas."),
		mcp.WithNumber("limit", mcp.DefaultNumber(defaultProductLimit), mcp.Description("Número máximo de productos")),
		mcp.WithObject("custom_selectors",
			mcp.Description("Selectores personalizados por campo: product_card, title, price, original_price, link, image, shipping, seller")),
	), s.capture("extract_products", s.extractProducts))
}

func (s *Server) extractProducts(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	doc, pageURL, err := s.snapshot(ctx, "extract_products")
	if err != nil {
		return nil, err
	}
	custom := stringMap(req.GetArguments()["custom_selectors"])

	out, err := s.extractor.ExtractProducts(ctx, doc, pageURL, req.GetInt("limit", defaultProductLimit), custom)
	if err != nil {
		return nil, err
	}
	s.metrics.AddProducts(len(out.Products))
	return out, nil
}

// stringMap converts a JSON object argument to field selectors, skipping
// empty values
func stringMap(v any) map[string]string {
	obj, ok := v.(map[string]interface{})
	if !ok || len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for k, raw := range obj {
		if raw == nil {
			continue
		}
		if s := fmt.Sprint(raw); s != "" {
			out[k] = s
		}
	}
	return out
}

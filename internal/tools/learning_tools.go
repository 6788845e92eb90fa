package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"sjsage522/scoutmcp/internal/learning"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// AdviceResult is returned by get_prevention_advice
type AdviceResult struct {
	ToolName             string                    `json:"tool_name"`
	TotalRecommendations int                       `json:"total_recommendations"`
	Recommendations      []learning.Recommendation `json:"recommendations"`
	ContextAnalyzed      map[string]interface{}    `json:"context_analyzed"`
	Timestamp            time.Time                 `json:"timestamp"`
}

// SimilarResult is returned by search_similar_errors
type SimilarResult struct {
	SearchQuery   string                  `json:"search_query"`
	ToolFilter    *string                 `json:"tool_filter"`
	TotalFound    int                     `json:"total_found"`
	SimilarErrors []learning.SimilarError `json:"similar_errors"`
	Timestamp     time.Time               `json:"timestamp"`
}

func (s *Server) registerLearningTools() {
	s.mcp.AddTool(mcp.NewTool("get_prevention_advice",
		mcp.WithDescription("Obtiene consejos de prevención antes de usar una herramienta. Úsalo antes de ejecutar herramientas críticas para evitar errores conocidos."),
		mcp.WithString("tool_name", mcp.Required(), mcp.Description("Nombre de la herramienta que vas a usar")),
		mcp.WithObject("context_info", mcp.Description("Información del contexto actual (opcional)")),
		mcp.WithString("user_query", mcp.Description("Consulta del usuario (opcional)")),
	), s.plain("get_prevention_advice", s.preventionAdvice))

	s.mcp.AddTool(mcp.NewTool("get_error_statistics",
		mcp.WithDescription("Obtiene estadísticas detalladas de errores comunes."),
	), s.plain("get_error_statistics", func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
		return s.learning.Statistics(), nil
	}))

	s.mcp.AddTool(mcp.NewTool("search_similar_errors",
		mcp.WithDescription("Busca errores similares en el historial con sus soluciones."),
		mcp.WithString("error_description", mcp.Required(), mcp.Description("Descripción del error que quieres buscar")),
		mcp.WithString("tool_name", mcp.Description("Filtrar por herramienta específica (opcional)")),
		mcp.WithNumber("limit", mcp.DefaultNumber(learning.DefaultSimilarLimit), mcp.Description("Número máximo de resultados")),
	), s.plain("search_similar_errors", s.searchSimilar))

	s.mcp.AddTool(mcp.NewTool("get_learning_insights",
		mcp.WithDescription("Obtiene tendencias, herramientas problemáticas y oportunidades de mejora a partir del historial de errores."),
	), s.plain("get_learning_insights", func(ctx context.Context, req mcp.CallToolRequest) (any, error) {
		return s.learning.Insights(), nil
	}))

	s.mcp.AddTool(mcp.NewTool("export_error_data",
		mcp.WithDescription("Exporta datos de errores para análisis externo."),
		mcp.WithString("format_type", mcp.DefaultString("summary"), mcp.Enum("summary", "json"),
			mcp.Description(`"json" para datos completos, "summary" para resumen`)),
		mcp.WithBoolean("include_statistics", mcp.DefaultBool(true), mcp.Description("Si incluir estadísticas")),
	), s.plain("export_error_data", s.exportErrors))
}

func (s *Server) preventionAdvice(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	toolName, err := req.RequireString("tool_name")
	if err != nil {
		return nil, scouterrors.New(scouterrors.CategoryUnknown, "get_prevention_advice", err.Error(), nil)
	}
	contextInfo, _ := req.GetArguments()["context_info"].(map[string]interface{})
	if contextInfo == nil {
		contextInfo = map[string]interface{}{}
	}

	recs := s.learning.PreventionAdvice(toolName, contextInfo, req.GetString("user_query", ""))
	return AdviceResult{
		ToolName:             toolName,
		TotalRecommendations: len(recs),
		Recommendations:      recs,
		ContextAnalyzed:      contextInfo,
		Timestamp:            s.now(),
	}, nil
}

func (s *Server) searchSimilar(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	description, err := req.RequireString("error_description")
	if err != nil {
		return nil, scouterrors.New(scouterrors.CategoryUnknown, "search_similar_errors", err.Error(), nil)
	}
	toolName := req.GetString("tool_name", "")

	similar := s.learning.SearchSimilar(description, toolName, req.GetInt("limit", learning.DefaultSimilarLimit))
	result := SimilarResult{
		SearchQuery:   description,
		TotalFound:    len(similar),
		SimilarErrors: similar,
		Timestamp:     s.now(),
	}
	if toolName != "" {
		result.ToolFilter = &toolName
	}
	return result, nil
}

func (s *Server) exportErrors(ctx context.Context, req mcp.CallToolRequest) (any, error) {
	switch format := req.GetString("format_type", "summary"); format {
	case "summary":
		return s.learning.ExportSummary(), nil
	case "json":
		return s.learning.ExportFull(req.GetBool("include_statistics", true)), nil
	default:
		return nil, scouterrors.New(scouterrors.CategoryUnknown, "export_error_data",
			fmt.Sprintf("formato no soportado: %s (use summary o json)", format), nil)
	}
}

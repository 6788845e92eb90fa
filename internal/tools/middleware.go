package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"sjsage522/scoutmcp/internal/learning"
	"sjsage522/scoutmcp/logger"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// toolFunc returns the flat payload of a tool or the error that failed it
type toolFunc func(ctx context.Context, req mcp.CallToolRequest) (any, error)

// ErrorResult is returned, flagged as an error, when a tool fails
type ErrorResult struct {
	Success           bool                  `json:"success"`
	Tool              string                `json:"tool"`
	Error             string                `json:"error"`
	ErrorID           string                `json:"error_id"`
	Category          string                `json:"category"`
	Severity          string                `json:"severity"`
	PreventionHints   int                   `json:"prevention_hints"`
	Suggestions       []learning.Suggestion `json:"suggestions"`
	RecommendedAction string                `json:"recommended_action"`
}

// queryKeys are the arguments recorded as the user query of a failure
var queryKeys = []string{"query", "search_query", "user_query", "url", "selector", "error_description"}

func userQuery(req mcp.CallToolRequest) string {
	for _, key := range queryKeys {
		if v := req.GetString(key, ""); v != "" {
			return v
		}
	}
	return ""
}

// capture runs fn, logs and measures it, and on failure stores the error in
// the learning store and answers with an ErrorResult carrying its id
func (s *Server) capture(name string, fn toolFunc) server.ToolHandlerFunc {
	log := logger.ForTool(name)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		query := userQuery(req)

		hints := len(s.learning.PreventionAdvice(name, nil, query))
		if hints > 0 {
			log.Info().Int("advice", hints).Msg("Prevention advice available")
		}

		out, err := fn(ctx, req)
		s.metrics.ObserveToolCall(name, err == nil, time.Since(start))
		if err == nil {
			log.Debug().Dur("elapsed", time.Since(start)).Msg("Tool succeeded")
			return structured(out)
		}

		analysis := s.learning.AnalyzeAndSuggest(ctx, err, name, s.pageContext(ctx), query)
		category, severity := scouterrors.Classify(err)
		log.Error().
			Err(err).
			Str("error_id", analysis.ErrorID).
			Str("category", string(category)).
			Msg("Tool failed")

		return errorResult(ErrorResult{
			Tool:              name,
			Error:             fmt.Sprintf("Error en %s: %v", name, err),
			ErrorID:           analysis.ErrorID,
			Category:          string(category),
			Severity:          string(severity),
			PreventionHints:   hints,
			Suggestions:       analysis.Suggestions,
			RecommendedAction: analysis.RecommendedAction,
		})
	}
}

// plain runs fn without capturing its failures
func (s *Server) plain(name string, fn toolFunc) server.ToolHandlerFunc {
	log := logger.ForTool(name)
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		out, err := fn(ctx, req)
		s.metrics.ObserveToolCall(name, err == nil, time.Since(start))
		if err != nil {
			log.Warn().Err(err).Msg("Tool failed")
			category, severity := scouterrors.Classify(err)
			return errorResult(ErrorResult{
				Tool:        name,
				Error:       fmt.Sprintf("Error en %s: %v", name, err),
				Category:    string(category),
				Severity:    string(severity),
				Suggestions: []learning.Suggestion{},
			})
		}
		return structured(out)
	}
}

// pageContext describes the loaded page for error capture
func (s *Server) pageContext(ctx context.Context) map[string]interface{} {
	info := map[string]interface{}{}
	if !s.browser.HasPage() {
		return info
	}
	page, err := s.browser.PageInfo(ctx)
	if err != nil {
		return info
	}
	info["page_url"] = page.URL
	info["page_type"] = page.PageType
	info["page_title"] = page.Title
	info["is_ml_mexico"] = page.IsMLMexico
	return info
}

// structured returns out as structured content and as JSON text
func structured(out any) (*mcp.CallToolResult, error) {
	text, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultStructured(out, string(text)), nil
}

func errorResult(e ErrorResult) (*mcp.CallToolResult, error) {
	if e.Suggestions == nil {
		e.Suggestions = []learning.Suggestion{}
	}
	res, err := structured(e)
	if err != nil {
		return nil, err
	}
	res.IsError = true
	return res, nil
}

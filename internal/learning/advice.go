package learning

import (
	"fmt"
	"sort"
)

// Tools whose outcome depends on CSS selectors
var selectorTools = map[string]bool{
	"extract_products":         true,
	"extract_text_content":     true,
	"test_selector":            true,
	"discover_selectors":       true,
	"wait_for_element":         true,
	"smart_search_and_extract": true,
}

const (
	maxAdvice              = 5
	unreliableMinUses      = 3
	unreliableFailureRatio = 0.5
)

// PreventionAdvice returns recommendations for toolName built from its
// recurring errors, most frequent and most severe first, followed by
// warnings about unreliable selectors.
func (m *Manager) PreventionAdvice(toolName string, contextInfo map[string]interface{}, userQuery string) []Recommendation {
	var relevant []*ErrorPattern
	for _, p := range m.snapshotPatterns() {
		if p.ToolName == toolName && p.Frequency > 1 {
			relevant = append(relevant, p)
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		if relevant[i].Frequency != relevant[j].Frequency {
			return relevant[i].Frequency > relevant[j].Frequency
		}
		return relevant[i].Severity.Rank() > relevant[j].Severity.Rank()
	})
	if len(relevant) > maxAdvice {
		relevant = relevant[:maxAdvice]
	}

	recommendations := make([]Recommendation, 0, len(relevant))
	for i, p := range relevant {
		solution := p.Solution
		if solution == "" {
			solution = "Revisar el contexto antes de proceder."
		}
		applicable := p.PageType
		if applicable == "" {
			applicable = "cualquier página"
		}
		recommendations = append(recommendations, Recommendation{
			RecommendationID:   "rec_" + p.ErrorID,
			Title:              "Evitar: " + p.ErrorMessage,
			Description:        fmt.Sprintf("Este error ha ocurrido %d veces. %s", p.Frequency, solution),
			RelatedErrors:      []string{p.ErrorID},
			PreventionSteps:    p.PreventionTips,
			ApplicableContexts: []string{applicable},
			Priority:           maxAdvice - i,
		})
	}

	if selectorTools[toolName] {
		recommendations = append(recommendations, m.unreliableSelectorAdvice()...)
	}

	m.log.Debug().
		Str("tool", toolName).
		Int("recommendations", len(recommendations)).
		Str("query", userQuery).
		Msg("Prevention advice computed")
	return recommendations
}

func (m *Manager) unreliableSelectorAdvice() []Recommendation {
	var advice []Recommendation
	for _, r := range m.snapshotSelectors() {
		if r.Uses() < unreliableMinUses {
			continue
		}
		failureRate := float64(r.Failures) / float64(r.Uses())
		if failureRate < unreliableFailureRatio {
			continue
		}
		advice = append(advice, Recommendation{
			RecommendationID: "sel_" + selectorKey(r.Field, r.Selector),
			Title:            "Selector poco confiable: " + r.Selector,
			Description: fmt.Sprintf("El selector para '%s' falló %d de %d veces (%.0f%%).",
				r.Field, r.Failures, r.Uses(), failureRate*100),
			PreventionSteps: []string{
				"Usar discover_selectors() para encontrar alternativas",
				"Validar con test_selector() antes de extraer",
				"Pasar custom_selectors a extract_products() si el selector por defecto falla",
			},
			ApplicableContexts: []string{r.Field},
			Priority:           1,
		})
	}
	return advice
}

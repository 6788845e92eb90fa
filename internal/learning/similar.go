package learning

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const similarityThreshold = 0.3

// DefaultSimilarLimit is the result cap when the caller gives none
const DefaultSimilarLimit = 5

// SearchSimilar returns stored patterns whose message shares enough words
// with description. The score is the share of description words found in
// the pattern message and original error type.
func (m *Manager) SearchSimilar(description, toolName string, limit int) []SimilarError {
	if limit <= 0 {
		return []SimilarError{}
	}
	terms := strings.Fields(strings.ToLower(description))
	if len(terms) == 0 {
		return []SimilarError{}
	}

	similar := []SimilarError{}
	for _, p := range m.snapshotPatterns() {
		if toolName != "" && p.ToolName != toolName {
			continue
		}

		text := strings.ToLower(p.ErrorMessage + " " + p.OriginalError)
		matches := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				matches++
			}
		}
		score := float64(matches) / float64(len(terms))
		if score <= similarityThreshold {
			continue
		}

		similar = append(similar, SimilarError{
			ErrorID:         p.ErrorID,
			SimilarityScore: score,
			ErrorMessage:    p.ErrorMessage,
			Frequency:       p.Frequency,
			Category:        string(p.Category),
			Severity:        string(p.Severity),
			Solution:        p.Solution,
			PreventionTips:  p.PreventionTips,
			ToolName:        p.ToolName,
			LastSeen:        p.LastSeen,
		})
	}

	sort.SliceStable(similar, func(i, j int) bool {
		if similar[i].SimilarityScore != similar[j].SimilarityScore {
			return similar[i].SimilarityScore > similar[j].SimilarityScore
		}
		return similar[i].Frequency > similar[j].Frequency
	})
	if len(similar) > limit {
		similar = similar[:limit]
	}
	return similar
}

// AnalyzeAndSuggest captures err and builds immediate suggestions from
// earlier patterns of the same tool that share one of the message's first
// three words.
func (m *Manager) AnalyzeAndSuggest(ctx context.Context, err error, toolName string, contextInfo map[string]interface{}, userQuery string) Analysis {
	errorID := m.CaptureError(ctx, err, toolName, contextInfo, userQuery)

	message := ""
	if err != nil {
		message = strings.ToLower(err.Error())
	}
	words := strings.Fields(message)
	if len(words) > 3 {
		words = words[:3]
	}

	var related []*ErrorPattern
	for _, p := range m.snapshotPatterns() {
		if p.ToolName != toolName || p.ErrorID == errorID {
			continue
		}
		stored := strings.ToLower(p.ErrorMessage)
		for _, w := range words {
			if strings.Contains(stored, w) {
				related = append(related, p)
				break
			}
		}
	}
	sort.SliceStable(related, func(i, j int) bool {
		return related[i].Frequency > related[j].Frequency
	})

	suggestions := []Suggestion{}
	for i, p := range related {
		if i == 3 {
			break
		}
		if p.Solution != "" {
			suggestions = append(suggestions, Suggestion{
				Type:       "solution",
				Text:       p.Solution,
				Confidence: 0.8,
				BasedOn:    fmt.Sprintf("Error similar ocurrido %d veces", p.Frequency),
			})
		}
		for j, tip := range p.PreventionTips {
			if j == 2 {
				break
			}
			suggestions = append(suggestions, Suggestion{
				Type:       "prevention",
				Text:       tip,
				Confidence: 0.7,
				BasedOn:    "Prevención de errores similares",
			})
		}
	}

	if strings.Contains(message, "timeout") {
		suggestions = append(suggestions, Suggestion{
			Type:       "immediate_action",
			Text:       "Intentar aumentar el timeout o verificar la conexión",
			Confidence: 0.9,
			BasedOn:    "Patrón de timeout detectado",
		})
	}
	if isNotFound(message) {
		suggestions = append(suggestions, Suggestion{
			Type:       "immediate_action",
			Text:       "Verificar que el elemento existe en la página actual",
			Confidence: 0.9,
			BasedOn:    "Elemento no encontrado",
		})
	}

	analysis := Analysis{
		ErrorID:            errorID,
		SimilarErrorsFound: len(related),
		Suggestions:        suggestions,
		ConfidenceLevel:    "medium",
		RecommendedAction:  "Revisar documentación",
		Timestamp:          m.now(),
	}
	if len(related) > 0 {
		analysis.ConfidenceLevel = "high"
	}
	if len(suggestions) > 0 {
		analysis.RecommendedAction = suggestions[0].Text
	}
	return analysis
}

package learning

import (
	"fmt"
	"sort"
	"time"
)

const (
	recentWindow       = 7 * 24 * time.Hour
	veryRecentWindow   = 3 * 24 * time.Hour
	topErrors          = 10
	topTools           = 5
	topSelectors       = 5
	highFrequencyCount = 3
	recurringFrequency = 3
)

// Statistics summarises every stored pattern
func (m *Manager) Statistics() Statistics {
	return m.statistics(m.snapshotPatterns())
}

func (m *Manager) statistics(patterns []*ErrorPattern) Statistics {
	if len(patterns) == 0 {
		return Statistics{
			ErrorsByCategory:    map[string]int{},
			ErrorsBySeverity:    map[string]int{},
			MostCommonErrors:    []CommonError{},
			RecentErrors:        []RecentError{},
			LearningSuggestions: []string{"No hay errores registrados aún."},
		}
	}

	byCategory := map[string]int{}
	bySeverity := map[string]int{}
	for _, p := range patterns {
		byCategory[string(p.Category)] += p.Frequency
		bySeverity[string(p.Severity)] += p.Frequency
	}

	return Statistics{
		TotalErrors:         len(patterns),
		ErrorsByCategory:    byCategory,
		ErrorsBySeverity:    bySeverity,
		MostCommonErrors:    mostCommon(patterns, topErrors),
		RecentErrors:        m.recent(patterns, topErrors),
		LearningSuggestions: m.learningSuggestions(patterns),
	}
}

func mostCommon(patterns []*ErrorPattern, n int) []CommonError {
	sorted := append([]*ErrorPattern(nil), patterns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Frequency > sorted[j].Frequency
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]CommonError, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, CommonError{
			ErrorID:   p.ErrorID,
			Message:   p.ErrorMessage,
			Frequency: p.Frequency,
			Category:  string(p.Category),
			Tool:      p.ToolName,
		})
	}
	return out
}

func (m *Manager) recent(patterns []*ErrorPattern, n int) []RecentError {
	since := m.now().Add(-recentWindow)
	var recent []*ErrorPattern
	for _, p := range patterns {
		if !p.LastSeen.Before(since) {
			recent = append(recent, p)
		}
	}
	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].LastSeen.After(recent[j].LastSeen)
	})
	if len(recent) > n {
		recent = recent[:n]
	}

	out := make([]RecentError, 0, len(recent))
	for _, p := range recent {
		out = append(out, RecentError{
			ErrorID:  p.ErrorID,
			Message:  p.ErrorMessage,
			LastSeen: p.LastSeen,
			Tool:     p.ToolName,
		})
	}
	return out
}

func (m *Manager) learningSuggestions(patterns []*ErrorPattern) []string {
	if len(patterns) == 0 {
		return []string{"Aún no hay suficientes datos para generar sugerencias."}
	}

	var suggestions []string

	highFrequency := 0
	for _, p := range patterns {
		if p.Frequency >= highFrequencyCount {
			highFrequency++
		}
	}
	if highFrequency > 0 {
		suggestions = append(suggestions, fmt.Sprintf(
			"Se han identificado %d errores frecuentes. Considera revisar la lógica de estas operaciones.", highFrequency))
	}

	counts := map[string]int{}
	for _, p := range patterns {
		counts[string(p.Category)]++
	}
	worst := ""
	for category, count := range counts {
		if worst == "" || count > counts[worst] || (count == counts[worst] && category < worst) {
			worst = category
		}
	}
	suggestions = append(suggestions, fmt.Sprintf(
		"La categoría más problemática es '%s'. Considera mejorar el manejo en esta área.", worst))

	since := m.now().Add(-veryRecentWindow)
	recent := 0
	for _, p := range patterns {
		if !p.LastSeen.Before(since) {
			recent++
		}
	}
	if float64(recent) > float64(len(patterns))*0.5 {
		suggestions = append(suggestions, "Muchos errores son recientes. Puede haber cambios en el sitio web o en el código.")
	}

	return suggestions
}

// Insights reports learning trends over the stored patterns and selectors
func (m *Manager) Insights() Insights {
	patterns := m.snapshotPatterns()
	stats := m.statistics(patterns)

	since := m.now().Add(-recentWindow)
	recent, stable, recurring := 0, 0, 0
	toolErrors := map[string]int{}
	for _, p := range patterns {
		if !p.LastSeen.Before(since) {
			recent++
		}
		if p.Frequency == 1 {
			stable++
		}
		if p.Frequency > recurringFrequency {
			recurring++
		}
		if p.ToolName != "" {
			toolErrors[p.ToolName] += p.Frequency
		}
	}

	tools := make([]ToolFrequency, 0, len(toolErrors))
	for tool, freq := range toolErrors {
		tools = append(tools, ToolFrequency{ToolName: tool, ErrorFrequency: freq})
	}
	sort.Slice(tools, func(i, j int) bool {
		if tools[i].ErrorFrequency != tools[j].ErrorFrequency {
			return tools[i].ErrorFrequency > tools[j].ErrorFrequency
		}
		return tools[i].ToolName < tools[j].ToolName
	})
	if len(tools) > topTools {
		tools = tools[:topTools]
	}

	best, worst := rankSelectors(m.snapshotSelectors())

	return Insights{
		Summary: InsightSummary{
			TotalUniqueErrors: len(patterns),
			RecentErrorsCount: recent,
			StableErrors:      stable,
			RecurringErrors:   recurring,
		},
		ProblematicTools:        tools,
		CategoryAnalysis:        stats.ErrorsByCategory,
		SeverityDistribution:    stats.ErrorsBySeverity,
		LearningRecommendations: append([]string(nil), learningRecommendations...),
		SuccessIndicators: []string{
			fmt.Sprintf("%d errores han ocurrido solo una vez (buena resolución)", stable),
			fmt.Sprintf("%d errores no son recurrentes", len(patterns)-recurring),
		},
		BestSelectors:  best,
		WorstSelectors: worst,
		Timestamp:      m.now(),
	}
}

// rankSelectors returns the most and least reliable used selectors
func rankSelectors(records []SelectorRecord) ([]SelectorRecord, []SelectorRecord) {
	var used []SelectorRecord
	for _, r := range records {
		if r.Uses() > 0 {
			used = append(used, r)
		}
	}

	best := append([]SelectorRecord(nil), used...)
	sort.SliceStable(best, func(i, j int) bool {
		if best[i].SuccessRate() != best[j].SuccessRate() {
			return best[i].SuccessRate() > best[j].SuccessRate()
		}
		return best[i].Uses() > best[j].Uses()
	})
	if len(best) > topSelectors {
		best = best[:topSelectors]
	}

	var worst []SelectorRecord
	for _, r := range used {
		if r.Failures > 0 {
			worst = append(worst, r)
		}
	}
	sort.SliceStable(worst, func(i, j int) bool {
		if worst[i].SuccessRate() != worst[j].SuccessRate() {
			return worst[i].SuccessRate() < worst[j].SuccessRate()
		}
		return worst[i].Failures > worst[j].Failures
	})
	if len(worst) > topSelectors {
		worst = worst[:topSelectors]
	}

	if best == nil {
		best = []SelectorRecord{}
	}
	if worst == nil {
		worst = []SelectorRecord{}
	}
	return best, worst
}

// ExportFull dumps every pattern and selector record
func (m *Manager) ExportFull(includeStatistics bool) FullExport {
	patterns := m.snapshotPatterns()
	out := FullExport{
		TotalPatterns:   len(patterns),
		Patterns:        make([]ErrorPattern, 0, len(patterns)),
		Selectors:       m.snapshotSelectors(),
		ExportTimestamp: m.now(),
	}
	for _, p := range patterns {
		out.Patterns = append(out.Patterns, *p)
	}
	if includeStatistics {
		stats := m.statistics(patterns)
		out.Statistics = &stats
	}
	return out
}

// ExportSummary returns the condensed export
func (m *Manager) ExportSummary() SummaryExport {
	patterns := m.snapshotPatterns()
	stats := m.statistics(patterns)
	return SummaryExport{
		TotalErrors:          len(patterns),
		ExportTime:           m.now(),
		MostCommonErrors:     stats.MostCommonErrors,
		LearningSuggestions:  stats.LearningSuggestions,
		CategoryBreakdown:    stats.ErrorsByCategory,
		PreventionGuidelines: PreventionGuidelines(),
	}
}

package extract

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/scoutmcp/helpers"
	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

const (
	maxAnalysed      = 10
	sampleTextLength = 100
	usefulTextLength = 10
	usefulScore      = 0.6
)

var elementDescriptions = map[string]string{
	marketplace.ElementProducts:   "Tarjeta de producto",
	marketplace.ElementPrices:     "Precio de producto",
	marketplace.ElementTitles:     "Título de producto",
	marketplace.ElementNavigation: "Navegación/Paginación",
	marketplace.ElementSearch:     "Caja de búsqueda",
}

// Discover counts the known candidate selectors of elementType on doc.
// Candidates without matches are left out.
func (e *Extractor) Discover(doc *goquery.Document, elementType string) (*Discovery, error) {
	const tool = "discover_selectors"
	if doc == nil {
		return nil, scouterrors.NewSelector(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	patterns, ok := e.profile.PatternsFor(elementType)
	if !ok {
		return nil, scouterrors.NewSelector(tool,
			fmt.Sprintf("tipo de elemento desconocido: %s (válidos: %s)", elementType, strings.Join(e.profile.ElementTypes(), ", ")),
			scouterrors.ErrNotFound)
	}

	confidence := 0.9
	if elementType == marketplace.ElementNavigation {
		confidence = 0.8
	}
	description := elementDescriptions[elementType]
	if description == "" {
		description = elementType
	}

	found := []DiscoveredSelector{}
	for _, sel := range patterns {
		matches, err := helpers.Find(doc.Selection, sel)
		if err != nil || matches.Length() == 0 {
			continue
		}
		found = append(found, DiscoveredSelector{
			Selector:     sel,
			Confidence:   confidence,
			Description:  description,
			ElementCount: matches.Length(),
		})
	}
	sort.SliceStable(found, func(i, j int) bool {
		if found[i].Confidence != found[j].Confidence {
			return found[i].Confidence > found[j].Confidence
		}
		return found[i].ElementCount > found[j].ElementCount
	})

	return &Discovery{
		ElementType:     elementType,
		SelectorsFound:  len(found),
		Selectors:       found,
		Recommendations: discoveryRecommendations(found, elementType),
		Timestamp:       e.now(),
	}, nil
}

func discoveryRecommendations(found []DiscoveredSelector, elementType string) []string {
	if len(found) == 0 {
		return []string{"No se encontraron selectores para " + elementType}
	}
	recs := []string{fmt.Sprintf("Mejor selector: %s (confianza: %.1f)", found[0].Selector, found[0].Confidence)}
	high := 0
	for _, s := range found {
		if s.Confidence >= 0.8 {
			high++
		}
	}
	if high > 1 {
		recs = append(recs, fmt.Sprintf("%d selectores de alta confianza disponibles", high))
	}
	return recs
}

// TestSelector scores how useful selector is on doc. visible holds the
// browser's visibility of the first matches; when it is shorter than the
// analysed elements the markup decides.
func (e *Extractor) TestSelector(doc *goquery.Document, selector string, extractText, checkVisibility bool, visible []bool) (*SelectorTest, error) {
	const tool = "test_selector"
	if doc == nil {
		return nil, scouterrors.NewSelector(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	matches, err := helpers.Find(doc.Selection, selector)
	if err != nil {
		return nil, scouterrors.NewSelector(tool, "Error probando selector "+selector, err)
	}

	result := &SelectorTest{
		Selector:        selector,
		ElementCount:    matches.Length(),
		Recommendations: []string{},
		Timestamp:       e.now(),
	}
	if result.ElementCount == 0 {
		result.Message = "No se encontraron elementos"
		return result, nil
	}
	result.Success = true

	analysis := &SelectorAnalysis{
		SampleTexts:  []SampleText{},
		ElementTypes: []string{},
	}
	matches.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if i >= maxAnalysed {
			return false
		}
		analysis.ElementCount++
		analysis.ElementTypes = append(analysis.ElementTypes, goquery.NodeName(s))

		if checkVisibility {
			isVisible := !helpers.IsHidden(s)
			if i < len(visible) {
				isVisible = visible[i]
			}
			if isVisible {
				analysis.VisibleElements++
			}
		}
		if extractText {
			text := helpers.VisibleText(s)
			if text != "" {
				length := utf8.RuneCountInString(text)
				analysis.SampleTexts = append(analysis.SampleTexts, SampleText{
					Index:  i,
					Text:   helpers.Truncate(text, sampleTextLength),
					Length: length,
				})
				if length > usefulTextLength {
					analysis.HasUsefulContent = true
				}
			}
		}
		return true
	})
	result.Analysis = analysis

	score, recs := utilityScore(result.ElementCount, analysis, selector)
	result.UtilityScore = math.Min(score, 1.0)
	result.IsUseful = score > usefulScore
	result.Recommendations = recs
	return result, nil
}

func utilityScore(count int, analysis *SelectorAnalysis, selector string) (float64, []string) {
	score := 0.0
	recs := []string{}

	if count > 0 {
		score += 0.3
	}
	if analysis.VisibleElements > 0 {
		ratio := float64(analysis.VisibleElements) / float64(min(count, maxAnalysed))
		score += ratio * 0.3
		if ratio < 0.5 {
			recs = append(recs, "Muchos elementos no son visibles")
		}
	}
	if analysis.HasUsefulContent {
		score += 0.4
	}

	switch {
	case count > 100:
		recs = append(recs, "Demasiados elementos - considere un selector más específico")
	case count < 3 && strings.Contains(strings.ToLower(selector), "product"):
		recs = append(recs, "Pocos productos encontrados - verifique que esté en página de resultados")
	}

	types := slices.Clone(analysis.ElementTypes)
	slices.Sort(types)
	types = slices.Compact(types)
	if len(types) > 1 {
		recs = append(recs, "Selector encuentra múltiples tipos: "+strings.Join(types, ", "))
	}
	return score, recs
}

package extract

import (
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/scoutmcp/helpers"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// DefaultMaxHTMLLength bounds PageHTML output when no limit is given
const DefaultMaxHTMLLength = 50000

var defaultHints = AnalysisHints{
	MarketplacePatterns: []string{
		`Buscar clases que contengan "ui-search" para productos`,
		`Buscar clases que contengan "andes-" para componentes de UI`,
		"Buscar elementos con precios ($, MXN)",
		"Buscar enlaces con /p/ para productos individuales",
		`Buscar clases "nav-" para navegación`,
	},
	UsefulSelectors: []string{
		".ui-search-result (tarjetas de producto)",
		".ui-search-item__title (títulos)",
		".andes-money-amount (precios)",
		".ui-search-item__shipping (envío)",
		".andes-pagination (paginación)",
	},
}

// PageHTML returns the page HTML, or the inner HTML of the first element
// matching selector, cut to maxLength characters.
func (e *Extractor) PageHTML(doc *goquery.Document, content, selector string, maxLength int, pretty bool) (*HTMLExtraction, error) {
	const tool = "extract_page_html"
	if doc == nil {
		return nil, scouterrors.NewExtraction(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	if maxLength <= 0 {
		maxLength = DefaultMaxHTMLLength
	}

	scope := "página completa"
	if selector != "" {
		matches, err := helpers.Find(doc.Selection, selector)
		if err != nil {
			return nil, scouterrors.NewSelector(tool, "Error extrayendo elemento "+selector, err)
		}
		if matches.Length() == 0 {
			return nil, scouterrors.NewSelector(tool,
				"No se encontró elemento con selector: "+selector, scouterrors.ErrNotFound)
		}
		inner, err := matches.First().Html()
		if err != nil {
			return nil, scouterrors.NewExtraction(tool, "Error extrayendo elemento "+selector, err)
		}
		content = inner
		scope = "elemento: " + selector
	} else if content == "" {
		rendered, err := goquery.OuterHtml(doc.Selection)
		if err != nil {
			return nil, scouterrors.NewExtraction(tool, "Error extrayendo HTML", err)
		}
		content = rendered
	}

	originalLength := utf8.RuneCountInString(content)
	truncated := originalLength > maxLength
	content = helpers.Truncate(content, maxLength)
	if pretty {
		content = Prettify(content)
	}

	return &HTMLExtraction{
		ExtractionInfo: HTMLInfo{
			Scope:           scope,
			SelectorUsed:    selector,
			OriginalLength:  originalLength,
			ExtractedLength: utf8.RuneCountInString(content),
			Truncated:       truncated,
			PrettyFormatted: pretty,
			Timestamp:       e.now(),
		},
		HTMLContent:   content,
		AnalysisHints: defaultHints,
	}, nil
}

// Text returns the text of the first, or every, element matching selector
func (e *Extractor) Text(doc *goquery.Document, selector string, allMatches bool) (*TextExtraction, error) {
	const tool = "extract_text_content"
	if doc == nil {
		return nil, scouterrors.NewExtraction(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	matches, err := helpers.Find(doc.Selection, selector)
	if err != nil {
		return nil, scouterrors.NewSelector(tool, "Error extrayendo texto con "+selector, err)
	}
	if !allMatches {
		matches = matches.First()
	}
	if matches.Length() == 0 {
		return nil, scouterrors.NewSelector(tool,
			"No se encontraron elementos con selector: "+selector, scouterrors.ErrNotFound)
	}

	texts := make([]SampleText, 0, matches.Length())
	matches.Each(func(i int, s *goquery.Selection) {
		text := helpers.VisibleText(s)
		texts = append(texts, SampleText{Index: i, Text: text, Length: utf8.RuneCountInString(text)})
	})
	return &TextExtraction{
		Selector:              selector,
		AllMatches:            allMatches,
		ElementsFound:         matches.Length(),
		SuccessfulExtractions: len(texts),
		ExtractedTexts:        texts,
		Timestamp:             e.now(),
	}, nil
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true,
	"img": true, "input": true, "link": true, "meta": true, "source": true,
	"track": true, "wbr": true,
}

// Prettify re-indents markup one tag or text run per line. Truncated
// markup is printed as far as it goes.
func Prettify(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	depth := 0
	line := func(s string) {
		b.WriteString(strings.Repeat(" ", depth))
		b.WriteString(s)
		b.WriteByte('\n')
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return strings.TrimRight(b.String(), "\n")
			}
			return src
		case html.StartTagToken:
			tok := z.Token()
			line(tok.String())
			if !voidElements[tok.Data] {
				depth++
			}
		case html.EndTagToken:
			if depth > 0 {
				depth--
			}
			line(z.Token().String())
		case html.SelfClosingTagToken, html.DoctypeToken, html.CommentToken:
			line(z.Token().String())
		case html.TextToken:
			if text := strings.TrimSpace(string(z.Text())); text != "" {
				line(html.EscapeString(text))
			}
		}
	}
}

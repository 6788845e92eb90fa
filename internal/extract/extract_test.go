package extract

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

const listingHTML = `<html><head><title>Laptop Gamer | MercadoLibre</title></head><body>
<input class="nav-search-input" placeholder="Buscar productos, marcas y más…">
<ol class="ui-search-layout">
  <li class="ui-search-result">
    <div class="ui-search-result__wrapper">
      <h2 class="ui-search-item__title"><a class="ui-search-link" href="/laptop-gamer-asus/p/MLM123">Laptop Gamer ASUS TUF</a></h2>
      <s class="andes-money-amount--previous">$20,000</s>
      <span class="andes-money-amount__fraction">15,000</span>
      <img class="ui-search-result-image__element" data-src="https://http2.mlstatic.com/asus.webp">
      <p class="ui-search-item__shipping">Envío gratis</p>
      <p class="ui-search-official-store-label">Vendido por ASUS</p>
    </div>
  </li>
  <li class="ui-search-result">
    <h2 class="ui-search-item__title"><a class="ui-search-link" href="https://articulo.mercadolibre.com.mx/MLM-456-lenovo">Laptop Lenovo LOQ</a></h2>
    <span class="andes-money-amount__fraction">$18,999</span>
    <img class="ui-search-result-image__element" src="https://http2.mlstatic.com/lenovo.webp">
  </li>
  <li class="ui-search-result">
    <span class="andes-money-amount__fraction">9,500</span>
  </li>
</ol>
<nav>
  <a class="andes-pagination__button andes-pagination__button--previous" title="Anterior" href="/laptop-gamer">Anterior</a>
  <a class="andes-pagination__button" href="/laptop-gamer_Desde_49">2</a>
  <a class="andes-pagination__button andes-pagination__button--next" title="Siguiente" href="/laptop-gamer_Desde_49">Siguiente</a>
</nav>
<div class="promo" style="display:none">x</div>
<div class="promo" hidden>y</div>
</body></html>`

type recorded struct {
	field, selector string
	ok              bool
}

type mockRecorder struct {
	mu      sync.Mutex
	records []recorded
}

func (m *mockRecorder) RecordSelector(_ context.Context, field, selector string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, recorded{field, selector, ok})
}

func (m *mockRecorder) outcome(field string) (bool, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.field == field {
			return r.ok, true
		}
	}
	return false, false
}

func parse(t *testing.T, raw string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	require.NoError(t, err)
	return doc
}

func TestExtractProducts(t *testing.T) {
	rec := &mockRecorder{}
	e := NewExtractor(marketplace.MercadoLibreMX(), rec)
	doc := parse(t, listingHTML)

	result, err := e.ExtractProducts(context.Background(), doc, "https://listado.mercadolibre.com.mx/laptop-gamer", 20, nil)
	require.NoError(t, err)

	// the wrapper inside the first card is not a second product
	assert.Equal(t, 3, result.ExtractionInfo.ProductsFound)
	assert.Equal(t, 3, result.ExtractionInfo.ProductsExtracted)
	require.Len(t, result.Products, 3)
	assert.Empty(t, result.Errors)

	asus := result.Products[0]
	assert.Equal(t, "Laptop Gamer ASUS TUF", asus.Title)
	assert.Equal(t, "$15,000", asus.Price)
	assert.Equal(t, "$20,000", asus.OriginalPrice)
	assert.Equal(t, "25% OFF", asus.Discount)
	assert.Equal(t, "https://www.mercadolibre.com.mx/laptop-gamer-asus/p/MLM123", asus.URL)
	assert.Equal(t, "https://http2.mlstatic.com/asus.webp", asus.ImageURL)
	assert.Equal(t, "Envío gratis", asus.Shipping)
	assert.Equal(t, "Vendido por ASUS", asus.Seller)

	lenovo := result.Products[1]
	assert.Equal(t, "$18,999", lenovo.Price)
	assert.Empty(t, lenovo.Discount)
	assert.Equal(t, "https://articulo.mercadolibre.com.mx/MLM-456-lenovo", lenovo.URL)

	assert.Equal(t, UntitledProduct, result.Products[2].Title)

	stats := result.PriceStatistics
	require.NotNil(t, stats)
	assert.Equal(t, 3, stats.TotalProductsWithPrice)
	assert.Equal(t, 14499.67, stats.AveragePriceMXN)
	assert.Equal(t, 9500.0, stats.MinPriceMXN)
	assert.Equal(t, 18999.0, stats.MaxPriceMXN)
	assert.Equal(t, 1, stats.ProductsWithDiscount)

	for _, f := range []string{"product_card", "title", "price", "link", "seller"} {
		ok, found := rec.outcome(f)
		assert.True(t, found, f)
		assert.True(t, ok, f)
	}
}

func TestExtractProductsLimitAndCustomSelectors(t *testing.T) {
	rec := &mockRecorder{}
	e := NewExtractor(nil, rec)
	doc := parse(t, listingHTML)

	result, err := e.ExtractProducts(context.Background(), doc, "", 1, map[string]string{
		"product_card": "li.ui-search-result",
		"seller":       ".missing-seller",
		"shipping":     "p[",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExtractionInfo.ProductsFound)
	assert.Len(t, result.Products, 1)
	assert.Equal(t, "li.ui-search-result", result.ExtractionInfo.SelectorsUsed.ProductCard)

	require.Len(t, result.Errors, 1)
	assert.Equal(t, "shipping", result.Errors[0].Field)
	assert.Equal(t, 1, result.ExtractionInfo.ExtractionErrors)

	ok, found := rec.outcome("seller")
	assert.True(t, found)
	assert.False(t, ok)
	ok, _ = rec.outcome("shipping")
	assert.False(t, ok)
}

func TestExtractProductsFailures(t *testing.T) {
	rec := &mockRecorder{}
	e := NewExtractor(nil, rec)
	ctx := context.Background()

	_, err := e.ExtractProducts(ctx, nil, "", 10, nil)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)

	_, err = e.ExtractProducts(ctx, parse(t, "<html><body><p>vacío</p></body></html>"), "", 10, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrNoProducts)
	var se *scouterrors.ScoutError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scouterrors.CategoryExtraction, se.Category)
	ok, found := rec.outcome("product_card")
	assert.True(t, found)
	assert.False(t, ok)

	_, err = e.ExtractProducts(ctx, parse(t, listingHTML), "", 10, map[string]string{"product_card": "li[["})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scouterrors.CategorySelector, se.Category)
}

func TestDiscount(t *testing.T) {
	tests := []struct {
		original, price, want string
	}{
		{"$20,000", "$15,000", "25% OFF"},
		{"$1,000", "$333", "67% OFF"},
		{"$100", "$100", ""},
		{"$100", "$150", ""},
		{"", "$150", ""},
		{"sin precio", "$150", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Discount(tt.original, tt.price), tt.original+" -> "+tt.price)
	}
}

func TestPriceStatsWithoutPrices(t *testing.T) {
	assert.Nil(t, PriceStats([]Product{{Title: "a"}, {Title: "b", Price: "consultar"}}))
}

func TestDiscover(t *testing.T) {
	e := NewExtractor(nil, nil)
	doc := parse(t, listingHTML)

	d, err := e.Discover(doc, marketplace.ElementNavigation)
	require.NoError(t, err)
	require.NotEmpty(t, d.Selectors)
	assert.Equal(t, ".andes-pagination__button", d.Selectors[0].Selector)
	assert.Equal(t, 3, d.Selectors[0].ElementCount)
	for i, s := range d.Selectors {
		assert.Equal(t, 0.8, s.Confidence)
		if i > 0 {
			assert.GreaterOrEqual(t, d.Selectors[i-1].ElementCount, s.ElementCount)
		}
	}
	assert.Equal(t, len(d.Selectors), d.SelectorsFound)
	assert.Contains(t, d.Recommendations[0], "Mejor selector: .andes-pagination__button (confianza: 0.8)")

	d, err = e.Discover(doc, marketplace.ElementTitles)
	require.NoError(t, err)
	assert.Equal(t, 0.9, d.Selectors[0].Confidence)
	assert.Equal(t, "Título de producto", d.Selectors[0].Description)

	_, err = e.Discover(doc, "reviews")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "products")

	d, err = e.Discover(parse(t, "<html><body></body></html>"), marketplace.ElementPrices)
	require.NoError(t, err)
	assert.Empty(t, d.Selectors)
	assert.Equal(t, []string{"No se encontraron selectores para prices"}, d.Recommendations)
}

func TestTestSelector(t *testing.T) {
	e := NewExtractor(nil, nil)
	doc := parse(t, listingHTML)

	res, err := e.TestSelector(doc, ".ui-search-item__title", true, true, nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ElementCount)
	require.NotNil(t, res.Analysis)
	assert.Equal(t, 2, res.Analysis.VisibleElements)
	assert.True(t, res.Analysis.HasUsefulContent)
	assert.InDelta(t, 1.0, res.UtilityScore, 1e-9)
	assert.True(t, res.IsUseful)

	// browser visibility takes precedence over markup
	res, err = e.TestSelector(doc, ".ui-search-item__title", true, true, []bool{true, false})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, res.UtilityScore, 1e-9)

	res, err = e.TestSelector(doc, ".promo", true, true, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Analysis.VisibleElements)
	assert.InDelta(t, 0.3, res.UtilityScore, 1e-9)
	assert.False(t, res.IsUseful)

	res, err = e.TestSelector(doc, ".ui-search-result, .andes-pagination__button", false, false, nil)
	require.NoError(t, err)
	assert.Contains(t, res.Recommendations, "Selector encuentra múltiples tipos: a, li")

	res, err = e.TestSelector(doc, "#product-list", true, true, nil)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "No se encontraron elementos", res.Message)

	_, err = e.TestSelector(doc, "div[", true, true, nil)
	assert.Error(t, err)
}

func TestPageHTML(t *testing.T) {
	e := NewExtractor(nil, nil)
	doc := parse(t, listingHTML)

	res, err := e.PageHTML(doc, listingHTML, "", 100, false)
	require.NoError(t, err)
	assert.True(t, res.ExtractionInfo.Truncated)
	assert.Equal(t, 100, res.ExtractionInfo.ExtractedLength)
	assert.Equal(t, len([]rune(listingHTML)), res.ExtractionInfo.OriginalLength)
	assert.Equal(t, "página completa", res.ExtractionInfo.Scope)
	assert.NotEmpty(t, res.AnalysisHints.UsefulSelectors)

	res, err = e.PageHTML(doc, listingHTML, "nav", 0, true)
	require.NoError(t, err)
	assert.False(t, res.ExtractionInfo.Truncated)
	assert.Equal(t, "elemento: nav", res.ExtractionInfo.Scope)
	assert.True(t, strings.HasPrefix(res.HTMLContent, `<a class="andes-pagination__button andes-pagination__button--previous"`))
	assert.Contains(t, res.HTMLContent, "\n Anterior\n</a>")

	_, err = e.PageHTML(doc, listingHTML, "table", 0, false)
	assert.ErrorIs(t, err, scouterrors.ErrNotFound)
}

func TestPrettify(t *testing.T) {
	got := Prettify(`<div><p>Hola <b>mundo</b></p><br><img src="a.png"/></div>`)
	want := strings.Join([]string{
		"<div>",
		" <p>",
		"  Hola",
		"  <b>",
		"   mundo",
		"  </b>",
		" </p>",
		" <br>",
		` <img src="a.png"/>`,
		"</div>",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestText(t *testing.T) {
	e := NewExtractor(nil, nil)
	doc := parse(t, listingHTML)

	res, err := e.Text(doc, ".ui-search-item__title", false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ElementsFound)
	assert.Equal(t, "Laptop Gamer ASUS TUF", res.ExtractedTexts[0].Text)

	res, err = e.Text(doc, ".ui-search-item__title", true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.SuccessfulExtractions)
	assert.Equal(t, "Laptop Lenovo LOQ", res.ExtractedTexts[1].Text)
	assert.Equal(t, 17, res.ExtractedTexts[1].Length)

	_, err = e.Text(doc, ".nothing", true)
	assert.ErrorIs(t, err, scouterrors.ErrNotFound)
}

package extract

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"sjsage522/scoutmcp/helpers"
	"sjsage522/scoutmcp/internal/marketplace"
	"sjsage522/scoutmcp/logger"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// UntitledProduct is used when a card has no title
const UntitledProduct = "Producto sin título"

// SelectorRecorder receives per-field selector outcomes
type SelectorRecorder interface {
	RecordSelector(ctx context.Context, field, selector string, ok bool)
}

// Extractor turns page documents into product records
type Extractor struct {
	profile  *marketplace.Profile
	recorder SelectorRecorder
	now      func() time.Time
	log      *logger.Logger
}

// NewExtractor creates an extractor for profile. recorder may be nil.
func NewExtractor(profile *marketplace.Profile, recorder SelectorRecorder) *Extractor {
	if profile == nil {
		profile = marketplace.MercadoLibreMX()
	}
	return &Extractor{
		profile:  profile,
		recorder: recorder,
		now:      time.Now,
		log:      logger.ForTool("extract"),
	}
}

// Profile returns the marketplace profile
func (e *Extractor) Profile() *marketplace.Profile {
	return e.profile
}

func (e *Extractor) record(ctx context.Context, field, selector string, ok bool) {
	if e.recorder != nil {
		e.recorder.RecordSelector(ctx, field, selector, ok)
	}
}

// field reads one product field from a card
type field struct {
	selector string
	attr     string
	matched  bool
	err      error
	matcher  cascadia.Selector
}

func newField(selector, attr string) *field {
	f := &field{selector: selector, attr: attr}
	if selector == "" {
		return f
	}
	f.matcher, f.err = cascadia.Compile(selector)
	return f
}

func (f *field) read(card *goquery.Selection) string {
	if f.matcher == nil {
		return ""
	}
	el := card.FindMatcher(f.matcher).First()
	if el.Length() == 0 {
		return ""
	}
	var value string
	if f.attr == "" {
		value = helpers.VisibleText(el)
	} else {
		value = strings.TrimSpace(el.AttrOr(f.attr, ""))
		if value == "" && f.attr == "src" {
			value = strings.TrimSpace(el.AttrOr("data-src", ""))
		}
	}
	if value != "" {
		f.matched = true
	}
	return value
}

// ExtractProducts reads up to limit product cards from doc. custom selectors
// override the profile defaults field by field.
func (e *Extractor) ExtractProducts(ctx context.Context, doc *goquery.Document, pageURL string, limit int, custom map[string]string) (*ProductExtraction, error) {
	const tool = "extract_products"
	if doc == nil {
		return nil, scouterrors.NewExtraction(tool, "No hay ninguna página cargada", scouterrors.ErrNoPage)
	}
	if limit <= 0 {
		limit = 20
	}
	selectors := e.profile.Selectors.Merge(custom)

	cardMatcher, err := cascadia.Compile(selectors.ProductCard)
	if err != nil {
		e.record(ctx, "product_card", selectors.ProductCard, false)
		return nil, scouterrors.NewSelector(tool,
			fmt.Sprintf("selector de producto inválido: %s", selectors.ProductCard), err)
	}
	// nested matches of a combined card selector describe the same product
	cards := doc.FindMatcher(cardMatcher).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.ParentsMatcher(cardMatcher).Length() == 0
	})
	if cards.Length() == 0 {
		e.record(ctx, "product_card", selectors.ProductCard, false)
		return nil, scouterrors.NewExtraction(tool, "No se encontraron productos en la página", scouterrors.ErrNoProducts)
	}
	e.record(ctx, "product_card", selectors.ProductCard, true)

	fields := map[string]*field{
		"title":          newField(selectors.Title, ""),
		"price":          newField(selectors.Price, ""),
		"original_price": newField(selectors.OriginalPrice, ""),
		"link":           newField(selectors.Link, "href"),
		"image":          newField(selectors.Image, "src"),
		"shipping":       newField(selectors.Shipping, ""),
		"seller":         newField(selectors.Seller, ""),
	}
	fieldErrors := []FieldError{}
	for _, name := range fieldOrder {
		if f := fields[name]; f.err != nil {
			fieldErrors = append(fieldErrors, FieldError{Field: name, Selector: f.selector, Error: f.err.Error()})
		}
	}

	products := []Product{}
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		if i >= limit {
			return false
		}
		products = append(products, e.product(card, fields))
		return true
	})

	for _, name := range fieldOrder {
		f := fields[name]
		if f.selector != "" {
			e.record(ctx, name, f.selector, f.err == nil && f.matched)
		}
	}

	e.log.Info().
		Int("found", cards.Length()).
		Int("extracted", len(products)).
		Str("url", pageURL).
		Msg("Products extracted")

	return &ProductExtraction{
		ExtractionInfo: ExtractionInfo{
			ProductsFound:     cards.Length(),
			ProductsExtracted: len(products),
			ExtractionErrors:  len(fieldErrors),
			SelectorsUsed:     selectors,
			PageURL:           pageURL,
			Timestamp:         e.now(),
		},
		PriceStatistics: PriceStats(products),
		Products:        products,
		Errors:          fieldErrors,
	}, nil
}

var fieldOrder = []string{"title", "price", "original_price", "link", "image", "shipping", "seller"}

func (e *Extractor) product(card *goquery.Selection, fields map[string]*field) Product {
	p := Product{
		Title:         fields["title"].read(card),
		Price:         fields["price"].read(card),
		OriginalPrice: fields["original_price"].read(card),
		ImageURL:      fields["image"].read(card),
		Shipping:      fields["shipping"].read(card),
		Seller:        fields["seller"].read(card),
	}
	if p.Title == "" {
		p.Title = UntitledProduct
	}
	if p.Price != "" && !strings.HasPrefix(p.Price, "$") {
		p.Price = "$" + p.Price
	}
	p.Discount = Discount(p.OriginalPrice, p.Price)

	if link := fields["link"].read(card); link != "" {
		if strings.HasPrefix(link, "/") {
			link = helpers.AbsoluteURL(e.profile.HomeURL(), link)
		}
		p.URL = link
	}
	return p
}

// Discount returns "NN% OFF" when original is higher than price
func Discount(original, price string) string {
	if original == "" || price == "" {
		return ""
	}
	orig, ok := helpers.ParsePrice(original)
	if !ok {
		return ""
	}
	curr, ok := helpers.ParsePrice(price)
	if !ok || orig <= curr {
		return ""
	}
	return fmt.Sprintf("%.0f%% OFF", (orig-curr)/orig*100)
}

// PriceStats summarises the parsable prices, nil when there are none
func PriceStats(products []Product) *PriceStatistics {
	var prices []float64
	discounted := 0
	for _, p := range products {
		if p.Discount != "" {
			discounted++
		}
		if v, ok := helpers.ParsePrice(p.Price); ok {
			prices = append(prices, v)
		}
	}
	if len(prices) == 0 {
		return nil
	}

	stats := &PriceStatistics{
		TotalProductsWithPrice: len(prices),
		MinPriceMXN:            prices[0],
		MaxPriceMXN:            prices[0],
		ProductsWithDiscount:   discounted,
	}
	sum := 0.0
	for _, v := range prices {
		sum += v
		stats.MinPriceMXN = math.Min(stats.MinPriceMXN, v)
		stats.MaxPriceMXN = math.Max(stats.MaxPriceMXN, v)
	}
	stats.AveragePriceMXN = math.Round(sum/float64(len(prices))*100) / 100
	return stats
}

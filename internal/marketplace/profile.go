package marketplace

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Element types understood by selector discovery
const (
	ElementProducts   = "products"
	ElementPrices     = "prices"
	ElementTitles     = "titles"
	ElementNavigation = "navigation"
	ElementSearch     = "search"
)

// Page types reported by page info
const (
	PageSearchResults = "search_results"
	PageProductDetail = "product_detail"
	PageHomepage      = "homepage"
	PageOther         = "other"
)

// Selectors holds the default CSS selectors for one product card
type Selectors struct {
	ProductCard   string `yaml:"product_card" json:"product_card"`
	Title         string `yaml:"title" json:"title"`
	Price         string `yaml:"price" json:"price"`
	OriginalPrice string `yaml:"original_price" json:"original_price"`
	Link          string `yaml:"link" json:"link"`
	Image         string `yaml:"image" json:"image"`
	Shipping      string `yaml:"shipping" json:"shipping"`
	Seller        string `yaml:"seller" json:"seller"`
}

// Merge returns a copy of s with every non-empty field of custom applied.
// Unknown keys are ignored.
func (s Selectors) Merge(custom map[string]string) Selectors {
	merged := s
	for key, value := range custom {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		switch key {
		case "product_card":
			merged.ProductCard = value
		case "title":
			merged.Title = value
		case "price":
			merged.Price = value
		case "original_price":
			merged.OriginalPrice = value
		case "link":
			merged.Link = value
		case "image":
			merged.Image = value
		case "shipping":
			merged.Shipping = value
		case "seller":
			merged.Seller = value
		}
	}
	return merged
}

// Pagination lists the fallback selectors for each direction
type Pagination struct {
	Next     []string `yaml:"next"`
	Previous []string `yaml:"previous"`
}

// Profile describes one marketplace: where it lives and how its pages look
type Profile struct {
	Name             string              `yaml:"name"`
	BaseURLs         []string            `yaml:"base_urls"`
	ValidDomains     []string            `yaml:"valid_domains"`
	SearchURL        string              `yaml:"search_url"`
	Locale           string              `yaml:"locale"`
	Timezone         string              `yaml:"timezone"`
	AcceptLanguage   string              `yaml:"accept_language"`
	UserAgents       []string            `yaml:"user_agents"`
	Selectors        Selectors           `yaml:"selectors"`
	SearchSelectors  []string            `yaml:"search_selectors"`
	Pagination       Pagination          `yaml:"pagination"`
	SelectorPatterns map[string][]string `yaml:"selector_patterns"`
	ErrorMarkers     []string            `yaml:"error_markers"`
}

// MercadoLibreMX returns the built-in profile for mercadolibre.com.mx
func MercadoLibreMX() *Profile {
	return &Profile{
		Name: "MercadoLibre México",
		BaseURLs: []string{
			"https://www.mercadolibre.com.mx",
			"https://mercadolibre.com.mx",
			"https://listado.mercadolibre.com.mx",
		},
		ValidDomains: []string{
			"www.mercadolibre.com.mx",
			"mercadolibre.com.mx",
			"listado.mercadolibre.com.mx",
			"articulo.mercadolibre.com.mx",
		},
		SearchURL:      "https://listado.mercadolibre.com.mx/%s",
		Locale:         "es-MX",
		Timezone:       "America/Mexico_City",
		AcceptLanguage: "es-MX,es;q=0.9,en;q=0.8",
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
		},
		Selectors: Selectors{
			ProductCard:   ".ui-search-result, .ui-search-result__wrapper",
			Title:         ".ui-search-item__title, .ui-search-item__title-label",
			Price:         ".andes-money-amount__fraction, .price-tag-fraction",
			OriginalPrice: ".andes-money-amount--previous, .price-tag-original",
			Link:          "h2.ui-search-item__title a, .ui-search-item__title-label a, .ui-search-link",
			Image:         ".ui-search-result-image__element, .ui-search-result__image img",
			Shipping:      ".ui-search-item__shipping, .ui-search-shipping",
			Seller:        ".ui-search-official-store-label, .ui-search-item__seller",
		},
		SearchSelectors: []string{
			`input[placeholder*="Buscar productos"]`,
			"input.nav-search-input",
			`input[data-testid="cb1-edit"]`,
			"#cb1-edit",
			`input[name="as_word"]`,
			".nav-search-input",
			`input[type="text"][placeholder*="buscar" i]`,
		},
		Pagination: Pagination{
			Next: []string{
				"a.andes-pagination__button--next:not(.andes-pagination__button--disabled)",
				`a[title="Siguiente"]:not(.disabled)`,
				`.andes-pagination__button[aria-label*="Siguiente"]:not(.disabled)`,
				`a[href*="Desde_"]:contains("Siguiente")`,
			},
			Previous: []string{
				"a.andes-pagination__button--previous:not(.andes-pagination__button--disabled)",
				`a[title="Anterior"]:not(.disabled)`,
				`.andes-pagination__button[aria-label*="Anterior"]:not(.disabled)`,
			},
		},
		SelectorPatterns: map[string][]string{
			ElementProducts: {
				".ui-search-result",
				".ui-search-result__wrapper",
				`[data-testid="result-item"]`,
				".shops__item-container",
				".item__info-container",
				".ui-search-item",
			},
			ElementPrices: {
				".andes-money-amount__fraction",
				".price-tag-fraction",
				".ui-search-price__part",
				".andes-money-amount__digits",
				".price-tag-symbol + .price-tag-fraction",
			},
			ElementTitles: {
				".ui-search-item__title",
				".ui-search-item__title-label",
				"h2.ui-search-item__title",
				".ui-search-item__title a",
				".ui-search-link",
			},
			ElementNavigation: {
				".andes-pagination__button",
				".andes-pagination__button--next",
				".andes-pagination__button--previous",
				`a[title="Siguiente"]`,
				`a[title="Anterior"]`,
			},
			ElementSearch: {
				`input[placeholder*="Buscar productos"]`,
				"input.nav-search-input",
				"#cb1-edit",
				".nav-search-button",
				`button[aria-label="Buscar"]`,
			},
		},
		ErrorMarkers: []string{"error", "not found", "404", "503", "500", "blocked", "denied", "forbidden"},
	}
}

// LoadProfile returns the built-in profile, overlaid with the YAML file at
// path when path is not empty. Fields missing from the file keep their
// built-in values.
func LoadProfile(path string) (*Profile, error) {
	profile := MercadoLibreMX()
	if path == "" {
		return profile, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read marketplace profile: %w", err)
	}

	var overlay Profile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse marketplace profile: %w", err)
	}
	profile.apply(overlay)

	if len(profile.ValidDomains) == 0 {
		return nil, fmt.Errorf("marketplace profile %s has no valid domains", path)
	}
	return profile, nil
}

func (p *Profile) apply(o Profile) {
	if o.Name != "" {
		p.Name = o.Name
	}
	if len(o.BaseURLs) > 0 {
		p.BaseURLs = o.BaseURLs
	}
	if len(o.ValidDomains) > 0 {
		p.ValidDomains = o.ValidDomains
	}
	if o.SearchURL != "" {
		p.SearchURL = o.SearchURL
	}
	if o.Locale != "" {
		p.Locale = o.Locale
	}
	if o.Timezone != "" {
		p.Timezone = o.Timezone
	}
	if o.AcceptLanguage != "" {
		p.AcceptLanguage = o.AcceptLanguage
	}
	if len(o.UserAgents) > 0 {
		p.UserAgents = o.UserAgents
	}
	p.Selectors = p.Selectors.Merge(o.Selectors.asMap())
	if len(o.SearchSelectors) > 0 {
		p.SearchSelectors = o.SearchSelectors
	}
	if len(o.Pagination.Next) > 0 {
		p.Pagination.Next = o.Pagination.Next
	}
	if len(o.Pagination.Previous) > 0 {
		p.Pagination.Previous = o.Pagination.Previous
	}
	for elementType, patterns := range o.SelectorPatterns {
		p.SelectorPatterns[elementType] = patterns
	}
	if len(o.ErrorMarkers) > 0 {
		p.ErrorMarkers = o.ErrorMarkers
	}
}

func (s Selectors) asMap() map[string]string {
	return map[string]string{
		"product_card":   s.ProductCard,
		"title":          s.Title,
		"price":          s.Price,
		"original_price": s.OriginalPrice,
		"link":           s.Link,
		"image":          s.Image,
		"shipping":       s.Shipping,
		"seller":         s.Seller,
	}
}

// HomeURL returns the primary base URL
func (p *Profile) HomeURL() string {
	if len(p.BaseURLs) == 0 {
		return ""
	}
	return p.BaseURLs[0]
}

// SetHomeURL makes raw the primary base URL, adding its host to the valid
// domains when missing
func (p *Profile) SetHomeURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid home URL %q", raw)
	}
	home := strings.TrimRight(raw, "/")
	p.BaseURLs = slices.DeleteFunc(p.BaseURLs, func(u string) bool {
		return strings.TrimRight(u, "/") == home
	})
	p.BaseURLs = append([]string{home}, p.BaseURLs...)

	host := strings.ToLower(parsed.Host)
	if !slices.Contains(p.ValidDomains, host) {
		p.ValidDomains = append(p.ValidDomains, host)
	}
	return nil
}

// IsValidURL reports whether raw points at one of the profile's domains
func (p *Profile) IsValidURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return false
	}
	return slices.Contains(p.ValidDomains, strings.ToLower(parsed.Host))
}

// DetectPageType classifies a marketplace URL
func (p *Profile) DetectPageType(raw string) string {
	switch {
	case containsAny(raw, "/search", "listado.", "q="):
		return PageSearchResults
	case containsAny(raw, "/p/", "MLM", "MLA", "articulo."):
		return PageProductDetail
	}
	trimmed := strings.TrimRight(raw, "/")
	for _, base := range p.BaseURLs {
		if trimmed == strings.TrimRight(base, "/") {
			return PageHomepage
		}
	}
	return PageOther
}

// IsErrorPage reports whether a page title or URL looks like an error or
// block page.
func (p *Profile) IsErrorPage(title, pageURL string) bool {
	title = strings.ToLower(title)
	pageURL = strings.ToLower(pageURL)
	for _, marker := range p.ErrorMarkers {
		if strings.Contains(title, marker) || strings.Contains(pageURL, marker) {
			return true
		}
	}
	return false
}

// SearchListingURL returns the listing URL used when no search box can be
// typed into.
func (p *Profile) SearchListingURL(query string) string {
	slug := strings.Join(strings.Fields(strings.ToLower(query)), "-")
	return fmt.Sprintf(p.SearchURL, url.PathEscape(slug))
}

// PatternsFor returns the candidate selectors for an element type
func (p *Profile) PatternsFor(elementType string) ([]string, bool) {
	patterns, ok := p.SelectorPatterns[elementType]
	return patterns, ok
}

// ElementTypes lists the element types with known patterns, sorted
func (p *Profile) ElementTypes() []string {
	types := make([]string, 0, len(p.SelectorPatterns))
	for t := range p.SelectorPatterns {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/scoutmcp/helpers"
	"sjsage522/scoutmcp/internal/marketplace"
	"sjsage522/scoutmcp/logger"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
	"sjsage522/scoutmcp/services/cache"
	"sjsage522/scoutmcp/services/metrics"
	"sjsage522/scoutmcp/services/proxy"
)

const (
	minBodyTextLength = 100
	stableLoadTimeout = 10 * time.Second
	noWaitTimeout     = 15 * time.Second
)

// Human-like pause ranges
var (
	pageLoadDelay      = [2]time.Duration{2 * time.Second, 4 * time.Second}
	betweenActionDelay = [2]time.Duration{500 * time.Millisecond, 1500 * time.Millisecond}
	typingDelay        = [2]time.Duration{100 * time.Millisecond, 300 * time.Millisecond}
)

var blockMarkers = []string{"blocked", "denied", "forbidden", "captcha"}

// Config holds the session settings
type Config struct {
	Engine      string
	Headless    bool
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	HumanDelays bool
	BlockTime   time.Duration
}

// PageInfo describes the page currently loaded
type PageInfo struct {
	URL               string    `json:"url"`
	Title             string    `json:"title"`
	IsMLMexico        bool      `json:"is_ml_mexico"`
	PageType          string    `json:"page_type"`
	ProductCardsFound int       `json:"product_cards_found"`
	Timestamp         time.Time `json:"timestamp"`
}

// Session owns the single browser page shared by all tools. Every operation
// holds the session lock.
type Session struct {
	mu      sync.Mutex
	cfg     Config
	profile *marketplace.Profile
	driver  Driver

	newDriver func(engine string, opts Options) (Driver, error)
	cache     cache.CacheService
	proxies   proxy.ProxyManager
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
	log       *logger.Logger
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithDriverFactory replaces the engine constructor
func WithDriverFactory(f func(engine string, opts Options) (Driver, error)) SessionOption {
	return func(s *Session) { s.newDriver = f }
}

// WithCache enables per-domain block keys
func WithCache(c cache.CacheService) SessionOption {
	return func(s *Session) { s.cache = c }
}

// WithProxies routes the browser through the fastest working proxy
func WithProxies(p proxy.ProxyManager) SessionOption {
	return func(s *Session) { s.proxies = p }
}

// WithMetrics counts navigation retries
func WithMetrics(m *metrics.Metrics) SessionOption {
	return func(s *Session) { s.metrics = m }
}

// WithSleep replaces the pause function
func WithSleep(f func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) { s.sleep = f }
}

// NewSession creates a session; the browser starts on first use
func NewSession(cfg Config, profile *marketplace.Profile, opts ...SessionOption) *Session {
	if profile == nil {
		profile = marketplace.MercadoLibreMX()
	}
	s := &Session{
		cfg:       cfg,
		profile:   profile,
		newDriver: NewDriver,
		sleep:     sleepContext,
		log:       logger.ForBrowser(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Profile returns the marketplace profile
func (s *Session) Profile() *marketplace.Profile {
	return s.profile
}

// Engine returns the configured engine name
func (s *Session) Engine() string {
	if s.cfg.Engine == "" {
		return EnginePlaywright
	}
	return s.cfg.Engine
}

// HasPage reports whether a browser page is open
func (s *Session) HasPage() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.driver != nil
}

func (s *Session) humanPause(ctx context.Context, r [2]time.Duration) error {
	if !s.cfg.HumanDelays {
		return nil
	}
	return s.sleep(ctx, randomBetween(r))
}

func randomBetween(r [2]time.Duration) time.Duration {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + time.Duration(rand.Int63n(int64(r[1]-r[0])))
}

// errEngine marks launch failures that no retry can fix
var errEngine = stderrors.New("browser engine unavailable")

// ensureDriver starts the engine with a single launch attempt; Navigate owns
// the retries. Caller holds mu.
func (s *Session) ensureDriver(ctx context.Context) (Driver, error) {
	if s.driver != nil {
		return s.driver, nil
	}

	opts := Options{
		Headless: s.cfg.Headless,
		Timeout:  s.cfg.Timeout,
		Profile:  s.profile,
	}
	if uas := s.profile.UserAgents; len(uas) > 0 {
		opts.UserAgent = uas[rand.Intn(len(uas))]
	}
	if s.proxies != nil {
		if px, err := s.proxies.GetFastestProxy(); err == nil {
			opts.Proxy = px
			s.log.Info().Str("proxy", px.Address()).Msg("Using proxy")
		} else if !stderrors.Is(err, proxy.ErrNoProxy) {
			s.log.Warn().Err(err).Msg("Proxy selection failed, continuing without proxy")
		}
	}

	driver, err := s.newDriver(s.Engine(), opts)
	if err != nil {
		return nil, scouterrors.NewBrowser("browser", "motor de navegador inválido",
			fmt.Errorf("%w: %w", errEngine, err))
	}
	if err := driver.Start(ctx); err != nil {
		_ = driver.Close()
		s.log.Warn().Err(err).Msg("Browser start failed")
		return nil, scouterrors.NewBrowser("browser", "no se pudo inicializar el navegador", err)
	}
	s.driver = driver
	s.log.Info().Str("engine", s.Engine()).Msg("Browser initialized")
	return driver, nil
}

func (s *Session) closeDriver() {
	if s.driver == nil {
		return
	}
	if err := s.driver.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Error closing browser")
	}
	s.driver = nil
}

// Navigate loads rawURL, which must belong to the marketplace. Failed
// attempts are retried with recovery; blocked domains fail immediately.
func (s *Session) Navigate(ctx context.Context, rawURL string) (string, error) {
	if !s.profile.IsValidURL(rawURL) {
		return "", scouterrors.NewNavigation("navigate",
			"URL no es de MercadoLibre México: "+rawURL, scouterrors.ErrInvalidDomain)
	}
	host := helpers.Hostname(rawURL)
	if cache.IsBlocked(s.cache, host) {
		return "", scouterrors.NewNavigation("navigate",
			"dominio bloqueado temporalmente: "+host, scouterrors.ErrBlocked)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncRetries()
			s.log.Info().Int("retry", attempt).Int("max", s.cfg.MaxRetries).Str("url", rawURL).Msg("Retrying navigation")
			s.recoverPage(ctx, attempt)
			if err := s.sleep(ctx, s.cfg.RetryDelay*time.Duration(attempt)); err != nil {
				return "", err
			}
		}

		driver, err := s.ensureDriver(ctx)
		if err != nil {
			if stderrors.Is(err, errEngine) {
				return "", err
			}
			lastErr = err
			continue
		}

		err = s.attemptNavigation(ctx, driver, rawURL)
		if err == nil {
			s.waitStable(ctx, driver)
			current, _ := driver.URL(ctx)
			s.log.Info().Str("url", current).Msg("Navigation succeeded")
			return current, nil
		}
		lastErr = err

		if stderrors.Is(err, scouterrors.ErrBlocked) {
			if blockErr := cache.Block(s.cache, host, s.cfg.BlockTime); blockErr != nil {
				s.log.Warn().Err(blockErr).Str("host", host).Msg("Failed to store block key")
			}
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	return "", scouterrors.NewNavigation("navigate",
		"no se pudo completar la navegación a "+rawURL, lastErr)
}

type strategy struct {
	waitUntil string
	timeout   time.Duration
}

func (s *Session) strategies() []strategy {
	t := s.cfg.Timeout
	return []strategy{
		{LoadStateNetworkidle, t},
		{LoadStateDomcontentloaded, t / 2},
		{LoadStateLoad, t / 3},
		{LoadStateNone, noWaitTimeout},
	}
}

// attemptNavigation tries each load strategy until the page looks loaded
func (s *Session) attemptNavigation(ctx context.Context, driver Driver, rawURL string) error {
	var lastErr error
	for _, st := range s.strategies() {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := driver.Goto(ctx, rawURL, st.waitUntil, st.timeout)
		if err != nil {
			if stderrors.Is(err, scouterrors.ErrBlocked) {
				return err
			}
			s.log.Warn().Err(err).Str("strategy", st.waitUntil).Msg("Navigation strategy failed")
			lastErr = err
			continue
		}
		if err := s.checkLoaded(ctx, driver); err != nil {
			if stderrors.Is(err, scouterrors.ErrBlocked) {
				return err
			}
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("page did not load")
	}
	return lastErr
}

// checkLoaded rejects error pages and near-empty bodies
func (s *Session) checkLoaded(ctx context.Context, driver Driver) error {
	title, err := driver.Title(ctx)
	if err != nil {
		return err
	}
	current, err := driver.URL(ctx)
	if err != nil {
		return err
	}

	if s.profile.IsErrorPage(title, current) {
		lower := strings.ToLower(title + " " + current)
		for _, marker := range blockMarkers {
			if strings.Contains(lower, marker) {
				return fmt.Errorf("block page %q: %w", title, scouterrors.ErrBlocked)
			}
		}
		return fmt.Errorf("error page detected: %q", title)
	}

	n, err := driver.BodyTextLength(ctx)
	if err != nil {
		return err
	}
	if n < minBodyTextLength {
		return fmt.Errorf("page has too little content (%d characters)", n)
	}
	return nil
}

// waitStable waits for network idle, then pauses like a reader would
func (s *Session) waitStable(ctx context.Context, driver Driver) {
	if err := driver.WaitForLoadState(ctx, LoadStateNetworkidle, stableLoadTimeout); err != nil {
		_ = s.sleep(ctx, 2*time.Second)
		return
	}
	_ = s.humanPause(ctx, pageLoadDelay)
}

// recoverPage reloads and clears cookies; from the second retry on the browser
// is closed so the next attempt starts fresh
func (s *Session) recoverPage(ctx context.Context, retry int) {
	if s.driver != nil {
		if err := s.driver.Reload(ctx); err == nil {
			_ = s.sleep(ctx, 2*time.Second)
		}
		if err := s.driver.ClearCookies(ctx); err != nil {
			s.log.Debug().Err(err).Msg("Clear cookies failed")
		}
	}
	if retry >= 2 {
		s.log.Info().Msg("Reinitializing browser")
		s.closeDriver()
		_ = s.sleep(ctx, 3*time.Second)
	}
}

// GoHome navigates to the marketplace home page
func (s *Session) GoHome(ctx context.Context) (string, error) {
	return s.Navigate(ctx, s.profile.HomeURL())
}

// PageInfo describes the current page; an empty info is returned when no
// page is open.
func (s *Session) PageInfo(ctx context.Context) (PageInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := PageInfo{Timestamp: time.Now()}
	if s.driver == nil {
		return info, nil
	}

	current, err := s.driver.URL(ctx)
	if err != nil {
		return info, scouterrors.NewBrowser("page_info", "no se pudo leer la URL", err)
	}
	title, err := s.driver.Title(ctx)
	if err != nil {
		return info, scouterrors.NewBrowser("page_info", "no se pudo leer el título", err)
	}

	info.URL = current
	info.Title = title
	info.IsMLMexico = s.profile.IsValidURL(current)
	info.PageType = s.profile.DetectPageType(current)

	if info.PageType == marketplace.PageSearchResults {
		if doc, err := s.document(ctx); err == nil {
			patterns, _ := s.profile.PatternsFor(marketplace.ElementProducts)
			for _, sel := range patterns {
				found, err := helpers.Find(doc.Selection, sel)
				if err == nil && found.Length() > 0 {
					info.ProductCardsFound = found.Length()
					break
				}
			}
		}
	}
	return info, nil
}

// Search types query into the first visible search box and submits it
func (s *Session) Search(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver == nil {
		return "", scouterrors.NewSearch("search", "no hay página cargada", scouterrors.ErrNoPage)
	}

	box := ""
	for _, sel := range s.profile.SearchSelectors {
		visible, err := s.driver.Visibility(ctx, sel, 1)
		if err == nil && len(visible) > 0 && visible[0] {
			box = sel
			break
		}
	}
	if box == "" {
		return "", scouterrors.NewSearch("search", "no se encontró caja de búsqueda", scouterrors.ErrNotFound)
	}
	s.log.Info().Str("selector", box).Str("query", query).Msg("Search box found")

	if err := s.humanPause(ctx, betweenActionDelay); err != nil {
		return "", err
	}
	keyDelay := time.Duration(0)
	if s.cfg.HumanDelays {
		keyDelay = randomBetween(typingDelay)
	}
	if err := s.driver.TypeAndSubmit(ctx, box, query, keyDelay); err != nil {
		return "", scouterrors.NewSearch("search", "error escribiendo la búsqueda", err)
	}
	s.waitStable(ctx, s.driver)

	current, err := s.driver.URL(ctx)
	if err != nil {
		return "", scouterrors.NewSearch("search", "no se pudo leer la URL", err)
	}
	if !strings.Contains(current, "search") && !strings.Contains(current, "listado") {
		return current, scouterrors.NewSearch("search", "URL inesperada después de búsqueda: "+current, nil)
	}
	return current, nil
}

// Pagination directions accepted by Paginate
const (
	DirectionNext     = "next"
	DirectionPrevious = "previous"
)

// Paginate clicks the first visible next or previous control and reports
// the new URL
func (s *Session) Paginate(ctx context.Context, direction string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var selectors []string
	switch direction {
	case DirectionNext:
		selectors = s.profile.Pagination.Next
	case DirectionPrevious:
		selectors = s.profile.Pagination.Previous
	default:
		return "", scouterrors.NewPagination("pagination", "dirección inválida: "+direction, nil)
	}
	if s.driver == nil {
		return "", scouterrors.NewPagination("pagination", "no hay página cargada", scouterrors.ErrNoPage)
	}

	before, err := s.driver.URL(ctx)
	if err != nil {
		return "", scouterrors.NewPagination("pagination", "no se pudo leer la URL", err)
	}

	for _, sel := range selectors {
		visible, err := s.driver.Visibility(ctx, sel, 1)
		if err != nil || len(visible) == 0 || !visible[0] {
			continue
		}
		_ = s.sleep(ctx, 500*time.Millisecond)
		if err := s.driver.Click(ctx, sel); err != nil {
			s.log.Warn().Err(err).Str("selector", sel).Msg("Pagination click failed")
			continue
		}
		s.waitStable(ctx, s.driver)

		after, err := s.driver.URL(ctx)
		if err == nil && after != before {
			s.log.Info().Str("direction", direction).Str("url", after).Msg("Pagination succeeded")
			return after, nil
		}
	}
	return "", scouterrors.NewPagination("pagination",
		"no se pudo navegar a la página "+direction, scouterrors.ErrNotFound)
}

// document parses the current page. Caller holds mu.
func (s *Session) document(ctx context.Context) (*goquery.Document, error) {
	html, err := s.driver.Content(ctx)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// Snapshot returns the current page as a goquery document with its URL
func (s *Session) Snapshot(ctx context.Context) (*goquery.Document, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return nil, "", scouterrors.ErrNoPage
	}
	doc, err := s.document(ctx)
	if err != nil {
		return nil, "", err
	}
	current, err := s.driver.URL(ctx)
	if err != nil {
		return nil, "", err
	}
	return doc, current, nil
}

// Content returns the raw HTML of the current page as the engine serves it
func (s *Session) Content(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return "", scouterrors.ErrNoPage
	}
	return s.driver.Content(ctx)
}

// Visibility reports visibility for at most limit elements matching selector
func (s *Session) Visibility(ctx context.Context, selector string, limit int) ([]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return nil, scouterrors.ErrNoPage
	}
	return s.driver.Visibility(ctx, selector, limit)
}

// WaitFor waits for selector to reach state
func (s *Session) WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return scouterrors.ErrNoPage
	}
	return s.driver.WaitFor(ctx, selector, state, timeout)
}

// Screenshot captures the current page
func (s *Session) Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.driver == nil {
		return nil, scouterrors.ErrNoPage
	}
	return s.driver.Screenshot(ctx, path, fullPage)
}

// Close shuts the browser down
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeDriver()
	return nil
}

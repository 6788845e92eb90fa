package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
	"sjsage522/scoutmcp/services/cache"
	"sjsage522/scoutmcp/services/metrics"
)

const (
	homeURL   = "https://www.mercadolibre.com.mx"
	searchURL = "https://listado.mercadolibre.com.mx/laptop"
)

const searchHTML = `<html><head><title>Laptop | MercadoLibre</title></head><body>
<ol>
<li class="ui-search-result">uno</li>
<li class="ui-search-result">dos</li>
<li class="ui-search-result">tres</li>
</ol></body></html>`

func noSleep(context.Context, time.Duration) error { return nil }

func testConfig() Config {
	return Config{
		Engine:     EngineStatic,
		Timeout:    time.Second,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		BlockTime:  time.Minute,
	}
}

// newTestSession returns a session whose factory hands out the given drivers
// in order
func newTestSession(t *testing.T, drivers []*fakeDriver, opts ...SessionOption) (*Session, *int) {
	created := 0
	factory := func(engine string, o Options) (Driver, error) {
		require.Less(t, created, len(drivers), "unexpected driver creation")
		d := drivers[created]
		created++
		return d, nil
	}
	opts = append([]SessionOption{WithDriverFactory(factory), WithSleep(noSleep)}, opts...)
	return NewSession(testConfig(), marketplace.MercadoLibreMX(), opts...), &created
}

func TestNavigateRejectsForeignDomain(t *testing.T) {
	s, created := newTestSession(t, nil)

	_, err := s.Navigate(context.Background(), "https://www.amazon.com.mx/laptop")
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrInvalidDomain)

	var se *scouterrors.ScoutError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scouterrors.CategoryNavigation, se.Category)
	assert.False(t, se.IsRetryable())
	assert.Equal(t, 0, *created)
	assert.False(t, s.HasPage())
}

func TestNavigateAndPageInfo(t *testing.T) {
	d := newFakeDriver()
	d.addPage(homeURL, "Mercado Libre México", "<html><body>home</body></html>")
	d.addPage(searchURL, "Laptop | MercadoLibre", searchHTML)
	s, created := newTestSession(t, []*fakeDriver{d})
	ctx := context.Background()

	info, err := s.PageInfo(ctx)
	require.NoError(t, err)
	assert.Empty(t, info.URL)

	current, err := s.GoHome(ctx)
	require.NoError(t, err)
	assert.Equal(t, homeURL, current)
	assert.Equal(t, 1, *created)

	info, err = s.PageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, marketplace.PageHomepage, info.PageType)
	assert.True(t, info.IsMLMexico)
	assert.Equal(t, 0, info.ProductCardsFound)

	_, err = s.Navigate(ctx, searchURL)
	require.NoError(t, err)
	info, err = s.PageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, marketplace.PageSearchResults, info.PageType)
	assert.Equal(t, 3, info.ProductCardsFound)
	assert.Equal(t, "Laptop | MercadoLibre", info.Title)

	doc, url, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, searchURL, url)
	assert.Equal(t, 3, doc.Find(".ui-search-result").Length())
}

func TestNavigateRetriesWithRecovery(t *testing.T) {
	d := newFakeDriver()
	d.addPage(homeURL, "Mercado Libre México", "<html></html>")
	// every strategy of the first attempt fails
	d.failGotos = 4
	m := metrics.NewMetrics()
	s, created := newTestSession(t, []*fakeDriver{d}, WithMetrics(m))

	_, err := s.GoHome(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, *created)
	assert.Equal(t, 5, d.gotos)
	assert.Equal(t, 1, d.reloads)
	assert.Equal(t, 1, d.clears)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NavigationRetries))
}

func TestNavigateReinitializesAfterRepeatedFailures(t *testing.T) {
	drivers := []*fakeDriver{newFakeDriver(), newFakeDriver(), newFakeDriver()}
	for _, d := range drivers {
		d.failGotos = 100
	}
	s, created := newTestSession(t, drivers)

	_, err := s.GoHome(context.Background())
	require.Error(t, err)

	var se *scouterrors.ScoutError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scouterrors.CategoryNavigation, se.Category)
	assert.Contains(t, err.Error(), "Timeout")

	// retries 2 and 3 each start a fresh browser
	assert.Equal(t, 3, *created)
	assert.True(t, drivers[0].closed)
	assert.True(t, drivers[1].closed)
	assert.False(t, drivers[2].closed)
	// four load strategies per attempt
	assert.Equal(t, 8, drivers[0].gotos)
	assert.Equal(t, 4, drivers[1].gotos)
	assert.Equal(t, 4, drivers[2].gotos)
}

func TestNavigateRejectsThinAndErrorPages(t *testing.T) {
	d := newFakeDriver()
	d.pages[homeURL] = fakePage{title: "Mercado Libre", bodyLen: 20}
	cfg := testConfig()
	cfg.MaxRetries = 0
	s := NewSession(cfg, nil,
		WithDriverFactory(func(string, Options) (Driver, error) { return d, nil }),
		WithSleep(noSleep))

	_, err := s.GoHome(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too little content")

	d.pages[homeURL] = fakePage{title: "Error 503", bodyLen: 500}
	_, err = s.GoHome(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error page detected")
}

func TestNavigateBlockedDomain(t *testing.T) {
	d := newFakeDriver()
	d.pages[homeURL] = fakePage{title: "Access Denied", bodyLen: 500}
	c, err := cache.NewLRUService(16)
	require.NoError(t, err)
	s, created := newTestSession(t, []*fakeDriver{d}, WithCache(c))
	ctx := context.Background()

	_, err = s.GoHome(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrBlocked)
	// blocks are not retried
	assert.Equal(t, 1, d.gotos)
	assert.True(t, cache.IsBlocked(c, "www.mercadolibre.com.mx"))

	_, err = s.GoHome(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrBlocked)
	assert.Equal(t, 1, d.gotos)
	assert.Equal(t, 1, *created)

	// other hosts are unaffected
	d.addPage(searchURL, "Laptop", searchHTML)
	_, err = s.Navigate(ctx, searchURL)
	assert.NoError(t, err)
}

func TestSearchUsesFirstVisibleBox(t *testing.T) {
	profile := marketplace.MercadoLibreMX()
	d := newFakeDriver()
	d.addPage(homeURL, "Mercado Libre México", "<html></html>")
	d.visible[profile.SearchSelectors[0]] = []bool{false}
	d.visible[profile.SearchSelectors[1]] = []bool{true}
	d.searchURL = searchURL
	s, _ := newTestSession(t, []*fakeDriver{d})
	ctx := context.Background()

	_, err := s.Search(ctx, "laptop")
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)

	_, err = s.GoHome(ctx)
	require.NoError(t, err)

	current, err := s.Search(ctx, "laptop")
	require.NoError(t, err)
	assert.Equal(t, searchURL, current)
	assert.Equal(t, []string{profile.SearchSelectors[1] + "=laptop"}, d.typed)
}

func TestSearchFailures(t *testing.T) {
	d := newFakeDriver()
	d.addPage(homeURL, "Mercado Libre México", "<html></html>")
	s, _ := newTestSession(t, []*fakeDriver{d})
	ctx := context.Background()
	_, err := s.GoHome(ctx)
	require.NoError(t, err)

	_, err = s.Search(ctx, "laptop")
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrNotFound)

	// box found but the page did not move to results
	d.visible["#cb1-edit"] = []bool{true}
	_, err = s.Search(ctx, "laptop")
	require.Error(t, err)
	var se *scouterrors.ScoutError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scouterrors.CategorySearch, se.Category)
	assert.Contains(t, se.Message, "URL inesperada")
}

func TestPaginate(t *testing.T) {
	profile := marketplace.MercadoLibreMX()
	page2 := searchURL + "_Desde_51"
	d := newFakeDriver()
	d.addPage(searchURL, "Laptop", searchHTML)
	d.visible[profile.Pagination.Next[1]] = []bool{true}
	d.clicks[profile.Pagination.Next[1]] = page2
	s, _ := newTestSession(t, []*fakeDriver{d})
	ctx := context.Background()

	_, err := s.Navigate(ctx, searchURL)
	require.NoError(t, err)

	current, err := s.Paginate(ctx, "next")
	require.NoError(t, err)
	assert.Equal(t, page2, current)

	_, err = s.Paginate(ctx, "previous")
	require.Error(t, err)
	assert.ErrorIs(t, err, scouterrors.ErrNotFound)

	_, err = s.Paginate(ctx, "sideways")
	require.Error(t, err)
	var se *scouterrors.ScoutError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, scouterrors.CategoryPagination, se.Category)

	// clicking without a URL change is not a success
	d.visible[profile.Pagination.Previous[0]] = []bool{true}
	d.clicks[profile.Pagination.Previous[0]] = page2
	_, err = s.Paginate(ctx, "previous")
	assert.Error(t, err)
}

func TestBrowserStartFailure(t *testing.T) {
	drivers := []*fakeDriver{newFakeDriver(), newFakeDriver()}
	for _, d := range drivers {
		d.startErr = errors.New("chromium executable not found")
	}
	cfg := testConfig()
	cfg.MaxRetries = 0
	calls := 0
	s := NewSession(cfg, nil,
		WithDriverFactory(func(string, Options) (Driver, error) {
			d := drivers[calls]
			calls++
			return d, nil
		}),
		WithSleep(noSleep))

	_, err := s.GoHome(context.Background())
	require.Error(t, err)
	var se *scouterrors.ScoutError
	require.ErrorAs(t, err, &se)
	assert.Contains(t, err.Error(), "no se pudo inicializar el navegador")
	assert.True(t, drivers[0].closed)
	assert.False(t, s.HasPage())
}

func TestBrowserStartRetriesOncePerAttempt(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	launches := 0
	s := NewSession(cfg, nil,
		WithDriverFactory(func(string, Options) (Driver, error) {
			launches++
			d := newFakeDriver()
			d.startErr = errors.New("chromium executable not found")
			return d, nil
		}),
		WithSleep(noSleep))

	_, err := s.GoHome(context.Background())
	require.Error(t, err)
	assert.Equal(t, cfg.MaxRetries+1, launches)
	assert.False(t, s.HasPage())
}

func TestUnknownEngineFailsWithoutRetry(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 3
	calls := 0
	s := NewSession(cfg, nil,
		WithDriverFactory(func(engine string, _ Options) (Driver, error) {
			calls++
			return nil, fmt.Errorf("unknown browser engine: %s", engine)
		}),
		WithSleep(noSleep))

	_, err := s.GoHome(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "motor de navegador inválido")
	assert.Equal(t, 1, calls)
}

func TestSessionWithoutPage(t *testing.T) {
	s, _ := newTestSession(t, nil)
	ctx := context.Background()

	_, _, err := s.Snapshot(ctx)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)
	_, err = s.Screenshot(ctx, "", false)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)
	assert.ErrorIs(t, s.WaitFor(ctx, "body", StateVisible, time.Second), scouterrors.ErrNoPage)
	_, err = s.Visibility(ctx, "body", 1)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)
	assert.NoError(t, s.Close())
}

package browser

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

var filler = strings.Repeat("Ofertas del día en tecnología, hogar y más. ", 5)

var homeHTML = `<html><head><title>Mercado Libre México</title></head><body>
<form><input class="nav-search-input" name="as_word" placeholder="Buscar productos, marcas y más…"></form>
<p>` + filler + `</p>
<script>var hidden = "not counted";</script>
</body></html>`

var listingHTML = `<html><head><title>Laptop Gamer | MercadoLibre</title></head><body>
<ol>
<li class="ui-search-result"><h2 class="ui-search-item__title">Laptop Gamer 15"</h2></li>
<li class="ui-search-result"><h2 class="ui-search-item__title">Laptop Gamer 17"</h2></li>
</ol>
<p>` + filler + `</p>
<a class="andes-pagination__button andes-pagination__button--next" title="Siguiente" href="/laptop-gamer_Desde_49">Siguiente</a>
<div class="promo" style="display: none">promo</div>
</body></html>`

func htmlResponder(status int, body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(status, body)
	resp.Header.Set("Content-Type", "text/html; charset=utf-8")
	return httpmock.ResponderFromResponse(resp)
}

// registerHome serves the home page with and without the trailing slash
func registerHome(transport *httpmock.MockTransport) {
	transport.RegisterResponder(http.MethodGet, "https://www.mercadolibre.com.mx", htmlResponder(200, homeHTML))
	transport.RegisterResponder(http.MethodGet, "https://www.mercadolibre.com.mx/", htmlResponder(200, homeHTML))
}

func newStaticTestDriver(t *testing.T) (*StaticDriver, *httpmock.MockTransport) {
	transport := httpmock.NewMockTransport()
	registerHome(transport)
	transport.RegisterResponder(http.MethodGet, "https://listado.mercadolibre.com.mx/laptop-gamer", htmlResponder(200, listingHTML))
	transport.RegisterResponder(http.MethodGet, "https://listado.mercadolibre.com.mx/laptop-gamer_Desde_49", htmlResponder(200, listingHTML))
	transport.RegisterResponder(http.MethodGet, "https://articulo.mercadolibre.com.mx/blocked", htmlResponder(403, "<html>nope</html>"))

	d := NewStaticDriver(Options{Timeout: 5 * time.Second, Profile: marketplace.MercadoLibreMX()}).WithTransport(transport)
	require.NoError(t, d.Start(context.Background()))
	return d, transport
}

func TestStaticDriverNavigation(t *testing.T) {
	d, transport := newStaticTestDriver(t)
	ctx := context.Background()

	_, err := d.Content(ctx)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)

	require.NoError(t, d.Goto(ctx, "https://www.mercadolibre.com.mx", LoadStateNetworkidle, time.Second))
	title, err := d.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Mercado Libre México", title)

	n, err := d.BodyTextLength(ctx)
	require.NoError(t, err)
	assert.Greater(t, n, minBodyTextLength)

	visible, err := d.Visibility(ctx, "input.nav-search-input", 1)
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, visible)

	// search goes straight to the listing URL
	require.NoError(t, d.TypeAndSubmit(ctx, "input.nav-search-input", "Laptop Gamer", 0))
	current, err := d.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://listado.mercadolibre.com.mx/laptop-gamer", current)

	content, err := d.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, content, "Laptop Gamer 17")

	// clicks follow the href
	require.NoError(t, d.Click(ctx, "a.andes-pagination__button--next"))
	current, _ = d.URL(ctx)
	assert.Equal(t, "https://listado.mercadolibre.com.mx/laptop-gamer_Desde_49", current)

	require.NoError(t, d.Reload(ctx))
	require.NoError(t, d.ClearCookies(ctx))

	info := transport.GetCallCountInfo()
	assert.Equal(t, 2, info["GET https://listado.mercadolibre.com.mx/laptop-gamer_Desde_49"])
}

func TestStaticDriverElements(t *testing.T) {
	d, _ := newStaticTestDriver(t)
	ctx := context.Background()
	require.NoError(t, d.Goto(ctx, "https://listado.mercadolibre.com.mx/laptop-gamer", LoadStateLoad, time.Second))

	visible, err := d.Visibility(ctx, ".ui-search-result, .promo", 0)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, visible)

	_, err = d.Visibility(ctx, "li[", 1)
	assert.Error(t, err)

	assert.NoError(t, d.WaitFor(ctx, ".ui-search-result", StateVisible, time.Second))
	assert.NoError(t, d.WaitFor(ctx, ".promo", StateHidden, time.Second))
	assert.NoError(t, d.WaitFor(ctx, ".missing", StateDetached, time.Second))
	err = d.WaitFor(ctx, ".missing", StateAttached, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")

	err = d.Click(ctx, ".missing")
	assert.ErrorIs(t, err, scouterrors.ErrNotFound)
	err = d.Click(ctx, ".ui-search-result")
	assert.ErrorIs(t, err, scouterrors.ErrUnsupported)

	_, err = d.Screenshot(ctx, "", true)
	assert.ErrorIs(t, err, scouterrors.ErrUnsupported)
}

func TestStaticDriverErrors(t *testing.T) {
	d, _ := newStaticTestDriver(t)
	ctx := context.Background()
	require.NoError(t, d.Goto(ctx, "https://www.mercadolibre.com.mx", LoadStateLoad, time.Second))

	err := d.Goto(ctx, "https://articulo.mercadolibre.com.mx/blocked", LoadStateLoad, time.Second)
	assert.ErrorIs(t, err, scouterrors.ErrBlocked)

	err = d.Goto(ctx, "https://www.mercadolibre.com.mx/unknown", LoadStateLoad, time.Second)
	assert.Error(t, err)

	// failed navigations keep the previous page
	current, _ := d.URL(ctx)
	assert.Equal(t, "https://www.mercadolibre.com.mx", strings.TrimSuffix(current, "/"))
	title, _ := d.Title(ctx)
	assert.Equal(t, "Mercado Libre México", title)

	require.NoError(t, d.Close())
	_, err = d.Title(ctx)
	assert.ErrorIs(t, err, scouterrors.ErrNoPage)
}

func TestSessionWithStaticDriver(t *testing.T) {
	transport := httpmock.NewMockTransport()
	registerHome(transport)
	transport.RegisterResponder(http.MethodGet, "https://listado.mercadolibre.com.mx/laptop-gamer", htmlResponder(200, listingHTML))

	factory := func(engine string, opts Options) (Driver, error) {
		assert.Equal(t, EngineStatic, engine)
		return NewStaticDriver(opts).WithTransport(transport), nil
	}
	s := NewSession(testConfig(), nil, WithDriverFactory(factory), WithSleep(noSleep))
	ctx := context.Background()

	_, err := s.GoHome(ctx)
	require.NoError(t, err)

	current, err := s.Search(ctx, "laptop gamer")
	require.NoError(t, err)
	assert.Equal(t, "https://listado.mercadolibre.com.mx/laptop-gamer", current)

	info, err := s.PageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, marketplace.PageSearchResults, info.PageType)
	assert.Equal(t, 2, info.ProductCardsFound)
}

package browser

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"sjsage522/scoutmcp/helpers"
	"sjsage522/scoutmcp/internal/marketplace"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// StaticDriver fetches pages over plain HTTP with colly. It runs no
// JavaScript: searches go straight to the listing URL and clicks follow the
// element's href.
type StaticDriver struct {
	opts    Options
	profile *marketplace.Profile

	mu        sync.Mutex
	collector *colly.Collector
	transport http.RoundTripper

	// last response, written by the collector callbacks during Visit
	url      string
	body     []byte
	status   int
	fetchErr error
	doc      *goquery.Document
}

// NewStaticDriver creates a driver that builds its collector on Start
func NewStaticDriver(opts Options) *StaticDriver {
	profile := opts.Profile
	if profile == nil {
		profile = marketplace.MercadoLibreMX()
	}
	return &StaticDriver{opts: opts, profile: profile}
}

// WithTransport replaces the HTTP transport
func (d *StaticDriver) WithTransport(rt http.RoundTripper) *StaticDriver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transport = rt
	if d.collector != nil {
		d.collector.WithTransport(rt)
	}
	return d
}

func (d *StaticDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collector != nil {
		return nil
	}

	userAgent := d.opts.UserAgent
	if userAgent == "" {
		userAgent = helpers.RandomUserAgent()
	}
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.ParseHTTPErrorResponse = true
	if d.opts.Timeout > 0 {
		c.SetRequestTimeout(d.opts.Timeout)
	}
	if d.opts.Proxy != nil {
		if err := c.SetProxy(d.opts.Proxy.URL()); err != nil {
			return fmt.Errorf("set proxy: %w", err)
		}
	}
	if d.transport != nil {
		c.WithTransport(d.transport)
	}

	c.OnRequest(func(r *colly.Request) {
		helpers.ApplyHeaders(*r.Headers, helpers.BrowserHeaders(d.profile.AcceptLanguage))
	})
	c.OnResponse(func(r *colly.Response) {
		d.status = r.StatusCode
		d.url = r.Request.URL.String()
		body, err := helpers.ToUTF8(r.Body, r.Headers.Get("Content-Type"))
		if err != nil {
			body = r.Body
		}
		d.body = body
	})
	c.OnError(func(r *colly.Response, err error) {
		d.fetchErr = err
		if r != nil {
			d.status = r.StatusCode
		}
	})

	d.collector = c
	return nil
}

// Goto fetches rawURL. 403 and 429 responses are reported as blocks.
func (d *StaticDriver) Goto(ctx context.Context, rawURL, waitUntil string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collector == nil {
		return scouterrors.ErrNoPage
	}

	d.fetchErr, d.status = nil, 0
	prevURL, prevBody := d.url, d.body
	d.body = nil
	if err := d.collector.Visit(rawURL); err != nil && d.fetchErr == nil {
		d.fetchErr = err
	}

	switch {
	case d.status == http.StatusForbidden || d.status == http.StatusTooManyRequests:
		d.url, d.body = prevURL, prevBody
		return fmt.Errorf("status %d for %s: %w", d.status, rawURL, scouterrors.ErrBlocked)
	case d.fetchErr != nil:
		d.url, d.body = prevURL, prevBody
		return fmt.Errorf("navigate to %s: %w", rawURL, d.fetchErr)
	case d.body == nil:
		d.url, d.body = prevURL, prevBody
		return fmt.Errorf("navigate to %s: empty response", rawURL)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(d.body))
	if err != nil {
		return fmt.Errorf("parse %s: %w", rawURL, err)
	}
	d.doc = doc
	return nil
}

func (d *StaticDriver) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	return nil
}

func (d *StaticDriver) document() (*goquery.Document, error) {
	if d.doc == nil {
		return nil, scouterrors.ErrNoPage
	}
	return d.doc, nil
}

func (d *StaticDriver) Content(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.doc == nil {
		return "", scouterrors.ErrNoPage
	}
	return string(d.body), nil
}

func (d *StaticDriver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.document()
	if err != nil {
		return "", err
	}
	return helpers.VisibleText(doc.Find("title").First()), nil
}

func (d *StaticDriver) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *StaticDriver) BodyTextLength(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.document()
	if err != nil {
		return 0, err
	}
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return len([]rune(helpers.VisibleText(body))), nil
}

// Visibility treats every matched element as visible unless its markup
// hides it
func (d *StaticDriver) Visibility(ctx context.Context, selector string, limit int) ([]bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.document()
	if err != nil {
		return nil, err
	}
	matches, err := helpers.Find(doc.Selection, selector)
	if err != nil {
		return nil, err
	}

	var visible []bool
	matches.EachWithBreak(func(i int, s *goquery.Selection) bool {
		if limit > 0 && i >= limit {
			return false
		}
		visible = append(visible, !helpers.IsHidden(s))
		return true
	})
	return visible, nil
}

// TypeAndSubmit goes to the marketplace listing URL for text
func (d *StaticDriver) TypeAndSubmit(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	return d.Goto(ctx, d.profile.SearchListingURL(text), LoadStateLoad, d.opts.Timeout)
}

// Click follows the href of the first element matching selector
func (d *StaticDriver) Click(ctx context.Context, selector string) error {
	d.mu.Lock()
	doc, err := d.document()
	if err != nil {
		d.mu.Unlock()
		return err
	}
	matches, err := helpers.Find(doc.Selection, selector)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if matches.Length() == 0 {
		d.mu.Unlock()
		return fmt.Errorf("click %s: %w", selector, scouterrors.ErrNotFound)
	}
	href, _ := matches.First().Attr("href")
	target := helpers.AbsoluteURL(d.url, href)
	d.mu.Unlock()

	if target == "" {
		return fmt.Errorf("click %s: element has no link: %w", selector, scouterrors.ErrUnsupported)
	}
	return d.Goto(ctx, target, LoadStateLoad, d.opts.Timeout)
}

// WaitFor checks the current document once
func (d *StaticDriver) WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, err := d.document()
	if err != nil {
		return err
	}
	matches, err := helpers.Find(doc.Selection, selector)
	if err != nil {
		return err
	}

	present := matches.Length() > 0
	visible := present && !helpers.IsHidden(matches.First())
	var ok bool
	switch state {
	case StateAttached:
		ok = present
	case StateDetached:
		ok = !present
	case StateHidden:
		ok = !visible
	default:
		ok = visible
	}
	if !ok {
		return fmt.Errorf("timeout %dms exceeded waiting for %s to be %s", timeout.Milliseconds(), selector, state)
	}
	return nil
}

func (d *StaticDriver) Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error) {
	return nil, fmt.Errorf("screenshot: %w", scouterrors.ErrUnsupported)
}

func (d *StaticDriver) Reload(ctx context.Context) error {
	d.mu.Lock()
	current := d.url
	d.mu.Unlock()
	if current == "" {
		return scouterrors.ErrNoPage
	}
	return d.Goto(ctx, current, LoadStateLoad, d.opts.Timeout)
}

func (d *StaticDriver) ClearCookies(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collector == nil {
		return scouterrors.ErrNoPage
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	d.collector.SetCookieJar(jar)
	return nil
}

func (d *StaticDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.collector = nil
	d.url, d.body, d.doc = "", nil, nil
	return nil
}

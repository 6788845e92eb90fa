package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"sjsage522/scoutmcp/helpers"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// PlaywrightDriver drives Chromium through playwright-go
type PlaywrightDriver struct {
	opts Options

	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// NewPlaywrightDriver creates a driver that launches on Start
func NewPlaywrightDriver(opts Options) *PlaywrightDriver {
	return &PlaywrightDriver{opts: opts}
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// Start launches Chromium with a Mexican locale and the stealth init script
func (d *PlaywrightDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page != nil {
		return nil
	}

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.opts.Headless),
		Args:     launchArgs,
		SlowMo:   playwright.Float(50),
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("launch chromium: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: 1366, Height: 768},
		IgnoreHttpsErrors: playwright.Bool(true),
		JavaScriptEnabled: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(false),
	}
	if d.opts.UserAgent != "" {
		contextOpts.UserAgent = playwright.String(d.opts.UserAgent)
	}
	acceptLanguage := ""
	if p := d.opts.Profile; p != nil {
		contextOpts.Locale = playwright.String(p.Locale)
		contextOpts.TimezoneId = playwright.String(p.Timezone)
		acceptLanguage = p.AcceptLanguage
	}
	headers := helpers.BrowserHeaders(acceptLanguage)
	delete(headers, "User-Agent")
	contextOpts.ExtraHttpHeaders = headers
	if px := d.opts.Proxy; px != nil {
		contextOpts.Proxy = &playwright.Proxy{Server: px.Server}
		if px.Username != "" {
			contextOpts.Proxy.Username = playwright.String(px.Username)
			contextOpts.Proxy.Password = playwright.String(px.Password)
		}
	}

	bctx, err := browser.NewContext(contextOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("create browser context: %w", err)
	}
	if err := bctx.AddInitScript(playwright.Script{Content: playwright.String(stealthScript)}); err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("add init script: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(float64(d.opts.Timeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(d.opts.Timeout.Milliseconds()))

	d.pw, d.browser, d.context, d.page = pw, browser, bctx, page
	return nil
}

func (d *PlaywrightDriver) currentPage() (playwright.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil, scouterrors.ErrNoPage
	}
	return d.page, nil
}

func waitUntilState(state string) *playwright.WaitUntilState {
	switch state {
	case LoadStateNetworkidle:
		return playwright.WaitUntilStateNetworkidle
	case LoadStateDomcontentloaded:
		return playwright.WaitUntilStateDomcontentloaded
	case LoadStateNone:
		return playwright.WaitUntilStateCommit
	default:
		return playwright.WaitUntilStateLoad
	}
}

func loadState(state string) *playwright.LoadState {
	switch state {
	case LoadStateNetworkidle:
		return playwright.LoadStateNetworkidle
	case LoadStateDomcontentloaded:
		return playwright.LoadStateDomcontentloaded
	default:
		return playwright.LoadStateLoad
	}
}

func selectorState(state string) *playwright.WaitForSelectorState {
	switch state {
	case StateAttached:
		return playwright.WaitForSelectorStateAttached
	case StateDetached:
		return playwright.WaitForSelectorStateDetached
	case StateHidden:
		return playwright.WaitForSelectorStateHidden
	default:
		return playwright.WaitForSelectorStateVisible
	}
}

func (d *PlaywrightDriver) Goto(ctx context.Context, rawURL, waitUntil string, timeout time.Duration) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	_, err = page.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: waitUntilState(waitUntil),
		Timeout:   ms(timeout),
	})
	return err
}

func (d *PlaywrightDriver) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	return page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   loadState(state),
		Timeout: ms(timeout),
	})
}

func (d *PlaywrightDriver) Content(ctx context.Context) (string, error) {
	page, err := d.currentPage()
	if err != nil {
		return "", err
	}
	return page.Content()
}

func (d *PlaywrightDriver) Title(ctx context.Context) (string, error) {
	page, err := d.currentPage()
	if err != nil {
		return "", err
	}
	return page.Title()
}

func (d *PlaywrightDriver) URL(ctx context.Context) (string, error) {
	page, err := d.currentPage()
	if err != nil {
		return "", err
	}
	return page.URL(), nil
}

func (d *PlaywrightDriver) BodyTextLength(ctx context.Context) (int, error) {
	page, err := d.currentPage()
	if err != nil {
		return 0, err
	}
	body := page.Locator("body")
	if err := body.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(5000),
	}); err != nil {
		return 0, err
	}
	text, err := body.InnerText()
	if err != nil {
		return 0, err
	}
	return len([]rune(text)), nil
}

func (d *PlaywrightDriver) Visibility(ctx context.Context, selector string, limit int) ([]bool, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	locator := page.Locator(selector)
	count, err := locator.Count()
	if err != nil {
		return nil, err
	}
	if limit > 0 && count > limit {
		count = limit
	}

	visible := make([]bool, 0, count)
	for i := 0; i < count; i++ {
		ok, err := locator.Nth(i).IsVisible()
		if err != nil {
			ok = false
		}
		visible = append(visible, ok)
	}
	return visible, nil
}

func (d *PlaywrightDriver) TypeAndSubmit(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	box := page.Locator(selector).First()
	if err := box.Click(); err != nil {
		return fmt.Errorf("click search box: %w", err)
	}
	if err := box.Fill(""); err != nil {
		return fmt.Errorf("clear search box: %w", err)
	}
	if err := box.PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(float64(keyDelay.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("type query: %w", err)
	}
	return box.Press("Enter")
}

func (d *PlaywrightDriver) Click(ctx context.Context, selector string) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	return page.Locator(selector).First().Click()
}

func (d *PlaywrightDriver) WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	return page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   selectorState(state),
		Timeout: ms(timeout),
	})
}

func (d *PlaywrightDriver) Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error) {
	page, err := d.currentPage()
	if err != nil {
		return nil, err
	}
	opts := playwright.PageScreenshotOptions{FullPage: playwright.Bool(fullPage)}
	if path != "" {
		opts.Path = playwright.String(path)
	}
	return page.Screenshot(opts)
}

func (d *PlaywrightDriver) Reload(ctx context.Context) error {
	page, err := d.currentPage()
	if err != nil {
		return err
	}
	_, err = page.Reload(playwright.PageReloadOptions{Timeout: playwright.Float(10000)})
	return err
}

func (d *PlaywrightDriver) ClearCookies(ctx context.Context) error {
	d.mu.Lock()
	bctx := d.context
	d.mu.Unlock()
	if bctx == nil {
		return scouterrors.ErrNoPage
	}
	if err := bctx.ClearCookies(); err != nil {
		return err
	}
	return bctx.ClearPermissions()
}

// Close releases the page, browser and playwright driver
func (d *PlaywrightDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	if d.context != nil {
		if err := d.context.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.browser != nil {
		if err := d.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	d.pw, d.browser, d.context, d.page = nil, nil, nil, nil
	return firstErr
}

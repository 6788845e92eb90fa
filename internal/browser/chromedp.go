package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"sjsage522/scoutmcp/helpers"
	scouterrors "sjsage522/scoutmcp/pkg/errors"
)

// ChromedpDriver drives a local Chrome over the DevTools protocol
type ChromedpDriver struct {
	opts Options

	mu            sync.Mutex
	ctx           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

// NewChromedpDriver creates a driver that launches on Start
func NewChromedpDriver(opts Options) *ChromedpDriver {
	return &ChromedpDriver{opts: opts}
}

func (d *ChromedpDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return nil
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(1366, 768),
	)
	if d.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(d.opts.UserAgent))
	}
	if d.opts.Proxy != nil {
		allocOpts = append(allocOpts, chromedp.ProxyServer(d.opts.Proxy.Server))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	acceptLanguage := ""
	if d.opts.Profile != nil {
		acceptLanguage = d.opts.Profile.AcceptLanguage
	}
	headers := network.Headers{}
	for k, v := range helpers.BrowserHeaders(acceptLanguage) {
		if k != "User-Agent" {
			headers[k] = v
		}
	}

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(headers),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start chrome: %w", err)
	}

	d.ctx, d.allocCancel, d.browserCancel = browserCtx, allocCancel, browserCancel
	return nil
}

// run executes actions on the page bounded by timeout and the caller's ctx
func (d *ChromedpDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	d.mu.Lock()
	browserCtx := d.ctx
	d.mu.Unlock()
	if browserCtx == nil {
		return scouterrors.ErrNoPage
	}
	if timeout <= 0 {
		timeout = d.opts.Timeout
	}

	runCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (d *ChromedpDriver) Goto(ctx context.Context, rawURL, waitUntil string, timeout time.Duration) error {
	actions := []chromedp.Action{chromedp.Navigate(rawURL)}
	switch waitUntil {
	case LoadStateNone:
	case LoadStateNetworkidle:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery), chromedp.Sleep(500*time.Millisecond))
	default:
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	return d.run(ctx, timeout, actions...)
}

func (d *ChromedpDriver) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	return d.run(ctx, timeout, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (d *ChromedpDriver) Content(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *ChromedpDriver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, 0, chromedp.Title(&title))
	return title, err
}

func (d *ChromedpDriver) URL(ctx context.Context) (string, error) {
	var location string
	err := d.run(ctx, 0, chromedp.Location(&location))
	return location, err
}

func (d *ChromedpDriver) BodyTextLength(ctx context.Context) (int, error) {
	var n int
	err := d.run(ctx, 5*time.Second,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText.length : 0`, &n),
	)
	return n, err
}

const visibilityScript = `(() => Array.from(document.querySelectorAll(%s)).slice(0, %d).map(el => {
	const r = el.getBoundingClientRect();
	const s = window.getComputedStyle(el);
	return r.width > 0 && r.height > 0 && s.visibility !== 'hidden' && s.display !== 'none';
}))()`

func (d *ChromedpDriver) Visibility(ctx context.Context, selector string, limit int) ([]bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1 << 20
	}
	var visible []bool
	if err := d.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf(visibilityScript, quoted, limit), &visible)); err != nil {
		return nil, err
	}
	return visible, nil
}

func (d *ChromedpDriver) TypeAndSubmit(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	actions := []chromedp.Action{
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
	}
	for _, r := range text {
		actions = append(actions, chromedp.SendKeys(selector, string(r), chromedp.ByQuery))
		if keyDelay > 0 {
			actions = append(actions, chromedp.Sleep(keyDelay))
		}
	}
	actions = append(actions, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery))
	return d.run(ctx, 0, actions...)
}

func (d *ChromedpDriver) Click(ctx context.Context, selector string) error {
	return d.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (d *ChromedpDriver) WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error {
	var action chromedp.Action
	switch state {
	case StateAttached:
		action = chromedp.WaitReady(selector, chromedp.ByQuery)
	case StateDetached:
		action = chromedp.WaitNotPresent(selector, chromedp.ByQuery)
	case StateHidden:
		action = chromedp.WaitNotVisible(selector, chromedp.ByQuery)
	default:
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	}
	if err := d.run(ctx, timeout, action); err != nil {
		return fmt.Errorf("timeout %dms exceeded waiting for %s to be %s: %w", timeout.Milliseconds(), selector, state, err)
	}
	return nil
}

// Screenshot always produces PNG
func (d *ChromedpDriver) Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := d.run(ctx, 0, action); err != nil {
		return nil, err
	}
	if path != "" {
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return nil, fmt.Errorf("write screenshot: %w", err)
		}
	}
	return buf, nil
}

func (d *ChromedpDriver) Reload(ctx context.Context) error {
	return d.run(ctx, 10*time.Second, chromedp.Reload())
}

func (d *ChromedpDriver) ClearCookies(ctx context.Context) error {
	return d.run(ctx, 0, network.ClearBrowserCookies())
}

// Close stops the tab and the Chrome process
func (d *ChromedpDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.ctx, d.allocCancel, d.browserCancel = nil, nil, nil
	return nil
}

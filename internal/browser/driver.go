package browser

import (
	"context"
	"fmt"
	"time"

	"sjsage522/scoutmcp/internal/marketplace"
	"sjsage522/scoutmcp/services/proxy"
)

// Load states accepted by Goto and WaitForLoadState
const (
	LoadStateNetworkidle      = "networkidle"
	LoadStateDomcontentloaded = "domcontentloaded"
	LoadStateLoad             = "load"
	LoadStateNone             = "none"
)

// Element states accepted by WaitFor
const (
	StateVisible  = "visible"
	StateAttached = "attached"
	StateDetached = "detached"
	StateHidden   = "hidden"
)

// Engines
const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"
	EngineStatic     = "static"
)

// Driver is one browser engine holding a single page
type Driver interface {
	// Start launches the engine and opens the page
	Start(ctx context.Context) error

	// Goto navigates and waits for the given load state
	Goto(ctx context.Context, rawURL, waitUntil string, timeout time.Duration) error

	// WaitForLoadState waits for the current page to reach state
	WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error

	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)

	// BodyTextLength returns the length of the body's rendered text
	BodyTextLength(ctx context.Context) (int, error)

	// Visibility reports visibility for at most limit elements matching selector
	Visibility(ctx context.Context, selector string, limit int) ([]bool, error)

	// TypeAndSubmit clicks selector, clears it, types text one key at a
	// time and presses Enter
	TypeAndSubmit(ctx context.Context, selector, text string, keyDelay time.Duration) error

	Click(ctx context.Context, selector string) error

	// WaitFor waits until the first element matching selector reaches state
	WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error

	// Screenshot writes a PNG to path when it is not empty and returns its bytes
	Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error)

	Reload(ctx context.Context) error
	ClearCookies(ctx context.Context) error
	Close() error
}

// Options configures a driver
type Options struct {
	Headless  bool
	Timeout   time.Duration
	UserAgent string
	Proxy     *proxy.ProxyInfo
	Profile   *marketplace.Profile
}

// NewDriver creates a driver for the named engine
func NewDriver(engine string, opts Options) (Driver, error) {
	switch engine {
	case EnginePlaywright, "":
		return NewPlaywrightDriver(opts), nil
	case EngineChromedp:
		return NewChromedpDriver(opts), nil
	case EngineStatic:
		return NewStaticDriver(opts), nil
	default:
		return nil, fmt.Errorf("unknown browser engine: %s", engine)
	}
}

// stealthScript hides the usual automation fingerprints
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['es-MX', 'es', 'en'] });
window.chrome = { runtime: {} };
`

var launchArgs = []string{
	"--no-sandbox",
	"--disable-blink-features=AutomationControlled",
	"--disable-dev-shm-usage",
	"--disable-infobars",
	"--window-size=1366,768",
}

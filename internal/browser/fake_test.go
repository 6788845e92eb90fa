package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// fakePage is one page served by fakeDriver
type fakePage struct {
	title   string
	html    string
	bodyLen int
}

// fakeDriver is an in-memory Driver
type fakeDriver struct {
	mu sync.Mutex

	pages     map[string]fakePage
	failGotos int
	gotoErr   error
	startErr  error

	visible   map[string][]bool
	clicks    map[string]string
	searchURL string

	current string
	typed   []string
	gotos   int
	reloads int
	clears  int
	closed  bool
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		pages:   map[string]fakePage{},
		visible: map[string][]bool{},
		clicks:  map[string]string{},
	}
}

func (f *fakeDriver) addPage(url, title, html string) {
	f.pages[url] = fakePage{title: title, html: html, bodyLen: 500}
}

func (f *fakeDriver) Start(ctx context.Context) error { return f.startErr }

func (f *fakeDriver) Goto(ctx context.Context, rawURL, waitUntil string, timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotos++
	if f.failGotos > 0 {
		f.failGotos--
		if f.gotoErr != nil {
			return f.gotoErr
		}
		return errors.New("Timeout 60000ms exceeded")
	}
	if _, ok := f.pages[rawURL]; !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", rawURL)
	}
	f.current = rawURL
	return nil
}

func (f *fakeDriver) WaitForLoadState(ctx context.Context, state string, timeout time.Duration) error {
	return nil
}

func (f *fakeDriver) page() fakePage {
	return f.pages[f.current]
}

func (f *fakeDriver) Content(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page().html, nil
}

func (f *fakeDriver) Title(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page().title, nil
}

func (f *fakeDriver) URL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeDriver) BodyTextLength(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page().bodyLen, nil
}

func (f *fakeDriver) Visibility(ctx context.Context, selector string, limit int) ([]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.visible[selector]
	if limit > 0 && len(v) > limit {
		v = v[:limit]
	}
	return v, nil
}

func (f *fakeDriver) TypeAndSubmit(ctx context.Context, selector, text string, keyDelay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typed = append(f.typed, selector+"="+text)
	if f.searchURL != "" {
		f.current = f.searchURL
	}
	return nil
}

func (f *fakeDriver) Click(ctx context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.clicks[selector]
	if !ok {
		return fmt.Errorf("no element for %s", selector)
	}
	f.current = target
	return nil
}

func (f *fakeDriver) WaitFor(ctx context.Context, selector, state string, timeout time.Duration) error {
	return nil
}

func (f *fakeDriver) Screenshot(ctx context.Context, path string, fullPage bool) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (f *fakeDriver) Reload(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return nil
}

func (f *fakeDriver) ClearCookies(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func (f *fakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

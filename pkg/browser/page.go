package browser

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/qarunner/pkg/probe"
)

// PageEngine launches Playwright-backed page sessions.
type PageEngine struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	install     bool
	chromePath  string
	initialized bool
}

// PageEngineOption configures a PageEngine.
type PageEngineOption func(*PageEngine)

// WithInstall controls whether Playwright downloads its driver and browsers
// on first use.
func WithInstall(install bool) PageEngineOption {
	return func(e *PageEngine) {
		e.install = install
	}
}

// WithPageExecutable launches the given Chromium binary instead of the
// bundled one.
func WithPageExecutable(path string) PageEngineOption {
	return func(e *PageEngine) {
		e.chromePath = path
	}
}

// NewPageEngine creates a page engine. Playwright is not started until the
// first Launch.
func NewPageEngine(opts ...PageEngineOption) *PageEngine {
	e := &PageEngine{install: true}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize installs (if enabled) and starts the Playwright driver.
// It is safe to call more than once.
func (e *PageEngine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if e.install {
		if err := playwright.Install(opts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	e.playwright = pw
	e.initialized = true
	return nil
}

// Launch starts a browser, context and page for one run phase.
func (e *PageEngine) Launch(opts LaunchOptions) (probe.PageSession, error) {
	if err := e.Initialize(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	e.mu.Lock()
	pw := e.playwright
	e.mu.Unlock()

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	}
	if e.chromePath != "" {
		launchOpts.ExecutablePath = &e.chromePath
	}
	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	page.SetDefaultTimeout(millis(opts.Timeout))

	return &PageSession{browser: browser, context: context, page: page}, nil
}

// Shutdown stops the Playwright driver.
func (e *PageEngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized && e.playwright != nil {
		if err := e.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		e.initialized = false
	}
	return nil
}

// PageSession adapts a Playwright page to probe.PageSession.
type PageSession struct {
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

// Goto navigates the page and returns the main response status.
func (s *PageSession) Goto(url string, waitUntil probe.WaitUntil, timeout time.Duration) (int, error) {
	opts := playwright.PageGotoOptions{}

	if waitUntil != "" {
		state := playwright.WaitUntilState(waitUntil)
		opts.WaitUntil = &state
	}
	if timeout > 0 {
		ms := millis(timeout)
		opts.Timeout = &ms
	}

	resp, err := s.page.Goto(url, opts)
	if err != nil {
		return 0, fmt.Errorf("navigation failed: %w", err)
	}
	if resp == nil {
		return 0, nil
	}
	return resp.Status(), nil
}

// WaitForLoadState waits for the given load milestone.
func (s *PageSession) WaitForLoadState(state probe.WaitUntil, timeout time.Duration) error {
	loadState := playwright.LoadState(state)
	opts := playwright.PageWaitForLoadStateOptions{State: &loadState}
	if timeout > 0 {
		ms := millis(timeout)
		opts.Timeout = &ms
	}

	if err := s.page.WaitForLoadState(opts); err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return fmt.Errorf("waiting for %s: %w", state, probe.ErrWaitTimeout)
		}
		return fmt.Errorf("waiting for %s: %w", state, err)
	}
	return nil
}

func (s *PageSession) URL() string {
	return s.page.URL()
}

func (s *PageSession) Title() (string, error) {
	return s.page.Title()
}

// Count returns the number of elements matching selector.
func (s *PageSession) Count(selector string) (int, error) {
	return s.page.Locator(selector).Count()
}

// TextContent returns the text of the first element matching selector.
func (s *PageSession) TextContent(selector string) (string, error) {
	return s.page.Locator(selector).First().TextContent()
}

func (s *PageSession) Evaluate(expression string) (interface{}, error) {
	return s.page.Evaluate(expression)
}

// Screenshot writes a PNG of the page to path.
func (s *PageSession) Screenshot(path string, fullPage bool) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     &path,
		FullPage: &fullPage,
	})
	return err
}

// Close releases the page, context and browser. Errors are collected and
// cleanup continues.
func (s *PageSession) Close() error {
	var errs []error
	if err := s.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing page session: %w", errors.Join(errs...))
	}
	return nil
}

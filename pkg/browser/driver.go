package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"

	"github.com/entrhq/qarunner/pkg/probe"
)

// interactableScript reports whether the first match of a selector is
// enabled and rendered with a non-empty box.
const interactableScript = `(() => {
	const el = document.querySelector(%s);
	if (!el) {
		return false;
	}
	const style = window.getComputedStyle(el);
	const rect = el.getBoundingClientRect();
	return !el.disabled &&
		style.display !== 'none' &&
		style.visibility !== 'hidden' &&
		rect.width > 0 && rect.height > 0;
})()`

// DriverEngine launches chromedp-backed driver sessions.
type DriverEngine struct {
	execPath          string
	navigationTimeout time.Duration
}

// DriverEngineOption configures a DriverEngine.
type DriverEngineOption func(*DriverEngine)

// WithDriverExecutable launches the given Chrome binary instead of the one
// found on PATH.
func WithDriverExecutable(path string) DriverEngineOption {
	return func(e *DriverEngine) {
		e.execPath = path
	}
}

// WithNavigationTimeout bounds every driver navigation.
func WithNavigationTimeout(timeout time.Duration) DriverEngineOption {
	return func(e *DriverEngine) {
		if timeout > 0 {
			e.navigationTimeout = timeout
		}
	}
}

// NewDriverEngine creates a driver engine.
func NewDriverEngine(opts ...DriverEngineOption) *DriverEngine {
	e := &DriverEngine{navigationTimeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Launch starts a fresh Chrome process for one run phase. The process lives
// until the returned session is closed or ctx is cancelled.
func (e *DriverEngine) Launch(ctx context.Context, opts LaunchOptions) (probe.DriverSession, error) {
	opts = opts.withDefaults()

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(opts.Viewport.Width, opts.Viewport.Height),
	)
	if e.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(e.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// An empty Run starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to launch chrome: %w", err)
	}

	return &DriverSession{
		ctx:               browserCtx,
		navigationTimeout: e.navigationTimeout,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

// DriverSession adapts a chromedp browser tab to probe.DriverSession.
type DriverSession struct {
	ctx               context.Context
	cancel            func()
	navigationTimeout time.Duration
}

// Get navigates the tab and waits for the load event. Hitting the
// navigation timeout yields probe.ErrWaitTimeout.
func (s *DriverSession) Get(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.navigationTimeout)
	defer cancel()

	return timeoutError("navigation failed", chromedp.Run(ctx, chromedp.Navigate(url)))
}

// WaitForElement waits until selector is present in the DOM.
func (s *DriverSession) WaitForElement(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	return timeoutError(fmt.Sprintf("waiting for %q", selector), err)
}

// timeoutError wraps err with action, mapping deadline expiry to
// probe.ErrWaitTimeout.
func timeoutError(action string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", action, probe.ErrWaitTimeout)
	}
	return fmt.Errorf("%s: %w", action, err)
}

func (s *DriverSession) CurrentURL() (string, error) {
	var location string
	if err := chromedp.Run(s.ctx, chromedp.Location(&location)); err != nil {
		return "", err
	}
	return location, nil
}

func (s *DriverSession) Title() (string, error) {
	var title string
	if err := chromedp.Run(s.ctx, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// Count returns the number of elements matching selector without waiting
// for any to appear.
func (s *DriverSession) Count(selector string) (int, error) {
	var nodes []*cdp.Node
	if err := chromedp.Run(s.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// FirstInteractable reports whether the first match of selector is enabled
// and visible.
func (s *DriverSession) FirstInteractable(selector string) (bool, error) {
	quoted, _ := json.Marshal(selector)

	var interactable bool
	script := fmt.Sprintf(interactableScript, quoted)
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &interactable)); err != nil {
		return false, err
	}
	return interactable, nil
}

// Close terminates the Chrome process.
func (s *DriverSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("failed to close chrome: %w", err)
	}
	return nil
}

// Package browser provides the two browser engines a QA run drives.
//
// The page engine is backed by Playwright and serves the DOM-level probes
// (navigation, content, performance, accessibility, screenshots). The driver
// engine is backed by chromedp over the Chrome DevTools Protocol and serves
// the form and cross-engine navigation probes.
//
// # Lifecycle
//
// Both engines hand out one session per run phase:
//
//  1. Launch: a fresh browser (and, for Playwright, a context and page) is started
//  2. Use: probes operate on the session through the probe.Page or probe.Driver interface
//  3. Close: the session and its browser process are released
//
// The Playwright driver process itself is started lazily on the first launch
// and stopped by PageEngine.Shutdown.
package browser

import (
	"time"

	"github.com/entrhq/qarunner/pkg/types"
)

// LaunchOptions configures a single browser session.
type LaunchOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial window size
	Viewport types.Viewport

	// Timeout sets the default timeout for operations
	Timeout time.Duration
}

// Default values applied when LaunchOptions fields are left zero.
const (
	DefaultTimeout = 30 * time.Second
)

func (o LaunchOptions) withDefaults() LaunchOptions {
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = types.Viewport{Width: types.DefaultWindowWidth, Height: types.DefaultWindowHeight}
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Package probe implements the individual browser checks that make up a QA
// run.
//
// Each probe is a pure function of an Env and an engine handle. Probes never
// return errors to the caller: every failure, including a panic inside the
// probe, becomes a Failed ProbeResult so one broken check cannot abort the
// rest of the run.
package probe

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/qarunner/pkg/types"
)

// ErrWaitTimeout is returned by engines when a wait condition is not met in time.
var ErrWaitTimeout = errors.New("wait timed out")

// WaitUntil names the load milestone a navigation waits for.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// Page is the page-engine handle used by DOM-level probes.
type Page interface {
	// Goto navigates and returns the main response status, or 0 when the
	// navigation produced no response.
	Goto(url string, waitUntil WaitUntil, timeout time.Duration) (int, error)
	WaitForLoadState(state WaitUntil, timeout time.Duration) error
	URL() string
	Title() (string, error)
	Count(selector string) (int, error)
	TextContent(selector string) (string, error)
	Evaluate(expression string) (interface{}, error)
	Screenshot(path string, fullPage bool) error
}

// Driver is the driver-engine handle used by form and cross-engine probes.
type Driver interface {
	Get(url string) error
	// WaitForElement returns ErrWaitTimeout when selector does not appear in time.
	WaitForElement(selector string, timeout time.Duration) error
	CurrentURL() (string, error)
	Title() (string, error)
	Count(selector string) (int, error)
	// FirstInteractable reports whether the first element matching selector
	// is both enabled and visible.
	FirstInteractable(selector string) (bool, error)
}

// PageSession is a launched page engine that must be closed after use.
type PageSession interface {
	Page
	Close() error
}

// DriverSession is a launched driver engine that must be closed after use.
type DriverSession interface {
	Driver
	Close() error
}

// Env is everything a probe needs to know about the run it belongs to.
type Env struct {
	TargetURL         string
	ProjectName       string
	ScreenshotDir     string
	WaitTimeout       time.Duration
	NavigationTimeout time.Duration

	// Now is the clock used for timestamps and load timings
	Now func() time.Time

	// AddScreenshot records a captured screenshot path on the run
	AddScreenshot func(path string)
}

func (e Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Env) addScreenshot(path string) {
	if e.AddScreenshot != nil {
		e.AddScreenshot(path)
	}
}

// PageProbe is a check executed on the page engine.
type PageProbe func(env Env, page Page) (types.ProbeResult, error)

// DriverProbe is a check executed on the driver engine.
type DriverProbe func(env Env, driver Driver) (types.ProbeResult, error)

// PageProbes maps every page-engine goal to its probe.
var PageProbes = map[types.Goal]PageProbe{
	types.GoalNavigation:       Navigation,
	types.GoalContentIntegrity: ContentIntegrity,
	types.GoalPerformance:      Performance,
	types.GoalAccessibility:    Accessibility,
	types.GoalScreenshot:       Screenshot,
}

// DriverProbes maps every driver-engine goal to its probe.
var DriverProbes = map[types.Goal]DriverProbe{
	types.GoalForms:                 Forms,
	types.GoalCrossEngineNavigation: CrossEngineNavigation,
}

// RunPage executes the page probe registered for goal and converts any error
// or panic into a Failed result.
func RunPage(goal types.Goal, env Env, page Page) (result types.ProbeResult) {
	p, ok := PageProbes[goal]
	if !ok {
		return types.NewFailedResult(goal.String(), fmt.Sprintf("no page probe registered for %s", goal), env.now())
	}

	defer func() {
		if r := recover(); r != nil {
			result = types.NewFailedResult(goal.String(), fmt.Sprintf("probe panicked: %v", r), env.now())
		}
	}()

	result, err := p(env, page)
	if err != nil {
		return types.NewFailedResult(goal.String(), err.Error(), env.now())
	}
	return result
}

// RunDriver executes the driver probe registered for goal and converts any
// error or panic into a Failed result.
func RunDriver(goal types.Goal, env Env, driver Driver) (result types.ProbeResult) {
	p, ok := DriverProbes[goal]
	if !ok {
		return types.NewFailedResult(goal.String(), fmt.Sprintf("no driver probe registered for %s", goal), env.now())
	}

	defer func() {
		if r := recover(); r != nil {
			result = types.NewFailedResult(goal.String(), fmt.Sprintf("probe panicked: %v", r), env.now())
		}
	}()

	result, err := p(env, driver)
	if err != nil {
		return types.NewFailedResult(goal.String(), err.Error(), env.now())
	}
	return result
}

// SanitizeFileName makes a project name safe to embed in a file name.
func SanitizeFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(name))

	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return "project"
	}
	return cleaned
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}

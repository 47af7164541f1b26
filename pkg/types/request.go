package types

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Default browser window dimensions.
const (
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
)

// Viewport represents browser window dimensions.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BrowserOptions are the caller-supplied browser settings for a run.
type BrowserOptions struct {
	// Headless requests a headless browser. Nil means "use the server default".
	Headless *bool `json:"headless,omitempty"`

	// WindowSize is "width,height", e.g. "1920,1080"
	WindowSize string `json:"windowSize,omitempty"`
}

// Viewport parses WindowSize, falling back to the default size when it is
// missing or malformed.
func (o BrowserOptions) Viewport() Viewport {
	def := Viewport{Width: DefaultWindowWidth, Height: DefaultWindowHeight}
	parts := strings.Split(o.WindowSize, ",")
	if len(parts) != 2 {
		return def
	}
	w, errW := strconv.Atoi(strings.TrimSpace(parts[0]))
	h, errH := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return def
	}
	return Viewport{Width: w, Height: h}
}

// ParseBrowserOptions decodes an options blob that may be a JSON object or a
// JSON string containing an object. Anything malformed yields empty options.
func ParseBrowserOptions(raw json.RawMessage) BrowserOptions {
	var opts BrowserOptions
	if len(raw) == 0 {
		return opts
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err == nil {
		raw = json.RawMessage(encoded)
	}

	if err := json.Unmarshal(raw, &opts); err != nil {
		return BrowserOptions{}
	}
	return opts
}

// RunRequest describes one requested run.
type RunRequest struct {
	ProjectName string
	TargetURL   string

	// Selection is the caller's raw goal selection, kept verbatim for history
	Selection map[string]bool

	// Goals are the enabled, known goals in execution order
	Goals []Goal

	Browser BrowserOptions
}

// Has reports whether goal is enabled in the request.
func (r RunRequest) Has(goal Goal) bool {
	for _, g := range r.Goals {
		if g == goal {
			return true
		}
	}
	return false
}

// GoalsFor returns the enabled goals belonging to engine, in order.
func (r RunRequest) GoalsFor(engine Engine) []Goal {
	var out []Goal
	for _, g := range r.Goals {
		if g.Engine() == engine {
			out = append(out, g)
		}
	}
	return out
}

// GoalNames returns the wire names of the enabled goals.
func (r RunRequest) GoalNames() []string {
	names := make([]string, 0, len(r.Goals))
	for _, g := range r.Goals {
		names = append(names, g.String())
	}
	return names
}

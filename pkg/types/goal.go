package types

import (
	"fmt"
	"sort"
)

// Goal is a category of testing a caller can select for a run.
//
// Goals form a closed set. Each goal is served by exactly one probe and
// belongs to exactly one browser engine.
type Goal int

const (
	GoalNavigation Goal = iota
	GoalContentIntegrity
	GoalPerformance
	GoalAccessibility
	GoalScreenshot
	GoalForms
	GoalCrossEngineNavigation

	goalCount
)

// Engine identifies which browser automation engine a goal runs on.
type Engine string

const (
	// EnginePage is the Playwright-driven engine used for DOM checks
	EnginePage Engine = "page"
	// EngineDriver is the chromedp-driven engine used for form and navigation cross-checks
	EngineDriver Engine = "driver"
)

type goalInfo struct {
	name   string
	engine Engine
}

var goalTable = [goalCount]goalInfo{
	GoalNavigation:            {name: "Browser Navigation & URL Validation", engine: EnginePage},
	GoalContentIntegrity:      {name: "Page Element & Content Integrity", engine: EnginePage},
	GoalPerformance:           {name: "Performance Metrics & Load Times", engine: EnginePage},
	GoalAccessibility:         {name: "Accessibility Conformance (WCAG)", engine: EnginePage},
	GoalScreenshot:            {name: "Screenshot & Visual Regression", engine: EnginePage},
	GoalForms:                 {name: "Form Interaction & Data Submission", engine: EngineDriver},
	GoalCrossEngineNavigation: {name: "Cross-Engine Navigation Check", engine: EngineDriver},
}

var goalsByName = func() map[string]Goal {
	m := make(map[string]Goal, goalCount)
	for g := Goal(0); g < goalCount; g++ {
		m[goalTable[g].name] = g
	}
	return m
}()

// AllGoals returns every goal in execution order.
func AllGoals() []Goal {
	goals := make([]Goal, 0, goalCount)
	for g := Goal(0); g < goalCount; g++ {
		goals = append(goals, g)
	}
	return goals
}

// Valid reports whether g is a member of the goal enumeration.
func (g Goal) Valid() bool {
	return g >= 0 && g < goalCount
}

// String returns the goal's wire name.
func (g Goal) String() string {
	if !g.Valid() {
		return fmt.Sprintf("Goal(%d)", int(g))
	}
	return goalTable[g].name
}

// Engine returns the engine the goal's probe runs on.
func (g Goal) Engine() Engine {
	if !g.Valid() {
		return ""
	}
	return goalTable[g].engine
}

// MarshalText implements encoding.TextMarshaler.
func (g Goal) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, fmt.Errorf("invalid goal %d", int(g))
	}
	return []byte(goalTable[g].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Goal) UnmarshalText(text []byte) error {
	parsed, ok := ParseGoal(string(text))
	if !ok {
		return fmt.Errorf("unknown goal %q", string(text))
	}
	*g = parsed
	return nil
}

// ParseGoal looks up a goal by its wire name.
func ParseGoal(name string) (Goal, bool) {
	g, ok := goalsByName[name]
	return g, ok
}

// ParseSelection converts a caller's goal-name→enabled mapping into the
// ordered list of enabled goals. Names that are not part of the enumeration
// are returned separately so callers can report them.
func ParseSelection(selection map[string]bool) (enabled []Goal, unknown []string) {
	for name, on := range selection {
		g, ok := ParseGoal(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		if on {
			enabled = append(enabled, g)
		}
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i] < enabled[j] })
	sort.Strings(unknown)
	return enabled, unknown
}

// Package catalog exposes the built-in reference test suites.
//
// The suites describe manual and future automated checks for common site
// types. They are read-only reference data and are never executed.
package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/entrhq/qarunner/pkg/types"
)

//go:embed suites.yaml
var suitesYAML []byte

// Test is one reference test inside a suite.
type Test struct {
	Name        string             `yaml:"name" json:"name"`
	Description string             `yaml:"description" json:"description"`
	Checks      []string           `yaml:"checks,omitempty" json:"checks,omitempty"`
	Viewport    *types.Viewport    `yaml:"viewport,omitempty" json:"viewport,omitempty"`
	Thresholds  map[string]float64 `yaml:"thresholds,omitempty" json:"thresholds,omitempty"`
}

// Suite groups related reference tests.
type Suite struct {
	Key          string   `yaml:"key" json:"-"`
	Name         string   `yaml:"name" json:"name"`
	RelatedGoals []string `yaml:"related_goals" json:"related_goals"`
	Tests        []Test   `yaml:"tests" json:"tests"`
}

// Catalog is an ordered, keyed set of suites.
type Catalog struct {
	order  []string
	suites map[string]Suite
}

// Load parses the embedded suites.
func Load() (*Catalog, error) {
	return Parse(suitesYAML)
}

// Parse builds a catalog from YAML. Suite keys must be unique and related
// goals must name known goals.
func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Suites []Suite `yaml:"suites"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}

	c := &Catalog{suites: make(map[string]Suite, len(doc.Suites))}
	for _, s := range doc.Suites {
		if s.Key == "" {
			return nil, fmt.Errorf("catalog: suite %q has no key", s.Name)
		}
		if _, dup := c.suites[s.Key]; dup {
			return nil, fmt.Errorf("catalog: duplicate suite key %q", s.Key)
		}
		for _, g := range s.RelatedGoals {
			if _, ok := types.ParseGoal(g); !ok {
				return nil, fmt.Errorf("catalog: suite %q references unknown goal %q", s.Key, g)
			}
		}
		if s.RelatedGoals == nil {
			s.RelatedGoals = []string{}
		}
		c.order = append(c.order, s.Key)
		c.suites[s.Key] = s
	}
	return c, nil
}

// Keys returns the suite keys in catalog order.
func (c *Catalog) Keys() []string {
	return append([]string(nil), c.order...)
}

// Suite returns the suite stored under key.
func (c *Catalog) Suite(key string) (Suite, bool) {
	s, ok := c.suites[key]
	return s, ok
}

// All returns every suite keyed by its catalog key.
func (c *Catalog) All() map[string]Suite {
	out := make(map[string]Suite, len(c.suites))
	for k, v := range c.suites {
		out[k] = v
	}
	return out
}

// Package targets decides which URLs the service is willing to point a
// browser at.
package targets

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// Guard matches target URLs against glob allow and deny patterns.
type Guard struct {
	allowedPatterns []glob.Glob
	deniedPatterns  []glob.Glob
}

// NewGuard compiles the allow and deny patterns.
func NewGuard(allowed, denied []string) (*Guard, error) {
	g := &Guard{}

	for _, pattern := range allowed {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid allowed pattern '%s': %w", pattern, err)
		}
		g.allowedPatterns = append(g.allowedPatterns, compiled)
	}

	for _, pattern := range denied {
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid denied pattern '%s': %w", pattern, err)
		}
		g.deniedPatterns = append(g.deniedPatterns, compiled)
	}

	return g, nil
}

// Check returns nil when rawURL is an absolute http(s) URL permitted by the
// pattern rules.
func (g *Guard) Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("target URL must include a host")
	}
	if !g.IsAllowed(u.String()) {
		return fmt.Errorf("target URL %s is not allowed", u.String())
	}
	return nil
}

// IsAllowed returns true if the URL is allowed by the pattern rules
func (g *Guard) IsAllowed(target string) bool {
	// Denied patterns take precedence
	for _, pattern := range g.deniedPatterns {
		if pattern.Match(target) {
			return false
		}
	}

	// If no allowed patterns specified, allow all (except denied)
	if len(g.allowedPatterns) == 0 {
		return true
	}

	for _, pattern := range g.allowedPatterns {
		if pattern.Match(target) {
			return true
		}
	}

	return false
}

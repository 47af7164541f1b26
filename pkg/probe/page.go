package probe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/entrhq/qarunner/pkg/types"
)

const performanceScript = `() => {
	const perfData = performance.getEntriesByType('navigation')[0];
	if (!perfData) {
		return {};
	}
	return {
		dns_time: perfData.domainLookupEnd - perfData.domainLookupStart,
		tcp_time: perfData.connectEnd - perfData.connectStart,
		dom_content_loaded: perfData.domContentLoadedEventEnd - perfData.domContentLoadedEventStart,
		load_complete: perfData.loadEventEnd - perfData.loadEventStart
	};
}`

// Navigation loads the target and checks the response status.
func Navigation(env Env, page Page) (types.ProbeResult, error) {
	goal := types.GoalNavigation.String()

	start := env.now()
	status, err := page.Goto(env.TargetURL, WaitNetworkIdle, env.NavigationTimeout)
	if err != nil {
		return types.ProbeResult{}, err
	}
	if status == 0 {
		return types.ProbeResult{}, fmt.Errorf("no response received from %s", env.TargetURL)
	}
	loadTime := env.now().Sub(start)

	details := map[string]interface{}{
		"target_url":  env.TargetURL,
		"final_url":   page.URL(),
		"status_code": status,
		"load_time":   formatSeconds(loadTime),
	}

	result := types.NewPassedResult(goal, details, env.now())
	if status >= 400 {
		result.Status = types.ProbeFailed
	}
	return result, nil
}

// ContentIntegrity records the page title, landmarks, link and image counts
// and body text length. It is informational and always passes.
func ContentIntegrity(env Env, page Page) (types.ProbeResult, error) {
	if _, err := page.Goto(env.TargetURL, WaitLoad, env.NavigationTimeout); err != nil {
		return types.ProbeResult{}, err
	}
	if err := page.WaitForLoadState(WaitNetworkIdle, env.WaitTimeout); err != nil {
		return types.ProbeResult{}, err
	}

	title, err := page.Title()
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("read title: %w", err)
	}

	counts, err := countAll(page, map[string]string{
		"header": `header, [role="banner"]`,
		"main":   `main, [role="main"]`,
		"footer": `footer, [role="contentinfo"]`,
		"links":  "a",
		"images": "img",
	})
	if err != nil {
		return types.ProbeResult{}, err
	}

	body, err := page.TextContent("body")
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("read body text: %w", err)
	}

	return types.NewPassedResult(types.GoalContentIntegrity.String(), map[string]interface{}{
		"title":          title,
		"has_header":     counts["header"] > 0,
		"has_main":       counts["main"] > 0,
		"has_footer":     counts["footer"] > 0,
		"links_count":    counts["links"],
		"images_count":   counts["images"],
		"content_length": len([]rune(body)),
	}, env.now()), nil
}

// Performance measures the total load time and the browser navigation
// timing deltas. It is informational and always passes.
func Performance(env Env, page Page) (types.ProbeResult, error) {
	start := env.now()
	if _, err := page.Goto(env.TargetURL, WaitLoad, env.NavigationTimeout); err != nil {
		return types.ProbeResult{}, err
	}
	loadTime := env.now().Sub(start)

	raw, err := page.Evaluate(performanceScript)
	if err != nil {
		return types.ProbeResult{}, fmt.Errorf("read navigation timing: %w", err)
	}
	metrics, _ := raw.(map[string]interface{})

	return types.NewPassedResult(types.GoalPerformance.String(), map[string]interface{}{
		"total_load_time":    formatSeconds(loadTime),
		"dns_lookup":         formatMillis(metrics["dns_time"]),
		"tcp_connection":     formatMillis(metrics["tcp_time"]),
		"dom_content_loaded": formatMillis(metrics["dom_content_loaded"]),
		"load_complete":      formatMillis(metrics["load_complete"]),
	}, env.now()), nil
}

// Accessibility runs basic WCAG heuristics and fails when any issue is found.
func Accessibility(env Env, page Page) (types.ProbeResult, error) {
	if _, err := page.Goto(env.TargetURL, WaitNetworkIdle, env.NavigationTimeout); err != nil {
		return types.ProbeResult{}, err
	}

	counts, err := countAll(page, map[string]string{
		"lang":     "html[lang]",
		"viewport": `meta[name="viewport"]`,
		"images":   "img",
		"alt":      "img[alt]",
		"aria":     "[aria-label], [aria-labelledby]",
		"h1":       "h1",
	})
	if err != nil {
		return types.ProbeResult{}, err
	}

	hasLang := counts["lang"] > 0
	hasViewport := counts["viewport"] > 0
	images, withAlt, h1 := counts["images"], counts["alt"], counts["h1"]

	issues := []string{}
	if !hasLang {
		issues = append(issues, "Missing lang attribute on html element")
	}
	if !hasViewport {
		issues = append(issues, "Missing viewport meta tag")
	}
	if images > 0 && withAlt < images {
		issues = append(issues, fmt.Sprintf("%d images missing alt text", images-withAlt))
	}
	switch {
	case h1 == 0:
		issues = append(issues, "No h1 heading found")
	case h1 > 1:
		issues = append(issues, fmt.Sprintf("Multiple h1 headings found (%d)", h1))
	}

	result := types.NewPassedResult(types.GoalAccessibility.String(), map[string]interface{}{
		"has_lang_attribute": hasLang,
		"has_viewport_meta":  hasViewport,
		"images_with_alt":    fmt.Sprintf("%d/%d", withAlt, images),
		"aria_elements":      counts["aria"],
		"h1_count":           h1,
		"issues":             issues,
	}, env.now())
	if len(issues) > 0 {
		result.Status = types.ProbeFailed
	}
	return result, nil
}

// Screenshot captures a full-page PNG of the target and records its path on
// the run.
func Screenshot(env Env, page Page) (types.ProbeResult, error) {
	if _, err := page.Goto(env.TargetURL, WaitNetworkIdle, env.NavigationTimeout); err != nil {
		return types.ProbeResult{}, err
	}

	if err := os.MkdirAll(env.ScreenshotDir, 0o755); err != nil {
		return types.ProbeResult{}, fmt.Errorf("create screenshot directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.png", SanitizeFileName(env.ProjectName), env.now().Format("20060102_150405"))
	path := filepath.Join(env.ScreenshotDir, name)

	if err := page.Screenshot(path, true); err != nil {
		return types.ProbeResult{}, fmt.Errorf("capture screenshot: %w", err)
	}
	env.addScreenshot(path)

	return types.NewPassedResult(types.GoalScreenshot.String(), map[string]interface{}{
		"screenshot_path": path,
		"full_page":       true,
	}, env.now()), nil
}

func countAll(page Page, selectors map[string]string) (map[string]int, error) {
	counts := make(map[string]int, len(selectors))
	for key, selector := range selectors {
		n, err := page.Count(selector)
		if err != nil {
			return nil, fmt.Errorf("count %q: %w", selector, err)
		}
		counts[key] = n
	}
	return counts, nil
}

func formatMillis(v interface{}) string {
	var ms float64
	switch n := v.(type) {
	case float64:
		ms = n
	case int:
		ms = float64(n)
	case int64:
		ms = float64(n)
	}
	return fmt.Sprintf("%.2fms", ms)
}

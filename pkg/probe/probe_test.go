package probe_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/qarunner/pkg/probe"
	"github.com/entrhq/qarunner/pkg/probe/probetest"
	"github.com/entrhq/qarunner/pkg/types"
)

var fixedNow = time.Date(2025, 3, 4, 10, 30, 15, 0, time.UTC)

func testEnv(t *testing.T) (probe.Env, *[]string) {
	t.Helper()
	shots := []string{}
	return probe.Env{
		TargetURL:         "https://example.com",
		ProjectName:       "My Shop",
		ScreenshotDir:     t.TempDir(),
		WaitTimeout:       10 * time.Second,
		NavigationTimeout: 30 * time.Second,
		Now:               func() time.Time { return fixedNow },
		AddScreenshot:     func(p string) { shots = append(shots, p) },
	}, &shots
}

func accessiblePage() *probetest.Page {
	page := probetest.NewPage(200)
	page.Counts = map[string]int{
		"html[lang]":            1,
		`meta[name="viewport"]`: 1,
		"img":                   3,
		"img[alt]":              3,
		"h1":                    1,
	}
	return page
}

func TestEveryGoalHasExactlyOneProbe(t *testing.T) {
	for _, goal := range types.AllGoals() {
		_, onPage := probe.PageProbes[goal]
		_, onDriver := probe.DriverProbes[goal]

		assert.True(t, onPage != onDriver, "goal %s must have exactly one probe", goal)
		switch goal.Engine() {
		case types.EnginePage:
			assert.True(t, onPage, "goal %s belongs to the page engine", goal)
		case types.EngineDriver:
			assert.True(t, onDriver, "goal %s belongs to the driver engine", goal)
		}
	}
	assert.Len(t, probe.PageProbes, len(types.AllGoals())-len(probe.DriverProbes))
}

func TestNavigation(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   types.ProbeStatus
	}{
		{"ok", 200, types.ProbePassed},
		{"redirect", 302, types.ProbePassed},
		{"not found", 404, types.ProbeFailed},
		{"server error", 503, types.ProbeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := testEnv(t)
			page := probetest.NewPage(tt.status)

			result := probe.RunPage(types.GoalNavigation, env, page)

			assert.Equal(t, tt.want, result.Status)
			assert.Equal(t, "Browser Navigation & URL Validation", result.Goal)
			assert.Equal(t, tt.status, result.Details["status_code"])
			assert.Equal(t, "https://example.com", result.Details["target_url"])
			assert.Equal(t, "0.00s", result.Details["load_time"])
			assert.Equal(t, fixedNow, result.Timestamp.Time)
		})
	}
}

func TestNavigation_NoResponse(t *testing.T) {
	env, _ := testEnv(t)
	page := probetest.NewPage(0)

	result := probe.RunPage(types.GoalNavigation, env, page)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Contains(t, result.Error, "no response")
	assert.Nil(t, result.Details)
}

func TestNavigation_GotoError(t *testing.T) {
	env, _ := testEnv(t)
	page := probetest.NewPage(200)
	page.GotoErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	result := probe.RunPage(types.GoalNavigation, env, page)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", result.Error)
}

func TestContentIntegrity_LoadsTargetItself(t *testing.T) {
	env, _ := testEnv(t)
	page := probetest.NewPage(200)
	page.PageTitle = "Shop"
	page.Body = "héllo"
	page.Counts = map[string]int{
		`header, [role="banner"]`: 1,
		`main, [role="main"]`:     1,
		"a":                       12,
		"img":                     4,
	}

	result := probe.RunPage(types.GoalContentIntegrity, env, page)

	require.Equal(t, types.ProbePassed, result.Status)
	assert.Equal(t, []string{"https://example.com"}, page.Visited)
	assert.Equal(t, "Shop", result.Details["title"])
	assert.Equal(t, true, result.Details["has_header"])
	assert.Equal(t, true, result.Details["has_main"])
	assert.Equal(t, false, result.Details["has_footer"])
	assert.Equal(t, 12, result.Details["links_count"])
	assert.Equal(t, 4, result.Details["images_count"])
	assert.Equal(t, 5, result.Details["content_length"])
}

func TestPerformance(t *testing.T) {
	env, _ := testEnv(t)
	page := probetest.NewPage(200)
	page.EvalResult = map[string]interface{}{
		"dns_time":           1.5,
		"tcp_time":           float64(12),
		"dom_content_loaded": 0.25,
	}

	result := probe.RunPage(types.GoalPerformance, env, page)

	require.Equal(t, types.ProbePassed, result.Status)
	assert.Equal(t, "1.50ms", result.Details["dns_lookup"])
	assert.Equal(t, "12.00ms", result.Details["tcp_connection"])
	assert.Equal(t, "0.25ms", result.Details["dom_content_loaded"])
	assert.Equal(t, "0.00ms", result.Details["load_complete"])
	assert.Equal(t, "0.00s", result.Details["total_load_time"])
}

func TestPerformance_EvaluateError(t *testing.T) {
	env, _ := testEnv(t)
	page := probetest.NewPage(200)
	page.EvalErr = errors.New("execution context destroyed")

	result := probe.RunPage(types.GoalPerformance, env, page)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Contains(t, result.Error, "execution context destroyed")
}

func TestAccessibility(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *probetest.Page)
		issues []string
	}{
		{
			name:   "fully accessible",
			mutate: func(*probetest.Page) {},
			issues: []string{},
		},
		{
			name: "missing lang and two alts",
			mutate: func(p *probetest.Page) {
				p.Counts["html[lang]"] = 0
				p.Counts["img"] = 3
				p.Counts["img[alt]"] = 1
			},
			issues: []string{"Missing lang attribute on html element", "2 images missing alt text"},
		},
		{
			name: "no viewport and no h1",
			mutate: func(p *probetest.Page) {
				p.Counts[`meta[name="viewport"]`] = 0
				p.Counts["h1"] = 0
			},
			issues: []string{"Missing viewport meta tag", "No h1 heading found"},
		},
		{
			name: "multiple h1",
			mutate: func(p *probetest.Page) {
				p.Counts["h1"] = 3
			},
			issues: []string{"Multiple h1 headings found (3)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, _ := testEnv(t)
			page := accessiblePage()
			tt.mutate(page)

			result := probe.RunPage(types.GoalAccessibility, env, page)

			assert.Equal(t, tt.issues, result.Details["issues"])
			if len(tt.issues) == 0 {
				assert.Equal(t, types.ProbePassed, result.Status)
			} else {
				assert.Equal(t, types.ProbeFailed, result.Status)
			}
		})
	}
}

func TestAccessibility_AltCoverageFormat(t *testing.T) {
	env, _ := testEnv(t)
	page := accessiblePage()
	page.Counts["img[alt]"] = 2

	result := probe.RunPage(types.GoalAccessibility, env, page)

	assert.Equal(t, "2/3", result.Details["images_with_alt"])
	assert.Equal(t, false, result.Passed())
}

func TestScreenshot(t *testing.T) {
	env, shots := testEnv(t)
	page := probetest.NewPage(200)

	result := probe.RunPage(types.GoalScreenshot, env, page)

	require.Equal(t, types.ProbePassed, result.Status, result.Error)
	want := filepath.Join(env.ScreenshotDir, "My_Shop_20250304_103015.png")
	assert.Equal(t, want, result.Details["screenshot_path"])
	assert.Equal(t, true, result.Details["full_page"])
	assert.Equal(t, []string{want}, *shots)

	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestScreenshot_CaptureError(t *testing.T) {
	env, shots := testEnv(t)
	page := probetest.NewPage(200)
	page.ShotErr = errors.New("disk full")

	result := probe.RunPage(types.GoalScreenshot, env, page)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Contains(t, result.Error, "disk full")
	assert.Empty(t, *shots)
}

func TestRunPage_RecoversPanic(t *testing.T) {
	env, _ := testEnv(t)
	page := probetest.NewPage(200)
	page.PanicOnGoto = true

	result := probe.RunPage(types.GoalNavigation, env, page)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Contains(t, result.Error, "scripted panic")
	assert.Equal(t, "Browser Navigation & URL Validation", result.Goal)
}

func TestRunPage_WrongEngine(t *testing.T) {
	env, _ := testEnv(t)

	result := probe.RunPage(types.GoalForms, env, probetest.NewPage(200))

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Contains(t, result.Error, "no page probe")
}

func TestForms(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.Counts = map[string]int{
		"form":                         2,
		"input, textarea, select":      5,
		`button, input[type="submit"]`: 2,
	}
	driver.Interactable = true

	result := probe.RunDriver(types.GoalForms, env, driver)

	require.Equal(t, types.ProbePassed, result.Status)
	assert.Equal(t, 2, result.Details["forms_count"])
	assert.Equal(t, 5, result.Details["inputs_count"])
	assert.Equal(t, 2, result.Details["buttons_count"])
	assert.Equal(t, true, result.Details["forms_present"])
	assert.Equal(t, true, result.Details["first_input_interactable"])
}

func TestForms_NoFormsSkipsInteractability(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.Counts["input, textarea, select"] = 1

	result := probe.RunDriver(types.GoalForms, env, driver)

	require.Equal(t, types.ProbePassed, result.Status)
	assert.Equal(t, false, result.Details["forms_present"])
	assert.NotContains(t, result.Details, "first_input_interactable")
}

func TestForms_InteractabilityErrorIsFalse(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.Counts["form"] = 1
	driver.Counts["input, textarea, select"] = 1
	driver.Interactable = true
	driver.InteractErr = errors.New("stale element")

	result := probe.RunDriver(types.GoalForms, env, driver)

	assert.Equal(t, types.ProbePassed, result.Status)
	assert.Equal(t, false, result.Details["first_input_interactable"])
}

func TestForms_Timeout(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.WaitErr = fmt.Errorf("waiting for body: %w", probe.ErrWaitTimeout)

	result := probe.RunDriver(types.GoalForms, env, driver)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Equal(t, "Page load timeout", result.Error)
}

func TestForms_NavigationTimeout(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.GetErr = fmt.Errorf("navigation failed: %w", probe.ErrWaitTimeout)

	result := probe.RunDriver(types.GoalForms, env, driver)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Equal(t, "Page load timeout", result.Error)
}

func TestCrossEngineNavigation(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.PageTitle = "Example Domain"
	driver.FinalURL = "https://example.com/"

	result := probe.RunDriver(types.GoalCrossEngineNavigation, env, driver)

	require.Equal(t, types.ProbePassed, result.Status)
	assert.Equal(t, "Cross-Engine Navigation Check", result.Goal)
	assert.Equal(t, "https://example.com/", result.Details["final_url"])
	assert.Equal(t, "Example Domain", result.Details["page_title"])
	assert.Equal(t, "0.00s", result.Details["load_time"])
}

func TestCrossEngineNavigation_GetError(t *testing.T) {
	env, _ := testEnv(t)
	driver := probetest.NewDriver()
	driver.GetErr = errors.New("chrome not reachable")

	result := probe.RunDriver(types.GoalCrossEngineNavigation, env, driver)

	assert.Equal(t, types.ProbeFailed, result.Status)
	assert.Equal(t, "chrome not reachable", result.Error)
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"My Shop":       "My_Shop",
		"../etc/passwd": "_etc_passwd",
		"  trimmed  ":   "trimmed",
		"":              "project",
		"ok-name_1.2":   "ok-name_1.2",
		"café & bar":    "caf____bar",
	}
	for in, want := range tests {
		assert.Equal(t, want, probe.SanitizeFileName(in), in)
	}
}

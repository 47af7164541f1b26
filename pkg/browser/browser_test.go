package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/qarunner/pkg/probe"
	"github.com/entrhq/qarunner/pkg/types"
)

const testPage = `<!doctype html>
<html lang="en">
<head><meta name="viewport" content="width=device-width"><title>Fixture</title></head>
<body>
<header>top</header>
<main>
<h1>Fixture</h1>
<img src="data:," alt="pixel">
<form><input name="q"><button type="submit">Go</button></form>
</main>
</body>
</html>`

func TestLaunchOptions_WithDefaults(t *testing.T) {
	opts := LaunchOptions{}.withDefaults()
	assert.Equal(t, types.Viewport{Width: 1920, Height: 1080}, opts.Viewport)
	assert.Equal(t, DefaultTimeout, opts.Timeout)

	custom := LaunchOptions{Viewport: types.Viewport{Width: 800, Height: 600}, Timeout: time.Second}.withDefaults()
	assert.Equal(t, types.Viewport{Width: 800, Height: 600}, custom.Viewport)
	assert.Equal(t, time.Second, custom.Timeout)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1500.0, millis(1500*time.Millisecond))
	assert.Equal(t, 30000.0, millis(30*time.Second))
}

func TestEngineOptions(t *testing.T) {
	page := NewPageEngine(WithInstall(false), WithPageExecutable("/usr/bin/chromium"))
	assert.False(t, page.install)
	assert.Equal(t, "/usr/bin/chromium", page.chromePath)

	driver := NewDriverEngine(WithDriverExecutable("/usr/bin/chromium"), WithNavigationTimeout(5*time.Second))
	assert.Equal(t, "/usr/bin/chromium", driver.execPath)
	assert.Equal(t, 5*time.Second, driver.navigationTimeout)

	assert.Equal(t, DefaultTimeout, NewDriverEngine(WithNavigationTimeout(0)).navigationTimeout)
}

func TestTimeoutError(t *testing.T) {
	assert.NoError(t, timeoutError("navigation failed", nil))

	err := timeoutError("navigation failed", fmt.Errorf("run: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, probe.ErrWaitTimeout)
	assert.Contains(t, err.Error(), "navigation failed")

	err = timeoutError("navigation failed", context.Canceled)
	assert.NotErrorIs(t, err, probe.ErrWaitTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPageEngine_ShutdownWithoutInitialize(t *testing.T) {
	assert.NoError(t, NewPageEngine().Shutdown())
}

// The tests below drive real browsers and only run when QARUNNER_BROWSER_TESTS is set.

func requireBrowsers(t *testing.T) {
	t.Helper()
	if os.Getenv("QARUNNER_BROWSER_TESTS") == "" {
		t.Skip("set QARUNNER_BROWSER_TESTS=1 to run browser integration tests")
	}
}

func fixtureServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, testPage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPageEngine_Integration(t *testing.T) {
	requireBrowsers(t)
	srv := fixtureServer(t)

	engine := NewPageEngine()
	t.Cleanup(func() { _ = engine.Shutdown() })

	session, err := engine.Launch(LaunchOptions{Headless: true})
	require.NoError(t, err)
	defer session.Close()

	status, err := session.Goto(srv.URL, probe.WaitNetworkIdle, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	title, err := session.Title()
	require.NoError(t, err)
	assert.Equal(t, "Fixture", title)

	n, err := session.Count("html[lang]")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, err = session.Goto(srv.URL+"/missing", probe.WaitLoad, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)

	shot := filepath.Join(t.TempDir(), "page.png")
	require.NoError(t, session.Screenshot(shot, true))
	_, err = os.Stat(shot)
	assert.NoError(t, err)
}

func TestDriverEngine_Integration(t *testing.T) {
	requireBrowsers(t)
	srv := fixtureServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	session, err := NewDriverEngine().Launch(ctx, LaunchOptions{Headless: true})
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Get(srv.URL))
	require.NoError(t, session.WaitForElement("body", 5*time.Second))

	forms, err := session.Count("form")
	require.NoError(t, err)
	assert.Equal(t, 1, forms)

	interactable, err := session.FirstInteractable("input, textarea, select")
	require.NoError(t, err)
	assert.True(t, interactable)

	err = session.WaitForElement("#never", 200*time.Millisecond)
	assert.ErrorIs(t, err, probe.ErrWaitTimeout)
}

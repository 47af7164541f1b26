package qa

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/qarunner/pkg/browser"
	"github.com/entrhq/qarunner/pkg/history"
	"github.com/entrhq/qarunner/pkg/llm"
	"github.com/entrhq/qarunner/pkg/probe"
	"github.com/entrhq/qarunner/pkg/probe/probetest"
	"github.com/entrhq/qarunner/pkg/report"
	"github.com/entrhq/qarunner/pkg/runner"
	"github.com/entrhq/qarunner/pkg/security/targets"
	"github.com/entrhq/qarunner/pkg/types"
)

var fixedNow = time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC)

type pages struct{ page *probetest.Page }

func (p *pages) Launch(browser.LaunchOptions) (probe.PageSession, error) { return p.page, nil }

type drivers struct{ driver *probetest.Driver }

func (d *drivers) Launch(context.Context, browser.LaunchOptions) (probe.DriverSession, error) {
	return d.driver, nil
}

type stubProvider struct {
	reply string
	err   error
}

func (s *stubProvider) StreamCompletion(context.Context, []*types.Message) (<-chan *llm.StreamChunk, error) {
	return nil, errors.New("not supported")
}

func (s *stubProvider) Complete(ctx context.Context, _ []*types.Message) (*types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	return &types.Message{Role: types.RoleAssistant, Content: s.reply}, nil
}

func (s *stubProvider) GetModelInfo() *types.ModelInfo { return &types.ModelInfo{Name: "stub"} }
func (s *stubProvider) GetModel() string               { return "stub" }
func (s *stubProvider) GetBaseURL() string             { return "http://stub" }

type brokenStore struct{ history.Store }

func (brokenStore) Add(context.Context, *types.HistoryEntry) error { return errors.New("disk full") }

type recordingArtifacts struct{ entries []*types.HistoryEntry }

func (r *recordingArtifacts) WriteAll(entry *types.HistoryEntry) (string, error) {
	r.entries = append(r.entries, entry)
	return "/tmp/" + entry.ID, nil
}

const reportReply = `{"report_summary": {"Browser Navigation & URL Validation": "Loaded"},
"recommendations": ["Add caching"], "critical_issues": []}`

func newService(t *testing.T, page *probetest.Page, provider llm.Provider, store history.Store, opts ...Option) *Service {
	t.Helper()
	run := runner.New(&pages{page: page}, &drivers{driver: probetest.NewDriver()},
		runner.Config{ScreenshotDir: t.TempDir()},
		runner.WithClock(func() time.Time { return fixedNow }))
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(run, report.NewGenerator(provider), store, opts...)
}

func fileStore(t *testing.T) *history.FileStore {
	t.Helper()
	store, err := history.NewFileStore(filepath.Join(t.TempDir(), "history.json"), history.DefaultLimit)
	require.NoError(t, err)
	return store
}

func navRequest() ProjectRequest {
	return ProjectRequest{
		ProjectName:   "Shop",
		TargetURL:     "https://example.com",
		SelectedGoals: map[string]bool{types.GoalNavigation.String(): true},
	}
}

func TestRunProject_NavigationEndToEnd(t *testing.T) {
	store := fileStore(t)
	svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, store)

	resp, err := svc.RunProject(context.Background(), navRequest())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Shop", resp.ProjectName)
	assert.Equal(t, string(report.KindParsed), resp.ReportOutcome)
	assert.Equal(t, []string{"Add caching"}, resp.Report.Recommendations)
	require.NotNil(t, resp.Results)
	assert.Equal(t, types.RunCompleted, resp.Results.Status)
	require.Len(t, resp.Results.Tests, 1)
	assert.Equal(t, types.ProbePassed, resp.Results.Tests[0].Status)

	entries, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Shop", entries[0].ProjectName)
	assert.Equal(t, fixedNow, entries[0].Timestamp.UTC())
	assert.Equal(t, types.RunCompleted, entries[0].Status)
	assert.Equal(t, map[string]bool{types.GoalNavigation.String(): true}, entries[0].SelectedGoals)
	assert.NotEmpty(t, entries[0].ID)

	latest, err := svc.Latest(context.Background(), "Shop")
	require.NoError(t, err)
	assert.Equal(t, entries[0].ID, latest.ID)
}

func TestRunProject_CancelledCallerStillPersists(t *testing.T) {
	store, err := history.NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "history.db"), history.DefaultLimit, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := svc.RunProject(ctx, navRequest())
	require.NoError(t, err)

	assert.Equal(t, types.RunCompleted, resp.Results.Status)
	assert.Empty(t, resp.Results.Errors)
	require.Len(t, resp.Results.Tests, 1)
	assert.Equal(t, string(report.KindParsed), resp.ReportOutcome)

	entries, err := svc.History(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Shop", entries[0].ProjectName)
}

func TestRunProject_ReportUnavailableStillSucceeds(t *testing.T) {
	svc := newService(t, probetest.NewPage(200), &stubProvider{err: errors.New("quota")}, fileStore(t))

	resp, err := svc.RunProject(context.Background(), navRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, string(report.KindUnavailable), resp.ReportOutcome)
	assert.Equal(t, "Test execution completed. AI report generation failed.", resp.Report.Summary["General"])
}

func TestRunProject_HistoryFailureIsNotFatal(t *testing.T) {
	svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, brokenStore{Store: fileStore(t)})

	resp, err := svc.RunProject(context.Background(), navRequest())
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestRunProject_WritesArtifacts(t *testing.T) {
	artifacts := &recordingArtifacts{}
	svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, fileStore(t), WithArtifacts(artifacts))

	_, err := svc.RunProject(context.Background(), navRequest())
	require.NoError(t, err)
	require.Len(t, artifacts.entries, 1)
	assert.Equal(t, "Shop", artifacts.entries[0].ProjectName)
}

func TestRunProject_Validation(t *testing.T) {
	guard, err := targets.NewGuard(nil, []string{"*://*.internal*"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		req     ProjectRequest
		wantMsg string
	}{
		{
			name:    "missing project name",
			req:     ProjectRequest{TargetURL: "https://example.com", SelectedGoals: map[string]bool{"Browser Navigation & URL Validation": true}},
			wantMsg: "Missing required fields",
		},
		{
			name:    "missing target",
			req:     ProjectRequest{ProjectName: "Shop", SelectedGoals: map[string]bool{"Browser Navigation & URL Validation": true}},
			wantMsg: "Missing required fields",
		},
		{
			name:    "no goals",
			req:     ProjectRequest{ProjectName: "Shop", TargetURL: "https://example.com"},
			wantMsg: "No automation goals selected",
		},
		{
			name:    "only disabled or unknown goals",
			req:     ProjectRequest{ProjectName: "Shop", TargetURL: "https://example.com", SelectedGoals: map[string]bool{"Browser Navigation & URL Validation": false, "Teleport": true}},
			wantMsg: "No automation goals selected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := probetest.NewPage(200)
			svc := newService(t, page, &stubProvider{reply: reportReply}, fileStore(t), WithTargets(guard))

			resp, err := svc.RunProject(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, IsValidation(err))
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.Empty(t, page.Visited)
		})
	}

	t.Run("denied target", func(t *testing.T) {
		svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, fileStore(t), WithTargets(guard))
		req := navRequest()
		req.TargetURL = "http://db.internal/admin"

		_, err := svc.RunProject(context.Background(), req)
		require.Error(t, err)
		assert.True(t, IsValidation(err))
	})
}

func TestValidate_BrowserOptionsAndUnknownGoals(t *testing.T) {
	svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, fileStore(t))
	req := navRequest()
	req.SelectedGoals["Teleport"] = true
	req.BrowserOptions = json.RawMessage(`{"headless": false, "windowSize": "800,600"}`)

	runReq, err := svc.Validate(req)
	require.NoError(t, err)
	assert.Equal(t, []types.Goal{types.GoalNavigation}, runReq.Goals)
	assert.Equal(t, req.SelectedGoals, runReq.Selection)
	assert.Equal(t, types.Viewport{Width: 800, Height: 600}, runReq.Browser.Viewport())
}

func TestLatest_NotFound(t *testing.T) {
	svc := newService(t, probetest.NewPage(200), &stubProvider{reply: reportReply}, fileStore(t))

	_, err := svc.Latest(context.Background(), "nobody")
	assert.ErrorIs(t, err, history.ErrNotFound)
}

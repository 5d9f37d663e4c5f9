package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/internal/cache"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/notify"
	"github.com/qs3c/repoinsight/internal/source"
)

const repoURL = "https://github.com/acme/demo"

func TestExecute_Completes(t *testing.T) {
	deps := &testDeps{cache: newMemoryCache(), archive: newMemoryArchive(), notifier: &recordingNotifier{}}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "job-1", &model.AnalysisRequest{
		RepoURL:         repoURL,
		Branch:          "main",
		IncludeSecurity: true,
		CallbackURL:     "http://example.invalid/hook",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "abc123", job.Commit)
	assert.Equal(t, model.DepthStandard, job.Depth)
	require.NotNil(t, job.Result)
	require.NotNil(t, job.Result.Report)
	assert.Equal(t, "reports/job-1/report.json", job.Result.Report.Location)
	assert.NotNil(t, job.Result.Repository)
	assert.NotNil(t, job.CompletedAt)

	calls := deps.reasoner.called()
	assert.Equal(t, len(calls), job.Usage.TaskCount)
	assert.Zero(t, job.Usage.FailedTasks)
	assert.Positive(t, job.Usage.TokensUsed)
	assert.Positive(t, job.Usage.FilesAnalyzed)
	assert.Equal(t, job.Usage, job.Result.Usage)
	assert.Contains(t, calls, "arch_overview")
	assert.Contains(t, calls, "sec_vulnerabilities")

	events := drain(c)
	assert.Equal(t, []model.JobStatus{
		model.StatusQueued,
		model.StatusCloning,
		model.StatusDetecting,
		model.StatusAnalyzing,
		model.StatusSynthesizing,
		model.StatusGenerating,
		model.StatusCompleted,
	}, statuses(events, "job-1"))
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Progress, events[i-1].Progress)
	}

	assert.Equal(t, 1, deps.cache.puts)
	assert.Equal(t, 1, deps.source.released)

	archived, err := deps.archive.GetByID("job-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, archived.Status)

	require.Len(t, deps.notifier.events, 1)
	assert.Equal(t, notify.EventCompleted, deps.notifier.events[0].Type)
	assert.Equal(t, "job-1", deps.notifier.events[0].JobID)
}

func TestExecute_SecurityExcludedByDefault(t *testing.T) {
	deps := &testDeps{}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "", &model.AnalysisRequest{RepoURL: repoURL, Depth: model.DepthQuick})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.NotEmpty(t, job.ID)

	for _, id := range deps.reasoner.called() {
		assert.NotContains(t, id, "sec_")
	}
}

func TestExecute_TaskFailureDoesNotAbort(t *testing.T) {
	deps := &testDeps{reasoner: newScriptedReasoner("maint_code_quality")}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "job-partial", &model.AnalysisRequest{
		RepoURL:    repoURL,
		Categories: []model.Category{model.CategoryMaintainability},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.Usage.FailedTasks)
	assert.Contains(t, deps.reasoner.called(), "maint_tech_debt")

	require.NotNil(t, job.Result)
	var failed []string
	for _, r := range job.Result.TaskResults {
		if !r.Success {
			failed = append(failed, r.TaskID)
			assert.Equal(t, "model unavailable", r.Error)
		}
	}
	assert.Equal(t, []string{"maint_code_quality"}, failed)

	var titles []string
	for _, f := range job.Result.Findings {
		titles = append(titles, f.Title)
	}
	assert.Contains(t, titles, "offline analysis for maint_tech_debt")
	assert.NotContains(t, titles, "offline analysis for maint_code_quality")
}

func TestExecute_AllTasksFail(t *testing.T) {
	reasoner := newScriptedReasoner()
	reasoner.failAll = true
	deps := &testDeps{reasoner: reasoner, archive: newMemoryArchive()}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "job-nothing", &model.AnalysisRequest{
		RepoURL:    repoURL,
		Categories: []model.Category{model.CategoryDocumentation},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "no successful task results")
	assert.Equal(t, "synthesizing", job.CurrentStep)
	assert.Equal(t, job.Usage.TaskCount, job.Usage.FailedTasks)
	assert.Nil(t, job.Result)
}

func TestExecute_CloneFailure(t *testing.T) {
	src := newFakeSource(t, sampleRepo)
	src.cloneErr = &source.CloneError{UserMessage: "repository not found", RawError: errors.New("exit status 128")}
	deps := &testDeps{source: src, archive: newMemoryArchive(), notifier: &recordingNotifier{}}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "job-clone", &model.AnalysisRequest{
		RepoURL:     repoURL,
		CallbackURL: "http://example.invalid/hook",
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Equal(t, "repository not found", job.ErrorMessage)
	assert.Nil(t, job.Result)
	assert.Empty(t, deps.reasoner.called())
	assert.Zero(t, src.released)

	assert.Equal(t, []model.JobStatus{model.StatusQueued, model.StatusCloning, model.StatusFailed}, statuses(drain(c), "job-clone"))

	archived, err := deps.archive.GetByID("job-clone")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, archived.Status)

	require.Len(t, deps.notifier.events, 1)
	assert.Equal(t, notify.EventFailed, deps.notifier.events[0].Type)
}

func TestExecute_CacheHit(t *testing.T) {
	mc := newMemoryCache()
	cached := &model.AnalysisResult{ProjectType: model.ProjectBackend, Usage: model.Usage{TaskCount: 7, TokensUsed: 900}}
	require.NoError(t, mc.Put(context.Background(), repoURL, "main", "cafebabe", cached))

	deps := &testDeps{cache: mc}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "job-cached", &model.AnalysisRequest{RepoURL: repoURL, Branch: "main"})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "cafebabe", job.Commit)
	assert.True(t, job.Usage.CacheHit)
	assert.Equal(t, 7, job.Usage.TaskCount)
	require.NotNil(t, job.Result)
	assert.Equal(t, model.ProjectBackend, job.Result.ProjectType)
	assert.True(t, job.Result.Usage.CacheHit)
	assert.False(t, cached.Usage.CacheHit, "cached entry must not be mutated")

	assert.Zero(t, deps.source.cloneCount())
	assert.Empty(t, deps.reasoner.called())
	assert.Equal(t, []model.JobStatus{model.StatusQueued, model.StatusCompleted}, statuses(drain(c), "job-cached"))
}

func TestExecute_ForceRefreshBypassesCache(t *testing.T) {
	mc := newMemoryCache()
	require.NoError(t, mc.Put(context.Background(), repoURL, "main", "old", &model.AnalysisResult{}))

	deps := &testDeps{cache: mc}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.Execute(context.Background(), "", &model.AnalysisRequest{
		RepoURL:      repoURL,
		Branch:       "main",
		ForceRefresh: true,
		Categories:   []model.Category{model.CategoryDocumentation},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, job.Status)
	assert.False(t, job.Usage.CacheHit)
	assert.Equal(t, 1, deps.source.cloneCount())

	entry, err := mc.Get(context.Background(), repoURL, "main")
	require.NoError(t, err)
	assert.Equal(t, "abc123", entry.Commit)
}

func TestExecute_CancelledContext(t *testing.T) {
	deps := &testDeps{}
	c := newTestCoordinator(t, testConfig(), deps)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := c.Execute(ctx, "", &model.AnalysisRequest{RepoURL: repoURL})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "cancelled")
	assert.Zero(t, deps.source.cloneCount())
}

func TestExecute_InvalidRequest(t *testing.T) {
	c := newTestCoordinator(t, testConfig(), &testDeps{})

	tests := []struct {
		name string
		req  *model.AnalysisRequest
	}{
		{"nil", nil},
		{"missing url", &model.AnalysisRequest{}},
		{"bad depth", &model.AnalysisRequest{RepoURL: repoURL, Depth: "extreme"}},
		{"bad category", &model.AnalysisRequest{RepoURL: repoURL, Categories: []model.Category{"style"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Execute(context.Background(), "", tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
	assert.Zero(t, c.registry.Len())
}

func TestCancel_RunningJob(t *testing.T) {
	reasoner := newScriptedReasoner()
	reasoner.started = make(chan string, 1)
	reasoner.release = make(chan struct{})
	deps := &testDeps{reasoner: reasoner}
	c := newTestCoordinator(t, testConfig(), deps)

	job, err := c.StartJob(&model.AnalysisRequest{
		RepoURL:    repoURL,
		Categories: []model.Category{model.CategoryArchitecture},
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, job.Status)

	select {
	case <-reasoner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first task never started")
	}
	require.NoError(t, c.Cancel(job.ID))
	close(reasoner.release)
	c.Wait()

	final, err := c.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, final.Status)
	assert.Contains(t, final.ErrorMessage, "cancelled")
	assert.Len(t, reasoner.called(), 1)
	assert.Equal(t, 1, deps.source.released)
}

func TestCancel_FinishedAndUnknown(t *testing.T) {
	c := newTestCoordinator(t, testConfig(), &testDeps{})

	job, err := c.Execute(context.Background(), "", &model.AnalysisRequest{
		RepoURL:    repoURL,
		Categories: []model.Category{model.CategoryDocumentation},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, c.Cancel(job.ID), ErrJobFinished)
	assert.ErrorIs(t, c.Cancel("missing"), ErrJobNotFound)
}

func TestSubmitBatch_Window(t *testing.T) {
	src := newFakeSource(t, sampleRepo)
	src.cloneDelay = 30 * time.Millisecond
	cfg := testConfig()
	cfg.BatchWindow = 2
	deps := &testDeps{source: src}
	c := newTestCoordinator(t, cfg, deps)

	reqs := make([]*model.AnalysisRequest, 5)
	for i := range reqs {
		reqs[i] = &model.AnalysisRequest{RepoURL: repoURL, Categories: []model.Category{model.CategoryDocumentation}}
	}
	jobs, err := c.SubmitBatch(reqs)
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	c.Wait()

	assert.Equal(t, 5, src.cloneCount())
	assert.LessOrEqual(t, src.maxActive, 2)
	for _, j := range jobs {
		final, err := c.GetJob(j.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, final.Status)
	}
}

func TestSubmitBatch_RejectsInvalid(t *testing.T) {
	c := newTestCoordinator(t, testConfig(), &testDeps{})

	_, err := c.SubmitBatch([]*model.AnalysisRequest{{RepoURL: repoURL}, {}})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Zero(t, c.registry.Len())
}

func TestGetJob_FallsBackToArchive(t *testing.T) {
	cfg := testConfig()
	cfg.RegistrySize = 1
	deps := &testDeps{archive: newMemoryArchive()}
	c := newTestCoordinator(t, cfg, deps)

	req := &model.AnalysisRequest{RepoURL: repoURL, Categories: []model.Category{model.CategoryDocumentation}}
	first, err := c.Execute(context.Background(), "first", req)
	require.NoError(t, err)
	_, err = c.Execute(context.Background(), "second", req)
	require.NoError(t, err)

	assert.Equal(t, 1, c.registry.Len())
	_, inMemory := c.registry.Get("first")
	assert.False(t, inMemory)

	got, err := c.GetJob("first")
	require.NoError(t, err)
	assert.Equal(t, first.Status, got.Status)
	assert.Equal(t, first.ID, got.ID)

	_, err = c.GetJob("never")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestCancel_ReachesJobAfterNewerJobsFinish(t *testing.T) {
	cfg := testConfig()
	cfg.RegistrySize = 1
	c := newTestCoordinator(t, cfg, &testDeps{archive: newMemoryArchive()})

	req := &model.AnalysisRequest{RepoURL: repoURL, Categories: []model.Category{model.CategoryDocumentation}}
	pending, err := c.newEntry("pending", req)
	require.NoError(t, err)
	for _, id := range []string{"second", "third"} {
		_, err := c.Execute(context.Background(), id, req)
		require.NoError(t, err)
	}

	got, err := c.GetJob("pending")
	require.NoError(t, err)
	assert.Equal(t, model.StatusQueued, got.Status)
	require.NoError(t, c.Cancel("pending"))

	c.run(context.Background(), pending)
	final, err := c.GetJob("pending")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, final.Status)
}

func TestInvalidateCache(t *testing.T) {
	mc := newMemoryCache()
	require.NoError(t, mc.Put(context.Background(), repoURL, "main", "abc", &model.AnalysisResult{}))
	c := newTestCoordinator(t, testConfig(), &testDeps{cache: mc})

	require.NoError(t, c.InvalidateCache(context.Background(), repoURL, "main"))
	_, err := mc.Get(context.Background(), repoURL, "main")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	noCache := newTestCoordinator(t, testConfig(), &testDeps{})
	assert.NoError(t, noCache.InvalidateCache(context.Background(), repoURL, "main"))
}

func TestNew_RequiresSourceAndReasoner(t *testing.T) {
	_, err := New(Options{Config: testConfig()})
	assert.Error(t, err)
}

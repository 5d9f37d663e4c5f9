package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/cache"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/notify"
	"github.com/qs3c/repoinsight/internal/reasoning"
	"github.com/qs3c/repoinsight/internal/source"
)

// fakeSource 读取临时目录，记录克隆次数与并发数
type fakeSource struct {
	*source.LocalSource
	cloneErr   error
	cloneDelay time.Duration

	mu        sync.Mutex
	clones    int
	active    int
	maxActive int
	released  int
}

func newFakeSource(t *testing.T, files map[string]string) *fakeSource {
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return &fakeSource{LocalSource: source.NewLocalSource(dir, 64*1024)}
}

func (s *fakeSource) Clone(ctx context.Context, repoURL, branch string) (*model.Checkout, error) {
	s.mu.Lock()
	s.clones++
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if s.cloneDelay > 0 {
		time.Sleep(s.cloneDelay)
	}
	if s.cloneErr != nil {
		return nil, s.cloneErr
	}
	return &model.Checkout{LocalPath: s.Dir, CommitHash: "abc123", Branch: "main"}, nil
}

func (s *fakeSource) Release(string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

func (s *fakeSource) cloneCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clones
}

// scriptedReasoner 基于 FakeClient，可让指定任务失败或阻塞
type scriptedReasoner struct {
	inner   *reasoning.FakeClient
	fail    map[string]bool
	failAll bool
	started chan string
	release chan struct{}

	mu    sync.Mutex
	calls []string
}

func newScriptedReasoner(failing ...string) *scriptedReasoner {
	r := &scriptedReasoner{inner: reasoning.NewFakeClient(), fail: map[string]bool{}}
	for _, id := range failing {
		r.fail[id] = true
	}
	return r
}

func (r *scriptedReasoner) Name() string { return "scripted" }

func (r *scriptedReasoner) Complete(ctx context.Context, req *reasoning.Request) (*reasoning.Response, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req.TaskID)
	r.mu.Unlock()

	if r.started != nil {
		select {
		case r.started <- req.TaskID:
		default:
		}
	}
	if r.release != nil {
		<-r.release
	}
	if r.failAll || r.fail[req.TaskID] {
		return nil, errors.New("model unavailable")
	}
	return r.inner.Complete(ctx, req)
}

func (r *scriptedReasoner) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*cache.Entry
	puts    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string]*cache.Entry{}}
}

func (m *memoryCache) Get(_ context.Context, repoURL, branch string) (*cache.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[repoURL+"#"+branch]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return e, nil
}

func (m *memoryCache) Put(_ context.Context, repoURL, branch, commit string, result *model.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.entries[repoURL+"#"+branch] = &cache.Entry{RepoURL: repoURL, Branch: branch, Commit: commit, Result: result, StoredAt: time.Now()}
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, repoURL, branch string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, repoURL+"#"+branch)
	return nil
}

type memoryArchive struct {
	mu   sync.Mutex
	jobs map[string]*model.AnalysisJob
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{jobs: map[string]*model.AnalysisJob{}}
}

func (a *memoryArchive) Save(job *model.AnalysisJob) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs[job.ID] = job.Clone()
	return nil
}

func (a *memoryArchive) GetByID(id string) (*model.AnalysisJob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	job, ok := a.jobs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return job.Clone(), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []*notify.Event
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, event *notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type stubReporter struct{}

func (stubReporter) Generate(_ context.Context, jobID string, _ *model.RepositoryMetadata, _ *model.AnalysisResult) (*model.ReportRef, error) {
	return &model.ReportRef{Location: "reports/" + jobID + "/report.json"}, nil
}

var sampleRepo = map[string]string{
	"README.md":                  "# demo\n",
	"go.mod":                     "module example.com/demo\n\nrequire github.com/gin-gonic/gin v1.9.1\n",
	"main.go":                    "package main\n\nfunc main() {}\n",
	"internal/handler/h.go":      "package handler\n",
	"internal/service/s.go":      "package service\n",
	"internal/service/s_test.go": "package service\n",
}

func testConfig() config.PipelineConfig {
	cfg := config.Default().Pipeline
	cfg.ProgressBuffer = 1024
	return cfg
}

type testDeps struct {
	source   *fakeSource
	reasoner *scriptedReasoner
	cache    *memoryCache
	archive  *memoryArchive
	notifier *recordingNotifier
}

func newTestCoordinator(t *testing.T, cfg config.PipelineConfig, deps *testDeps) *Coordinator {
	if deps.source == nil {
		deps.source = newFakeSource(t, sampleRepo)
	}
	if deps.reasoner == nil {
		deps.reasoner = newScriptedReasoner()
	}
	opts := Options{
		Config:   cfg,
		Source:   deps.source,
		Reasoner: deps.reasoner,
		Reporter: stubReporter{},
	}
	if deps.cache != nil {
		opts.Cache = deps.cache
	}
	if deps.archive != nil {
		opts.Archive = deps.archive
	}
	if deps.notifier != nil {
		opts.Notifier = deps.notifier
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

// drain 取出当前缓冲中的全部进度快照
func drain(c *Coordinator) []model.ProgressEvent {
	var out []model.ProgressEvent
	for {
		select {
		case evt := <-c.progress:
			out = append(out, evt)
		default:
			return out
		}
	}
}

func statuses(events []model.ProgressEvent, jobID string) []model.JobStatus {
	var out []model.JobStatus
	for _, evt := range events {
		if evt.JobID != jobID {
			continue
		}
		if len(out) == 0 || out[len(out)-1] != evt.Status {
			out = append(out, evt.Status)
		}
	}
	return out
}

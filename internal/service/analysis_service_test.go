package service

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/model/dto"
	"github.com/qs3c/repoinsight/internal/pipeline"
	"github.com/qs3c/repoinsight/internal/pkg/queue"
	"github.com/qs3c/repoinsight/internal/repository"
	"github.com/qs3c/repoinsight/internal/testutil"
)

// fakeCoordinator 只登记任务，不执行
type fakeCoordinator struct {
	jobs        map[string]*model.AnalysisJob
	cancelled   []string
	invalidated []string
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{jobs: map[string]*model.AnalysisJob{}}
}

func (f *fakeCoordinator) StartJob(req *model.AnalysisRequest) (*model.AnalysisJob, error) {
	job := model.NewJob(uuid.NewString(), req)
	f.jobs[job.ID] = job
	return job.Clone(), nil
}

func (f *fakeCoordinator) SubmitBatch(reqs []*model.AnalysisRequest) ([]*model.AnalysisJob, error) {
	out := make([]*model.AnalysisJob, 0, len(reqs))
	for _, r := range reqs {
		j, _ := f.StartJob(r)
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeCoordinator) GetJob(id string) (*model.AnalysisJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, pipeline.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (f *fakeCoordinator) Cancel(id string) error {
	j, ok := f.jobs[id]
	if !ok {
		return pipeline.ErrJobNotFound
	}
	if j.Status.Terminal() {
		return pipeline.ErrJobFinished
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeCoordinator) InvalidateCache(_ context.Context, repoURL, branch string) error {
	f.invalidated = append(f.invalidated, repoURL+"#"+branch)
	return nil
}

const repoURL = "https://github.com/acme/demo"

func TestAnalysisService_Create(t *testing.T) {
	coord := newFakeCoordinator()
	svc := NewAnalysisService(coord, nil, nil)

	resp, err := svc.Create(7, "acme", &dto.CreateAnalysisRequest{RepoURL: repoURL, Categories: []string{"security"}})
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)

	job := coord.jobs[resp.JobID]
	require.NotNil(t, job)
	assert.Equal(t, int64(7), job.UserID)
	assert.Equal(t, "acme", job.TenantID)
	assert.Equal(t, model.DepthStandard, job.Depth)
	assert.True(t, job.IncludeSecurity)
	assert.Equal(t, []model.Category{model.CategorySecurity}, job.Categories)
}

func TestAnalysisService_CreateRejects(t *testing.T) {
	svc := NewAnalysisService(newFakeCoordinator(), nil, nil)

	tests := []struct {
		name    string
		req     *dto.CreateAnalysisRequest
		wantErr error
	}{
		{"ftp url", &dto.CreateAnalysisRequest{RepoURL: "ftp://example.com/a/b"}, ErrInvalidRepoURL},
		{"missing repo path", &dto.CreateAnalysisRequest{RepoURL: "https://github.com/acme"}, ErrInvalidRepoURL},
		{"unknown category", &dto.CreateAnalysisRequest{RepoURL: repoURL, Categories: []string{"style"}}, ErrInvalidCategory},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(1, "", tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnalysisService_CreateBatch(t *testing.T) {
	coord := newFakeCoordinator()
	svc := NewAnalysisService(coord, nil, nil)

	resp, err := svc.CreateBatch(1, "", &dto.BatchAnalysisRequest{Items: []dto.CreateAnalysisRequest{
		{RepoURL: repoURL},
		{RepoURL: "git@github.com:acme/other.git", Depth: "deep"},
	}})
	require.NoError(t, err)
	assert.Len(t, resp.Jobs, 2)
	assert.Len(t, coord.jobs, 2)

	_, err = svc.CreateBatch(1, "", &dto.BatchAnalysisRequest{Items: []dto.CreateAnalysisRequest{
		{RepoURL: repoURL},
		{RepoURL: "not a url"},
	}})
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
	assert.Len(t, coord.jobs, 2)
}

func TestAnalysisService_GetAndCancel(t *testing.T) {
	coord := newFakeCoordinator()
	svc := NewAnalysisService(coord, nil, nil)

	created, err := svc.Create(1, "", &dto.CreateAnalysisRequest{RepoURL: repoURL})
	require.NoError(t, err)

	status, err := svc.Get(1, created.JobID)
	require.NoError(t, err)
	assert.Equal(t, created.JobID, status.JobID)
	assert.Equal(t, "queued", status.Status)

	_, err = svc.Get(2, created.JobID)
	assert.ErrorIs(t, err, ErrAnalysisPermission)
	_, err = svc.Get(1, "missing")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)

	assert.ErrorIs(t, svc.Cancel(2, created.JobID), ErrAnalysisPermission)
	require.NoError(t, svc.Cancel(1, created.JobID))
	assert.Equal(t, []string{created.JobID}, coord.cancelled)

	coord.jobs[created.JobID].Status = model.StatusCompleted
	assert.ErrorIs(t, svc.Cancel(1, created.JobID), ErrAnalysisFinished)
}

func TestAnalysisService_List(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.TestJob(t, db, testutil.WithUser(1))
	testutil.TestJob(t, db, testutil.WithUser(1), testutil.WithStatus(model.StatusFailed))
	testutil.TestJob(t, db, testutil.WithUser(2))

	svc := NewAnalysisService(newFakeCoordinator(), repository.NewJobRepository(db), nil)

	items, total, err := svc.List(1, 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)
	for _, it := range items {
		assert.Nil(t, it.Result)
	}

	items, total, err = svc.List(1, 1, 10, "failed")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "failed", items[0].Status)

	empty := NewAnalysisService(newFakeCoordinator(), nil, nil)
	items, total, err = empty.List(1, 1, 10, "")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestAnalysisService_Enqueue(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	q := queue.NewQueue(rdb, "test:analysis_queue")

	svc := NewAnalysisService(newFakeCoordinator(), nil, q)
	resp, err := svc.Enqueue(context.Background(), 3, "", &dto.CreateAnalysisRequest{RepoURL: repoURL, Branch: "dev"})
	require.NoError(t, err)
	assert.Equal(t, "queued", resp.Status)

	msg, err := q.Pop(context.Background(), 0)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, resp.JobID, msg.JobID)
	assert.Equal(t, int64(3), msg.Request.UserID)
	assert.Equal(t, "dev", msg.Request.Branch)

	_, err = NewAnalysisService(newFakeCoordinator(), nil, nil).Enqueue(context.Background(), 1, "", &dto.CreateAnalysisRequest{RepoURL: repoURL})
	assert.ErrorIs(t, err, ErrQueueDisabled)
}

func TestAnalysisService_InvalidateCache(t *testing.T) {
	coord := newFakeCoordinator()
	svc := NewAnalysisService(coord, nil, nil)

	require.NoError(t, svc.InvalidateCache(context.Background(), &dto.InvalidateCacheRequest{RepoURL: repoURL, Branch: "main"}))
	assert.Equal(t, []string{repoURL + "#main"}, coord.invalidated)

	err := svc.InvalidateCache(context.Background(), &dto.InvalidateCacheRequest{RepoURL: "nope"})
	assert.ErrorIs(t, err, ErrInvalidRepoURL)
}

package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/repoinsight/internal/model"
)

// TestJob 写入一条归档任务
func TestJob(t *testing.T, db *gorm.DB, opts ...func(*model.AnalysisJob)) *model.AnalysisJob {
	t.Helper()

	job := model.NewJob(uuid.NewString(), &model.AnalysisRequest{
		UserID:  1,
		RepoURL: "https://github.com/example/repo",
		Branch:  "main",
		Depth:   model.DepthStandard,
	})
	job.Status = model.StatusCompleted
	job.Progress = 100

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job.ToRecord()).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}
	return job
}

// WithStatus 设置任务状态
func WithStatus(status model.JobStatus) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.Status = status
	}
}

// WithUser 设置任务所属用户
func WithUser(userID int64) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.UserID = userID
	}
}

// WithCompletedAt 设置完成时间
func WithCompletedAt(at time.Time) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.CompletedAt = &at
	}
}

// SampleResult 最小的分析结果
func SampleResult() *model.AnalysisResult {
	return &model.AnalysisResult{
		ProjectType: model.ProjectBackend,
		Confidence:  0.8,
		TechStack:   []string{"go"},
		Findings: []model.Finding{
			{TaskID: "perf_hotspots", Category: model.CategoryPerformance, Severity: model.SeverityMedium, Title: "n+1 query"},
		},
	}
}

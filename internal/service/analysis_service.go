package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/model/dto"
	"github.com/qs3c/repoinsight/internal/pipeline"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/pkg/queue"
	"github.com/qs3c/repoinsight/internal/source"
)

var (
	ErrAnalysisNotFound   = errors.New("分析任务不存在")
	ErrAnalysisPermission = errors.New("无权操作此分析任务")
	ErrAnalysisFinished   = errors.New("分析任务已结束")
	ErrInvalidRequest     = errors.New("分析请求无效")
	ErrInvalidRepoURL     = errors.New("仓库地址无效")
	ErrInvalidCategory    = errors.New("未知的分析类别")
	ErrQueueDisabled      = errors.New("未启用任务队列")
)

// Coordinator 流水线协调器
type Coordinator interface {
	StartJob(req *model.AnalysisRequest) (*model.AnalysisJob, error)
	SubmitBatch(reqs []*model.AnalysisRequest) ([]*model.AnalysisJob, error)
	GetJob(id string) (*model.AnalysisJob, error)
	Cancel(id string) error
	InvalidateCache(ctx context.Context, repoURL, branch string) error
}

// JobLister 已归档任务的分页查询
type JobLister interface {
	ListByUser(userID int64, page, pageSize int, status string) ([]*model.AnalysisJob, int64, error)
}

// JobQueue 交给独立 worker 进程执行的任务队列
type JobQueue interface {
	Push(ctx context.Context, msg *queue.JobMessage) error
}

type AnalysisService struct {
	coordinator Coordinator
	jobs        JobLister
	queue       JobQueue
	log         *logrus.Entry
}

// NewAnalysisService jobs 与 queue 可为空
func NewAnalysisService(coordinator Coordinator, jobs JobLister, q JobQueue) *AnalysisService {
	return &AnalysisService{
		coordinator: coordinator,
		jobs:        jobs,
		queue:       q,
		log:         logger.For("service"),
	}
}

// Create 校验请求并在进程内启动分析
func (s *AnalysisService) Create(userID int64, tenantID string, req *dto.CreateAnalysisRequest) (*dto.CreateAnalysisResponse, error) {
	r, err := s.toRequest(userID, tenantID, req)
	if err != nil {
		return nil, err
	}

	job, err := s.coordinator.StartJob(r)
	if err != nil {
		return nil, translate(err)
	}
	s.log.WithFields(logrus.Fields{"job_id": job.ID, "user_id": userID, "repo_url": job.RepoURL}).Info("analysis started")
	return &dto.CreateAnalysisResponse{JobID: job.ID, Status: string(job.Status)}, nil
}

// Enqueue 将分析请求推入队列，由 worker 执行；结果通过归档查询
func (s *AnalysisService) Enqueue(ctx context.Context, userID int64, tenantID string, req *dto.CreateAnalysisRequest) (*dto.CreateAnalysisResponse, error) {
	if s.queue == nil {
		return nil, ErrQueueDisabled
	}
	r, err := s.toRequest(userID, tenantID, req)
	if err != nil {
		return nil, err
	}

	msg := &queue.JobMessage{JobID: uuid.NewString(), Request: *r}
	if err := s.queue.Push(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}
	s.log.WithFields(logrus.Fields{"job_id": msg.JobID, "user_id": userID, "repo_url": r.RepoURL}).Info("analysis queued")
	return &dto.CreateAnalysisResponse{JobID: msg.JobID, Status: string(model.StatusQueued)}, nil
}

// CreateBatch 批量启动；任一项无效时整体拒绝
func (s *AnalysisService) CreateBatch(userID int64, tenantID string, req *dto.BatchAnalysisRequest) (*dto.BatchAnalysisResponse, error) {
	reqs := make([]*model.AnalysisRequest, 0, len(req.Items))
	for i := range req.Items {
		r, err := s.toRequest(userID, tenantID, &req.Items[i])
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		reqs = append(reqs, r)
	}

	jobs, err := s.coordinator.SubmitBatch(reqs)
	if err != nil {
		return nil, translate(err)
	}
	resp := &dto.BatchAnalysisResponse{Jobs: make([]dto.CreateAnalysisResponse, 0, len(jobs))}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, dto.CreateAnalysisResponse{JobID: j.ID, Status: string(j.Status)})
	}
	return resp, nil
}

// Get 查询任务状态，只允许任务所有者访问
func (s *AnalysisService) Get(userID int64, jobID string) (*dto.JobStatusResponse, error) {
	job, err := s.owned(userID, jobID)
	if err != nil {
		return nil, err
	}
	return dto.NewJobStatusResponse(job), nil
}

// Cancel 取消运行中的任务
func (s *AnalysisService) Cancel(userID int64, jobID string) error {
	if _, err := s.owned(userID, jobID); err != nil {
		return err
	}
	return translate(s.coordinator.Cancel(jobID))
}

// List 分页列出用户的已归档任务，不含分析结果
func (s *AnalysisService) List(userID int64, page, pageSize int, status string) ([]*dto.JobStatusResponse, int64, error) {
	if s.jobs == nil {
		return []*dto.JobStatusResponse{}, 0, nil
	}
	jobs, total, err := s.jobs.ListByUser(userID, page, pageSize, status)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*dto.JobStatusResponse, 0, len(jobs))
	for _, j := range jobs {
		item := dto.NewJobStatusResponse(j)
		item.Result = nil
		items = append(items, item)
	}
	return items, total, nil
}

// InvalidateCache 删除仓库分支的缓存结果
func (s *AnalysisService) InvalidateCache(ctx context.Context, req *dto.InvalidateCacheRequest) error {
	if err := source.ValidateRepoURL(req.RepoURL); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}
	return s.coordinator.InvalidateCache(ctx, req.RepoURL, req.Branch)
}

func (s *AnalysisService) toRequest(userID int64, tenantID string, req *dto.CreateAnalysisRequest) (*model.AnalysisRequest, error) {
	if err := source.ValidateRepoURL(req.RepoURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRepoURL, err)
	}
	r := req.ToModel(userID, tenantID)
	for _, c := range r.Categories {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCategory, c)
		}
	}
	return r, nil
}

func (s *AnalysisService) owned(userID int64, jobID string) (*model.AnalysisJob, error) {
	job, err := s.coordinator.GetJob(jobID)
	if err != nil {
		return nil, translate(err)
	}
	if job.UserID != userID {
		return nil, ErrAnalysisPermission
	}
	return job, nil
}

// translate 将流水线错误映射为服务层错误
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrJobNotFound):
		return ErrAnalysisNotFound
	case errors.Is(err, pipeline.ErrJobFinished):
		return ErrAnalysisFinished
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return err
}

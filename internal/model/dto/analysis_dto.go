package dto

import (
	"time"

	"github.com/qs3c/repoinsight/internal/model"
)

// CreateAnalysisRequest 创建分析请求
type CreateAnalysisRequest struct {
	RepoURL         string   `json:"repo_url" binding:"required,max=500"`
	Branch          string   `json:"branch,omitempty" binding:"omitempty,max=200"`
	Depth           string   `json:"depth,omitempty" binding:"omitempty,oneof=quick standard deep"`
	IncludeSecurity *bool    `json:"include_security,omitempty"`
	ForceRefresh    bool     `json:"force_refresh,omitempty"`
	Categories      []string `json:"categories,omitempty" binding:"omitempty,max=6"`
	CallbackURL     string   `json:"callback_url,omitempty" binding:"omitempty,url"`
}

// ToModel 转换为流水线请求，未指定时深度为 standard、包含安全分析
func (r *CreateAnalysisRequest) ToModel(userID int64, tenantID string) *model.AnalysisRequest {
	depth := model.Depth(r.Depth)
	if depth == "" {
		depth = model.DepthStandard
	}
	includeSecurity := true
	if r.IncludeSecurity != nil {
		includeSecurity = *r.IncludeSecurity
	}
	categories := make([]model.Category, 0, len(r.Categories))
	for _, c := range r.Categories {
		categories = append(categories, model.Category(c))
	}
	return &model.AnalysisRequest{
		UserID:          userID,
		TenantID:        tenantID,
		RepoURL:         r.RepoURL,
		Branch:          r.Branch,
		Depth:           depth,
		IncludeSecurity: includeSecurity,
		ForceRefresh:    r.ForceRefresh,
		Categories:      categories,
		CallbackURL:     r.CallbackURL,
	}
}

// CreateAnalysisResponse 创建分析响应
type CreateAnalysisResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// BatchAnalysisRequest 批量分析请求
type BatchAnalysisRequest struct {
	Items []CreateAnalysisRequest `json:"items" binding:"required,min=1,max=20,dive"`
}

// BatchAnalysisResponse 批量分析响应
type BatchAnalysisResponse struct {
	Jobs []CreateAnalysisResponse `json:"jobs"`
}

// InvalidateCacheRequest 清除缓存请求
type InvalidateCacheRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
	Branch  string `json:"branch,omitempty"`
}

// JobStatusResponse 任务状态响应
type JobStatusResponse struct {
	JobID          string                `json:"job_id"`
	RepoURL        string                `json:"repo_url"`
	Branch         string                `json:"branch,omitempty"`
	Commit         string                `json:"commit,omitempty"`
	Depth          string                `json:"depth"`
	Status         string                `json:"status"`
	Progress       int                   `json:"progress"`
	CurrentStep    string                `json:"current_step,omitempty"`
	ElapsedSeconds int                   `json:"elapsed_seconds,omitempty"`
	ErrorMessage   string                `json:"error_message,omitempty"`
	Usage          model.Usage           `json:"usage"`
	Result         *model.AnalysisResult `json:"result,omitempty"`
	CreatedAt      string                `json:"created_at"`
	StartedAt      string                `json:"started_at,omitempty"`
	CompletedAt    string                `json:"completed_at,omitempty"`
}

// NewJobStatusResponse 由任务快照构造响应
func NewJobStatusResponse(job *model.AnalysisJob) *JobStatusResponse {
	resp := &JobStatusResponse{
		JobID:        job.ID,
		RepoURL:      job.RepoURL,
		Branch:       job.Branch,
		Commit:       job.Commit,
		Depth:        string(job.Depth),
		Status:       string(job.Status),
		Progress:     job.Progress,
		CurrentStep:  job.CurrentStep,
		ErrorMessage: job.ErrorMessage,
		Usage:        job.Usage,
		Result:       job.Result,
		CreatedAt:    job.CreatedAt.Format(time.RFC3339),
	}
	if job.StartedAt != nil {
		resp.StartedAt = job.StartedAt.Format(time.RFC3339)
		end := time.Now()
		if job.CompletedAt != nil {
			end = *job.CompletedAt
		}
		resp.ElapsedSeconds = int(end.Sub(*job.StartedAt).Seconds())
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

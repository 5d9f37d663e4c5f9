package model

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	StatusQueued       JobStatus = "queued"
	StatusCloning      JobStatus = "cloning"
	StatusDetecting    JobStatus = "detecting"
	StatusAnalyzing    JobStatus = "analyzing"
	StatusSynthesizing JobStatus = "synthesizing"
	StatusGenerating   JobStatus = "generating"
	StatusCompleted    JobStatus = "completed"
	StatusFailed       JobStatus = "failed"
)

// stageOrder is the strict linear progression of non-failed states.
var stageOrder = []JobStatus{
	StatusQueued,
	StatusCloning,
	StatusDetecting,
	StatusAnalyzing,
	StatusSynthesizing,
	StatusGenerating,
	StatusCompleted,
}

func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) rank() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransition reports whether the state machine allows from → to.
// Stages advance one step at a time. The only skip is queued → completed on
// a cache hit. Failed is reachable from every non-terminal state and terminal
// states never change.
func CanTransition(from, to JobStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	if from == StatusQueued && to == StatusCompleted {
		return true
	}
	fr, tr := from.rank(), to.rank()
	return fr >= 0 && tr == fr+1
}

// Depth 分析深度
type Depth string

const (
	DepthQuick    Depth = "quick"
	DepthStandard Depth = "standard"
	DepthDeep     Depth = "deep"
)

func (d Depth) Valid() bool {
	return d == DepthQuick || d == DepthStandard || d == DepthDeep
}

// Usage 用量统计
type Usage struct {
	TokensUsed    int   `json:"tokens_used"`
	TaskCount     int   `json:"task_count"`
	FailedTasks   int   `json:"failed_tasks"`
	FilesAnalyzed int   `json:"files_analyzed"`
	BytesAnalyzed int64 `json:"bytes_analyzed"`
	ElapsedMillis int64 `json:"elapsed_ms"`
	CacheHit      bool  `json:"cache_hit"`
}

// AnalysisRequest 发起分析的参数
type AnalysisRequest struct {
	UserID          int64      `json:"user_id"`
	TenantID        string     `json:"tenant_id,omitempty"`
	RepoURL         string     `json:"repo_url"`
	Branch          string     `json:"branch,omitempty"`
	Depth           Depth      `json:"depth"`
	IncludeSecurity bool       `json:"include_security"`
	ForceRefresh    bool       `json:"force_refresh"`
	Categories      []Category `json:"categories,omitempty"`
	CallbackURL     string     `json:"callback_url,omitempty"`
}

type AnalysisJob struct {
	ID              string          `json:"id"`
	UserID          int64           `json:"user_id"`
	TenantID        string          `json:"tenant_id,omitempty"`
	RepoURL         string          `json:"repo_url"`
	Branch          string          `json:"branch,omitempty"`
	Commit          string          `json:"commit,omitempty"`
	Depth           Depth           `json:"depth"`
	IncludeSecurity bool            `json:"include_security"`
	ForceRefresh    bool            `json:"force_refresh"`
	Categories      []Category      `json:"categories,omitempty"`
	CallbackURL     string          `json:"callback_url,omitempty"`
	Status          JobStatus       `json:"status"`
	Progress        int             `json:"progress"`
	CurrentStep     string          `json:"current_step,omitempty"`
	Usage           Usage           `json:"usage"`
	Result          *AnalysisResult `json:"result,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
}

// NewJob builds a queued job from a request.
func NewJob(id string, req *AnalysisRequest) *AnalysisJob {
	return &AnalysisJob{
		ID:              id,
		UserID:          req.UserID,
		TenantID:        req.TenantID,
		RepoURL:         req.RepoURL,
		Branch:          req.Branch,
		Depth:           req.Depth,
		IncludeSecurity: req.IncludeSecurity,
		ForceRefresh:    req.ForceRefresh,
		Categories:      append([]Category(nil), req.Categories...),
		CallbackURL:     req.CallbackURL,
		Status:          StatusQueued,
		CurrentStep:     "queued",
		CreatedAt:       time.Now(),
	}
}

// Clone returns a copy safe to hand to readers; Result is shared because it
// is written once before the job turns terminal.
func (j *AnalysisJob) Clone() *AnalysisJob {
	cp := *j
	cp.Categories = append([]Category(nil), j.Categories...)
	return &cp
}

// ProgressEvent 进度快照
type ProgressEvent struct {
	JobID     string    `json:"job_id"`
	UserID    int64     `json:"user_id"`
	Status    JobStatus `json:"status"`
	Step      string    `json:"step"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// JobRecord 持久化的终态任务
type JobRecord struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	UserID       int64           `gorm:"not null;index" json:"user_id"`
	TenantID     string          `gorm:"size:64;index" json:"tenant_id"`
	RepoURL      string          `gorm:"size:500;not null;index" json:"repo_url"`
	Branch       string          `gorm:"size:200" json:"branch"`
	Commit       string          `gorm:"size:64" json:"commit"`
	Depth        string          `gorm:"size:20" json:"depth"`
	Categories   []Category      `gorm:"serializer:json" json:"categories"`
	Status       string          `gorm:"size:20;index" json:"status"`
	Progress     int             `json:"progress"`
	CurrentStep  string          `gorm:"size:200" json:"current_step,omitempty"`
	ErrorMessage string          `gorm:"type:text" json:"error_message,omitempty"`
	Usage        Usage           `gorm:"serializer:json" json:"usage"`
	Result       *AnalysisResult `gorm:"serializer:json" json:"result,omitempty"`
	CreatedAt    time.Time       `gorm:"index" json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

func (JobRecord) TableName() string {
	return "analysis_jobs"
}

func (j *AnalysisJob) ToRecord() *JobRecord {
	return &JobRecord{
		ID:           j.ID,
		UserID:       j.UserID,
		TenantID:     j.TenantID,
		RepoURL:      j.RepoURL,
		Branch:       j.Branch,
		Commit:       j.Commit,
		Depth:        string(j.Depth),
		Categories:   j.Categories,
		Status:       string(j.Status),
		Progress:     j.Progress,
		CurrentStep:  j.CurrentStep,
		ErrorMessage: j.ErrorMessage,
		Usage:        j.Usage,
		Result:       j.Result,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
	}
}

func (r *JobRecord) ToJob() *AnalysisJob {
	return &AnalysisJob{
		ID:           r.ID,
		UserID:       r.UserID,
		TenantID:     r.TenantID,
		RepoURL:      r.RepoURL,
		Branch:       r.Branch,
		Commit:       r.Commit,
		Depth:        Depth(r.Depth),
		Categories:   r.Categories,
		Status:       JobStatus(r.Status),
		Progress:     r.Progress,
		CurrentStep:  r.CurrentStep,
		ErrorMessage: r.ErrorMessage,
		Usage:        r.Usage,
		Result:       r.Result,
		CreatedAt:    r.CreatedAt,
		StartedAt:    r.StartedAt,
		CompletedAt:  r.CompletedAt,
	}
}

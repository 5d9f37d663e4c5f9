package pipeline

import (
	"context"
	"errors"

	"github.com/qs3c/repoinsight/internal/cache"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/notify"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidRequest    = errors.New("invalid analysis request")
	ErrCancelled         = errors.New("analysis cancelled")
	ErrJobFinished       = errors.New("job already finished")
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Source 源码访问层
type Source interface {
	Clone(ctx context.Context, repoURL, branch string) (*model.Checkout, error)
	ListFiles(root string, ignore []string) ([]model.FileEntry, error)
	ReadFile(root, rel string) (string, error)
	DirectoryTree(root string, maxDepth int, ignore []string) (*model.TreeNode, error)
	Metadata(ctx context.Context, repoURL string, checkout *model.Checkout, files []model.FileEntry) (*model.RepositoryMetadata, error)
	Release(localPath string) error
}

// ResultCache 分析结果缓存，尽力而为
type ResultCache interface {
	Get(ctx context.Context, repoURL, branch string) (*cache.Entry, error)
	Put(ctx context.Context, repoURL, branch, commit string, result *model.AnalysisResult) error
	Invalidate(ctx context.Context, repoURL, branch string) error
}

// Notifier 完成/失败回调
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, event *notify.Event) error
}

// ReportGenerator 生成报告产物
type ReportGenerator interface {
	Generate(ctx context.Context, jobID string, meta *model.RepositoryMetadata, result *model.AnalysisResult) (*model.ReportRef, error)
}

// JobArchive 终态任务的持久化存储
type JobArchive interface {
	Save(job *model.AnalysisJob) error
	GetByID(id string) (*model.AnalysisJob, error)
}

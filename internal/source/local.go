package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qs3c/repoinsight/internal/model"
)

// LocalSource 直接读取已有目录，不克隆也不删除
type LocalSource struct {
	Files
	Dir string
}

func NewLocalSource(dir string, maxFileBytes int64) *LocalSource {
	return &LocalSource{Files: NewFiles(maxFileBytes), Dir: dir}
}

// Clone 忽略参数，返回本地目录；git 信息可用时一并解析
func (l *LocalSource) Clone(ctx context.Context, repoURL, branch string) (*model.Checkout, error) {
	abs, err := filepath.Abs(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", l.Dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, &CloneError{UserMessage: "local directory not found", RawError: fmt.Errorf("stat %s: %v", abs, err)}
	}

	checkout := &model.Checkout{LocalPath: abs, Branch: branch}
	if out, err := runGit(ctx, abs, "rev-parse", "HEAD"); err == nil {
		checkout.CommitHash = strings.TrimSpace(out)
	}
	if out, err := runGit(ctx, abs, "rev-parse", "--abbrev-ref", "HEAD"); err == nil && checkout.Branch == "" {
		checkout.Branch = strings.TrimSpace(out)
	}
	return checkout, nil
}

func (l *LocalSource) Release(string) error {
	return nil
}

func (l *LocalSource) Metadata(_ context.Context, repoURL string, checkout *model.Checkout, files []model.FileEntry) (*model.RepositoryMetadata, error) {
	if repoURL == "" {
		repoURL = checkout.LocalPath
	}
	return BuildMetadata(repoURL, checkout, files), nil
}

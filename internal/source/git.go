package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

// CloneDirPrefix 每个任务的克隆目录前缀，清理任务按它识别残留目录
const CloneDirPrefix = "analysis_"

// GitSource 基于 git 命令行的仓库访问层
type GitSource struct {
	Files
	workRoot     string
	cloneTimeout time.Duration
	github       *GitHubClient
	log          *logrus.Entry
}

// NewGitSource 创建 git 访问层，workDir 为空时使用系统临时目录
func NewGitSource(cfg config.PipelineConfig, gh config.GitHubConfig) *GitSource {
	root := cfg.WorkDir
	if root == "" {
		root = os.TempDir()
	}
	return &GitSource{
		Files:        NewFiles(cfg.MaxFileBytes),
		workRoot:     root,
		cloneTimeout: cfg.CloneTimeout(),
		github:       NewGitHubClient(gh),
		log:          logger.For("source"),
	}
}

// WorkRoot 克隆目录根
func (g *GitSource) WorkRoot() string {
	return g.workRoot
}

// Clone 浅克隆仓库到新的临时目录，失败时清理残留
func (g *GitSource) Clone(ctx context.Context, repoURL, branch string) (*model.Checkout, error) {
	// 本地 file:// 仓库之外的地址都要经过校验
	if !strings.HasPrefix(repoURL, "file://") {
		if err := ValidateRepoURL(repoURL); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(g.workRoot, 0755); err != nil {
		return nil, &CloneError{
			UserMessage: "failed to clone repository, check the address and retry",
			RawError:    fmt.Errorf("failed to create work root: %w", err),
		}
	}
	destDir, err := os.MkdirTemp(g.workRoot, CloneDirPrefix+"*")
	if err != nil {
		return nil, &CloneError{
			UserMessage: "failed to clone repository, check the address and retry",
			RawError:    fmt.Errorf("failed to create clone directory: %w", err),
		}
	}

	cloneCtx, cancel := context.WithTimeout(ctx, g.cloneTimeout)
	defer cancel()

	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, "--", repoURL, destDir)

	g.log.WithFields(logrus.Fields{"repo_url": repoURL, "branch": branch}).Info("cloning repository")
	output, err := runGit(cloneCtx, "", args...)
	if err != nil {
		os.RemoveAll(destDir)
		if cloneCtx.Err() != nil {
			err = fmt.Errorf("%w: %v", cloneCtx.Err(), err)
		}
		return nil, classifyCloneError(output, err)
	}

	commit, err := runGit(ctx, destDir, "rev-parse", "HEAD")
	if err != nil {
		os.RemoveAll(destDir)
		return nil, &CloneError{
			UserMessage: "repository is empty",
			RawError:    fmt.Errorf("failed to resolve HEAD: %w", err),
		}
	}

	resolved := branch
	if out, err := runGit(ctx, destDir, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		resolved = strings.TrimSpace(out)
	}

	return &model.Checkout{
		LocalPath:  destDir,
		CommitHash: strings.TrimSpace(commit),
		Branch:     resolved,
	}, nil
}

// Release 删除克隆目录，拒绝删除工作根之外的路径
func (g *GitSource) Release(localPath string) error {
	if localPath == "" {
		return nil
	}

	absDir, err := filepath.Abs(localPath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	absRoot, err := filepath.Abs(g.workRoot)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	rel, err := filepath.Rel(absRoot, absDir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("refusing to delete directory outside work root: %s", absDir)
	}

	return os.RemoveAll(absDir)
}

// Metadata 汇总文件统计、最近提交时间，并尝试从 GitHub 补充描述信息
func (g *GitSource) Metadata(ctx context.Context, repoURL string, checkout *model.Checkout, files []model.FileEntry) (*model.RepositoryMetadata, error) {
	meta := BuildMetadata(repoURL, checkout, files)

	if out, err := runGit(ctx, checkout.LocalPath, "log", "-1", "--format=%ct"); err == nil {
		if sec, perr := strconv.ParseInt(strings.TrimSpace(out), 10, 64); perr == nil {
			t := time.Unix(sec, 0).UTC()
			meta.LastCommitAt = &t
		}
	}

	if err := g.github.Enrich(ctx, repoURL, meta); err != nil {
		g.log.WithError(err).WithField("repo_url", repoURL).Warn("github metadata lookup failed")
	}

	return meta, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// ValidateRepoURL 验证仓库 URL 格式
func ValidateRepoURL(repoURL string) error {
	if repoURL == "" {
		return &CloneError{UserMessage: "repository address is required"}
	}

	if strings.HasPrefix(repoURL, "git@") {
		// git@github.com:user/repo.git
		host, path, ok := strings.Cut(strings.TrimPrefix(repoURL, "git@"), ":")
		if !ok || host == "" || !strings.Contains(strings.Trim(path, "/"), "/") {
			return &CloneError{UserMessage: "repository address is incomplete, use user/repo form"}
		}
		return nil
	}

	if !strings.HasPrefix(repoURL, "https://") {
		return &CloneError{UserMessage: "repository address must start with https:// or git@"}
	}

	u, err := url.Parse(repoURL)
	if err != nil {
		return &CloneError{UserMessage: "repository address is malformed", RawError: err}
	}

	if u.Host == "" {
		return &CloneError{UserMessage: "repository address is missing a host"}
	}

	// 路径至少需要 /user/repo
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return &CloneError{UserMessage: "repository address is incomplete, use user/repo form"}
	}

	return nil
}

// RepoName 从仓库地址提取 owner/repo
func RepoName(repoURL string) (owner, name string) {
	s := strings.TrimSuffix(strings.TrimSpace(repoURL), "/")
	s = strings.TrimSuffix(s, ".git")
	if strings.HasPrefix(s, "git@") {
		if _, path, ok := strings.Cut(s, ":"); ok {
			s = path
		}
	} else if u, err := url.Parse(s); err == nil && u.Host != "" {
		s = u.Path
	}
	parts := strings.Split(strings.Trim(s, "/"), "/")
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

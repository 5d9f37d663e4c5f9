package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/pkg/oss"
	"github.com/qs3c/repoinsight/internal/pkg/s3store"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStore 报告存储后端
type ArtifactStore interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, location string) ([]byte, error)
}

// NewStore 按配置选择存储：OSS 优先，其次 S3，最后本地目录
func NewStore(cfg *config.Config) (ArtifactStore, error) {
	switch {
	case cfg.OSS.Endpoint != "" && cfg.OSS.BucketName != "":
		c, err := oss.NewClient(&cfg.OSS)
		if err != nil {
			return nil, err
		}
		return c, nil
	case cfg.S3.Endpoint != "":
		s, err := s3store.New(cfg.S3)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return NewLocalStore(cfg.Pipeline.ReportDir)
	}
}

// LocalStore 本地目录存储
type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "repoinsight_reports")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) Name() string { return "local" }

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

func (s *LocalStore) Get(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := location
	if !filepath.IsAbs(path) {
		var err error
		if path, err = s.resolve(location); err != nil {
			return nil, err
		}
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrArtifactNotFound
	}
	return data, err
}

// resolve 保证路径落在根目录内
func (s *LocalStore) resolve(key string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(strings.TrimLeft(key, "/")))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact key %q", key)
	}
	return path, nil
}

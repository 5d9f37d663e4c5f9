// Package bootstrap 组装各个二进制共用的分析流水线
package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/cache"
	"github.com/qs3c/repoinsight/internal/notify"
	"github.com/qs3c/repoinsight/internal/pipeline"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/reasoning"
	"github.com/qs3c/repoinsight/internal/report"
	"github.com/qs3c/repoinsight/internal/source"
	"github.com/qs3c/repoinsight/internal/tasks"
)

// Deps 可选的外部依赖；Source 为空时使用 git 克隆
type Deps struct {
	Redis   *redis.Client
	Archive pipeline.JobArchive
	Source  pipeline.Source
}

// Catalogue 内置任务表，配置了覆盖文件时合并之
func Catalogue(cfg config.PipelineConfig) (*tasks.Catalogue, error) {
	c := tasks.NewCatalogue()
	if cfg.CatalogueFile != "" {
		if err := c.LoadFile(cfg.CatalogueFile); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// NewCoordinator 按配置创建协调器
func NewCoordinator(ctx context.Context, cfg *config.Config, deps Deps) (*pipeline.Coordinator, error) {
	log := logger.For("bootstrap")

	reasoner, err := reasoning.New(ctx, cfg.Reasoning)
	if err != nil {
		return nil, fmt.Errorf("failed to create reasoning client: %w", err)
	}

	catalogue, err := Catalogue(cfg.Pipeline)
	if err != nil {
		return nil, err
	}

	store, err := report.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	src := deps.Source
	if src == nil {
		src = source.NewGitSource(cfg.Pipeline, cfg.GitHub)
	}

	opts := pipeline.Options{
		Config:          cfg.Pipeline,
		MaxOutputTokens: cfg.Reasoning.MaxOutputTokens,
		Source:          src,
		Catalogue:       catalogue,
		Reasoner:        reasoner,
		Reporter:        report.NewArtifactGenerator(store),
		Notifier:        notify.NewHTTPNotifier(cfg.Pipeline.NotifyTimeout()),
	}
	if deps.Archive != nil {
		opts.Archive = deps.Archive
	}
	if cfg.Cache.Enabled && deps.Redis != nil {
		opts.Cache = cache.NewRedisCache(deps.Redis, cfg.Cache)
	}

	coord, err := pipeline.New(opts)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"reasoner": reasoner.Name(),
		"store":    store.Name(),
		"cache":    opts.Cache != nil,
		"archive":  opts.Archive != nil,
	}).Info("pipeline ready")
	return coord, nil
}

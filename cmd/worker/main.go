package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/bootstrap"
	"github.com/qs3c/repoinsight/internal/database"
	"github.com/qs3c/repoinsight/internal/pipeline"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/pkg/pubsub"
	"github.com/qs3c/repoinsight/internal/pkg/queue"
	"github.com/qs3c/repoinsight/internal/repository"
	"github.com/qs3c/repoinsight/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)
	log := logger.For("worker")

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord, err := bootstrap.NewCoordinator(ctx, cfg, bootstrap.Deps{Redis: rdb, Archive: repository.NewJobRepository(db)})
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}
	defer coord.Shutdown()

	go pipeline.NewProgressDispatcher(coord.Progress(), pubsub.NewPublisher(rdb)).Run(ctx)

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received shutdown signal")
		cancel()
	}()

	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	log.WithField("max_workers", cfg.Queue.MaxWorkers).Info("worker started")
	worker.NewProcessor(coord, jobQueue, cfg.Queue.MaxWorkers).Run(ctx)
	log.Info("worker shutdown complete")
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/api"
	"github.com/qs3c/repoinsight/internal/api/handler"
	"github.com/qs3c/repoinsight/internal/bootstrap"
	"github.com/qs3c/repoinsight/internal/database"
	"github.com/qs3c/repoinsight/internal/pipeline"
	"github.com/qs3c/repoinsight/internal/pkg/cron"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/pkg/pubsub"
	"github.com/qs3c/repoinsight/internal/pkg/queue"
	"github.com/qs3c/repoinsight/internal/pkg/ws"
	"github.com/qs3c/repoinsight/internal/repository"
	"github.com/qs3c/repoinsight/internal/service"
	"github.com/qs3c/repoinsight/internal/source"
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
	log := logger.For("server")

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	log.WithField("driver", cfg.Database.Driver).Info("database connected")

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.WithError(err).Fatal("failed to connect redis")
	}
	log.Info("redis connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobRepo := repository.NewJobRepository(db)
	coord, err := bootstrap.NewCoordinator(ctx, cfg, bootstrap.Deps{Redis: rdb, Archive: jobRepo})
	if err != nil {
		log.WithError(err).Fatal("failed to build pipeline")
	}

	// 进度：本进程事件发到 Redis，订阅者再推给 WebSocket，worker 的进度走同一条路
	wsHub := ws.NewHub()
	publisher := pubsub.NewPublisher(rdb)
	go pipeline.NewProgressDispatcher(coord.Progress(), publisher).Run(ctx)
	go func() {
		err := pubsub.NewSubscriber(rdb).Subscribe(ctx, func(msg *pubsub.ProgressMessage) {
			_ = wsHub.HandleProgress(ctx, msg.Event())
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("progress subscription stopped")
		}
	}()

	// 定时清理克隆目录与过期归档
	sweeper := cron.NewService(cfg.Pipeline.WorkDir, source.CloneDirPrefix, cfg.Cleanup.CloneExpireHours, jobRepo, cfg.Cleanup.ArchiveRetentionDays)
	sweeper.Start()
	defer sweeper.Stop()

	// 初始化 Service / Handler / Router
	jobQueue := queue.NewQueue(rdb, cfg.Queue.AnalysisQueue)
	analysisService := service.NewAnalysisService(coord, jobRepo, jobQueue)
	analysisHandler := handler.NewAnalysisHandler(analysisService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(wsHub, jobQueue)
	router := api.NewRouter(analysisHandler, websocketHandler, healthHandler, cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router.Setup(),
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	coord.Shutdown()
	cancel()
	log.Info("server shutdown complete")
}

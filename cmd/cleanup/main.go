package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/database"
	"github.com/qs3c/repoinsight/internal/pkg/cron"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/repository"
	"github.com/qs3c/repoinsight/internal/source"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete anything")
	cloneExpire   = flag.Int("clone-expire", 0, "Hours to keep clone directories (0 = use config)")
	retentionDays = flag.Int("retention-days", -1, "Days to keep finished jobs in the archive (-1 = use config, 0 = keep)")
	cleanClones   = flag.Bool("clean-clones", true, "Remove leftover clone directories")
	pruneArchive  = flag.Bool("prune-archive", true, "Delete expired finished jobs")
)

func main() {
	flag.Parse()

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)
	log := logger.For("cleanup")
	log.WithField("dry_run", *dryRun).Info("starting cleanup task")

	expire := cfg.Cleanup.CloneExpireHours
	if *cloneExpire > 0 {
		expire = *cloneExpire
	}
	retention := cfg.Cleanup.ArchiveRetentionDays
	if *retentionDays >= 0 {
		retention = *retentionDays
	}

	var archive cron.Archive
	if *pruneArchive && !*dryRun && retention > 0 {
		db, err := database.NewDB(&cfg.Database)
		if err != nil {
			log.WithError(err).Fatal("failed to connect database")
		}
		archive = repository.NewJobRepository(db)
		defer closeDB(db)
	}

	svc := cron.NewService(cfg.Pipeline.WorkDir, source.CloneDirPrefix, expire, archive, retention)

	var (
		clones []string
		freed  int64
		pruned int64
	)
	if *cleanClones {
		// 先统计大小，删除后就无法计算
		candidates := svc.SweepCloneDirs(true)
		for _, dir := range candidates {
			size := dirSize(dir)
			freed += size
			log.WithFields(logrus.Fields{"dir": dir, "size": formatSize(size)}).Info("expired clone directory")
		}
		clones = candidates
		if !*dryRun {
			clones = svc.SweepCloneDirs(false)
		}
	}
	if archive != nil {
		pruned = svc.PruneArchive()
	}

	log.Info(strings.Repeat("=", 60))
	log.WithFields(logrus.Fields{
		"clone_dirs":    len(clones),
		"freed":         formatSize(freed),
		"archived_jobs": pruned,
	}).Info("cleanup summary")
	if *dryRun {
		log.Info("dry run mode, nothing was deleted; run with -dry-run=false to delete")
	}
}

// dirSize 计算目录大小
func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

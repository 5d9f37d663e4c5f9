package cron

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

// Archive 可按完成时间清理的任务归档
type Archive interface {
	DeleteFinishedBefore(cutoff time.Time) (int64, error)
}

type Service struct {
	workRoot      string
	prefix        string
	expireHours   int
	retentionDays int
	archive       Archive
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	log           *logrus.Entry
}

// NewService workRoot 为克隆目录根，prefix 为克隆目录名前缀
func NewService(workRoot, prefix string, expireHours int, archive Archive, retentionDays int) *Service {
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	return &Service{
		workRoot:      workRoot,
		prefix:        prefix,
		expireHours:   expireHours,
		retentionDays: retentionDays,
		archive:       archive,
		interval:      time.Hour,
		stopChan:      make(chan struct{}),
		log:           logger.For("cron"),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runCleanup()
	s.log.Info("cron service started (clone sweep + archive prune)")
}

// Stop 停止定时任务，可重复调用
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.log.Info("cron service stopped")
	})
}

// runCleanup 每小时执行一次全量清理
func (s *Service) runCleanup() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.CleanupAll()
		}
	}
}

// CleanupAll 执行所有清理任务
func (s *Service) CleanupAll() {
	clones := s.SweepCloneDirs(false)
	pruned := s.PruneArchive()
	if len(clones) > 0 || pruned > 0 {
		s.log.WithFields(logrus.Fields{"clones": len(clones), "archived_jobs": pruned}).Info("cleanup summary")
	}
}

func (s *Service) expireDuration() time.Duration {
	expireHours := s.expireHours
	if expireHours <= 0 {
		expireHours = 1
	}
	return time.Duration(expireHours) * time.Hour
}

// SweepCloneDirs 清理过期的克隆目录（进程崩溃遗留）；dryRun 时只返回候选目录
func (s *Service) SweepCloneDirs(dryRun bool) []string {
	entries, err := os.ReadDir(s.workRoot)
	if err != nil {
		s.log.WithFields(logrus.Fields{"dir": s.workRoot, "error": err}).Warn("failed to read clone root")
		return nil
	}

	expire := s.expireDuration()
	var cleaned []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), s.prefix) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) <= expire {
			continue
		}

		dirPath := filepath.Join(s.workRoot, entry.Name())
		if dryRun {
			cleaned = append(cleaned, dirPath)
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			s.log.WithFields(logrus.Fields{"dir": dirPath, "error": err}).Warn("failed to remove clone dir")
		} else {
			cleaned = append(cleaned, dirPath)
		}
	}
	return cleaned
}

// PruneArchive 删除超过保留期的已结束任务
func (s *Service) PruneArchive() int64 {
	if s.archive == nil || s.retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -s.retentionDays)
	n, err := s.archive.DeleteFinishedBefore(cutoff)
	if err != nil {
		s.log.WithError(err).Warn("failed to prune job archive")
		return 0
	}
	return n
}

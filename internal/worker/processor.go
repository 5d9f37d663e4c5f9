package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/pkg/queue"
)

// Executor 同步执行一个分析任务
type Executor interface {
	Execute(ctx context.Context, jobID string, req *model.AnalysisRequest) (*model.AnalysisJob, error)
}

// JobSource 阻塞式任务来源，超时无任务时返回 nil
type JobSource interface {
	Pop(ctx context.Context, timeout time.Duration) (*queue.JobMessage, error)
}

// Processor 任务处理器
type Processor struct {
	executor    Executor
	jobs        JobSource
	popTimeout  time.Duration
	workerCount int
	log         *logrus.Entry
}

// NewProcessor 创建任务处理器
func NewProcessor(executor Executor, jobs JobSource, workerCount int) *Processor {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Processor{
		executor:    executor,
		jobs:        jobs,
		popTimeout:  5 * time.Second,
		workerCount: workerCount,
		log:         logger.For("worker"),
	}
}

// Process 处理一条队列消息；任务以 failed 结束时返回错误
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	if wait := time.Since(msg.EnqueuedAt); !msg.EnqueuedAt.IsZero() {
		p.log.WithFields(logrus.Fields{"job_id": msg.JobID, "queued_for": wait.Round(time.Millisecond)}).Debug("picked up job")
	}

	job, err := p.executor.Execute(ctx, msg.JobID, &msg.Request)
	if err != nil {
		return fmt.Errorf("failed to start job: %w", err)
	}
	if job.Status == model.StatusFailed {
		return fmt.Errorf("job %s failed: %s", job.ID, job.ErrorMessage)
	}

	p.log.WithFields(logrus.Fields{
		"job_id":    job.ID,
		"repo_url":  job.RepoURL,
		"cache_hit": job.Usage.CacheHit,
		"elapsed":   time.Duration(job.Usage.ElapsedMillis) * time.Millisecond,
	}).Info("job completed")
	return nil
}

// Run 启动 workerCount 个消费循环，阻塞直到 ctx 取消且所有循环退出
func (p *Processor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}
	p.log.WithField("workers", p.workerCount).Info("worker started")
	wg.Wait()
	p.log.Info("worker shutdown complete")
}

func (p *Processor) loop(ctx context.Context, workerID int) {
	log := p.log.WithField("worker_id", workerID)
	for {
		select {
		case <-ctx.Done():
			log.Debug("worker shutting down")
			return
		default:
		}

		// 从队列获取任务
		msg, err := p.jobs.Pop(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("failed to pop job")
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if msg == nil {
			continue // 超时，继续等待
		}

		if err := p.Process(ctx, msg); err != nil {
			log.WithFields(logrus.Fields{"job_id": msg.JobID, "error": err}).Warn("job failed")
		}
	}
}

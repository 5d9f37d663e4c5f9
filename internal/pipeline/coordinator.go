package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/classifier"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/reasoning"
	"github.com/qs3c/repoinsight/internal/synth"
	"github.com/qs3c/repoinsight/internal/tasks"
)

// Options 协调器的协作者；Cache、Notifier、Reporter、Archive 可为空
type Options struct {
	Config          config.PipelineConfig
	MaxOutputTokens int
	Source          Source
	Classifier      *classifier.Classifier
	Catalogue       *tasks.Catalogue
	Reasoner        reasoning.Client
	Synthesizer     *synth.Synthesizer
	Reporter        ReportGenerator
	Cache           ResultCache
	Notifier        Notifier
	Archive         JobArchive
}

// Coordinator 驱动分析任务经过各阶段
type Coordinator struct {
	cfg             config.PipelineConfig
	maxOutputTokens int
	source          Source
	classifier      *classifier.Classifier
	catalogue       *tasks.Catalogue
	reasoner        reasoning.Client
	synth           *synth.Synthesizer
	reporter        ReportGenerator
	cache           ResultCache
	notifier        Notifier
	archive         JobArchive

	registry *Registry
	progress chan model.ProgressEvent
	baseCtx  context.Context
	stop     context.CancelFunc
	wg       sync.WaitGroup
	log      *logrus.Entry
}

func New(opts Options) (*Coordinator, error) {
	if opts.Source == nil || opts.Reasoner == nil {
		return nil, errors.New("pipeline: source and reasoner are required")
	}
	registry, err := NewRegistry(opts.Config.RegistrySize)
	if err != nil {
		return nil, fmt.Errorf("failed to create job registry: %w", err)
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New()
	}
	if opts.Catalogue == nil {
		opts.Catalogue = tasks.NewCatalogue()
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = synth.New()
	}
	buffer := opts.Config.ProgressBuffer
	if buffer <= 0 {
		buffer = 256
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:             opts.Config,
		maxOutputTokens: opts.MaxOutputTokens,
		source:          opts.Source,
		classifier:      opts.Classifier,
		catalogue:       opts.Catalogue,
		reasoner:        opts.Reasoner,
		synth:           opts.Synthesizer,
		reporter:        opts.Reporter,
		cache:           opts.Cache,
		notifier:        opts.Notifier,
		archive:         opts.Archive,
		registry:        registry,
		progress:        make(chan model.ProgressEvent, buffer),
		baseCtx:         ctx,
		stop:            stop,
		log:             logger.For("pipeline"),
	}, nil
}

// Progress 进度快照通道，由 ProgressDispatcher 或调用方消费
func (c *Coordinator) Progress() <-chan model.ProgressEvent {
	return c.progress
}

// StartJob 登记任务并在后台执行，立即返回 queued 状态的快照
func (c *Coordinator) StartJob(req *model.AnalysisRequest) (*model.AnalysisJob, error) {
	e, err := c.newEntry("", req)
	if err != nil {
		return nil, err
	}
	snap := e.snapshot()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(c.baseCtx, e)
	}()
	return snap, nil
}

// Execute 同步执行一个任务，返回终态快照；jobID 为空时自动生成
func (c *Coordinator) Execute(ctx context.Context, jobID string, req *model.AnalysisRequest) (*model.AnalysisJob, error) {
	e, err := c.newEntry(jobID, req)
	if err != nil {
		return nil, err
	}
	c.run(ctx, e)
	return e.snapshot(), nil
}

// SubmitBatch 一次登记多个任务，后台按固定窗口并发执行；任一请求无效时全部拒绝
func (c *Coordinator) SubmitBatch(reqs []*model.AnalysisRequest) ([]*model.AnalysisJob, error) {
	for i, req := range reqs {
		if err := validateRequest(req); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	entries := make([]*jobEntry, 0, len(reqs))
	snaps := make([]*model.AnalysisJob, 0, len(reqs))
	for _, req := range reqs {
		e, err := c.newEntry("", req)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		snaps = append(snaps, e.snapshot())
	}

	window := c.cfg.BatchWindow
	if window <= 0 {
		window = 3
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		g := new(errgroup.Group)
		g.SetLimit(window)
		for _, e := range entries {
			e := e
			g.Go(func() error {
				c.run(c.baseCtx, e)
				return nil
			})
		}
		_ = g.Wait()
	}()
	return snaps, nil
}

// GetJob 先查内存表，淘汰后回落到归档
func (c *Coordinator) GetJob(id string) (*model.AnalysisJob, error) {
	if job, ok := c.registry.Get(id); ok {
		return job, nil
	}
	if c.archive != nil {
		job, err := c.archive.GetByID(id)
		if err == nil {
			return job, nil
		}
		c.log.WithFields(logrus.Fields{"job_id": id, "error": err}).Debug("job not found in archive")
	}
	return nil, ErrJobNotFound
}

// Cancel 协作式取消：在下一个阶段或任务边界生效
func (c *Coordinator) Cancel(id string) error {
	e, ok := c.registry.entry(id)
	if !ok {
		if _, err := c.GetJob(id); err == nil {
			return ErrJobFinished
		}
		return ErrJobNotFound
	}
	return e.cancel()
}

// InvalidateCache 删除仓库分支的缓存结果
func (c *Coordinator) InvalidateCache(ctx context.Context, repoURL, branch string) error {
	if c.cache == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CacheTimeout())
	defer cancel()
	return c.cache.Invalidate(ctx, repoURL, branch)
}

// Wait 等待所有后台任务结束
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Shutdown 取消后台任务并等待其在检查点退出
func (c *Coordinator) Shutdown() {
	c.stop()
	c.wg.Wait()
}

func (c *Coordinator) newEntry(jobID string, req *model.AnalysisRequest) (*jobEntry, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if jobID == "" {
		jobID = uuid.NewString()
	}
	normalized := *req
	if normalized.Depth == "" {
		normalized.Depth = model.DepthStandard
	}

	e := &jobEntry{job: model.NewJob(jobID, &normalized)}
	c.registry.put(e)
	c.emit(e.snapshotEvent())
	return e, nil
}

func (e *jobEntry) snapshotEvent() model.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eventLocked()
}

func validateRequest(req *model.AnalysisRequest) error {
	if req == nil || req.RepoURL == "" {
		return fmt.Errorf("%w: repository url is required", ErrInvalidRequest)
	}
	if req.Depth != "" && !req.Depth.Valid() {
		return fmt.Errorf("%w: unknown depth %q", ErrInvalidRequest, req.Depth)
	}
	for _, cat := range req.Categories {
		if !cat.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidRequest, cat)
		}
	}
	return nil
}

// emit 非阻塞推送进度；缓冲区满时丢弃快照
func (c *Coordinator) emit(evt model.ProgressEvent) {
	evt.Timestamp = time.Now()
	select {
	case c.progress <- evt:
	default:
		c.log.WithFields(logrus.Fields{"job_id": evt.JobID, "status": evt.Status}).Warn("progress buffer full, dropping snapshot")
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/cache"
	"github.com/qs3c/repoinsight/internal/classifier"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/notify"
	"github.com/qs3c/repoinsight/internal/reasoning"
	"github.com/qs3c/repoinsight/internal/source"
	"github.com/qs3c/repoinsight/internal/tasks"
)

// run 执行单个任务的全部阶段，任何退出路径都会释放克隆目录
func (c *Coordinator) run(ctx context.Context, e *jobEntry) {
	defer c.registry.settle(e)

	job := e.snapshot()
	log := c.log.WithFields(logrus.Fields{"job_id": job.ID, "repo_url": job.RepoURL})
	start := time.Now()
	e.update(func(j *model.AnalysisJob) { j.StartedAt = &start })

	// 失败处理：记录错误、归档、通知
	handleError := func(stage model.JobStatus, err error) {
		msg := err.Error()
		var cloneErr *source.CloneError
		if errors.As(err, &cloneErr) {
			msg = cloneErr.UserMessage
		}
		now := time.Now()
		e.update(func(j *model.AnalysisJob) {
			j.ErrorMessage = msg
			j.CompletedAt = &now
			j.Usage.ElapsedMillis = now.Sub(start).Milliseconds()
		})
		evt, terr := e.transition(model.StatusFailed, string(stage), 0)
		if terr != nil {
			log.WithError(terr).Error("failed to mark job failed")
			return
		}
		log.WithFields(logrus.Fields{"stage": stage, "error": err}).Warn("analysis failed")
		c.emit(evt)
		c.finish(e, notify.EventFailed)
	}

	checkpoint := func() error {
		if e.isCancelled() {
			return ErrCancelled
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return nil
	}

	// 1. 缓存
	if !job.ForceRefresh && c.cache != nil {
		if entry := c.lookupCache(ctx, job, log); entry != nil {
			now := time.Now()
			result := *entry.Result
			result.Usage.CacheHit = true
			result.Usage.ElapsedMillis = now.Sub(start).Milliseconds()
			e.update(func(j *model.AnalysisJob) {
				j.Commit = entry.Commit
				j.Result = &result
				j.Usage = result.Usage
				j.CompletedAt = &now
			})
			evt, _ := e.transition(model.StatusCompleted, "completed (cached)", progressCompleted)
			c.emit(evt)
			log.WithField("commit", entry.Commit).Info("served analysis from cache")
			c.finish(e, notify.EventCompleted)
			return
		}
	}

	if err := checkpoint(); err != nil {
		handleError(model.StatusQueued, err)
		return
	}

	// 2. 克隆
	c.advance(e, model.StatusCloning, "cloning repository", progressCloning)
	cloneCtx, cancelClone := context.WithTimeout(ctx, c.cfg.CloneTimeout())
	checkout, err := c.source.Clone(cloneCtx, job.RepoURL, job.Branch)
	cancelClone()
	if err != nil {
		handleError(model.StatusCloning, err)
		return
	}
	defer func() {
		if err := c.source.Release(checkout.LocalPath); err != nil {
			log.WithError(err).Warn("failed to release checkout")
		}
	}()
	e.update(func(j *model.AnalysisJob) {
		j.Commit = checkout.CommitHash
		if j.Branch == "" {
			j.Branch = checkout.Branch
		}
	})

	if err := checkpoint(); err != nil {
		handleError(model.StatusCloning, err)
		return
	}

	// 3. 识别
	c.advance(e, model.StatusDetecting, "detecting project type", progressDetecting)
	ws, err := c.detect(ctx, job, checkout, log)
	if err != nil {
		handleError(model.StatusDetecting, err)
		return
	}

	if err := checkpoint(); err != nil {
		handleError(model.StatusDetecting, err)
		return
	}

	// 4. 分析
	c.advance(e, model.StatusAnalyzing, "analyzing", progressAnalyzeStart)
	results, err := c.analyze(ctx, e, job, ws, checkpoint, log)
	if err != nil {
		handleError(model.StatusAnalyzing, err)
		return
	}

	// 5. 汇总
	c.advance(e, model.StatusSynthesizing, "synthesizing results", progressSynthesizing)
	result, err := c.synth.Synthesize(ws.classification, results)
	if err != nil {
		handleError(model.StatusSynthesizing, err)
		return
	}

	if err := checkpoint(); err != nil {
		handleError(model.StatusSynthesizing, err)
		return
	}

	// 6. 生成报告
	c.advance(e, model.StatusGenerating, "generating report", progressGenerating)
	result.Repository = ws.metadata
	if c.reporter != nil {
		ref, err := c.reporter.Generate(ctx, job.ID, ws.metadata, result)
		if err != nil {
			handleError(model.StatusGenerating, err)
			return
		}
		result.Report = ref
	}

	// 7. 完成
	now := time.Now()
	var final *model.AnalysisJob
	e.update(func(j *model.AnalysisJob) {
		j.Usage.ElapsedMillis = now.Sub(start).Milliseconds()
		result.Usage = j.Usage
		j.Result = result
		j.CompletedAt = &now
		final = j.Clone()
	})
	evt, err := e.transition(model.StatusCompleted, "completed", progressCompleted)
	if err != nil {
		log.WithError(err).Error("failed to mark job completed")
		return
	}
	c.emit(evt)

	c.storeCache(ctx, job, final, log)
	log.WithFields(logrus.Fields{
		"type":     result.ProjectType,
		"tasks":    final.Usage.TaskCount,
		"failed":   final.Usage.FailedTasks,
		"tokens":   final.Usage.TokensUsed,
		"elapsed":  time.Duration(final.Usage.ElapsedMillis) * time.Millisecond,
		"findings": len(result.Findings) + len(result.SecurityFindings),
	}).Info("analysis completed")
	c.finish(e, notify.EventCompleted)
}

// advance 进入下一阶段并推送进度
func (c *Coordinator) advance(e *jobEntry, to model.JobStatus, step string, progress int) {
	evt, err := e.transition(to, step, progress)
	if err != nil {
		c.log.WithError(err).Error("unexpected state transition")
		return
	}
	c.emit(evt)
}

// workspace 识别阶段的产物
type workspace struct {
	root           string
	files          []model.FileEntry
	tree           *model.TreeNode
	metadata       *model.RepositoryMetadata
	classification *model.ClassificationResult
}

func (c *Coordinator) detect(ctx context.Context, job *model.AnalysisJob, checkout *model.Checkout, log *logrus.Entry) (*workspace, error) {
	files, err := c.source.ListFiles(checkout.LocalPath, c.cfg.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	tree, err := c.source.DirectoryTree(checkout.LocalPath, c.cfg.TreeMaxDepth, c.cfg.IgnorePatterns)
	if err != nil {
		log.WithError(err).Warn("directory tree unavailable")
	}

	meta, err := c.source.Metadata(ctx, job.RepoURL, checkout, files)
	if err != nil || meta == nil {
		log.WithError(err).Warn("repository metadata unavailable")
		meta = source.BuildMetadata(job.RepoURL, checkout, files)
	}

	cl := c.classifier.Classify(classifier.Input{
		Files: files,
		Tree:  tree,
		Read: func(rel string) (string, error) {
			return c.source.ReadFile(checkout.LocalPath, rel)
		},
	})
	if cl.PrimaryType == model.ProjectUnknown {
		log.Info("project type could not be determined")
	}

	return &workspace{root: checkout.LocalPath, files: files, tree: tree, metadata: meta, classification: cl}, nil
}

// analyze 按类别顺序执行任务链；单个任务失败只记录，不中断
func (c *Coordinator) analyze(ctx context.Context, e *jobEntry, job *model.AnalysisJob, ws *workspace, checkpoint func() error, log *logrus.Entry) ([]model.TaskResult, error) {
	ectx := c.buildContext(e, job, ws)

	categories := tasks.SelectCategories(job.Depth, job.IncludeSecurity, job.Categories)
	planned := map[string]bool{}
	var plan []model.TaskDefinition
	for _, cat := range categories {
		for _, t := range c.catalogue.Plan(ws.classification.PrimaryType, cat, planned) {
			planned[t.ID] = true
			plan = append(plan, t)
		}
	}
	log.WithFields(logrus.Fields{"categories": categories, "tasks": len(plan)}).Info("execution plan ready")

	results := make([]model.TaskResult, 0, len(plan))
	for i, t := range plan {
		if err := checkpoint(); err != nil {
			return nil, err
		}

		res := c.executeTask(ctx, t, ectx, log)
		results = append(results, res)
		if res.Success {
			ectx.AddOutput(t.ID, res.Output)
		}

		progress := progressAnalyzeStart + (progressAnalyzeEnd-progressAnalyzeStart)*(i+1)/len(plan)
		e.update(func(j *model.AnalysisJob) {
			j.Usage.TaskCount++
			j.Usage.TokensUsed += res.TokensUsed
			if !res.Success {
				j.Usage.FailedTasks++
			}
		})
		evt, err := e.transition(model.StatusAnalyzing, "analyzing: "+t.ID, progress)
		if err == nil {
			c.emit(evt)
		}
	}
	return results, nil
}

func (c *Coordinator) buildContext(e *jobEntry, job *model.AnalysisJob, ws *workspace) *tasks.ExecutionContext {
	ectx := tasks.NewExecutionContext()
	_, name := source.RepoName(job.RepoURL)
	if name == "" {
		name = ws.metadata.Name
	}
	ectx.RepoURL = job.RepoURL
	ectx.RepoName = name
	ectx.Branch = ws.metadata.Branch
	ectx.Commit = ws.metadata.Commit
	ectx.Classification = ws.classification
	ectx.Metadata = ws.metadata
	ectx.Files = ws.files
	if ws.tree != nil {
		ectx.Structure = source.RenderTree(ws.tree)
	}

	var filesRead int
	var bytesRead int64
	for _, rel := range source.RankFiles(ws.files, source.RankOptions{Limit: fileLimit(c.cfg, job.Depth), MaxBytes: c.cfg.MaxFileBytes}) {
		content, err := c.source.ReadFile(ws.root, rel)
		if err != nil {
			continue
		}
		ectx.FileContents[rel] = content
		filesRead++
		bytesRead += int64(len(content))
	}
	for _, rel := range selectConfigFiles(ws.files) {
		if content, err := c.source.ReadFile(ws.root, rel); err == nil {
			ectx.ConfigFiles[rel] = content
		}
	}

	e.update(func(j *model.AnalysisJob) {
		j.Usage.FilesAnalyzed = filesRead
		j.Usage.BytesAnalyzed = bytesRead
	})
	return ectx
}

// executeTask 渲染并调用推理服务，超时按失败处理
func (c *Coordinator) executeTask(ctx context.Context, t model.TaskDefinition, ectx *tasks.ExecutionContext, log *logrus.Entry) model.TaskResult {
	prompt := tasks.Render(t, ectx)
	if missing := tasks.MissingRequired(t, ectx); len(missing) > 0 {
		log.WithFields(logrus.Fields{"task_id": t.ID, "missing": missing}).Debug("rendering with missing inputs")
	}

	timeout := c.cfg.TaskTimeout()
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	resp, err := c.reasoner.Complete(tctx, &reasoning.Request{
		TaskID:          t.ID,
		Prompt:          prompt,
		MaxOutputTokens: c.maxOutputTokens,
		Timeout:         timeout,
	})
	res := model.TaskResult{TaskID: t.ID, Category: t.Category, Duration: time.Since(started)}
	if err == nil && tctx.Err() != nil {
		err = tctx.Err()
	}
	if err != nil {
		res.Error = err.Error()
		log.WithFields(logrus.Fields{"task_id": t.ID, "error": err}).Warn("analysis task failed")
		return res
	}

	res.Success = true
	res.Output = resp.Output
	res.TokensUsed = resp.TokensUsed
	log.WithFields(logrus.Fields{"task_id": t.ID, "tokens": resp.TokensUsed, "duration": res.Duration}).Debug("analysis task completed")
	return res
}

func (c *Coordinator) lookupCache(ctx context.Context, job *model.AnalysisJob, log *logrus.Entry) *cache.Entry {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CacheTimeout())
	defer cancel()

	entry, err := c.cache.Get(cctx, job.RepoURL, job.Branch)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.WithError(err).Warn("cache lookup failed")
		}
		return nil
	}
	if entry.Result == nil {
		return nil
	}
	return entry
}

// storeCache 尽力写入缓存，失败不影响任务结果
func (c *Coordinator) storeCache(ctx context.Context, requested, final *model.AnalysisJob, log *logrus.Entry) {
	if c.cache == nil || final.Result == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, c.cfg.CacheTimeout())
	defer cancel()
	if err := c.cache.Put(cctx, requested.RepoURL, requested.Branch, final.Commit, final.Result); err != nil {
		log.WithError(err).Warn("failed to store analysis in cache")
	}
}

// finish 终态后的归档与回调，均为尽力而为
func (c *Coordinator) finish(e *jobEntry, eventType string) {
	job := e.snapshot()
	log := c.log.WithField("job_id", job.ID)

	if c.archive != nil {
		if err := c.archive.Save(job); err != nil {
			log.WithError(err).Warn("failed to archive job")
		}
	}

	if c.notifier == nil || job.CallbackURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.NotifyTimeout())
	defer cancel()
	if err := c.notifier.Notify(ctx, job.CallbackURL, &notify.Event{
		Type:    eventType,
		JobID:   job.ID,
		Payload: eventPayload(job),
	}); err != nil {
		log.WithError(err).Warn("callback delivery failed")
	}
}

func eventPayload(job *model.AnalysisJob) map[string]any {
	payload := map[string]any{
		"status":   job.Status,
		"repo_url": job.RepoURL,
		"branch":   job.Branch,
		"commit":   job.Commit,
		"usage":    job.Usage,
	}
	if job.ErrorMessage != "" {
		payload["error"] = job.ErrorMessage
	}
	if r := job.Result; r != nil {
		payload["project_type"] = r.ProjectType
		payload["findings"] = len(r.Findings)
		payload["security_findings"] = len(r.SecurityFindings)
		if r.Report != nil {
			payload["report"] = r.Report.Location
		}
	}
	return payload
}

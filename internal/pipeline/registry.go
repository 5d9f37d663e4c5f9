package pipeline

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/qs3c/repoinsight/internal/model"
)

// jobEntry 单个任务的可变状态
type jobEntry struct {
	mu        sync.Mutex
	job       *model.AnalysisJob
	cancelled bool
}

func (e *jobEntry) snapshot() *model.AnalysisJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.Clone()
}

func (e *jobEntry) cancel() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.job.Status.Terminal() {
		return ErrJobFinished
	}
	e.cancelled = true
	return nil
}

func (e *jobEntry) isCancelled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled
}

// transition 推进状态；进度只增不减
func (e *jobEntry) transition(to model.JobStatus, step string, progress int) (model.ProgressEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j := e.job
	if j.Status != to && !model.CanTransition(j.Status, to) {
		return model.ProgressEvent{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	if step != "" {
		j.CurrentStep = step
	}
	if progress > j.Progress {
		j.Progress = progress
	}
	return e.eventLocked(), nil
}

// update 在锁内修改任务
func (e *jobEntry) update(fn func(j *model.AnalysisJob)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.job)
}

func (e *jobEntry) eventLocked() model.ProgressEvent {
	return model.ProgressEvent{
		JobID:    e.job.ID,
		UserID:   e.job.UserID,
		Status:   e.job.Status,
		Step:     e.job.CurrentStep,
		Progress: e.job.Progress,
		Error:    e.job.ErrorMessage,
	}
}

// Registry 内存任务表，并发安全。未结束的任务常驻 active，结束并归档后才进入有界的 LRU
type Registry struct {
	mu     sync.RWMutex
	active map[string]*jobEntry
	done   *lru.Cache[string, *jobEntry]
}

func NewRegistry(size int) (*Registry, error) {
	if size <= 0 {
		size = 1024
	}
	done, err := lru.New[string, *jobEntry](size)
	if err != nil {
		return nil, err
	}
	return &Registry{active: map[string]*jobEntry{}, done: done}, nil
}

func (r *Registry) put(e *jobEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[e.job.ID] = e
}

// settle 任务退出执行后移入 LRU，此后才可能被淘汰
func (r *Registry) settle(e *jobEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, e.job.ID)
	r.done.Add(e.job.ID, e)
}

func (r *Registry) entry(id string) (*jobEntry, bool) {
	r.mu.RLock()
	e, ok := r.active[id]
	r.mu.RUnlock()
	if ok {
		return e, true
	}
	return r.done.Get(id)
}

// Get 返回任务快照
func (r *Registry) Get(id string) (*model.AnalysisJob, bool) {
	e, ok := r.entry(id)
	if !ok {
		return nil, false
	}
	return e.snapshot(), true
}

// Len 当前登记的任务数
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active) + r.done.Len()
}

package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

// 各阶段的进度刻度；analyzing 在 progressAnalyzeStart 与 progressAnalyzeEnd 之间按任务数推进
const (
	progressQueued       = 0
	progressCloning      = 5
	progressDetecting    = 15
	progressAnalyzeStart = 20
	progressAnalyzeEnd   = 80
	progressSynthesizing = 85
	progressGenerating   = 92
	progressCompleted    = 100
)

// ProgressSink 进度快照的下游（Redis 发布者、WebSocket hub）
type ProgressSink interface {
	HandleProgress(ctx context.Context, evt model.ProgressEvent) error
}

// ProgressDispatcher 消费进度通道并分发到所有下游
type ProgressDispatcher struct {
	events <-chan model.ProgressEvent
	sinks  []ProgressSink
	log    *logrus.Entry
}

func NewProgressDispatcher(events <-chan model.ProgressEvent, sinks ...ProgressSink) *ProgressDispatcher {
	return &ProgressDispatcher{events: events, sinks: sinks, log: logger.For("progress")}
}

// Run 阻塞直到 ctx 取消或通道关闭
func (d *ProgressDispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-d.events:
			if !ok {
				return
			}
			for _, sink := range d.sinks {
				if err := sink.HandleProgress(ctx, evt); err != nil {
					d.log.WithFields(logrus.Fields{"job_id": evt.JobID, "error": err}).Warn("progress sink failed")
				}
			}
		}
	}
}

// SinkFunc 函数适配为 ProgressSink
type SinkFunc func(ctx context.Context, evt model.ProgressEvent) error

func (f SinkFunc) HandleProgress(ctx context.Context, evt model.ProgressEvent) error {
	return f(ctx, evt)
}

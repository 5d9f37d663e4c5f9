package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/repoinsight/internal/model"
)

const (
	ChannelAnalysisProgress = "repoinsight:analysis_progress"
)

// ProgressMessage 进度消息
type ProgressMessage struct {
	Type      string          `json:"type"`
	UserID    int64           `json:"user_id"`
	JobID     string          `json:"job_id"`
	Status    model.JobStatus `json:"status"`
	Step      string          `json:"step"`
	Progress  int             `json:"progress"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// 阶段对应的消息
var StepMessages = map[model.JobStatus]string{
	model.StatusQueued:       "等待分析",
	model.StatusCloning:      "正在克隆仓库",
	model.StatusDetecting:    "正在识别项目类型",
	model.StatusAnalyzing:    "正在进行 AI 分析",
	model.StatusSynthesizing: "正在汇总分析结果",
	model.StatusGenerating:   "正在生成报告",
	model.StatusCompleted:    "分析完成",
	model.StatusFailed:       "分析失败",
}

// FromEvent 进度快照转为消息
func FromEvent(evt model.ProgressEvent) *ProgressMessage {
	return &ProgressMessage{
		UserID:    evt.UserID,
		JobID:     evt.JobID,
		Status:    evt.Status,
		Step:      evt.Step,
		Progress:  evt.Progress,
		Error:     evt.Error,
		Timestamp: evt.Timestamp,
	}
}

// Event 消息转回进度快照
func (m *ProgressMessage) Event() model.ProgressEvent {
	return model.ProgressEvent{
		JobID:     m.JobID,
		UserID:    m.UserID,
		Status:    m.Status,
		Step:      m.Step,
		Progress:  m.Progress,
		Error:     m.Error,
		Timestamp: m.Timestamp,
	}
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishProgress 发布进度消息
func (p *Publisher) PublishProgress(ctx context.Context, msg *ProgressMessage) error {
	msg.Type = "job_progress"

	// 自动填充消息
	if msg.Message == "" {
		if message, ok := StepMessages[msg.Status]; ok {
			msg.Message = message
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal progress message: %w", err)
	}

	return p.client.Publish(ctx, ChannelAnalysisProgress, data).Err()
}

// HandleProgress 作为进度分发的下游
func (p *Publisher) HandleProgress(ctx context.Context, evt model.ProgressEvent) error {
	return p.PublishProgress(ctx, FromEvent(evt))
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅进度消息，直到 ctx 取消
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*ProgressMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelAnalysisProgress)
	defer pubsub.Close()

	// 等待订阅确认，避免订阅建立前的消息丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var progressMsg ProgressMessage
			if err := json.Unmarshal([]byte(msg.Payload), &progressMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&progressMsg)
		}
	}
}

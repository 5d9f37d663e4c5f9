package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

const (
	EventCompleted = "analysis.completed"
	EventFailed    = "analysis.failed"
)

// Event 回调事件
type Event struct {
	Type      string    `json:"event"`
	JobID     string    `json:"job_id"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// HTTPNotifier 向回调地址投递一次事件，不重试
type HTTPNotifier struct {
	client  *http.Client
	timeout time.Duration
	log     *logrus.Entry
}

func NewHTTPNotifier(timeout time.Duration) *HTTPNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPNotifier{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     logger.For("notify"),
	}
}

// Notify 投递事件；非 2xx 响应视为失败
func (n *HTTPNotifier) Notify(ctx context.Context, callbackURL string, event *Event) error {
	if callbackURL == "" {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-RepoInsight-Event", event.Type)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}

	n.log.WithFields(logrus.Fields{"job_id": event.JobID, "event": event.Type}).Debug("callback delivered")
	return nil
}

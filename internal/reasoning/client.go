package reasoning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/qs3c/repoinsight/config"
)

var (
	ErrEmptyResponse   = errors.New("reasoning: empty response")
	ErrUnknownProvider = errors.New("reasoning: unknown provider")
)

// Request 单个分析任务的调用
type Request struct {
	TaskID          string
	Prompt          string
	MaxOutputTokens int
	Timeout         time.Duration
}

// Response 任务输出与消耗的 token
type Response struct {
	Output     string
	TokensUsed int
}

// Client 外部推理服务。实现需遵守 ctx 的截止时间，超时视为失败
type Client interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// New 按配置创建推理客户端
func New(ctx context.Context, cfg config.ReasoningConfig) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "gemini", "":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	case "ollama":
		return NewOllamaClient(cfg.Host, cfg.Model)
	case "fake":
		return NewFakeClient(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// CountTokens 粗略估算 token 数：按空白分词，无词时按字符数/4
func CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	if words := strings.Fields(text); len(words) > 0 {
		return len(words)
	}
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

// CleanOutput 去掉模型常见的 markdown 代码围栏
func CleanOutput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

package reasoning

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

// GeminiClient genai 官方客户端的薄封装
type GeminiClient struct {
	cli   *genai.Client
	model string
	log   *logrus.Entry
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{Backend: genai.BackendGeminiAPI}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model, log: logger.For("reasoning")}, nil
}

func (g *GeminiClient) Name() string { return "gemini:" + g.model }

func (g *GeminiClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	gen := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if req.MaxOutputTokens > 0 {
		gen.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	g.log.WithFields(logrus.Fields{"task_id": req.TaskID, "bytes": len(req.Prompt)}).Debug("gemini request")
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		gen,
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate %s: %w", req.TaskID, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	out := CleanOutput(resp.Candidates[0].Content.Parts[0].Text)
	if out == "" {
		return nil, ErrEmptyResponse
	}

	tokens := CountTokens(req.Prompt) + CountTokens(out)
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return &Response{Output: out, TokensUsed: tokens}, nil
}

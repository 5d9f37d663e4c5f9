package reasoning

import (
	"context"
	"fmt"
	"net/url"

	"github.com/JexSrs/go-ollama"
	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

const systemPrompt = "You are a senior software engineer reviewing a repository. Answer with the requested JSON only."

// OllamaClient 本地 Ollama 推理服务
type OllamaClient struct {
	client *ollama.Ollama
	model  string
	log    *logrus.Entry
}

func NewOllamaClient(host, model string) (*OllamaClient, error) {
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}
	return &OllamaClient{client: ollama.New(*u), model: model, log: logger.For("reasoning")}, nil
}

func (o *OllamaClient) Name() string { return "ollama:" + o.model }

// generateOptions 组装请求；MaxOutputTokens 映射为 num_predict
func (o *OllamaClient) generateOptions(req *Request) []func(*ollama.GenerateRequestBuilder) {
	opts := []func(*ollama.GenerateRequestBuilder){
		o.client.Generate.WithModel(o.model),
		o.client.Generate.WithSystem(systemPrompt),
		o.client.Generate.WithPrompt(req.Prompt),
	}
	if req.MaxOutputTokens > 0 {
		limit := req.MaxOutputTokens
		opts = append(opts, o.client.Generate.WithOptions(ollama.Options{NumPredict: &limit}))
	}
	return opts
}

type ollamaResult struct {
	out string
	err error
}

// Complete 调用 Generate；该 SDK 不支持 ctx，超时后放弃等待结果
func (o *OllamaClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	done := make(chan ollamaResult, 1)
	go func() {
		res, err := o.client.Generate(o.generateOptions(req)...)
		if err != nil {
			done <- ollamaResult{err: fmt.Errorf("ollama generate %s: %w", req.TaskID, err)}
			return
		}
		if !res.Done {
			done <- ollamaResult{err: fmt.Errorf("ollama generate %s: response not finished", req.TaskID)}
			return
		}
		done <- ollamaResult{out: res.Response}
	}()

	select {
	case <-ctx.Done():
		o.log.WithField("task_id", req.TaskID).Warn("ollama request abandoned")
		return nil, fmt.Errorf("ollama generate %s: %w", req.TaskID, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		out := CleanOutput(r.out)
		if out == "" {
			return nil, ErrEmptyResponse
		}
		return &Response{Output: out, TokensUsed: CountTokens(req.Prompt) + CountTokens(out)}, nil
	}
}

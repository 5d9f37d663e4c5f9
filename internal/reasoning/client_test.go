package reasoning

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/JexSrs/go-ollama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/config"
)

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 0, CountTokens("   "))
	assert.Equal(t, 3, CountTokens("one two three"))
}

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: ` {"a":1} `, want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", in: "```\n[1]\n```\n", want: `[1]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanOutput(tt.in))
		})
	}
}

func TestNew_Providers(t *testing.T) {
	c, err := New(context.Background(), config.ReasoningConfig{Provider: "fake"})
	require.NoError(t, err)
	assert.Equal(t, "fake", c.Name())

	c, err = New(context.Background(), config.ReasoningConfig{Provider: "ollama", Host: "http://localhost:11434", Model: "llama3"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:llama3", c.Name())

	_, err = New(context.Background(), config.ReasoningConfig{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestOllamaClient_GenerateOptions(t *testing.T) {
	o, err := NewOllamaClient("http://localhost:11434", "llama3")
	require.NoError(t, err)

	tests := []struct {
		name      string
		maxTokens int
		want      *int
	}{
		{name: "limit becomes num_predict", maxTokens: 512, want: intPtr(512)},
		{name: "no limit leaves options unset", maxTokens: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ollama.GenerateRequestBuilder
			for _, opt := range o.generateOptions(&Request{TaskID: "t", Prompt: "p", MaxOutputTokens: tt.maxTokens}) {
				opt(&b)
			}
			require.NotNil(t, b.Model)
			assert.Equal(t, "llama3", *b.Model)
			require.NotNil(t, b.Prompt)
			assert.Equal(t, "p", *b.Prompt)
			if tt.want == nil {
				assert.Nil(t, b.Options)
				return
			}
			require.NotNil(t, b.Options)
			assert.Equal(t, tt.want, b.Options.NumPredict)
		})
	}
}

func intPtr(v int) *int { return &v }

func TestFakeClient(t *testing.T) {
	c := NewFakeClient()
	resp, err := c.Complete(context.Background(), &Request{TaskID: "arch_overview", Prompt: "a b c"})
	require.NoError(t, err)
	assert.Equal(t, 3, resp.TokensUsed)

	var arch map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Output), &arch))
	assert.Equal(t, "layered", arch["pattern"])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Complete(ctx, &Request{TaskID: "x"})
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "config.yaml", `
server:
  port: 9090
reasoning:
  provider: ollama
  model: llama3
pipeline:
  batch_window: 5
  ignore_patterns: ["fixtures/**"]
cache:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "ollama", cfg.Reasoning.Provider)
	assert.Equal(t, 4096, cfg.Reasoning.MaxOutputTokens)
	assert.Equal(t, 5, cfg.Pipeline.BatchWindow)
	assert.Equal(t, 30, cfg.Pipeline.StandardFileLimit)
	assert.Equal(t, []string{"fixtures/**"}, cfg.Pipeline.IgnorePatterns)
	assert.False(t, cfg.Cache.Enabled)
}

func TestLoad_PrefersLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", "server:\n  port: 8081\n")
	writeFile(t, dir, "config.local.yaml", "server:\n  port: 8082\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8082, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	assert.Error(t, err)
}

func TestTimeouts(t *testing.T) {
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"clone default", PipelineConfig{}.CloneTimeout(), 120 * time.Second},
		{"clone configured", PipelineConfig{CloneTimeoutSeconds: 30}.CloneTimeout(), 30 * time.Second},
		{"task default", PipelineConfig{}.TaskTimeout(), 90 * time.Second},
		{"cache negative", PipelineConfig{CacheTimeoutSeconds: -1}.CacheTimeout(), 3 * time.Second},
		{"notify default", PipelineConfig{}.NotifyTimeout(), 10 * time.Second},
		{"ttl default", CacheConfig{}.TTL(), 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/source"
	"github.com/qs3c/repoinsight/internal/tasks"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Reasoning.Provider = "fake"
	cfg.Pipeline.ReportDir = t.TempDir()
	return cfg
}

func TestCatalogue_LoadsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  - id: doc_changelog
    category: documentation
    applies_to: any
    order: 5
    template: "Check the changelog of {{repo_name}}."
`), 0o644))

	c, err := Catalogue(config.PipelineConfig{CatalogueFile: path})
	require.NoError(t, err)
	_, ok := c.Lookup(model.ProjectUnknown, "doc_changelog")
	assert.True(t, ok)

	_, err = Catalogue(config.PipelineConfig{CatalogueFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestCatalogue_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaults:
  - id: doc_broken
    category: documentation
    depends_on: [does_not_exist]
    template: "x"
`), 0o644))

	_, err := Catalogue(config.PipelineConfig{CatalogueFile: path})
	assert.ErrorIs(t, err, tasks.ErrInvalidCatalogue)
}

func TestNewCoordinator_RunsWithCacheAndLocalReports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := testConfig(t)
	coord, err := NewCoordinator(context.Background(), cfg, Deps{Redis: rdb, Source: source.NewLocalSource(dir, 1024)})
	require.NoError(t, err)
	t.Cleanup(coord.Shutdown)

	req := &model.AnalysisRequest{RepoURL: "https://github.com/acme/demo", Categories: []model.Category{model.CategoryDocumentation}}
	job, err := coord.Execute(context.Background(), "boot-1", req)
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, job.Status)
	require.NotNil(t, job.Result.Report)
	assert.FileExists(t, filepath.Join(cfg.Pipeline.ReportDir, "reports", "boot-1", "report.json"))

	again, err := coord.Execute(context.Background(), "boot-2", req)
	require.NoError(t, err)
	assert.True(t, again.Usage.CacheHit)
}

func TestNewCoordinator_UnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reasoning.Provider = "carrier-pigeon"
	_, err := NewCoordinator(context.Background(), cfg, Deps{})
	assert.Error(t, err)
}

package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
)

func TestArtifactGenerator_LocalRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	gen := NewArtifactGenerator(store)
	ctx := context.Background()

	meta := &model.RepositoryMetadata{Name: "repo", FileCount: 3}
	result := &model.AnalysisResult{ProjectType: model.ProjectLibrary, Findings: []model.Finding{{Title: "x"}}}

	ref, err := gen.Generate(ctx, "job-1", meta, result)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, ref.Format)
	assert.Greater(t, ref.Size, 0)
	assert.FileExists(t, ref.Location)

	doc, err := gen.Load(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "job-1", doc.JobID)
	assert.Equal(t, "repo", doc.Repository.Name)
	assert.Equal(t, model.ProjectLibrary, doc.Result.ProjectType)
}

func TestArtifactGenerator_NilResult(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = NewArtifactGenerator(store).Generate(context.Background(), "j", nil, nil)
	assert.Error(t, err)
}

func TestLocalStore_Bounds(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Put(ctx, "../escape.json", []byte("{}"), "application/json")
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escape.json"))
	assert.True(t, os.IsNotExist(err))

	_, err = store.Get(ctx, "reports/missing.json")
	assert.ErrorIs(t, err, ErrArtifactNotFound)
}

func TestNewStore_Selection(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.ReportDir = t.TempDir()

	s, err := NewStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, "local", s.Name())

	cfg.S3 = config.S3Config{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "reports"}
	s, err = NewStore(cfg)
	require.NoError(t, err)
	assert.Equal(t, "s3", s.Name())
}

package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

const FormatJSON = "json"

// Document 存储的报告内容
type Document struct {
	JobID       string                    `json:"job_id"`
	GeneratedAt time.Time                 `json:"generated_at"`
	Repository  *model.RepositoryMetadata `json:"repository,omitempty"`
	Result      *model.AnalysisResult     `json:"result"`
}

// ArtifactGenerator 将分析结果序列化并写入存储
type ArtifactGenerator struct {
	store ArtifactStore
	log   *logrus.Entry
}

func NewArtifactGenerator(store ArtifactStore) *ArtifactGenerator {
	return &ArtifactGenerator{store: store, log: logger.For("report")}
}

// Generate 生成报告并返回其位置
func (g *ArtifactGenerator) Generate(ctx context.Context, jobID string, meta *model.RepositoryMetadata, result *model.AnalysisResult) (*model.ReportRef, error) {
	if result == nil {
		return nil, fmt.Errorf("nothing to report for job %s", jobID)
	}

	doc := Document{JobID: jobID, GeneratedAt: time.Now().UTC(), Repository: meta, Result: result}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	key := fmt.Sprintf("reports/%s/report.json", jobID)
	location, err := g.store.Put(ctx, key, data, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}

	g.log.WithFields(logrus.Fields{"job_id": jobID, "store": g.store.Name(), "bytes": len(data)}).Info("report stored")
	return &model.ReportRef{Location: location, Format: FormatJSON, Size: len(data)}, nil
}

// Load 读取已生成的报告
func (g *ArtifactGenerator) Load(ctx context.Context, ref *model.ReportRef) (*Document, error) {
	data, err := g.store.Get(ctx, ref.Location)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &doc, nil
}

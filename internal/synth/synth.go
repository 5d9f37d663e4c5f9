package synth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
	"github.com/qs3c/repoinsight/internal/reasoning"
)

// ErrNoResults 计划非空但没有任何任务成功
var ErrNoResults = errors.New("no successful task results to synthesize")

// Synthesizer 将各类别任务输出合并为一个分析结果
type Synthesizer struct {
	log *logrus.Entry
}

func New() *Synthesizer {
	return &Synthesizer{log: logger.For("synth")}
}

type rawFinding struct {
	Severity       string  `json:"severity"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	File           string  `json:"file"`
	Line           int     `json:"line"`
	Recommendation string  `json:"recommendation"`
	CWE            string  `json:"cwe"`
	OWASP          string  `json:"owasp"`
	CVSS           float64 `json:"cvss"`
}

type rawRecommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// payload 所有类别输出的并集；不同类别只用到其中一部分字段
type payload struct {
	Pattern         string                 `json:"pattern"`
	Confidence      float64                `json:"confidence"`
	Summary         string                 `json:"summary"`
	Layers          []string               `json:"layers"`
	Components      []model.Component      `json:"components"`
	DependencyGraph []model.DependencyEdge `json:"dependency_graph"`
	Findings        []rawFinding           `json:"findings"`
	Recommendations []rawRecommendation    `json:"recommendations"`
}

// Synthesize 按类别规则合并成功的任务结果：架构任务逐步完善架构模型，安全任务进入安全发现，
// 其余类别进入通用发现；任何任务的 recommendations 都会收集。
func (s *Synthesizer) Synthesize(cl *model.ClassificationResult, results []model.TaskResult) (*model.AnalysisResult, error) {
	out := &model.AnalysisResult{
		ProjectType:     model.ProjectUnknown,
		TechStack:       []string{},
		Architecture:    model.ArchitectureModel{Layers: []string{}, Components: []model.Component{}, DependencyGraph: []model.DependencyEdge{}},
		Findings:        []model.Finding{},
		Recommendations: []model.Recommendation{},
		TaskResults:     results,
	}
	if cl != nil {
		out.ProjectType = cl.PrimaryType
		out.Confidence = cl.Confidence
		out.SubTypes = cl.SubTypes
		if cl.TechStack != nil {
			out.TechStack = cl.TechStack
		}
	}

	succeeded := 0
	for _, r := range results {
		if !r.Success {
			continue
		}
		succeeded++

		p, err := parse(r.Output)
		if err != nil {
			s.log.WithFields(logrus.Fields{"task_id": r.TaskID, "error": err}).Warn("task output is not structured, keeping as summary")
			s.mergeText(out, r)
			continue
		}
		switch r.Category {
		case model.CategoryArchitecture:
			mergeArchitecture(&out.Architecture, p)
			for _, f := range p.Findings {
				out.Findings = append(out.Findings, toFinding(r, f))
			}
		case model.CategorySecurity:
			for _, f := range p.Findings {
				out.SecurityFindings = append(out.SecurityFindings, model.SecurityFinding{
					Finding: toFinding(r, f),
					CWE:     f.CWE,
					OWASP:   f.OWASP,
					CVSS:    f.CVSS,
				})
			}
		default:
			for _, f := range p.Findings {
				out.Findings = append(out.Findings, toFinding(r, f))
			}
		}
		for _, rec := range p.Recommendations {
			if rec.Title == "" {
				continue
			}
			out.Recommendations = append(out.Recommendations, model.Recommendation{
				TaskID:      r.TaskID,
				Category:    r.Category,
				Title:       rec.Title,
				Description: rec.Description,
				Priority:    strings.ToLower(rec.Priority),
			})
		}
	}

	if len(results) > 0 && succeeded == 0 {
		return nil, ErrNoResults
	}
	return out, nil
}

// mergeText 非 JSON 输出：架构任务作为摘要，其它类别作为一条 info 发现
func (s *Synthesizer) mergeText(out *model.AnalysisResult, r model.TaskResult) {
	text := strings.TrimSpace(r.Output)
	if text == "" {
		return
	}
	if r.Category == model.CategoryArchitecture {
		if out.Architecture.Summary == "" {
			out.Architecture.Summary = text
		}
		return
	}
	out.Findings = append(out.Findings, model.Finding{
		TaskID:      r.TaskID,
		Category:    r.Category,
		Severity:    model.SeverityInfo,
		Title:       r.TaskID,
		Description: text,
	})
}

func parse(output string) (*payload, error) {
	text := reasoning.CleanOutput(output)
	// 模型有时在 JSON 前后附带说明文字
	if start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}'); start >= 0 && end > start {
		text = text[start : end+1]
	}
	var p payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("decode task output: %w", err)
	}
	return &p, nil
}

// mergeArchitecture 后续架构任务补充或细化模型：同名组件以后者为准，层与依赖边去重追加
func mergeArchitecture(arch *model.ArchitectureModel, p *payload) {
	if p.Pattern != "" {
		arch.Pattern = p.Pattern
	}
	if p.Summary != "" {
		arch.Summary = p.Summary
	}
	if p.Confidence > arch.Confidence {
		arch.Confidence = p.Confidence
	}

	for _, l := range p.Layers {
		if l != "" && !contains(arch.Layers, l) {
			arch.Layers = append(arch.Layers, l)
		}
	}

	for _, c := range p.Components {
		if c.Name == "" {
			continue
		}
		replaced := false
		for i := range arch.Components {
			if arch.Components[i].Name == c.Name {
				arch.Components[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			arch.Components = append(arch.Components, c)
		}
	}

	for _, e := range p.DependencyGraph {
		if e.From == "" || e.To == "" {
			continue
		}
		dup := false
		for _, existing := range arch.DependencyGraph {
			if existing == e {
				dup = true
				break
			}
		}
		if !dup {
			arch.DependencyGraph = append(arch.DependencyGraph, e)
		}
	}
}

func toFinding(r model.TaskResult, f rawFinding) model.Finding {
	title := f.Title
	if title == "" {
		title = r.TaskID
	}
	return model.Finding{
		TaskID:         r.TaskID,
		Category:       r.Category,
		Severity:       model.ParseSeverity(f.Severity),
		Title:          title,
		Description:    f.Description,
		File:           f.File,
		Line:           f.Line,
		Recommendation: f.Recommendation,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

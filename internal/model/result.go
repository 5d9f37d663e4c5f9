package model

import "strings"

// Severity 问题严重等级
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// ParseSeverity maps free-form severity labels onto the closed set; unknown labels are info.
func ParseSeverity(s string) Severity {
	switch Severity(normalizeLabel(s)) {
	case SeverityCritical, "blocker":
		return SeverityCritical
	case SeverityHigh, "major", "error":
		return SeverityHigh
	case SeverityMedium, "moderate", "warning":
		return SeverityMedium
	case SeverityLow, "minor":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

type Component struct {
	Name         string   `json:"name"`
	Type         string   `json:"type,omitempty"`
	Description  string   `json:"description,omitempty"`
	Path         string   `json:"path,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
}

type DependencyEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type ArchitectureModel struct {
	Pattern         string           `json:"pattern,omitempty"`
	Confidence      float64          `json:"confidence"`
	Summary         string           `json:"summary,omitempty"`
	Layers          []string         `json:"layers"`
	Components      []Component      `json:"components"`
	DependencyGraph []DependencyEdge `json:"dependency_graph"`
}

type Finding struct {
	TaskID         string   `json:"task_id"`
	Category       Category `json:"category"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title"`
	Description    string   `json:"description,omitempty"`
	File           string   `json:"file,omitempty"`
	Line           int      `json:"line,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

type SecurityFinding struct {
	Finding
	CWE   string  `json:"cwe,omitempty"`
	OWASP string  `json:"owasp,omitempty"`
	CVSS  float64 `json:"cvss,omitempty"`
}

type Recommendation struct {
	TaskID      string   `json:"task_id"`
	Category    Category `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    string   `json:"priority,omitempty"`
}

// ReportRef 生成阶段产出的报告位置
type ReportRef struct {
	Location string `json:"location"`
	Format   string `json:"format"`
	Size     int    `json:"size"`
}

type AnalysisResult struct {
	ProjectType      ProjectType         `json:"project_type"`
	Confidence       float64             `json:"confidence"`
	TechStack        []string            `json:"tech_stack"`
	SubTypes         []SubProject        `json:"sub_types,omitempty"`
	Architecture     ArchitectureModel   `json:"architecture"`
	Findings         []Finding           `json:"findings"`
	SecurityFindings []SecurityFinding   `json:"security_findings,omitempty"`
	Recommendations  []Recommendation    `json:"recommendations"`
	TaskResults      []TaskResult        `json:"task_results"`
	Usage            Usage               `json:"usage"`
	Repository       *RepositoryMetadata `json:"repository,omitempty"`
	Report           *ReportRef          `json:"report,omitempty"`
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

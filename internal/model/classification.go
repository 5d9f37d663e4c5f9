package model

// ProjectType 仓库主类型
type ProjectType string

const (
	ProjectBackend     ProjectType = "backend"
	ProjectFrontend    ProjectType = "frontend"
	ProjectMobile      ProjectType = "mobile"
	ProjectInfraAsCode ProjectType = "infra-as-code"
	ProjectLibrary     ProjectType = "library"
	ProjectMonorepo    ProjectType = "monorepo"
	ProjectUnknown     ProjectType = "unknown"

	// ProjectAny marks task definitions that apply to every project type.
	ProjectAny ProjectType = "any"
)

// ProjectTypes lists the classifiable types, highest tie-break priority first.
var ProjectTypes = []ProjectType{
	ProjectInfraAsCode,
	ProjectLibrary,
	ProjectMonorepo,
	ProjectMobile,
	ProjectFrontend,
	ProjectBackend,
	ProjectUnknown,
}

// Priority returns the static tie-break rank; lower wins.
func (t ProjectType) Priority() int {
	for i, pt := range ProjectTypes {
		if pt == t {
			return i
		}
	}
	return len(ProjectTypes)
}

func (t ProjectType) Valid() bool {
	return t.Priority() < len(ProjectTypes)
}

// SignalKind 指标来源
type SignalKind string

const (
	SignalFile      SignalKind = "file"
	SignalManifest  SignalKind = "manifest"
	SignalContent   SignalKind = "content"
	SignalDirectory SignalKind = "directory"
)

// Weight is the fixed contribution weight of a signal source.
func (k SignalKind) Weight() float64 {
	switch k {
	case SignalFile:
		return 0.3
	case SignalManifest:
		return 0.4
	case SignalContent:
		return 0.2
	case SignalDirectory:
		return 0.1
	default:
		return 0
	}
}

// Indicator is a single detected signal voting for one project type.
type Indicator struct {
	Kind       SignalKind  `json:"kind"`
	Type       ProjectType `json:"type"`
	Confidence float64     `json:"confidence"`
	Evidence   string      `json:"evidence"`
}

// SubProject 单体仓库中的子项目判定
type SubProject struct {
	Path       string      `json:"path"`
	Type       ProjectType `json:"type"`
	Confidence float64     `json:"confidence"`
	TechStack  []string    `json:"tech_stack,omitempty"`
}

type ClassificationResult struct {
	PrimaryType  ProjectType             `json:"primary_type"`
	Confidence   float64                 `json:"confidence"`
	TechStack    []string                `json:"tech_stack"`
	Indicators   []Indicator             `json:"indicators"`
	Scores       map[ProjectType]float64 `json:"scores,omitempty"`
	Dependencies []string                `json:"dependencies,omitempty"`
	SubTypes     []SubProject            `json:"sub_types,omitempty"`
}

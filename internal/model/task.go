package model

import "time"

// Category 分析任务类别
type Category string

const (
	CategoryArchitecture    Category = "architecture"
	CategorySecurity        Category = "security"
	CategoryPerformance     Category = "performance"
	CategoryDocumentation   Category = "documentation"
	CategoryTesting         Category = "testing"
	CategoryMaintainability Category = "maintainability"
)

// Categories is the fixed execution order of categories within a job.
var Categories = []Category{
	CategoryArchitecture,
	CategorySecurity,
	CategoryPerformance,
	CategoryMaintainability,
	CategoryTesting,
	CategoryDocumentation,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}

// VariableKind decides how a placeholder value is rendered.
type VariableKind string

const (
	VarText       VariableKind = "text"
	VarList       VariableKind = "list"
	VarMap        VariableKind = "map"
	VarTaskOutput VariableKind = "task_output"
)

type TaskVariable struct {
	Name     string       `json:"name" yaml:"name"`
	Kind     VariableKind `json:"kind" yaml:"kind"`
	Required bool         `json:"required" yaml:"required"`
}

// OutputShape 期望的任务输出形态
type OutputShape string

const (
	OutputText       OutputShape = "text"
	OutputStructured OutputShape = "structured"
)

type TaskDefinition struct {
	ID        string         `json:"id" yaml:"id"`
	Category  Category       `json:"category" yaml:"category"`
	AppliesTo ProjectType    `json:"applies_to" yaml:"applies_to"`
	Order     int            `json:"order" yaml:"order"`
	Template  string         `json:"template" yaml:"template"`
	Variables []TaskVariable `json:"variables" yaml:"variables"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on"`
	Output    OutputShape    `json:"output" yaml:"output"`
}

type TaskResult struct {
	TaskID     string        `json:"task_id"`
	Category   Category      `json:"category"`
	Success    bool          `json:"success"`
	Output     string        `json:"output,omitempty"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

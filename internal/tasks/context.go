package tasks

import (
	"strconv"

	"github.com/qs3c/repoinsight/internal/model"
)

// ExecutionContext 单个任务的渲染环境；Outputs 为依赖链，随任务完成逐步追加
type ExecutionContext struct {
	RepoURL        string
	RepoName       string
	Branch         string
	Commit         string
	Classification *model.ClassificationResult
	Metadata       *model.RepositoryMetadata
	Structure      string
	Files          []model.FileEntry
	FileContents   map[string]string
	ConfigFiles    map[string]string
	Outputs        map[string]string
}

func NewExecutionContext() *ExecutionContext {
	return &ExecutionContext{
		FileContents: map[string]string{},
		ConfigFiles:  map[string]string{},
		Outputs:      map[string]string{},
	}
}

// AddOutput 将成功任务的输出加入依赖链
func (c *ExecutionContext) AddOutput(taskID, output string) {
	if c.Outputs == nil {
		c.Outputs = map[string]string{}
	}
	c.Outputs[taskID] = output
}

// Output 返回依赖链中的任务输出
func (c *ExecutionContext) Output(taskID string) (string, bool) {
	out, ok := c.Outputs[taskID]
	return out, ok
}

// Value 按变量名取值；返回值为 string、[]string 或 map[string]string，空值视为不可用
func (c *ExecutionContext) Value(name string) (any, bool) {
	var v any
	switch name {
	case "repo_url":
		v = c.RepoURL
	case "repo_name":
		v = c.RepoName
	case "branch":
		v = c.Branch
	case "commit":
		v = c.Commit
	case "directory_structure":
		v = c.Structure
	case "file_list":
		paths := make([]string, len(c.Files))
		for i, f := range c.Files {
			paths[i] = f.Path
		}
		v = paths
	case "file_contents":
		v = c.FileContents
	case "config_files":
		v = c.ConfigFiles
	case "readme":
		for _, candidate := range []string{"README.md", "README", "README.rst", "readme.md"} {
			if content, ok := c.ConfigFiles[candidate]; ok {
				v = content
				break
			}
		}
	case "project_type", "confidence", "tech_stack", "dependencies", "sub_projects":
		v = c.classificationValue(name)
	case "languages", "description", "file_count", "total_bytes":
		v = c.metadataValue(name)
	default:
		if out, ok := c.Outputs[name]; ok {
			v = out
		}
	}
	return v, !isEmpty(v)
}

func (c *ExecutionContext) classificationValue(name string) any {
	cl := c.Classification
	if cl == nil {
		return nil
	}
	switch name {
	case "project_type":
		return string(cl.PrimaryType)
	case "confidence":
		return strconv.FormatFloat(cl.Confidence, 'f', 2, 64)
	case "tech_stack":
		return cl.TechStack
	case "dependencies":
		return cl.Dependencies
	case "sub_projects":
		subs := make([]string, len(cl.SubTypes))
		for i, s := range cl.SubTypes {
			subs[i] = s.Path + " (" + string(s.Type) + ")"
		}
		return subs
	}
	return nil
}

func (c *ExecutionContext) metadataValue(name string) any {
	m := c.Metadata
	if m == nil {
		return nil
	}
	switch name {
	case "languages":
		langs := make(map[string]string, len(m.Languages))
		for lang, n := range m.Languages {
			langs[lang] = strconv.Itoa(n) + " files"
		}
		return langs
	case "description":
		return m.Description
	case "file_count":
		return strconv.Itoa(m.FileCount)
	case "total_bytes":
		return strconv.FormatInt(m.TotalBytes, 10)
	}
	return nil
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case map[string]string:
		return len(t) == 0
	default:
		return false
	}
}

package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/qs3c/repoinsight/internal/model"
)

func sampleContext() *ExecutionContext {
	ctx := NewExecutionContext()
	ctx.RepoName = "demo"
	ctx.Classification = &model.ClassificationResult{
		PrimaryType: model.ProjectBackend,
		Confidence:  0.8123,
		TechStack:   []string{"go", "gin"},
	}
	ctx.FileContents = map[string]string{"main.go": "package main", "a/b.go": "package a"}
	ctx.Files = []model.FileEntry{{Path: "main.go"}, {Path: "a/b.go"}}
	return ctx
}

func TestRender_Variables(t *testing.T) {
	task := model.TaskDefinition{
		ID:        "t",
		Template:  "Repo {{repo_name}} is {{ project_type }} ({{confidence}}) using {{tech_stack}}.",
		Variables: []model.TaskVariable{{Name: "tech_stack", Kind: model.VarList}},
	}
	assert.Equal(t, "Repo demo is backend (0.81) using go, gin.", Render(task, sampleContext()))
}

func TestRender_MapBlocksSortedByKey(t *testing.T) {
	task := model.TaskDefinition{
		ID:        "t",
		Template:  "{{file_contents}}",
		Variables: []model.TaskVariable{{Name: "file_contents", Kind: model.VarMap}},
	}
	assert.Equal(t, "### a/b.go\npackage a\n\n### main.go\npackage main", Render(task, sampleContext()))
}

func TestRender_MissingVariable(t *testing.T) {
	task := model.TaskDefinition{ID: "t", Template: "Readme: {{readme}} / {{nonexistent}}"}
	out := Render(task, sampleContext())
	assert.Equal(t, "Readme: "+NotAvailable+" / "+NotAvailable, out)
	assert.NotEmpty(t, out)
}

func TestRender_TaskOutputs(t *testing.T) {
	ctx := sampleContext()
	ctx.AddOutput("arch_overview", `{"pattern":"layered"}`)

	task := model.TaskDefinition{
		ID:        "t",
		Template:  "{{output:arch_overview}}|{{output:perf_hotspots}}|{{arch_overview}}",
		Variables: []model.TaskVariable{{Name: "arch_overview", Kind: model.VarTaskOutput}},
	}
	want := "{\n  \"pattern\": \"layered\"\n}|" + MissingOutput("perf_hotspots") + "|{\n  \"pattern\": \"layered\"\n}"
	assert.Equal(t, want, Render(task, ctx))
}

func TestRender_InsertedContentIsNotExpanded(t *testing.T) {
	ctx := sampleContext()
	ctx.FileContents = map[string]string{"tpl.txt": "{{repo_name}} {{output:x}}"}
	task := model.TaskDefinition{ID: "t", Template: "{{file_contents}}", Variables: []model.TaskVariable{{Name: "file_contents", Kind: model.VarMap}}}

	assert.Equal(t, "### tpl.txt\n{{repo_name}} {{output:x}}", Render(task, ctx))
}

func TestMissingRequired(t *testing.T) {
	task := model.TaskDefinition{
		ID:       "t",
		Template: "",
		Variables: []model.TaskVariable{
			{Name: "repo_name", Kind: model.VarText, Required: true},
			{Name: "readme", Kind: model.VarText, Required: true},
			{Name: "arch_overview", Kind: model.VarTaskOutput, Required: true},
			{Name: "directory_structure", Kind: model.VarText},
		},
	}
	assert.Equal(t, []string{"readme", "arch_overview"}, MissingRequired(task, sampleContext()))
}

func TestExecutionContext_Metadata(t *testing.T) {
	ctx := NewExecutionContext()
	ctx.Metadata = &model.RepositoryMetadata{Languages: map[string]int{"Go": 3}}
	v, ok := ctx.Value("languages")
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"Go": "3 files"}, v)

	_, ok = ctx.Value("description")
	assert.False(t, ok)
}

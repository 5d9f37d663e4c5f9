package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/internal/model"
)

func TestBuiltinCatalogueIsAcyclic(t *testing.T) {
	c := NewCatalogue()
	for _, pt := range model.ProjectTypes {
		assert.Nil(t, FindCycle(c.allTasks(pt)), pt)
	}
}

func TestCatalogue_GetTasksMergesOverrides(t *testing.T) {
	c := NewCatalogue()

	generic := c.GetTasks(model.ProjectUnknown, model.CategoryPerformance)
	assert.Equal(t, []string{"perf_hotspots"}, ids(generic))

	backend := c.GetTasks(model.ProjectBackend, model.CategoryPerformance)
	assert.Equal(t, []string{"perf_hotspots", "perf_database"}, ids(backend))

	arch := c.GetTasks(model.ProjectBackend, model.CategoryArchitecture)
	require.Equal(t, []string{"arch_overview", "arch_components"}, ids(arch))
	assert.Contains(t, arch[0].Template, "service architecture of the backend")
	assert.Equal(t, model.ProjectBackend, arch[0].AppliesTo)
}

func TestCatalogue_PlanPullsCrossCategoryDependencies(t *testing.T) {
	c := NewCatalogue()

	plan := c.Plan(model.ProjectBackend, model.CategoryPerformance, nil)
	assert.Equal(t, []string{"arch_overview", "arch_components", "perf_hotspots", "perf_database"}, ids(plan))

	done := map[string]bool{"arch_overview": true, "arch_components": true}
	plan = c.Plan(model.ProjectBackend, model.CategoryPerformance, done)
	assert.Equal(t, []string{"perf_hotspots", "perf_database"}, ids(plan))
}

func TestCatalogue_LoadOverrides(t *testing.T) {
	c := NewCatalogue()
	err := c.Load([]byte(`
overrides:
  backend:
    - id: sec_api_auth
      category: security
      order: 5
      depends_on: [sec_vulnerabilities]
      output: structured
      template: "Check auth of {{repo_name}}"
defaults:
  - id: doc_quality
    category: documentation
    order: 1
    template: "Docs for {{repo_name}}"
`))
	require.NoError(t, err)

	sec := c.GetTasks(model.ProjectBackend, model.CategorySecurity)
	assert.Equal(t, []string{"sec_vulnerabilities", "sec_secrets", "sec_api_auth"}, ids(sec))

	doc := c.GetTasks(model.ProjectUnknown, model.CategoryDocumentation)
	require.Len(t, doc, 1)
	assert.Equal(t, "Docs for {{repo_name}}", doc[0].Template)
	assert.Equal(t, model.ProjectAny, doc[0].AppliesTo)
}

func TestCatalogue_LoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "cycle",
			yaml: `
defaults:
  - {id: a, category: testing, template: x, depends_on: [b]}
  - {id: b, category: testing, template: y, depends_on: [a]}
`,
		},
		{
			name: "unknown dependency",
			yaml: `
defaults:
  - {id: a, category: testing, template: x, depends_on: [missing]}
`,
		},
		{
			name: "unknown category",
			yaml: `
defaults:
  - {id: a, category: fun, template: x}
`,
		},
		{
			name: "empty template",
			yaml: `
defaults:
  - {id: a, category: testing}
`,
		},
		{
			name: "unknown project type",
			yaml: `
overrides:
  desktop:
    - {id: a, category: testing, template: x}
`,
		},
		{
			name: "malformed yaml",
			yaml: "defaults: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalogue()
			before := ids(c.GetTasks(model.ProjectUnknown, model.CategoryTesting))

			err := c.Load([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidCatalogue)
			assert.Equal(t, before, ids(c.GetTasks(model.ProjectUnknown, model.CategoryTesting)))
		})
	}
}

func TestCatalogue_LoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte("defaults:\n  - {id: test_e2e, category: testing, order: 2, template: e2e}\n"), 0644))

	c := NewCatalogue()
	require.NoError(t, c.LoadFile(path))
	assert.Equal(t, []string{"test_coverage", "test_e2e"}, ids(c.GetTasks(model.ProjectFrontend, model.CategoryTesting)))

	assert.Error(t, c.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestSelectCategories(t *testing.T) {
	tests := []struct {
		name     string
		depth    model.Depth
		security bool
		explicit []model.Category
		want     []model.Category
	}{
		{name: "quick", depth: model.DepthQuick, security: true, want: []model.Category{model.CategoryArchitecture, model.CategorySecurity}},
		{name: "quick without security", depth: model.DepthQuick, security: false, want: []model.Category{model.CategoryArchitecture}},
		{name: "standard", depth: model.DepthStandard, security: true, want: []model.Category{model.CategoryArchitecture, model.CategorySecurity, model.CategoryPerformance, model.CategoryMaintainability}},
		{name: "deep", depth: model.DepthDeep, security: true, want: model.Categories},
		{name: "unknown depth falls back to standard", depth: "extreme", security: false, want: []model.Category{model.CategoryArchitecture, model.CategoryPerformance, model.CategoryMaintainability}},
		{name: "explicit list in fixed order", depth: model.DepthQuick, explicit: []model.Category{model.CategoryTesting, model.CategoryArchitecture, model.CategoryTesting}, want: []model.Category{model.CategoryArchitecture, model.CategoryTesting}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectCategories(tt.depth, tt.security, tt.explicit))
		})
	}
}

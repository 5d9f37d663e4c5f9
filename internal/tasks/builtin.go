package tasks

import "github.com/qs3c/repoinsight/internal/model"

const findingsContract = `
Respond with JSON only:
{"findings":[{"severity":"critical|high|medium|low|info","title":"","description":"","file":"","line":0,"recommendation":""}],
 "recommendations":[{"title":"","description":"","priority":"high|medium|low"}]}`

const securityContract = `
Respond with JSON only:
{"findings":[{"severity":"critical|high|medium|low|info","title":"","description":"","file":"","line":0,"recommendation":"","cwe":"CWE-000","owasp":"A00:2021","cvss":0.0}],
 "recommendations":[{"title":"","description":"","priority":"high|medium|low"}]}`

const architectureContract = `
Respond with JSON only:
{"pattern":"","confidence":0.0,"summary":"","layers":[""],
 "components":[{"name":"","type":"","description":"","path":"","dependencies":[""]}],
 "dependency_graph":[{"from":"","to":""}],
 "recommendations":[{"title":"","description":"","priority":"high|medium|low"}]}`

func textVar(name string, required bool) model.TaskVariable {
	return model.TaskVariable{Name: name, Kind: model.VarText, Required: required}
}

func listVar(name string) model.TaskVariable {
	return model.TaskVariable{Name: name, Kind: model.VarList}
}

func mapVar(name string, required bool) model.TaskVariable {
	return model.TaskVariable{Name: name, Kind: model.VarMap, Required: required}
}

func outputVar(taskID string) model.TaskVariable {
	return model.TaskVariable{Name: taskID, Kind: model.VarTaskOutput}
}

var builtinDefaults = []model.TaskDefinition{
	{
		ID:        "arch_overview",
		Category:  model.CategoryArchitecture,
		AppliesTo: model.ProjectAny,
		Order:     1,
		Variables: []model.TaskVariable{textVar("repo_name", true), textVar("project_type", true), listVar("tech_stack"), textVar("directory_structure", true), mapVar("file_contents", true)},
		Output:    model.OutputStructured,
		Template: `Identify the overall architecture of the repository {{repo_name}}.
Detected project type: {{project_type}} (confidence {{confidence}}).
Technology stack: {{tech_stack}}.

Directory structure:
{{directory_structure}}

Key files:
{{file_contents}}
` + architectureContract,
	},
	{
		ID:        "arch_components",
		Category:  model.CategoryArchitecture,
		AppliesTo: model.ProjectAny,
		Order:     2,
		DependsOn: []string{"arch_overview"},
		Variables: []model.TaskVariable{outputVar("arch_overview"), mapVar("file_contents", true)},
		Output:    model.OutputStructured,
		Template: `Refine the component model of {{repo_name}}. Name every component, its responsibility and its
dependencies on other components.

Architecture overview so far:
{{output:arch_overview}}

Source excerpts:
{{file_contents}}
` + architectureContract,
	},
	{
		ID:        "sec_vulnerabilities",
		Category:  model.CategorySecurity,
		AppliesTo: model.ProjectAny,
		Order:     1,
		DependsOn: []string{"arch_overview"},
		Variables: []model.TaskVariable{mapVar("file_contents", true), mapVar("config_files", false), listVar("dependencies")},
		Output:    model.OutputStructured,
		Template: `Review {{repo_name}} ({{project_type}}) for security vulnerabilities: injection, broken
authentication, sensitive data exposure, insecure deserialization, SSRF and unsafe dependencies.

Architecture context:
{{output:arch_overview}}

Declared dependencies: {{dependencies}}

Configuration:
{{config_files}}

Source:
{{file_contents}}
` + securityContract,
	},
	{
		ID:        "sec_secrets",
		Category:  model.CategorySecurity,
		AppliesTo: model.ProjectAny,
		Order:     2,
		Variables: []model.TaskVariable{mapVar("config_files", false), listVar("file_list")},
		Output:    model.OutputStructured,
		Template: `Look for hard-coded secrets, credentials, tokens and private keys, and for configuration that
weakens security (debug flags, permissive CORS, disabled TLS verification).

Files: {{file_list}}

Configuration:
{{config_files}}
` + securityContract,
	},
	{
		ID:        "perf_hotspots",
		Category:  model.CategoryPerformance,
		AppliesTo: model.ProjectAny,
		Order:     1,
		DependsOn: []string{"arch_components"},
		Variables: []model.TaskVariable{mapVar("file_contents", true)},
		Output:    model.OutputStructured,
		Template: `Find performance problems in {{repo_name}}: N+1 queries, blocking I/O on hot paths, unbounded
allocations, missing caching and inefficient algorithms.

Components:
{{output:arch_components}}

Source:
{{file_contents}}
` + findingsContract,
	},
	{
		ID:        "maint_code_quality",
		Category:  model.CategoryMaintainability,
		AppliesTo: model.ProjectAny,
		Order:     1,
		Variables: []model.TaskVariable{mapVar("file_contents", true), mapVar("languages", false)},
		Output:    model.OutputStructured,
		Template: `Assess code quality of {{repo_name}}: duplication, long functions, unclear naming, error handling
and module boundaries.

Languages:
{{languages}}

Source:
{{file_contents}}
` + findingsContract,
	},
	{
		ID:        "maint_tech_debt",
		Category:  model.CategoryMaintainability,
		AppliesTo: model.ProjectAny,
		Order:     2,
		DependsOn: []string{"maint_code_quality", "arch_overview"},
		Variables: []model.TaskVariable{outputVar("maint_code_quality"), outputVar("arch_overview")},
		Output:    model.OutputStructured,
		Template: `Summarise the technical debt of {{repo_name}} and order the fixes by payoff.

Architecture:
{{output:arch_overview}}

Code quality review:
{{output:maint_code_quality}}
` + findingsContract,
	},
	{
		ID:        "test_coverage",
		Category:  model.CategoryTesting,
		AppliesTo: model.ProjectAny,
		Order:     1,
		Variables: []model.TaskVariable{listVar("file_list"), listVar("tech_stack")},
		Output:    model.OutputStructured,
		Template: `Evaluate the test strategy of {{repo_name}}. Stack: {{tech_stack}}.
Identify untested areas, missing test types (unit, integration, end-to-end) and flaky patterns.

Files:
{{file_list}}
` + findingsContract,
	},
	{
		ID:        "doc_quality",
		Category:  model.CategoryDocumentation,
		AppliesTo: model.ProjectAny,
		Order:     1,
		Variables: []model.TaskVariable{textVar("readme", false), textVar("directory_structure", false)},
		Output:    model.OutputStructured,
		Template: `Review the documentation of {{repo_name}}: setup instructions, architecture notes, API docs and
contribution guidelines.

README:
{{readme}}

Structure:
{{directory_structure}}
` + findingsContract,
	},
}

var builtinOverrides = map[model.ProjectType][]model.TaskDefinition{
	model.ProjectBackend: {
		{
			ID:        "arch_overview",
			Category:  model.CategoryArchitecture,
			Order:     1,
			Variables: []model.TaskVariable{textVar("repo_name", true), listVar("tech_stack"), textVar("directory_structure", true), mapVar("file_contents", true)},
			Output:    model.OutputStructured,
			Template: `Identify the service architecture of the backend {{repo_name}}: transport layer, handlers,
business services, persistence and external integrations. Stack: {{tech_stack}}.

Directory structure:
{{directory_structure}}

Key files:
{{file_contents}}
` + architectureContract,
		},
		{
			ID:        "perf_database",
			Category:  model.CategoryPerformance,
			Order:     2,
			DependsOn: []string{"perf_hotspots"},
			Variables: []model.TaskVariable{mapVar("file_contents", true)},
			Output:    model.OutputStructured,
			Template: `Inspect database access in {{repo_name}}: missing indexes, unbounded queries, connection pool
usage and transaction scope.

Earlier performance review:
{{output:perf_hotspots}}

Source:
{{file_contents}}
` + findingsContract,
		},
	},
	model.ProjectFrontend: {
		{
			ID:        "arch_state_management",
			Category:  model.CategoryArchitecture,
			Order:     3,
			DependsOn: []string{"arch_overview"},
			Output:    model.OutputStructured,
			Template: `Describe how {{repo_name}} manages UI state, routing and data fetching.

Overview:
{{output:arch_overview}}

Source:
{{file_contents}}
` + architectureContract,
		},
		{
			ID:        "perf_bundle",
			Category:  model.CategoryPerformance,
			Order:     2,
			Variables: []model.TaskVariable{listVar("dependencies"), mapVar("config_files", false)},
			Output:    model.OutputStructured,
			Template: `Assess bundle size and rendering performance of {{repo_name}}. Dependencies: {{dependencies}}.

Build configuration:
{{config_files}}
` + findingsContract,
		},
	},
	model.ProjectMobile: {
		{
			ID:        "sec_mobile_storage",
			Category:  model.CategorySecurity,
			Order:     3,
			DependsOn: []string{"sec_vulnerabilities"},
			Output:    model.OutputStructured,
			Template: `Check {{repo_name}} for insecure local storage, missing certificate pinning, exported
components and excessive permissions.

Previous findings:
{{output:sec_vulnerabilities}}

Source:
{{file_contents}}
` + securityContract,
		},
	},
	model.ProjectInfraAsCode: {
		{
			ID:        "sec_vulnerabilities",
			Category:  model.CategorySecurity,
			Order:     1,
			DependsOn: []string{"arch_overview"},
			Variables: []model.TaskVariable{mapVar("file_contents", true)},
			Output:    model.OutputStructured,
			Template: `Review the infrastructure definitions in {{repo_name}} for misconfiguration: public buckets,
open security groups, missing encryption, wildcard IAM policies and unpinned module versions.

Resources overview:
{{output:arch_overview}}

Definitions:
{{file_contents}}
` + securityContract,
		},
		{
			ID:        "arch_resources",
			Category:  model.CategoryArchitecture,
			Order:     2,
			DependsOn: []string{"arch_overview"},
			Output:    model.OutputStructured,
			Template: `List the provisioned resources of {{repo_name}} grouped by environment and module, and the
dependencies between them.

Overview:
{{output:arch_overview}}

Definitions:
{{file_contents}}
` + architectureContract,
		},
	},
	model.ProjectLibrary: {
		{
			ID:        "doc_api_reference",
			Category:  model.CategoryDocumentation,
			Order:     2,
			DependsOn: []string{"arch_components"},
			Output:    model.OutputStructured,
			Template: `Check that the public API of {{repo_name}} is documented: exported symbols, examples,
versioning and changelog.

Components:
{{output:arch_components}}

README:
{{readme}}
` + findingsContract,
		},
		{
			ID:        "maint_api_stability",
			Category:  model.CategoryMaintainability,
			Order:     3,
			DependsOn: []string{"arch_components"},
			Output:    model.OutputStructured,
			Template: `Assess API stability of {{repo_name}}: breaking-change risk, semantic versioning discipline
and deprecation handling.

Components:
{{output:arch_components}}
` + findingsContract,
		},
	},
	model.ProjectMonorepo: {
		{
			ID:        "arch_workspace_boundaries",
			Category:  model.CategoryArchitecture,
			Order:     3,
			DependsOn: []string{"arch_overview"},
			Variables: []model.TaskVariable{listVar("sub_projects")},
			Output:    model.OutputStructured,
			Template: `Describe the workspace layout of {{repo_name}}. Sub-projects: {{sub_projects}}.
Explain shared packages, ownership boundaries and cross-package dependencies.

Overview:
{{output:arch_overview}}
` + architectureContract,
		},
	},
}

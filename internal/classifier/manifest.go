package classifier

import (
	"encoding/json"
	"path"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/qs3c/repoinsight/internal/model"
)

// depRule 依赖名命中后投票；同一规则只计一次
type depRule struct {
	Deps       []string
	Type       model.ProjectType
	Confidence float64
}

var npmDepRules = []depRule{
	{[]string{"react-native", "expo", "@capacitor/core", "@ionic/core", "@ionic/react", "@ionic/angular", "nativescript"}, model.ProjectMobile, 0.9},
	{[]string{"react", "react-dom", "vue", "@angular/core", "svelte", "next", "nuxt", "solid-js", "preact"}, model.ProjectFrontend, 0.8},
	{[]string{"express", "koa", "fastify", "@nestjs/core", "@hapi/hapi", "apollo-server", "@apollo/server", "hono"}, model.ProjectBackend, 0.8},
	{[]string{"aws-cdk-lib", "cdktf", "@pulumi/pulumi"}, model.ProjectInfraAsCode, 0.9},
}

var goDepRules = []depRule{
	{[]string{"github.com/gin-gonic/gin", "github.com/labstack/echo", "github.com/gofiber/fiber", "github.com/go-chi/chi", "github.com/gorilla/mux", "google.golang.org/grpc", "connectrpc.com/connect", "gorm.io/gorm"}, model.ProjectBackend, 0.8},
	{[]string{"github.com/pulumi/pulumi/sdk", "github.com/hashicorp/terraform-plugin-sdk", "github.com/hashicorp/terraform-plugin-framework", "github.com/aws/aws-cdk-go"}, model.ProjectInfraAsCode, 0.8},
	{[]string{"golang.org/x/mobile", "fyne.io/fyne"}, model.ProjectMobile, 0.6},
}

var pythonDepRules = []depRule{
	{[]string{"django", "flask", "fastapi", "tornado", "aiohttp", "sanic", "starlette", "pyramid", "celery"}, model.ProjectBackend, 0.8},
	{[]string{"pulumi", "aws-cdk-lib", "troposphere", "ansible"}, model.ProjectInfraAsCode, 0.8},
	{[]string{"kivy", "beeware", "toga"}, model.ProjectMobile, 0.7},
}

var rustDepRules = []depRule{
	{[]string{"actix-web", "axum", "rocket", "warp", "tide", "poem"}, model.ProjectBackend, 0.8},
	{[]string{"yew", "leptos", "dioxus", "sycamore"}, model.ProjectFrontend, 0.8},
}

var rubyDepRules = []depRule{
	{[]string{"rails", "sinatra", "hanami", "grape"}, model.ProjectBackend, 0.8},
}

var phpDepRules = []depRule{
	{[]string{"laravel/framework", "symfony/framework-bundle", "slim/slim"}, model.ProjectBackend, 0.8},
}

// manifestParser 依赖清单解析器；MaxDepth 为允许的目录深度，0 表示仅根目录
type manifestParser struct {
	Name     string
	MaxDepth int
	Parse    func(content string, s *scan)
}

var manifestParsers = []manifestParser{
	{"package.json", 0, parsePackageJSON},
	{"go.mod", 0, parseGoMod},
	{"requirements.txt", 0, parseRequirements},
	{"pyproject.toml", 0, parsePyProject},
	{"Cargo.toml", 0, parseCargo},
	{"pubspec.yaml", 0, parsePubspec},
	{"build.gradle", 2, parseGradle},
	{"build.gradle.kts", 2, parseGradle},
	{"pom.xml", 0, parsePom},
	{"Gemfile", 0, parseGemfile},
	{"composer.json", 0, parseComposer},
	{"Chart.yaml", 3, parseChart},
}

func (p manifestParser) matches(rel string) bool {
	return path.Base(rel) == p.Name && strings.Count(rel, "/") <= p.MaxDepth
}

func matchDep(name, pattern string) bool {
	return name == pattern || strings.HasPrefix(name, pattern+"/")
}

// applyDepRules 对依赖集合逐条规则投票，返回命中的规则类型
func applyDepRules(s *scan, source string, deps []string, rules []depRule) map[model.ProjectType]bool {
	hit := map[model.ProjectType]bool{}
	for _, r := range rules {
		for _, want := range r.Deps {
			// react-native 项目同时依赖 react，此时 react 不再投前端票
			if r.Type == model.ProjectFrontend && hit[model.ProjectMobile] && (want == "react" || want == "react-dom") {
				continue
			}
			matched := ""
			for _, d := range deps {
				if matchDep(d, want) {
					matched = d
					break
				}
			}
			if matched != "" {
				s.vote(model.SignalManifest, r.Type, r.Confidence, source+": "+matched)
				hit[r.Type] = true
				break
			}
		}
	}
	return hit
}

type packageJSON struct {
	Private          bool              `json:"private"`
	Main             string            `json:"main"`
	Module           string            `json:"module"`
	Types            string            `json:"types"`
	Exports          json.RawMessage   `json:"exports"`
	Files            []string          `json:"files"`
	Workspaces       json.RawMessage   `json:"workspaces"`
	Dependencies     map[string]string `json:"dependencies"`
	DevDependencies  map[string]string `json:"devDependencies"`
	PeerDependencies map[string]string `json:"peerDependencies"`
}

func parsePackageJSON(content string, s *scan) {
	var pkg packageJSON
	if err := json.Unmarshal([]byte(content), &pkg); err != nil {
		return
	}
	deps := s.addDeps(keys(pkg.Dependencies), keys(pkg.PeerDependencies))
	s.addDeps(keys(pkg.DevDependencies))
	applyDepRules(s, "package.json", deps, npmDepRules)

	if len(pkg.Workspaces) > 0 && string(pkg.Workspaces) != "null" {
		s.vote(model.SignalManifest, model.ProjectMonorepo, 0.9, "package.json: workspaces")
	}
	entry := pkg.Main != "" || pkg.Module != "" || pkg.Types != "" || len(pkg.Exports) > 0
	if !pkg.Private && (len(pkg.PeerDependencies) > 0 || (len(pkg.Files) > 0 && entry)) {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.7, "package.json: publishable package")
	}
}

func parseGoMod(content string, s *scan) {
	var deps []string
	inBlock := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "//"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			deps = append(deps, strings.Fields(line)[0])
		case strings.HasPrefix(line, "require "):
			if f := strings.Fields(line); len(f) >= 2 {
				deps = append(deps, f[1])
			}
		}
	}
	s.addDeps(deps)
	applyDepRules(s, "go.mod", deps, goDepRules)

	if !s.hasFile("main.go") && !s.hasPrefix("cmd/") {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.5, "go.mod: no main package")
	}
}

var requirementSplit = regexp.MustCompile(`[\s=<>!~\[;@]`)

func pythonDepName(spec string) string {
	spec = strings.TrimSpace(spec)
	if spec == "" || strings.HasPrefix(spec, "#") || strings.HasPrefix(spec, "-") {
		return ""
	}
	return strings.ToLower(requirementSplit.Split(spec, 2)[0])
}

func parseRequirements(content string, s *scan) {
	var deps []string
	for _, line := range strings.Split(content, "\n") {
		if name := pythonDepName(line); name != "" {
			deps = append(deps, name)
		}
	}
	s.addDeps(deps)
	applyDepRules(s, "requirements.txt", deps, pythonDepRules)
}

type pyProject struct {
	BuildSystem map[string]any `toml:"build-system"`
	Project     struct {
		Name         string   `toml:"name"`
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
	Tool struct {
		Poetry struct {
			Name         string         `toml:"name"`
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"poetry"`
	} `toml:"tool"`
}

func parsePyProject(content string, s *scan) {
	var py pyProject
	if err := toml.Unmarshal([]byte(content), &py); err != nil {
		return
	}
	var deps []string
	for _, d := range py.Project.Dependencies {
		if name := pythonDepName(d); name != "" {
			deps = append(deps, name)
		}
	}
	for name := range py.Tool.Poetry.Dependencies {
		if name != "python" {
			deps = append(deps, strings.ToLower(name))
		}
	}
	s.addDeps(deps)
	hit := applyDepRules(s, "pyproject.toml", deps, pythonDepRules)

	named := py.Project.Name != "" || py.Tool.Poetry.Name != ""
	if named && len(py.BuildSystem) > 0 && len(hit) == 0 {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.6, "pyproject.toml: distributable package")
	}
}

type cargoManifest struct {
	Lib             map[string]any `toml:"lib"`
	Workspace       map[string]any `toml:"workspace"`
	Dependencies    map[string]any `toml:"dependencies"`
	DevDependencies map[string]any `toml:"dev-dependencies"`
}

func parseCargo(content string, s *scan) {
	var cargo cargoManifest
	if err := toml.Unmarshal([]byte(content), &cargo); err != nil {
		return
	}
	deps := s.addDeps(keys(cargo.Dependencies))
	s.addDeps(keys(cargo.DevDependencies))
	applyDepRules(s, "Cargo.toml", deps, rustDepRules)

	if cargo.Workspace != nil {
		s.vote(model.SignalManifest, model.ProjectMonorepo, 0.8, "Cargo.toml: workspace")
	}
	if cargo.Lib != nil || (!s.hasFile("src/main.rs") && s.hasFile("src/lib.rs")) {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.7, "Cargo.toml: lib target")
	}
}

type pubspec struct {
	Dependencies    map[string]any `yaml:"dependencies"`
	DevDependencies map[string]any `yaml:"dev_dependencies"`
}

func parsePubspec(content string, s *scan) {
	var spec pubspec
	if err := yaml.Unmarshal([]byte(content), &spec); err != nil {
		return
	}
	deps := s.addDeps(keys(spec.Dependencies))
	s.addDeps(keys(spec.DevDependencies))
	for _, d := range deps {
		if d == "flutter" {
			s.vote(model.SignalManifest, model.ProjectMobile, 0.9, "pubspec.yaml: flutter")
			return
		}
	}
}

var gradleDep = regexp.MustCompile(`["']([\w.\-]+):([\w.\-]+)(?::[^"']*)?["']`)

func parseGradle(content string, s *scan) {
	var deps []string
	for _, m := range gradleDep.FindAllStringSubmatch(content, -1) {
		deps = append(deps, m[1]+":"+m[2], m[2])
	}
	s.addDeps(deps)

	switch {
	case strings.Contains(content, "com.android.application"):
		s.vote(model.SignalManifest, model.ProjectMobile, 0.9, "gradle: com.android.application")
	case strings.Contains(content, "com.android.library"):
		s.vote(model.SignalManifest, model.ProjectMobile, 0.7, "gradle: com.android.library")
	}
	if strings.Contains(content, "org.springframework.boot") {
		s.addDeps([]string{"spring-boot"})
		s.vote(model.SignalManifest, model.ProjectBackend, 0.9, "gradle: spring boot")
	}
	if strings.Contains(content, "java-library") {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.7, "gradle: java-library")
	}
}

var pomArtifact = regexp.MustCompile(`<artifactId>\s*([^<\s]+)\s*</artifactId>`)

func parsePom(content string, s *scan) {
	var deps []string
	for _, m := range pomArtifact.FindAllStringSubmatch(content, -1) {
		deps = append(deps, m[1])
	}
	s.addDeps(deps)

	if strings.Contains(content, "spring-boot") {
		s.addDeps([]string{"spring-boot"})
		s.vote(model.SignalManifest, model.ProjectBackend, 0.9, "pom.xml: spring boot")
		return
	}
	if strings.Contains(content, "<packaging>jar</packaging>") {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.4, "pom.xml: jar packaging")
	}
}

var gemLine = regexp.MustCompile(`(?m)^\s*gem\s+['"]([^'"]+)['"]`)

func parseGemfile(content string, s *scan) {
	var deps []string
	for _, m := range gemLine.FindAllStringSubmatch(content, -1) {
		deps = append(deps, m[1])
	}
	s.addDeps(deps)
	applyDepRules(s, "Gemfile", deps, rubyDepRules)
}

type composerJSON struct {
	Type       string            `json:"type"`
	Require    map[string]string `json:"require"`
	RequireDev map[string]string `json:"require-dev"`
}

func parseComposer(content string, s *scan) {
	var c composerJSON
	if err := json.Unmarshal([]byte(content), &c); err != nil {
		return
	}
	deps := s.addDeps(keys(c.Require))
	s.addDeps(keys(c.RequireDev))
	applyDepRules(s, "composer.json", deps, phpDepRules)
	if c.Type == "library" {
		s.vote(model.SignalManifest, model.ProjectLibrary, 0.7, "composer.json: library")
	}
}

type helmChart struct {
	APIVersion   string `yaml:"apiVersion"`
	Name         string `yaml:"name"`
	Dependencies []struct {
		Name string `yaml:"name"`
	} `yaml:"dependencies"`
}

func parseChart(content string, s *scan) {
	var chart helmChart
	if err := yaml.Unmarshal([]byte(content), &chart); err != nil {
		return
	}
	if chart.APIVersion == "" || chart.Name == "" {
		return
	}
	var deps []string
	for _, d := range chart.Dependencies {
		deps = append(deps, d.Name)
	}
	s.addDeps(deps)
	s.vote(model.SignalManifest, model.ProjectInfraAsCode, 0.8, "Chart.yaml: helm chart")
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

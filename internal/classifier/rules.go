package classifier

import (
	"path"
	"regexp"
	"strings"

	"github.com/qs3c/repoinsight/internal/model"
)

// fileRule 文件名/路径命中规则；Pattern 含 "/" 时匹配完整路径，否则匹配文件名
type fileRule struct {
	Pattern    string
	Type       model.ProjectType
	Confidence float64
}

var fileRules = []fileRule{
	// infra-as-code
	{"*.tf", model.ProjectInfraAsCode, 0.9},
	{"*.tfvars", model.ProjectInfraAsCode, 0.8},
	{"terragrunt.hcl", model.ProjectInfraAsCode, 0.9},
	{"Pulumi.yaml", model.ProjectInfraAsCode, 0.9},
	{"cdk.json", model.ProjectInfraAsCode, 0.9},
	{"Chart.yaml", model.ProjectInfraAsCode, 0.8},
	{"kustomization.yaml", model.ProjectInfraAsCode, 0.8},
	{"ansible.cfg", model.ProjectInfraAsCode, 0.8},
	{"serverless.yml", model.ProjectInfraAsCode, 0.6},

	// mobile
	{"AndroidManifest.xml", model.ProjectMobile, 0.9},
	{"*.pbxproj", model.ProjectMobile, 0.9},
	{"Podfile", model.ProjectMobile, 0.8},
	{"pubspec.yaml", model.ProjectMobile, 0.7},
	{"Info.plist", model.ProjectMobile, 0.5},
	{"metro.config.js", model.ProjectMobile, 0.8},

	// frontend
	{"angular.json", model.ProjectFrontend, 0.9},
	{"vite.config.*", model.ProjectFrontend, 0.8},
	{"next.config.*", model.ProjectFrontend, 0.8},
	{"nuxt.config.*", model.ProjectFrontend, 0.8},
	{"svelte.config.*", model.ProjectFrontend, 0.8},
	{"webpack.config.*", model.ProjectFrontend, 0.6},
	{"*.vue", model.ProjectFrontend, 0.7},
	{"*.svelte", model.ProjectFrontend, 0.7},
	{"*.tsx", model.ProjectFrontend, 0.5},
	{"*.jsx", model.ProjectFrontend, 0.5},
	{"public/index.html", model.ProjectFrontend, 0.5},

	// backend
	{"manage.py", model.ProjectBackend, 0.8},
	{"wsgi.py", model.ProjectBackend, 0.8},
	{"application.properties", model.ProjectBackend, 0.8},
	{"application.yml", model.ProjectBackend, 0.7},
	{"server.*", model.ProjectBackend, 0.6},
	{"Procfile", model.ProjectBackend, 0.5},
	{"go.mod", model.ProjectBackend, 0.4},
	{"pom.xml", model.ProjectBackend, 0.4},
	{"*.proto", model.ProjectBackend, 0.5},
	{"docker-compose.yml", model.ProjectBackend, 0.4},
	{"Dockerfile", model.ProjectBackend, 0.3},

	// library
	{"setup.py", model.ProjectLibrary, 0.7},
	{"setup.cfg", model.ProjectLibrary, 0.5},
	{"MANIFEST.in", model.ProjectLibrary, 0.6},
	{"*.gemspec", model.ProjectLibrary, 0.9},
	{"*.podspec", model.ProjectLibrary, 0.9},
	{"index.d.ts", model.ProjectLibrary, 0.7},
	{".npmignore", model.ProjectLibrary, 0.6},

	// monorepo
	{"lerna.json", model.ProjectMonorepo, 0.95},
	{"pnpm-workspace.yaml", model.ProjectMonorepo, 0.95},
	{"nx.json", model.ProjectMonorepo, 0.95},
	{"rush.json", model.ProjectMonorepo, 0.95},
	{"turbo.json", model.ProjectMonorepo, 0.9},
	{"go.work", model.ProjectMonorepo, 0.9},
}

func (r fileRule) match(p string) bool {
	if strings.Contains(r.Pattern, "/") {
		ok, _ := path.Match(r.Pattern, p)
		return ok
	}
	ok, _ := path.Match(r.Pattern, path.Base(p))
	return ok
}

// contentRule 代码内容特征
type contentRule struct {
	Name       string
	Re         *regexp.Regexp
	Type       model.ProjectType
	Confidence float64
}

var contentRules = []contentRule{
	{"hcl resource block", regexp.MustCompile(`(?m)^\s*resource\s+"[\w-]+"\s+"[\w-]+"`), model.ProjectInfraAsCode, 0.8},
	{"cloudformation template", regexp.MustCompile(`AWSTemplateFormatVersion`), model.ProjectInfraAsCode, 0.9},
	{"kubernetes manifest", regexp.MustCompile(`(?m)^apiVersion:\s*\S+\s*\n\s*kind:\s*(Deployment|Service|StatefulSet|Ingress)`), model.ProjectInfraAsCode, 0.6},
	{"spring boot application", regexp.MustCompile(`@SpringBootApplication`), model.ProjectBackend, 0.9},
	{"http listener", regexp.MustCompile(`app\.listen\(|http\.ListenAndServe|\.Run\(":|uvicorn\.run\(|app\.run\(`), model.ProjectBackend, 0.7},
	{"web framework app", regexp.MustCompile(`Flask\(__name__\)|FastAPI\(|express\(\)|gin\.(Default|New)\(\)|echo\.New\(\)`), model.ProjectBackend, 0.8},
	{"route declaration", regexp.MustCompile(`@(Get|Post|Put|Delete)Mapping|@app\.(get|post|route)\(|router\.(GET|POST|get|post)\(`), model.ProjectBackend, 0.6},
	{"dom mount", regexp.MustCompile(`ReactDOM\.(render|createRoot)|createRoot\(document|createApp\(|platformBrowserDynamic|new Vue\(`), model.ProjectFrontend, 0.8},
	{"react native entry", regexp.MustCompile(`AppRegistry\.registerComponent`), model.ProjectMobile, 0.9},
	{"flutter entry", regexp.MustCompile(`runApp\(`), model.ProjectMobile, 0.7},
	{"ios app delegate", regexp.MustCompile(`UIApplicationDelegate|@main\s+struct\s+\w+:\s*App`), model.ProjectMobile, 0.8},
	{"android activity", regexp.MustCompile(`extends\s+(AppCompat)?Activity|:\s*(AppCompat|Component)Activity\(\)`), model.ProjectMobile, 0.8},
	{"package re-export", regexp.MustCompile(`(?m)^export \* from `), model.ProjectLibrary, 0.5},
}

// dirRule 顶层目录形态；All 中的目录必须同时存在
type dirRule struct {
	All        []string
	Type       model.ProjectType
	Confidence float64
}

var dirRules = []dirRule{
	{[]string{"ios", "android"}, model.ProjectMobile, 0.9},
	{[]string{"packages", "apps"}, model.ProjectMonorepo, 0.9},
	{[]string{"apps", "libs"}, model.ProjectMonorepo, 0.8},
	{[]string{"packages"}, model.ProjectMonorepo, 0.6},
	{[]string{"modules", "environments"}, model.ProjectInfraAsCode, 0.8},
	{[]string{"terraform"}, model.ProjectInfraAsCode, 0.7},
	{[]string{"charts"}, model.ProjectInfraAsCode, 0.5},
	{[]string{"components", "pages"}, model.ProjectFrontend, 0.7},
	{[]string{"public", "src"}, model.ProjectFrontend, 0.4},
	{[]string{"cmd", "internal"}, model.ProjectBackend, 0.6},
	{[]string{"controllers"}, model.ProjectBackend, 0.6},
	{[]string{"migrations"}, model.ProjectBackend, 0.5},
	{[]string{"routes"}, model.ProjectBackend, 0.4},
	{[]string{"lib", "examples"}, model.ProjectLibrary, 0.5},
}

// techRule 技术栈识别：文件模式或依赖名任一命中即计入
type techRule struct {
	Tech  string
	Files []string
	Deps  []string
}

var techRules = []techRule{
	{Tech: "go", Files: []string{"go.mod", "*.go"}},
	{Tech: "python", Files: []string{"requirements.txt", "pyproject.toml", "setup.py", "*.py"}},
	{Tech: "javascript", Files: []string{"package.json", "*.js", "*.mjs"}},
	{Tech: "typescript", Files: []string{"tsconfig.json", "*.ts", "*.tsx"}, Deps: []string{"typescript"}},
	{Tech: "java", Files: []string{"pom.xml", "*.java"}},
	{Tech: "kotlin", Files: []string{"*.kt", "build.gradle.kts"}},
	{Tech: "swift", Files: []string{"*.swift", "Package.swift"}},
	{Tech: "dart", Files: []string{"*.dart", "pubspec.yaml"}},
	{Tech: "rust", Files: []string{"Cargo.toml", "*.rs"}},
	{Tech: "ruby", Files: []string{"Gemfile", "*.rb"}},
	{Tech: "php", Files: []string{"composer.json", "*.php"}},
	{Tech: "react", Deps: []string{"react"}},
	{Tech: "react-native", Deps: []string{"react-native", "expo"}},
	{Tech: "vue", Files: []string{"*.vue"}, Deps: []string{"vue"}},
	{Tech: "angular", Files: []string{"angular.json"}, Deps: []string{"@angular/core"}},
	{Tech: "svelte", Files: []string{"*.svelte"}, Deps: []string{"svelte"}},
	{Tech: "nextjs", Files: []string{"next.config.*"}, Deps: []string{"next"}},
	{Tech: "express", Deps: []string{"express"}},
	{Tech: "nestjs", Deps: []string{"@nestjs/core"}},
	{Tech: "django", Files: []string{"manage.py"}, Deps: []string{"django"}},
	{Tech: "flask", Deps: []string{"flask"}},
	{Tech: "fastapi", Deps: []string{"fastapi"}},
	{Tech: "spring", Files: []string{"application.properties"}, Deps: []string{"spring-boot"}},
	{Tech: "rails", Deps: []string{"rails"}},
	{Tech: "laravel", Deps: []string{"laravel/framework"}},
	{Tech: "gin", Deps: []string{"github.com/gin-gonic/gin"}},
	{Tech: "echo", Deps: []string{"github.com/labstack/echo/v4"}},
	{Tech: "grpc", Files: []string{"*.proto"}, Deps: []string{"google.golang.org/grpc", "grpcio", "@grpc/grpc-js"}},
	{Tech: "flutter", Deps: []string{"flutter"}},
	{Tech: "android", Files: []string{"AndroidManifest.xml"}},
	{Tech: "ios", Files: []string{"*.pbxproj", "Podfile"}},
	{Tech: "docker", Files: []string{"Dockerfile", "docker-compose.yml", "docker-compose.yaml"}},
	{Tech: "kubernetes", Files: []string{"kustomization.yaml"}},
	{Tech: "helm", Files: []string{"Chart.yaml"}},
	{Tech: "terraform", Files: []string{"*.tf"}},
	{Tech: "pulumi", Files: []string{"Pulumi.yaml"}, Deps: []string{"@pulumi/pulumi"}},
	{Tech: "aws-cdk", Files: []string{"cdk.json"}, Deps: []string{"aws-cdk-lib"}},
	{Tech: "actix", Deps: []string{"actix-web"}},
	{Tech: "axum", Deps: []string{"axum"}},
	{Tech: "tailwind", Files: []string{"tailwind.config.*"}, Deps: []string{"tailwindcss"}},
	{Tech: "jest", Files: []string{"jest.config.*"}, Deps: []string{"jest"}},
	{Tech: "pytest", Files: []string{"pytest.ini", "conftest.py"}, Deps: []string{"pytest"}},
	{Tech: "github-actions", Files: []string{".github/workflows/*"}},
}

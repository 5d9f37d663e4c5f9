package classifier

import (
	"errors"
	"path"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qs3c/repoinsight/internal/model"
)

// fixture 将 path→content 映射转换为分类输入
func fixture(files map[string]string) Input {
	var entries []model.FileEntry
	for p, c := range files {
		entries = append(entries, model.FileEntry{Path: p, Size: int64(len(c)), Extension: path.Ext(p)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return Input{
		Files: entries,
		Read: func(rel string) (string, error) {
			c, ok := files[rel]
			if !ok {
				return "", errors.New("missing")
			}
			return c, nil
		},
	}
}

func TestClassify_TerraformOnly(t *testing.T) {
	in := fixture(map[string]string{
		"main.tf": `resource "aws_s3_bucket" "logs" {
  bucket = "logs"
}`,
	})

	res := New().Classify(in)
	assert.Equal(t, model.ProjectInfraAsCode, res.PrimaryType)
	assert.Greater(t, res.Confidence, 0.5)
	assert.Contains(t, res.TechStack, "terraform")
}

func TestClassify_ReactNativeIsMobile(t *testing.T) {
	in := fixture(map[string]string{
		"package.json":                  `{"name":"app","private":true,"dependencies":{"react":"18.2.0","react-native":"0.72.0"}}`,
		"index.js":                      `import {AppRegistry} from 'react-native'; AppRegistry.registerComponent('app', () => App);`,
		"ios/Podfile":                   "platform :ios, '13.0'",
		"android/app/build.gradle":      `apply plugin: "com.android.application"`,
		"android/app/src/main/App.java": "class App {}",
	})

	res := New().Classify(in)
	assert.Equal(t, model.ProjectMobile, res.PrimaryType)
	assert.Contains(t, res.TechStack, "react-native")
	assert.NotContains(t, res.Scores, model.ProjectFrontend)

	var dirVote bool
	for _, ind := range res.Indicators {
		if ind.Kind == model.SignalDirectory && ind.Type == model.ProjectMobile {
			dirVote = true
		}
	}
	assert.True(t, dirVote, "ios+android should vote mobile")
}

func TestClassify_NoSignalsIsUnknown(t *testing.T) {
	res := New().Classify(fixture(map[string]string{"notes.txt": "hello"}))
	assert.Equal(t, model.ProjectUnknown, res.PrimaryType)
	assert.Zero(t, res.Confidence)
	assert.Empty(t, res.Scores)
	assert.NotNil(t, res.Indicators)
}

func TestClassify_EmptyInput(t *testing.T) {
	res := New().Classify(Input{})
	assert.Equal(t, model.ProjectUnknown, res.PrimaryType)
	assert.Zero(t, res.Confidence)
}

func TestClassify_GoBackend(t *testing.T) {
	in := fixture(map[string]string{
		"go.mod": `module example.com/api

go 1.22

require (
	github.com/gin-gonic/gin v1.9.1 // indirect
	gorm.io/gorm v1.25.0
)
`,
		"cmd/server/main.go":     `package main; func main() { r := gin.Default(); r.Run(":8080") }`,
		"internal/api/router.go": "package api",
		"Dockerfile":             "FROM golang",
	})

	res := New().Classify(in)
	assert.Equal(t, model.ProjectBackend, res.PrimaryType)
	assert.Contains(t, res.Dependencies, "github.com/gin-gonic/gin")
	assert.Contains(t, res.Dependencies, "gorm.io/gorm")
	assert.Subset(t, res.TechStack, []string{"docker", "gin", "go"})
}

func TestClassify_ScoresNormalized(t *testing.T) {
	in := fixture(map[string]string{
		"package.json": `{"dependencies":{"react":"18","express":"4"}}`,
		"src/App.tsx":  "export default function App() {}",
		"server.js":    "const app = express(); app.listen(3000)",
	})

	res := New().Classify(in)
	require.NotEmpty(t, res.Scores)
	top := 0.0
	for _, v := range res.Scores {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
		if v > top {
			top = v
		}
	}
	assert.InDelta(t, 1.0, top, 1e-9)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
}

func TestScore_TieBrokenByPriority(t *testing.T) {
	// backend 略高但在并列区间内，library 优先级更高
	res := score([]model.Indicator{
		{Kind: model.SignalFile, Type: model.ProjectBackend, Confidence: 1.0},
		{Kind: model.SignalFile, Type: model.ProjectLibrary, Confidence: 0.95},
	})
	assert.Equal(t, model.ProjectLibrary, res.PrimaryType)
	assert.InDelta(t, 0.95/1.95, res.Confidence, 1e-9)

	// 差距超过并列区间时按分数取胜
	res = score([]model.Indicator{
		{Kind: model.SignalManifest, Type: model.ProjectBackend, Confidence: 1.0},
		{Kind: model.SignalFile, Type: model.ProjectLibrary, Confidence: 1.0},
	})
	assert.Equal(t, model.ProjectBackend, res.PrimaryType)
}

func TestScore_ZeroConfidenceIndicators(t *testing.T) {
	res := score([]model.Indicator{{Kind: model.SignalFile, Type: model.ProjectBackend, Confidence: 0}})
	assert.Equal(t, model.ProjectUnknown, res.PrimaryType)
	assert.Zero(t, res.Confidence)
}

func TestClassify_MonorepoSubTypes(t *testing.T) {
	in := fixture(map[string]string{
		"package.json":             `{"name":"root","private":true,"workspaces":["packages/*","apps/*"]}`,
		"lerna.json":               `{"version":"independent"}`,
		"apps/web/package.json":    `{"dependencies":{"react":"18","react-dom":"18"}}`,
		"apps/web/src/index.tsx":   "ReactDOM.createRoot(document.getElementById('root'))",
		"apps/api/package.json":    `{"dependencies":{"express":"4"}}`,
		"apps/api/server.js":       "const app = express(); app.listen(3000)",
		"packages/docs/README.md":  "# docs",
		"packages/infra/main.tf":   `resource "aws_s3_bucket" "b" {}`,
	})

	res := New().Classify(in)
	require.Equal(t, model.ProjectMonorepo, res.PrimaryType)

	got := map[string]model.ProjectType{}
	for _, sub := range res.SubTypes {
		got[sub.Path] = sub.Type
	}
	assert.Equal(t, map[string]model.ProjectType{
		"apps/api":       model.ProjectBackend,
		"apps/web":       model.ProjectFrontend,
		"packages/infra": model.ProjectInfraAsCode,
	}, got)
}

func TestClassify_UnreadableFilesSkipped(t *testing.T) {
	in := fixture(map[string]string{"main.tf": ""})
	in.Read = func(string) (string, error) { return "", errors.New("permission denied") }

	res := New().Classify(in)
	assert.Equal(t, model.ProjectInfraAsCode, res.PrimaryType)
}

func TestClassify_PythonManifests(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  model.ProjectType
		dep   string
	}{
		{
			name: "requirements with django",
			files: map[string]string{
				"requirements.txt": "# web\nDjango==4.2\npsycopg2>=2.9\n",
				"manage.py":        "import django",
			},
			want: model.ProjectBackend,
			dep:  "django",
		},
		{
			name: "pyproject library",
			files: map[string]string{
				"pyproject.toml": "[build-system]\nrequires = [\"hatchling\"]\n\n[project]\nname = \"tinylib\"\ndependencies = [\"attrs>=22\"]\n",
				"src/tinylib/__init__.py": "",
			},
			want: model.ProjectLibrary,
			dep:  "attrs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New().Classify(fixture(tt.files))
			assert.Equal(t, tt.want, res.PrimaryType)
			assert.Contains(t, res.Dependencies, tt.dep)
		})
	}
}

func TestClassify_FlutterAndCargo(t *testing.T) {
	res := New().Classify(fixture(map[string]string{
		"pubspec.yaml":  "name: app\ndependencies:\n  flutter:\n    sdk: flutter\n",
		"lib/main.dart": "void main() => runApp(MyApp());",
	}))
	assert.Equal(t, model.ProjectMobile, res.PrimaryType)
	assert.Contains(t, res.TechStack, "flutter")

	res = New().Classify(fixture(map[string]string{
		"Cargo.toml": "[package]\nname = \"svc\"\n\n[dependencies]\naxum = \"0.7\"\ntokio = { version = \"1\" }\n",
		"src/main.rs": "fn main() {}",
	}))
	assert.Equal(t, model.ProjectBackend, res.PrimaryType)
	assert.Contains(t, res.TechStack, "axum")
}

func TestIgnoresMalformedManifest(t *testing.T) {
	res := New().Classify(fixture(map[string]string{
		"package.json": "{not json",
	}))
	assert.Equal(t, model.ProjectUnknown, res.PrimaryType)
	assert.Empty(t, res.Dependencies)
}

package pipeline

import (
	"path"
	"sort"
	"strings"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
)

// configNames 作为 config_files / readme 提供给任务的文件
var configNames = map[string]bool{
	"readme.md": true, "readme": true, "readme.rst": true,
	"package.json": true, "go.mod": true, "cargo.toml": true, "pyproject.toml": true, "requirements.txt": true,
	"pom.xml": true, "build.gradle": true, "build.gradle.kts": true, "gemfile": true, "composer.json": true,
	"pubspec.yaml": true, "dockerfile": true, "docker-compose.yml": true, "docker-compose.yaml": true,
	"tsconfig.json": true, "vite.config.ts": true, "webpack.config.js": true, "next.config.js": true,
	".env.example": true, "makefile": true, "chart.yaml": true, "main.tf": true, "variables.tf": true,
}

const maxConfigFiles = 12

// fileLimit 按分析深度决定深入分析的文件数
func fileLimit(cfg config.PipelineConfig, depth model.Depth) int {
	var n int
	switch depth {
	case model.DepthQuick:
		n = cfg.QuickFileLimit
	case model.DepthDeep:
		n = cfg.DeepFileLimit
	default:
		n = cfg.StandardFileLimit
	}
	if n <= 0 {
		n = 30
	}
	return n
}

// selectConfigFiles 仓库根目录及一级子目录中的配置与说明文件
func selectConfigFiles(files []model.FileEntry) []string {
	var out []string
	for _, f := range files {
		if strings.Count(f.Path, "/") > 1 {
			continue
		}
		if configNames[strings.ToLower(path.Base(f.Path))] {
			out = append(out, f.Path)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := strings.Count(out[i], "/"), strings.Count(out[j], "/")
		if di != dj {
			return di < dj
		}
		return out[i] < out[j]
	})
	if len(out) > maxConfigFiles {
		out = out[:maxConfigFiles]
	}
	return out
}

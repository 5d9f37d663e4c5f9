package source

import (
	"path"
	"sort"
	"strings"

	"github.com/qs3c/repoinsight/internal/model"
)

// CodeExtensions 参与打分的源代码扩展名
var CodeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true, ".mjs": true,
	".java": true, ".kt": true, ".scala": true, ".swift": true, ".dart": true, ".rb": true,
	".php": true, ".rs": true, ".c": true, ".cc": true, ".cpp": true, ".h": true, ".cs": true,
	".vue": true, ".svelte": true, ".tf": true, ".sql": true,
}

var entryBasenames = map[string]bool{
	"index": true, "main": true, "app": true, "server": true, "application": true, "handler": true, "routes": true,
}

// RankOptions 文件打分参数
type RankOptions struct {
	Limit    int
	MaxBytes int64    // 超过该大小的文件不参与，0 表示不限
	Extra    []string // 在 CodeExtensions 之外额外接受的扩展名
}

// RankFiles 代码文件、入口文件、浅路径优先，测试文件靠后，得分相同按路径排序
func RankFiles(files []model.FileEntry, opts RankOptions) []string {
	extra := make(map[string]bool, len(opts.Extra))
	for _, e := range opts.Extra {
		extra[strings.ToLower(e)] = true
	}

	type cand struct {
		path  string
		score int
	}
	var cands []cand
	for _, f := range files {
		if opts.MaxBytes > 0 && f.Size > opts.MaxBytes {
			continue
		}
		ext := strings.ToLower(f.Extension)
		if ext == "" {
			ext = strings.ToLower(path.Ext(f.Path))
		}
		if !CodeExtensions[ext] && !extra[ext] {
			continue
		}
		cands = append(cands, cand{f.Path, scoreFile(f.Path)})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].path < cands[j].path
	})
	if opts.Limit > 0 && len(cands) > opts.Limit {
		cands = cands[:opts.Limit]
	}
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.path
	}
	return out
}

func scoreFile(p string) int {
	score := 10
	base := strings.ToLower(strings.TrimSuffix(path.Base(p), path.Ext(p)))
	if entryBasenames[base] {
		score += 5
	}
	if IsTestFile(p) {
		score -= 4
	}
	return score - strings.Count(p, "/")*2
}

// IsTestFile 按常见命名约定判断测试文件
func IsTestFile(p string) bool {
	base := strings.ToLower(path.Base(p))
	return strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasPrefix(p, "test/") || strings.HasPrefix(p, "tests/") ||
		strings.Contains(p, "/test/") || strings.Contains(p, "/tests/") || strings.Contains(p, "__tests__/")
}

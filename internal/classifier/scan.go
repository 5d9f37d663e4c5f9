package classifier

import (
	"sort"
	"strings"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/source"
)

// dataExts 内容匹配时在代码文件之外额外读取的清单类文件
var dataExts = []string{".yaml", ".yml", ".json"}

// scan 一次分类过程中收集到的指标与依赖
type scan struct {
	files      []model.FileEntry
	paths      map[string]bool
	indicators []model.Indicator
	seen       map[string]bool
	deps       map[string]bool
}

func newScan(files []model.FileEntry) *scan {
	paths := make(map[string]bool, len(files))
	for _, f := range files {
		paths[f.Path] = true
	}
	return &scan{files: files, paths: paths, seen: map[string]bool{}, deps: map[string]bool{}}
}

// vote 记录一个指标，同一来源的同一证据只计一次
func (s *scan) vote(kind model.SignalKind, t model.ProjectType, confidence float64, evidence string) {
	key := string(kind) + "|" + evidence
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.indicators = append(s.indicators, model.Indicator{
		Kind:       kind,
		Type:       t,
		Confidence: confidence,
		Evidence:   evidence,
	})
}

// addDeps 记录依赖名，返回本次传入的排序后依赖列表
func (s *scan) addDeps(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, d := range l {
			if d = strings.TrimSpace(d); d != "" {
				s.deps[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (s *scan) dependencies() []string {
	out := make([]string, 0, len(s.deps))
	for d := range s.deps {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s *scan) hasFile(rel string) bool {
	return s.paths[rel]
}

func (s *scan) hasPrefix(prefix string) bool {
	for p := range s.paths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func (s *scan) collectFiles() {
	for _, r := range fileRules {
		for _, f := range s.files {
			if r.match(f.Path) {
				s.vote(model.SignalFile, r.Type, r.Confidence, r.Pattern)
				break
			}
		}
	}
}

func (s *scan) collectManifests(read ReadFunc) {
	if read == nil {
		return
	}
	for _, f := range s.files {
		for _, p := range manifestParsers {
			if !p.matches(f.Path) {
				continue
			}
			content, err := read(f.Path)
			if err != nil {
				continue
			}
			p.Parse(content, s)
		}
	}
}

func (s *scan) collectContent(read ReadFunc, limit int) {
	if read == nil {
		return
	}
	for _, rel := range source.RankFiles(s.files, source.RankOptions{Limit: limit, Extra: dataExts}) {
		content, err := read(rel)
		if err != nil {
			continue
		}
		for _, r := range contentRules {
			if r.Re.MatchString(content) {
				s.vote(model.SignalContent, r.Type, r.Confidence, r.Name)
			}
		}
	}
}

// collectDirectories 按顶层目录形态投票；没有目录树时从文件路径推导
func (s *scan) collectDirectories(tree *model.TreeNode) {
	top := map[string]bool{}
	if tree != nil {
		for _, d := range source.TopLevelDirs(tree) {
			top[d] = true
		}
	} else {
		for _, f := range s.files {
			if i := strings.Index(f.Path, "/"); i > 0 {
				top[f.Path[:i]] = true
			}
		}
	}

	for _, r := range dirRules {
		all := true
		for _, d := range r.All {
			if !top[d] {
				all = false
				break
			}
		}
		if all {
			s.vote(model.SignalDirectory, r.Type, r.Confidence, strings.Join(r.All, "+"))
		}
	}
}

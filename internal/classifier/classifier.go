package classifier

import (
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

const (
	// TieEpsilon 归一化分数差在此范围内视为并列，按静态优先级决胜
	TieEpsilon = 0.1
	scoreFloor = 1e-9

	defaultProbeFiles = 20
)

// MonorepoRoots 单体仓库中子项目的约定根目录
var MonorepoRoots = []string{"packages", "apps", "libs", "modules"}

// ReadFunc 读取相对路径文件内容，失败的文件直接跳过
type ReadFunc func(rel string) (string, error)

// Input 分类所需的仓库视图
type Input struct {
	Files []model.FileEntry
	Tree  *model.TreeNode
	Read  ReadFunc
}

// Classifier 多信号加权的仓库类型识别器
type Classifier struct {
	probeFiles int
	log        *logrus.Entry
}

func New() *Classifier {
	return &Classifier{probeFiles: defaultProbeFiles, log: logger.For("classifier")}
}

// Classify 识别主类型、置信度和技术栈；不会因输入异常而失败
func (c *Classifier) Classify(in Input) *model.ClassificationResult {
	result := c.classify(in)
	if result.PrimaryType == model.ProjectMonorepo {
		result.SubTypes = c.subProjects(in)
	}

	c.log.WithFields(logrus.Fields{
		"type":       result.PrimaryType,
		"confidence": result.Confidence,
		"indicators": len(result.Indicators),
	}).Debug("classified repository")
	return result
}

func (c *Classifier) classify(in Input) *model.ClassificationResult {
	s := newScan(in.Files)

	s.collectFiles()
	s.collectManifests(in.Read)
	s.collectContent(in.Read, c.probeFiles)
	s.collectDirectories(in.Tree)

	result := score(s.indicators)
	result.Dependencies = s.dependencies()
	result.TechStack = detectStack(in.Files, s.deps)
	return result
}

// score 汇总指标得分并选出主类型
func score(indicators []model.Indicator) *model.ClassificationResult {
	result := &model.ClassificationResult{
		PrimaryType: model.ProjectUnknown,
		Indicators:  indicators,
		Scores:      map[model.ProjectType]float64{},
	}
	if result.Indicators == nil {
		result.Indicators = []model.Indicator{}
	}

	raw := map[model.ProjectType]float64{}
	total, top := 0.0, 0.0
	for _, ind := range indicators {
		v := ind.Confidence * ind.Kind.Weight()
		if v <= 0 {
			continue
		}
		raw[ind.Type] += v
		total += v
	}
	for _, v := range raw {
		if v > top {
			top = v
		}
	}
	if top <= 0 {
		return result
	}

	denom := top
	if denom < scoreFloor {
		denom = scoreFloor
	}
	for t, v := range raw {
		result.Scores[t] = v / denom
	}

	winner := model.ProjectUnknown
	for _, t := range model.ProjectTypes {
		if result.Scores[t] >= 1-TieEpsilon {
			// ProjectTypes 按优先级排列，第一个进入并列区间的即胜出
			winner = t
			break
		}
	}

	result.PrimaryType = winner
	result.Confidence = raw[winner] / total
	return result
}

// subProjects 对单体仓库约定目录下的每个子目录单独分类
func (c *Classifier) subProjects(in Input) []model.SubProject {
	children := map[string]bool{}
	for _, f := range in.Files {
		parts := strings.SplitN(f.Path, "/", 3)
		if len(parts) < 3 {
			continue
		}
		for _, root := range MonorepoRoots {
			if parts[0] == root {
				children[parts[0]+"/"+parts[1]] = true
			}
		}
	}

	dirs := make([]string, 0, len(children))
	for d := range children {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	var subs []model.SubProject
	for _, dir := range dirs {
		res := c.classify(subInput(in, dir))
		if res.PrimaryType == model.ProjectMonorepo || res.PrimaryType == model.ProjectUnknown {
			continue
		}
		subs = append(subs, model.SubProject{
			Path:       dir,
			Type:       res.PrimaryType,
			Confidence: res.Confidence,
			TechStack:  res.TechStack,
		})
	}
	return subs
}

func subInput(in Input, dir string) Input {
	prefix := dir + "/"
	var files []model.FileEntry
	for _, f := range in.Files {
		if strings.HasPrefix(f.Path, prefix) {
			sub := f
			sub.Path = strings.TrimPrefix(f.Path, prefix)
			files = append(files, sub)
		}
	}

	var read ReadFunc
	if in.Read != nil {
		read = func(rel string) (string, error) { return in.Read(prefix + rel) }
	}
	return Input{Files: files, Tree: findNode(in.Tree, dir), Read: read}
}

func findNode(node *model.TreeNode, rel string) *model.TreeNode {
	if node == nil {
		return nil
	}
	cur := node
	for _, part := range strings.Split(rel, "/") {
		var next *model.TreeNode
		for _, c := range cur.Children {
			if c.Name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func detectStack(files []model.FileEntry, deps map[string]bool) []string {
	stack := []string{}
	for _, r := range techRules {
		if stackMatch(r, files, deps) {
			stack = append(stack, r.Tech)
		}
	}
	sort.Strings(stack)
	return stack
}

func stackMatch(r techRule, files []model.FileEntry, deps map[string]bool) bool {
	for _, want := range r.Deps {
		for d := range deps {
			if matchDep(d, want) {
				return true
			}
		}
	}
	for _, pattern := range r.Files {
		rule := fileRule{Pattern: pattern}
		for _, f := range files {
			if rule.match(f.Path) {
				return true
			}
		}
	}
	return false
}

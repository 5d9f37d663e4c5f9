package cli

import (
	"fmt"
	"os"

	"github.com/qs3c/repoinsight/internal/classifier"
	"github.com/qs3c/repoinsight/internal/model"
	"github.com/qs3c/repoinsight/internal/source"
)

// localView 本地目录的文件列表、目录树和分类结果
type localView struct {
	dir            string
	files          []model.FileEntry
	tree           *model.TreeNode
	classification *model.ClassificationResult
}

func isLocalDir(target string) bool {
	info, err := os.Stat(target)
	return err == nil && info.IsDir()
}

// inspect 扫描并分类本地目录
func inspect(dir string) (*localView, error) {
	if !isLocalDir(dir) {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	files := source.NewFiles(cfg.Pipeline.MaxFileBytes)
	list, err := files.ListFiles(dir, cfg.Pipeline.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	tree, err := files.DirectoryTree(dir, cfg.Pipeline.TreeMaxDepth, cfg.Pipeline.IgnorePatterns)
	if err != nil {
		return nil, err
	}
	result := classifier.New().Classify(classifier.Input{
		Files: list,
		Tree:  tree,
		Read: func(rel string) (string, error) {
			return files.ReadFile(dir, rel)
		},
	})
	return &localView{dir: dir, files: list, tree: tree, classification: result}, nil
}

func targetArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

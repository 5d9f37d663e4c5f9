package source

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/qs3c/repoinsight/internal/model"
)

// DefaultIgnorePatterns 始终忽略的目录与文件
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	".idea",
	".vscode",
	"coverage",
	".terraform",
	"*.min.js",
	"*.lock",
}

const defaultMaxFileBytes = 256 * 1024

// Files 本地目录上的只读文件操作，GitSource 与 LocalSource 共用
type Files struct {
	MaxFileBytes int64
}

func NewFiles(maxBytes int64) Files {
	if maxBytes <= 0 {
		maxBytes = defaultMaxFileBytes
	}
	return Files{MaxFileBytes: maxBytes}
}

// ListFiles 遍历目录，返回按路径排序的文件列表
func (f Files) ListFiles(root string, ignore []string) ([]model.FileEntry, error) {
	patterns := mergeIgnore(ignore)
	var files []model.FileEntry

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// 单个目录不可读时跳过
			if d != nil && d.IsDir() && p != root {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if Ignored(rel, patterns) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, model.FileEntry{
			Path:      rel,
			Size:      info.Size(),
			Extension: strings.ToLower(path.Ext(rel)),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// ReadFile 读取文件内容；超过上限、二进制、目录或缺失都返回 ErrUnavailable
func (f Files) ReadFile(root, rel string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(rel))[1:]
	if clean == "" {
		return "", fmt.Errorf("%s: %w", rel, ErrUnavailable)
	}
	full := filepath.Join(root, filepath.FromSlash(clean))

	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, ErrUnavailable)
	}
	if info.IsDir() || info.Size() > f.maxBytes() {
		return "", fmt.Errorf("%s: %w", rel, ErrUnavailable)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rel, ErrUnavailable)
	}
	if isBinary(data) {
		return "", fmt.Errorf("%s: %w", rel, ErrUnavailable)
	}
	return string(data), nil
}

func (f Files) maxBytes() int64 {
	if f.MaxFileBytes <= 0 {
		return defaultMaxFileBytes
	}
	return f.MaxFileBytes
}

// DirectoryTree 构建深度受限的目录树，目录在前、同级按名称排序
func (f Files) DirectoryTree(root string, maxDepth int, ignore []string) (*model.TreeNode, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if maxDepth <= 0 {
		maxDepth = 4
	}

	node := &model.TreeNode{Name: filepath.Base(root), Path: "", IsDir: true}
	buildTree(root, "", node, 1, maxDepth, mergeIgnore(ignore))
	return node, nil
}

func buildTree(dir, rel string, node *model.TreeNode, depth, maxDepth int, patterns []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	for _, e := range entries {
		childRel := e.Name()
		if rel != "" {
			childRel = rel + "/" + e.Name()
		}
		if Ignored(childRel, patterns) {
			continue
		}
		child := &model.TreeNode{Name: e.Name(), Path: childRel, IsDir: e.IsDir()}
		if e.IsDir() && depth < maxDepth {
			buildTree(filepath.Join(dir, e.Name()), childRel, child, depth+1, maxDepth, patterns)
		}
		node.Children = append(node.Children, child)
	}
}

// RenderTree 将目录树渲染为缩进文本
func RenderTree(node *model.TreeNode) string {
	if node == nil {
		return ""
	}
	var buf strings.Builder
	buf.WriteString(node.Name + "/\n")
	renderChildren(&buf, node.Children, 1)
	return buf.String()
}

func renderChildren(buf *strings.Builder, children []*model.TreeNode, level int) {
	for _, c := range children {
		buf.WriteString(strings.Repeat("  ", level))
		buf.WriteString(c.Name)
		if c.IsDir {
			buf.WriteString("/")
		}
		buf.WriteString("\n")
		renderChildren(buf, c.Children, level+1)
	}
}

// TopLevelDirs 返回树根下的一级目录名
func TopLevelDirs(node *model.TreeNode) []string {
	if node == nil {
		return nil
	}
	var dirs []string
	for _, c := range node.Children {
		if c.IsDir {
			dirs = append(dirs, c.Name)
		}
	}
	return dirs
}

func mergeIgnore(extra []string) []string {
	out := make([]string, 0, len(DefaultIgnorePatterns)+len(extra))
	out = append(out, DefaultIgnorePatterns...)
	for _, p := range extra {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Ignored 判断相对路径是否命中忽略规则。
// 不含 "/" 的规则匹配任意一级路径段；含 "/" 的规则匹配整个路径，"**" 匹配零或多级目录。
func Ignored(rel string, patterns []string) bool {
	segments := strings.Split(rel, "/")
	for _, p := range patterns {
		p = strings.TrimSuffix(p, "/")
		if !strings.Contains(p, "/") {
			for _, seg := range segments {
				if ok, _ := path.Match(p, seg); ok {
					return true
				}
			}
			continue
		}
		if matchSegments(strings.Split(strings.TrimPrefix(p, "/"), "/"), segments) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, segs []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(segs); i++ {
				if matchSegments(rest, segs[i:]) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], segs[0]); !ok {
			return false
		}
		pattern, segs = pattern[1:], segs[1:]
	}
	// 目录规则同时覆盖其下所有文件
	return true
}

func isBinary(data []byte) bool {
	probe := data
	if len(probe) > 8000 {
		probe = probe[:8000]
	}
	return bytes.IndexByte(probe, 0) >= 0
}

package model

import "time"

// FileEntry 仓库文件条目，Path 为相对仓库根目录的 slash 路径
type FileEntry struct {
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
}

// TreeNode 目录树节点
type TreeNode struct {
	Name     string      `json:"name"`
	Path     string      `json:"path"`
	IsDir    bool        `json:"is_dir"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Checkout 本地克隆结果
type Checkout struct {
	LocalPath  string `json:"local_path"`
	CommitHash string `json:"commit_hash"`
	Branch     string `json:"branch"`
}

type RepositoryMetadata struct {
	URL           string         `json:"url"`
	Name          string         `json:"name"`
	Branch        string         `json:"branch"`
	Commit        string         `json:"commit"`
	FileCount     int            `json:"file_count"`
	TotalBytes    int64          `json:"total_bytes"`
	Languages     map[string]int `json:"languages,omitempty"`
	LastCommitAt  *time.Time     `json:"last_commit_at,omitempty"`
	Description   string         `json:"description,omitempty"`
	Stars         int            `json:"stars,omitempty"`
	DefaultBranch string         `json:"default_branch,omitempty"`
	Topics        []string       `json:"topics,omitempty"`
}

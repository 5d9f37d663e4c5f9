package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
)

var extLanguages = map[string]string{
	".go":     "Go",
	".py":     "Python",
	".js":     "JavaScript",
	".jsx":    "JavaScript",
	".mjs":    "JavaScript",
	".ts":     "TypeScript",
	".tsx":    "TypeScript",
	".java":   "Java",
	".kt":     "Kotlin",
	".swift":  "Swift",
	".dart":   "Dart",
	".rb":     "Ruby",
	".php":    "PHP",
	".rs":     "Rust",
	".cs":     "C#",
	".c":      "C",
	".h":      "C",
	".cpp":    "C++",
	".cc":     "C++",
	".scala":  "Scala",
	".vue":    "Vue",
	".svelte": "Svelte",
	".tf":     "HCL",
	".sh":     "Shell",
}

// LanguageOf 按扩展名返回语言名，未知返回空
func LanguageOf(ext string) string {
	return extLanguages[strings.ToLower(ext)]
}

// BuildMetadata 根据文件列表汇总仓库基础信息
func BuildMetadata(repoURL string, checkout *model.Checkout, files []model.FileEntry) *model.RepositoryMetadata {
	_, name := RepoName(repoURL)
	meta := &model.RepositoryMetadata{
		URL:       repoURL,
		Name:      name,
		FileCount: len(files),
		Languages: map[string]int{},
	}
	if checkout != nil {
		meta.Branch = checkout.Branch
		meta.Commit = checkout.CommitHash
	}
	for _, f := range files {
		meta.TotalBytes += f.Size
		if lang := LanguageOf(f.Extension); lang != "" {
			meta.Languages[lang]++
		}
	}
	return meta
}

// GitHubClient 通过 GitHub API 补充仓库描述信息，未配置 token 时不发请求
type GitHubClient struct {
	token   string
	apiBase string
	timeout time.Duration
}

func NewGitHubClient(cfg config.GitHubConfig) *GitHubClient {
	base := strings.TrimSuffix(cfg.APIBase, "/")
	if base == "" {
		base = "https://api.github.com"
	}
	return &GitHubClient{token: cfg.Token, apiBase: base, timeout: 10 * time.Second}
}

type githubRepo struct {
	Description   string   `json:"description"`
	Stars         int      `json:"stargazers_count"`
	DefaultBranch string   `json:"default_branch"`
	Topics        []string `json:"topics"`
}

// Enrich 对 github.com 仓库补充描述、star 数、默认分支和 topics
func (c *GitHubClient) Enrich(ctx context.Context, repoURL string, meta *model.RepositoryMetadata) error {
	if c == nil || c.token == "" || !isGitHubURL(repoURL) {
		return nil
	}
	owner, name := RepoName(repoURL)
	if owner == "" || name == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token}))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/repos/%s/%s", c.apiBase, owner, name), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get repository info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("github api error: %d %s", resp.StatusCode, string(body))
	}

	var repo githubRepo
	if err := json.NewDecoder(resp.Body).Decode(&repo); err != nil {
		return fmt.Errorf("failed to decode repository info: %w", err)
	}

	meta.Description = repo.Description
	meta.Stars = repo.Stars
	meta.DefaultBranch = repo.DefaultBranch
	meta.Topics = repo.Topics
	return nil
}

func isGitHubURL(repoURL string) bool {
	if strings.HasPrefix(repoURL, "git@github.com:") {
		return true
	}
	u, err := url.Parse(repoURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, "github.com") || strings.EqualFold(u.Host, "www.github.com")
}

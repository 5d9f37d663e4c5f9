package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/blake2b"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/model"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// Entry 缓存的分析结果
type Entry struct {
	RepoURL  string                `json:"repo_url"`
	Branch   string                `json:"branch"`
	Commit   string                `json:"commit"`
	Result   *model.AnalysisResult `json:"result"`
	StoredAt time.Time             `json:"stored_at"`
}

// RedisCache 以 (url, branch, commit) 为键保存结果，(url, branch) 指向最近一次提交
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, cfg config.CacheConfig) *RedisCache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "repoinsight:analysis"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: cfg.TTL()}
}

// BranchKey 仓库分支的指针键
func (c *RedisCache) BranchKey(repoURL, branch string) string {
	return c.prefix + ":branch:" + digest(normalizeURL(repoURL), branch)
}

// CommitKey 结果本体的键
func (c *RedisCache) CommitKey(repoURL, branch, commit string) string {
	return c.prefix + ":commit:" + digest(normalizeURL(repoURL), branch, commit)
}

// Get 按仓库和分支查询最近一次缓存结果
func (c *RedisCache) Get(ctx context.Context, repoURL, branch string) (*Entry, error) {
	commitKey, err := c.client.Get(ctx, c.BranchKey(repoURL, branch)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache pointer: %w", err)
	}

	data, err := c.client.Get(ctx, commitKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	if entry.Result == nil {
		return nil, ErrCacheMiss
	}
	return &entry, nil
}

// Put 写入结果与分支指针，两者同一 TTL
func (c *RedisCache) Put(ctx context.Context, repoURL, branch, commit string, result *model.AnalysisResult) error {
	entry := Entry{
		RepoURL:  repoURL,
		Branch:   branch,
		Commit:   commit,
		Result:   result,
		StoredAt: time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	commitKey := c.CommitKey(repoURL, branch, commit)
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, commitKey, data, c.ttl)
	pipe.Set(ctx, c.BranchKey(repoURL, branch), commitKey, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Invalidate 删除分支指针及其指向的结果
func (c *RedisCache) Invalidate(ctx context.Context, repoURL, branch string) error {
	branchKey := c.BranchKey(repoURL, branch)
	commitKey, err := c.client.Get(ctx, branchKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read cache pointer: %w", err)
	}

	keys := []string{branchKey}
	if commitKey != "" {
		keys = append(keys, commitKey)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

func digest(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:16])
}

func normalizeURL(u string) string {
	u = strings.TrimSpace(u)
	u = strings.TrimSuffix(u, "/")
	u = strings.TrimSuffix(u, ".git")
	return strings.ToLower(u)
}

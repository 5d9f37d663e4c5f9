package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/repoinsight/config"
)

type Client struct {
	client     *oss.Client
	bucket     *oss.Bucket
	bucketName string
	cdnDomain  string
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &Client{
		client:     client,
		bucket:     bucket,
		bucketName: cfg.BucketName,
		cdnDomain:  cfg.CDNDomain,
	}, nil
}

// Name 存储后端名称
func (c *Client) Name() string { return "oss" }

// Put 上传报告对象，返回访问 URL。SDK 不接受 ctx，调用前检查是否已取消
func (c *Client) Put(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	err := c.bucket.PutObject(objectKey, bytes.NewReader(data), oss.ContentType(contentType))
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return c.GetURL(objectKey), nil
}

// Get 读取对象内容，参数可以是 object key 或 Put 返回的 URL
func (c *Client) Get(ctx context.Context, keyOrURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := c.bucket.GetObject(c.ExtractObjectKey(keyOrURL))
	if err != nil {
		return nil, fmt.Errorf("failed to download object: %w", err)
	}
	defer body.Close()
	return io.ReadAll(body)
}

// GetURL 获取文件访问 URL
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.client.Config.Endpoint, objectKey)
}

// ExtractObjectKey 从 URL 中提取 object key；不是 URL 时原样返回
func (c *Client) ExtractObjectKey(url string) string {
	if !strings.HasPrefix(url, "https://") && !strings.HasPrefix(url, "http://") {
		return url
	}
	if c.cdnDomain != "" {
		prefix := fmt.Sprintf("https://%s/", c.cdnDomain)
		if strings.HasPrefix(url, prefix) {
			return url[len(prefix):]
		}
	}
	return ObjectKeyFromURL(url)
}

// ObjectKeyFromURL 标准 OSS URL: https://bucket-name.endpoint/path/to/object
func ObjectKeyFromURL(url string) string {
	parts := strings.Split(url, "/")
	if len(parts) >= 4 {
		return strings.Join(parts[3:], "/")
	}
	return url
}

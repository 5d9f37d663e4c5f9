package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	OSS       OSSConfig       `mapstructure:"oss"`
	S3        S3Config        `mapstructure:"s3"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Reasoning ReasoningConfig `mapstructure:"reasoning"`
	Cache     CacheConfig     `mapstructure:"cache"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql, sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type QueueConfig struct {
	AnalysisQueue string `mapstructure:"analysis_queue"`
	MaxWorkers    int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// PipelineConfig 分析流水线参数
type PipelineConfig struct {
	CloneTimeoutSeconds  int      `mapstructure:"clone_timeout_seconds"`
	TaskTimeoutSeconds   int      `mapstructure:"task_timeout_seconds"`
	CacheTimeoutSeconds  int      `mapstructure:"cache_timeout_seconds"`
	NotifyTimeoutSeconds int      `mapstructure:"notify_timeout_seconds"`
	MaxFileBytes         int64    `mapstructure:"max_file_bytes"`       // 单文件读取上限
	QuickFileLimit       int      `mapstructure:"quick_file_limit"`     // quick 深度最多分析的文件数
	StandardFileLimit    int      `mapstructure:"standard_file_limit"`  // standard 深度
	DeepFileLimit        int      `mapstructure:"deep_file_limit"`      // deep 深度
	TreeMaxDepth         int      `mapstructure:"tree_max_depth"`       // 目录树最大深度
	BatchWindow          int      `mapstructure:"batch_window"`         // 批量任务并发窗口
	RegistrySize         int      `mapstructure:"registry_size"`        // 内存任务表容量
	ProgressBuffer       int      `mapstructure:"progress_buffer"`      // 进度通道缓冲
	IgnorePatterns       []string `mapstructure:"ignore_patterns"`      // 额外忽略规则
	CatalogueFile        string   `mapstructure:"catalogue_file"`       // 任务目录覆盖文件
	WorkDir              string   `mapstructure:"work_dir"`             // 克隆目录根
	ReportDir            string   `mapstructure:"report_dir"`           // 本地报告目录
}

type ReasoningConfig struct {
	Provider        string `mapstructure:"provider"` // gemini, ollama
	Model           string `mapstructure:"model"`
	Host            string `mapstructure:"host"`
	APIKey          string `mapstructure:"api_key"`
	MaxOutputTokens int    `mapstructure:"max_output_tokens"`
}

type CacheConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	TTLSeconds int    `mapstructure:"ttl_seconds"`
}

type GitHubConfig struct {
	Token   string `mapstructure:"token"`
	APIBase string `mapstructure:"api_base"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json
	Output string `mapstructure:"output"` // stdout, stderr, 文件路径
}

type CleanupConfig struct {
	CloneExpireHours     int `mapstructure:"clone_expire_hours"`
	ArchiveRetentionDays int `mapstructure:"archive_retention_days"` // 0 表示不清理
}

func (p PipelineConfig) CloneTimeout() time.Duration {
	return seconds(p.CloneTimeoutSeconds, 120)
}

func (p PipelineConfig) TaskTimeout() time.Duration {
	return seconds(p.TaskTimeoutSeconds, 90)
}

func (p PipelineConfig) CacheTimeout() time.Duration {
	return seconds(p.CacheTimeoutSeconds, 3)
}

func (p PipelineConfig) NotifyTimeout() time.Duration {
	return seconds(p.NotifyTimeoutSeconds, 10)
}

func (c CacheConfig) TTL() time.Duration {
	return seconds(c.TTLSeconds, 7*24*3600)
}

func seconds(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// Default 返回不依赖配置文件的默认配置
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "debug"},
		Database: DatabaseConfig{Driver: "sqlite", Database: "repoinsight.db", MaxIdleConns: 5, MaxOpenConns: 20},
		Redis:    RedisConfig{Host: "127.0.0.1", Port: 6379, PoolSize: 10},
		JWT:      JWTConfig{ExpireHours: 24},
		Queue:    QueueConfig{AnalysisQueue: "repoinsight:analysis_queue", MaxWorkers: 2},
		Pipeline: PipelineConfig{
			CloneTimeoutSeconds:  120,
			TaskTimeoutSeconds:   90,
			CacheTimeoutSeconds:  3,
			NotifyTimeoutSeconds: 10,
			MaxFileBytes:         256 * 1024,
			QuickFileLimit:       10,
			StandardFileLimit:    30,
			DeepFileLimit:        60,
			TreeMaxDepth:         4,
			BatchWindow:          3,
			RegistrySize:         1024,
			ProgressBuffer:       256,
			ReportDir:            filepath.Join(os.TempDir(), "repoinsight_reports"),
		},
		Reasoning: ReasoningConfig{Provider: "gemini", Model: "gemini-2.5-flash", Host: "http://localhost:11434", MaxOutputTokens: 4096},
		Cache:     CacheConfig{Enabled: true, KeyPrefix: "repoinsight:analysis", TTLSeconds: 7 * 24 * 3600},
		GitHub:    GitHubConfig{APIBase: "https://api.github.com"},
		Logging:   LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Cleanup:   CleanupConfig{CloneExpireHours: 6},
	}
}

func Load(configPath string) (*Config, error) {
	// .env 中的密钥先注入环境变量，文件不存在时忽略
	_ = godotenv.Load()

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

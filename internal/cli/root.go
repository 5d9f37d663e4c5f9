// Package cli 命令行入口：本地或远程仓库的一次性分析
package cli

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qs3c/repoinsight/config"
	"github.com/qs3c/repoinsight/internal/pkg/logger"
)

var version = "dev"

// cfg 由根命令在执行子命令前加载
var cfg = config.Default()

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "repoinsight",
		Short:         "Classify a repository and run multi-stage analysis over it.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			// 标准输出留给结果
			if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
				cfg.Logging.Output = "stderr"
			}
			logger.Init(cfg.Logging)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "config file path")
	root.AddCommand(newAnalyzeCmd(), newClassifyCmd(), newPlanCmd())
	return root
}

// loadConfig 配置文件不存在时使用默认配置
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		if _, lerr := os.Stat(filepath.Join(filepath.Dir(path), "config.local.yaml")); lerr != nil {
			return config.Default(), nil
		}
	}
	return config.Load(path)
}

// Execute 运行根命令
func Execute(ctx context.Context) int {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

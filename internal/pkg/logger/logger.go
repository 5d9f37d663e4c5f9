package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qs3c/repoinsight/config"
)

// Init 根据配置初始化全局 logrus
func Init(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		if cfg.Level != "" {
			logrus.Warnf("Invalid log level '%s', using 'info' instead. Error: %v", cfg.Level, err)
		}
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	logrus.SetOutput(openOutput(cfg.Output))
}

func openOutput(output string) io.Writer {
	switch strings.ToLower(output) {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logrus.Warnf("Failed to open log file '%s', using 'stdout' instead. Error: %v", output, err)
			return os.Stdout
		}
		return file
	}
}

// For 返回带组件字段的 logger
func For(component string) *logrus.Entry {
	return logrus.WithField("component", component)
}

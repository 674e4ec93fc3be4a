package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/thaiguide/imagecache/internal/config"
)

// InitLogger 构建 JSON 结构化日志。日志文件不可写时退回 stdout 并记录一条
// log_output_fallback，进程照常启动。包级 logrus 同步使用相同输出。
func InitLogger(cfg *config.Config) (*logrus.Logger, error) {
	if cfg == nil {
		return nil, errors.New("logger config is nil")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(newFormatter())

	sink, sinkErr := openSink(cfg)
	logger.SetOutput(sink)
	mirrorStandardLogger(logger)

	if sinkErr != nil {
		fmt.Fprintf(os.Stderr, "log_output_fallback: %v\n", sinkErr)
		logger.WithError(sinkErr).WithFields(logrus.Fields{
			"action": "log_output_fallback",
			"path":   cfg.LogFilePath,
		}).Warn("log file unavailable, writing to stdout")
	}
	return logger, nil
}

func newFormatter() logrus.Formatter {
	return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano}
}

func mirrorStandardLogger(logger *logrus.Logger) {
	std := logrus.StandardLogger()
	std.SetFormatter(logger.Formatter)
	std.SetOutput(logger.Out)
	std.SetLevel(logger.GetLevel())
}

// openSink 返回日志输出目标。lumberjack 首次写入时才打开文件，
// 这里先探测一次，避免权限问题延迟到运行期才暴露。
func openSink(cfg *config.Config) (io.Writer, error) {
	if cfg.LogFilePath == "" {
		return os.Stdout, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.LogFilePath), 0o755); err != nil {
		return os.Stdout, fmt.Errorf("create log dir: %w", err)
	}
	probe, err := os.OpenFile(cfg.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stdout, fmt.Errorf("open log file: %w", err)
	}
	probe.Close()

	return &lumberjack.Logger{
		Filename:   cfg.LogFilePath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
		Compress:   cfg.LogCompress,
		LocalTime:  true,
	}, nil
}

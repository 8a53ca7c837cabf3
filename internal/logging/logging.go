package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options 描述 logger 的构造参数。
//
// 约束：
// - 默认输出到 stderr（stdout 保留给非 TTY 模式下的 JSON 报告）
// - Format 只支持 console / json
type Options struct {
	Level  string
	Format string
	Writer io.Writer
}

// New 按 Options 构造 slog logger。
func New(opts Options) (*slog.Logger, error) {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "", "console":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// ParseLevel 把配置里的级别名映射为 slog.Level；未知值按 info 处理。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard 返回丢弃所有输出的 logger（测试与静默模式使用）。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

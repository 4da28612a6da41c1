package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger = zap.NewNop()
)

// L returns the process-wide logger. It is a no-op logger until Init runs.
func L() *zap.Logger { return globalLogger }

// Options controls where and how logs are written.
type Options struct {
	Level   zapcore.Level
	Console bool
	File    bool
	Path    string
	Format  string // legacy | json | console
	Caller  bool
}

// OptionsFromEnv reads LOG_LEVEL, LOG_TO_CONSOLE, LOG_TO_FILE, LOG_FILE, LOG_FORMAT and LOG_CALLER.
func OptionsFromEnv() Options {
	format := strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "legacy")))
	if format != "legacy" && format != "json" && format != "console" {
		format = "legacy"
	}
	return Options{
		Level:   parseLevel(getenvDefault("LOG_LEVEL", "info")),
		Console: strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true"),
		File:    strings.EqualFold(getenvDefault("LOG_TO_FILE", "true"), "true"),
		Path:    strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "lichess-board.log"))),
		Format:  format,
		Caller:  strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true"),
	}
}

// InitFromEnv initializes the global logger from environment variables.
func InitFromEnv() error { return Init(OptionsFromEnv()) }

// 간단 전역 로거 초기화. 콘솔+파일 동시 출력 지원.
// 둘 다 꺼져 있으면 로그는 버린다.
func Init(opts Options) error {
	var cores []zapcore.Core

	if opts.Console {
		cores = append(cores, zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(os.Stdout), opts.Level))
	}

	if opts.File {
		path := opts.Path
		if path == "" {
			path = filepath.Join("logs", "lichess-board.log")
		}
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder(opts.Format), zapcore.AddSync(f), opts.Level))
	}

	if len(cores) == 0 {
		globalLogger = zap.NewNop()
		return nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if opts.Caller || opts.Format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	globalLogger = logger
	return nil
}

// Sync flushes buffered log entries.
func Sync() { _ = globalLogger.Sync() }

func newEncoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig())
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}

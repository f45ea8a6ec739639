package logger

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Environments understood by New
const (
	EnvDev  = "dev"
	EnvProd = "prod"
	EnvTest = "test"
	// EnvCLI is for the contributor console: terse text without timestamps
	EnvCLI = "cli"
)

func createHandler(config Config) (slog.Handler, error) {
	env := strings.ToLower(config.Env)

	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(env, config.Level),
		AddSource: config.AddSource,
	}

	switch env {
	case EnvProd:
		opts.ReplaceAttr = replacer("", config.SourcePathLength, false)
		return slog.NewJSONHandler(config.Output, opts), nil

	case EnvDev:
		opts.ReplaceAttr = replacer(config.TimeFormat, config.SourcePathLength, false)
		return slog.NewTextHandler(config.Output, opts), nil

	case EnvCLI:
		opts.AddSource = false
		opts.ReplaceAttr = replacer("", 0, true)
		return slog.NewTextHandler(config.Output, opts), nil

	case EnvTest:
		return slog.NewTextHandler(config.Output, &slog.HandlerOptions{Level: slog.LevelError}), nil

	default:
		return nil, fmt.Errorf("unknown environment: %s (use 'dev', 'prod', 'cli' or 'test')", config.Env)
	}
}

func parseLogLevel(env, explicitLevel string) slog.Level {
	var level slog.Level
	if explicitLevel != "" && level.UnmarshalText([]byte(explicitLevel)) == nil {
		return level
	}

	switch env {
	case EnvDev:
		return slog.LevelDebug
	case EnvCLI:
		return slog.LevelWarn
	case EnvTest:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// replacer formats the time key (or drops it) and shortens source paths
func replacer(timeFormat string, pathLength int, dropTime bool) func([]string, slog.Attr) slog.Attr {
	return func(groups []string, a slog.Attr) slog.Attr {
		if len(groups) > 0 {
			return a
		}

		switch a.Key {
		case slog.TimeKey:
			if dropTime {
				return slog.Attr{}
			}
			if t, ok := a.Value.Any().(time.Time); ok && timeFormat != "" {
				a.Value = slog.StringValue(t.Format(timeFormat))
			}

		case slog.SourceKey:
			if source, ok := a.Value.Any().(*slog.Source); ok && source != nil && pathLength > 0 {
				source.File = shortenPath(source.File, pathLength)
			}
		}
		return a
	}
}

// shortenPath keeps the last segments of path
func shortenPath(path string, segments int) string {
	parts := strings.Split(filepath.ToSlash(path), "/")
	if segments <= 0 || len(parts) <= segments {
		return path
	}
	return strings.Join(parts[len(parts)-segments:], "/")
}

// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"trading-gate/internal/config"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// FromConfig converts the application logging section.
func FromConfig(cfg config.LoggingConfig) LogConfig {
	return LogConfig{
		Level:      cfg.Level,
		Console:    cfg.Console,
		File:       cfg.File,
		FilePath:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
// With neither sink enabled the logger discards everything.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	if w := rotatingFile(cfg); w != nil {
		writers = append(writers, w)
	}

	var sink io.Writer = io.Discard
	if len(writers) > 0 {
		sink = zerolog.MultiLevelWriter(writers...)
	}
	return zerolog.New(sink).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// rotatingFile returns the lumberjack sink, or nil when file logging is off
// or the log directory cannot be created.
func rotatingFile(cfg LogConfig) io.Writer {
	if !cfg.File || cfg.FilePath == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	}
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	level = strings.ToLower(level)
	if level == "warning" {
		level = "warn"
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

type ctxKey struct{}

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger attached to ctx, or a no-op logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithComponent adds a component name to the logger context.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}

// WithTrade adds a trade id to the logger context.
func WithTrade(logger zerolog.Logger, tradeID string) zerolog.Logger {
	return logger.With().Str("trade_id", tradeID).Logger()
}

// LogDecision logs a gate approval or rejection.
func LogDecision(logger zerolog.Logger, symbol string, approved bool, planID string, reasons []string) {
	event := logger.Info()
	if !approved {
		event = logger.Warn()
	}
	event.
		Str("event", "decision").
		Str("symbol", symbol).
		Bool("approved", approved).
		Str("plan_id", planID).
		Strs("reasons", reasons).
		Msg("Pre-trade decision")
}

// LogTransition logs a trade record status change.
func LogTransition(logger zerolog.Logger, tradeID, from, to string) {
	logger.Info().
		Str("event", "transition").
		Str("trade_id", tradeID).
		Str("from", from).
		Str("to", to).
		Msg("Trade record transition")
}

// LogLockout logs the day lockout.
func LogLockout(logger zerolog.Logger, date, reason string, losses, trades int) {
	logger.Warn().
		Str("event", "lockout").
		Str("date", date).
		Str("reason", reason).
		Int("losses", losses).
		Int("trades", trades).
		Msg("Trading locked for the day")
}

// LogPattern logs a flagged behavioural pattern such as revenge trading.
func LogPattern(logger zerolog.Logger, symbol, emotion string, intensity int) {
	logger.Warn().
		Str("event", "pattern").
		Str("symbol", symbol).
		Str("emotion", emotion).
		Int("intensity", intensity).
		Msg("Behavioural pattern flagged")
}

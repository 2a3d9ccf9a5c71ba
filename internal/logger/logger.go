package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string
	File       string // optional JSON log file with rotation
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// DefaultConfig returns the default logging configuration. The console stays
// quiet below warn; per-poll status lines go to stdout, not the logger.
func DefaultConfig() Config {
	return Config{
		Level:      "warn",
		MaxSizeMB:  100,
		MaxAgeDays: 30,
		MaxBackups: 5,
	}
}

var (
	level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	log   = newLogger(nil).Sugar()
)

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func newLogger(fileSink zapcore.WriteSyncer) *zap.Logger {
	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig()),
		zapcore.Lock(os.Stderr),
		level,
	)

	if fileSink == nil {
		return zap.New(consoleCore)
	}

	jsonCfg := encoderConfig()
	jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), fileSink, level)
	return zap.New(zapcore.NewTee(consoleCore, fileCore))
}

// Init configures the global logger from config. Safe to call more than once.
func Init(cfg Config) error {
	var parsed zapcore.Level
	if err := parsed.UnmarshalText([]byte(cfg.Level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	level.SetLevel(parsed)

	var fileSink zapcore.WriteSyncer
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("creating log directory: %w", err)
			}
		}
		fileSink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxAge:     cfg.MaxAgeDays,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		})
	}

	log = newLogger(fileSink).Sugar()
	return nil
}

// SetDebugMode lowers the level to debug, or restores the warn default.
func SetDebugMode(enabled bool) {
	if enabled {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.WarnLevel)
	}
}

// IsDebugEnabled returns whether debug logging is enabled.
func IsDebugEnabled() bool {
	return level.Enabled(zapcore.DebugLevel)
}

// Debug logs a formatted message at debug level.
func Debug(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Info logs a formatted message at info level.
func Info(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warn logs a formatted message at warn level.
func Warn(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Error logs a formatted message at error level.
func Error(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = log.Sync()
}

package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is an alias for zap's structured log field
type Field = zapcore.Field

// Helper functions for creating fields
var (
	// String creates a field with a string value
	String = zap.String
	// Int creates a field with an int value
	Int = zap.Int
	// Int64 creates a field with an int64 value
	Int64 = zap.Int64
	// Bool creates a field with a bool value
	Bool = zap.Bool
	// Duration creates a field with a time.Duration value
	Duration = zap.Duration
	// Error creates a field with an error value
	Error = zap.Error
	// Any creates a field with any value
	Any = zap.Any
)

// Logger is a wrapper around zap.Logger
type Logger struct {
	*zap.Logger
}

// Config represents logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

// colorLevelEncoder colors the level token for console output
func colorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color string
	switch level {
	case zapcore.ErrorLevel:
		color = "\033[1;31m" // red
	case zapcore.WarnLevel:
		color = "\033[1;33m" // yellow
	case zapcore.InfoLevel:
		color = "\033[1;36m" // cyan
	default:
		color = "\033[1;37m" // white
	}
	enc.AppendString(color + level.String() + "\033[0m")
}

// New creates a new logger with the given configuration
func New(config Config) (*Logger, error) {
	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var encoder zapcore.Encoder
	switch config.Format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console", "":
		encoderConfig.EncodeLevel = colorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", config.Format)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level)

	opts := []zap.Option{
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(1))
	}

	return &Logger{Logger: zap.New(core, opts...)}, nil
}

// NewNop returns a logger that discards everything, for tests
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// parseLevel parses the log level string
func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unsupported log level: %s", level)
	}
}

// With returns a logger with the given fields
func (l *Logger) With(fields ...zapcore.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// Named returns a logger with the given name
func (l *Logger) Named(name string) *Logger {
	return &Logger{Logger: l.Logger.Named(name)}
}

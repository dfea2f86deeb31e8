package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
)

var globalLogger zerolog.Logger

// Config holds logger configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: "2006-01-02 15:04:05.000",
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("%-7s", i))
			},
		}
	}

	globalLogger = zerolog.New(output).With().Timestamp().Caller().Logger()
}

// InitWithFile initializes the logger with stdout plus a rotated log file.
func InitWithFile(filename, level, format string) {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		panic(err)
	}

	logFile := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	Init(Config{
		Level:  level,
		Format: format,
		Output: io.MultiWriter(os.Stdout, logFile),
	})
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRequestID stores a request id in the context for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID returns the request id stored in ctx, if any.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if ctx != nil {
		if id := GetRequestID(ctx); id != "" {
			e = e.Str("request_id", id)
		}
	}
	return e
}

func Debug(ctx context.Context) *zerolog.Event {
	return event(ctx, globalLogger.Debug())
}

func Info(ctx context.Context) *zerolog.Event {
	return event(ctx, globalLogger.Info())
}

func Warn(ctx context.Context) *zerolog.Event {
	return event(ctx, globalLogger.Warn())
}

func Error(ctx context.Context) *zerolog.Event {
	return event(ctx, globalLogger.Error())
}

func Fatal(ctx context.Context) *zerolog.Event {
	return event(ctx, globalLogger.Fatal())
}

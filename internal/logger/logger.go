package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// LoggerInterface описывает логгер, которым пользуются пакеты проекта.
// *slog.Logger удовлетворяет ему.
type LoggerInterface interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

func NewLogger(level string) *slog.Logger {
	return New(level, os.Stdout)
}

func New(level string, w io.Writer) *slog.Logger {
	logLevel := ParseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	handler := slog.NewTextHandler(w, opts)

	return slog.New(handler)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard возвращает логгер, который ничего не пишет
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func SetupGlobalLogger(level string) {
	slog.SetDefault(NewLogger(level))
}

package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Setup configures the global slog logger based on environment
func Setup(environment string, level slog.Level) *slog.Logger {
	return SetupWriter(os.Stdout, environment, level)
}

// SetupWriter is Setup with an explicit destination. The console player logs
// to a file so output does not fight with the terminal UI.
func SetupWriter(w io.Writer, environment string, level slog.Level) *slog.Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if environment == "production" {
		// JSON format for production
		handler = slog.NewJSONHandler(w, opts)
	} else {
		// Text format for development
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// WithRequestID adds request ID to logger context
func WithRequestID(logger *slog.Logger, requestID string) *slog.Logger {
	return logger.With("request_id", requestID)
}

// WithSession adds the session id to logger context
func WithSession(logger *slog.Logger, sessionID uuid.UUID) *slog.Logger {
	return logger.With("session_id", sessionID.String())
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}

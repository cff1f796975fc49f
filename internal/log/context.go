package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

type contextKey string

const loggerContextKey contextKey = "logger"

// NewContext returns ctx carrying logger.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// FromContext extracts the logger stored by NewContext, or wraps the default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware puts logger into each request context and logs the outcome.
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(NewContext(r.Context(), logger)))

			level := slog.LevelDebug
			if rec.status >= 500 {
				level = slog.LevelError
			}
			fields := NewFields().
				WithHTTP(r.Method, r.URL.Path, rec.status, time.Since(start).Milliseconds()).
				WithComponent(logger.component)
			logger.Logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)
		})
	}
}

// StructuredLogger logs domain events with a consistent field set.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

func (sl *StructuredLogger) LogTransactionRecorded(ctx context.Context, userID, txID int64, kind, category string, amountCents int64) {
	fields := NewFields().
		WithUser(userID, 0).
		WithTransaction(txID, kind, category, amountCents).
		WithOperation(OpRecord)
	sl.logger.InfoContext(ctx, "Transaction recorded", fields.ToSlice()...)
}

// LogEvent records one handled conversation event at debug level.
func (sl *StructuredLogger) LogEvent(ctx context.Context, userID, chatID int64, kind string, duration time.Duration) {
	fields := NewFields().
		WithUser(userID, chatID).
		WithOperation(OpDispatch)
	fields[FieldEventKind] = kind
	fields[FieldDuration] = duration.Milliseconds()
	sl.logger.DebugContext(ctx, "Event handled", fields.ToSlice()...)
}

func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}

package logger

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "bountywatch"

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Logger is the structured logger handed to every component. Records are
// written to the configured sinks and to the OpenTelemetry log bridge.
type Logger struct {
	*zap.SugaredLogger
	tracer trace.Tracer
}

func New(cfg config.LoggerConfig) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	zapConfig.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	if cfg.Format == "console" {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.TimeKey = "timestamp"
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapConfig.OutputPaths = cfg.OutputPaths
	}
	zapConfig.InitialFields = map[string]interface{}{
		"service": serviceName,
		"version": Version,
	}

	base, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	bridge := otelzap.NewCore(serviceName,
		otelzap.WithVersion(Version),
		otelzap.WithAttributes(attribute.String("service", serviceName)),
	)
	teed := zap.New(zapcore.NewTee(base.Core(), bridge),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)

	return &Logger{
		SugaredLogger: teed.Sugar(),
		tracer:        otel.Tracer(serviceName),
	}, nil
}

// NewNop returns a logger that discards everything. Used by tests.
func NewNop() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		tracer:        otel.Tracer(serviceName),
	}
}

// Sync flushes buffered records. Terminals reject fsync; that is not an error.
func (l *Logger) Sync() error {
	err := l.SugaredLogger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}

func (l *Logger) with(fields ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.With(fields...),
		tracer:        l.tracer,
	}
}

// WithContext adds the trace and span IDs of the active span, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return l
	}
	return l.with(
		"trace_id", spanCtx.TraceID().String(),
		"span_id", spanCtx.SpanID().String(),
	)
}

func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

func (l *Logger) WithPlatform(platform string) *Logger {
	return l.with("platform", platform)
}

func (l *Logger) WithProgram(slug string) *Logger {
	return l.with("program", slug)
}

func (l *Logger) WithRunID(runID string) *Logger {
	return l.with("run_id", runID)
}

// spanEvent attaches an event to the active span, if it is recording.
func spanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) trace.Span {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
	return span
}

func (l *Logger) LogError(ctx context.Context, err error, operation string, fields ...interface{}) {
	if err == nil {
		return
	}

	errType := fmt.Sprintf("%T", err)
	l.WithContext(ctx).Errorw("Operation failed", append([]interface{}{
		"error", err.Error(),
		"operation", operation,
		"error_type", errType,
	}, fields...)...)

	span := spanEvent(ctx, "error_occurred",
		attribute.String("operation", operation),
		attribute.String("error_type", errType),
	)
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

func (l *Logger) LogPanic(ctx context.Context, recovered interface{}, operation string, fields ...interface{}) {
	l.WithContext(ctx).Errorw("Panic recovered", append([]interface{}{
		"panic", recovered,
		"operation", operation,
		"panic_type", fmt.Sprintf("%T", recovered),
	}, fields...)...)

	span := spanEvent(ctx, "panic_recovered",
		attribute.String("operation", operation),
		attribute.String("panic", fmt.Sprint(recovered)),
	)
	if span.IsRecording() {
		span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", recovered))
	}
}

// LogScopeChange records one add/remove/ignore decision made by the diff engine.
func (l *Logger) LogScopeChange(ctx context.Context, change string, platform, program, value, scopeType string) {
	l.WithContext(ctx).Debugw("Scope change",
		"scope_change", change,
		"platform", platform,
		"program", program,
		"value", value,
		"scope_type", scopeType,
	)

	spanEvent(ctx, "scope_change",
		attribute.String("change", change),
		attribute.String("program", program),
		attribute.String("value", value),
	)
}

// LogHTTPRequest logs at debug, warn or error depending on the status class.
func (l *Logger) LogHTTPRequest(ctx context.Context, method, url string, statusCode int, duration time.Duration, fields ...interface{}) {
	all := append([]interface{}{
		"http_method", method,
		"http_url", url,
		"http_status", statusCode,
		"duration_ms", duration.Milliseconds(),
	}, fields...)

	log := l.WithContext(ctx)
	switch {
	case statusCode >= 500:
		log.Errorw("HTTP request completed", all...)
	case statusCode >= 400:
		log.Warnw("HTTP request completed", all...)
	default:
		log.Debugw("HTTP request completed", all...)
	}

	span := spanEvent(ctx, "http_request",
		attribute.String("method", method),
		attribute.String("url", url),
		attribute.Int("status_code", statusCode),
	)
	if span.IsRecording() && statusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", statusCode))
	}
}

func (l *Logger) LogDatabaseOperation(ctx context.Context, operation string, table string, rowsAffected int64, duration time.Duration, fields ...interface{}) {
	l.WithContext(ctx).Debugw("Database operation completed", append([]interface{}{
		"db_operation", operation,
		"db_table", table,
		"rows_affected", rowsAffected,
		"duration_ms", duration.Milliseconds(),
	}, fields...)...)

	spanEvent(ctx, "database_operation",
		attribute.String("operation", operation),
		attribute.String("table", table),
		attribute.Int64("rows_affected", rowsAffected),
	)
}

// StartOperation opens a span named after operation. Pair it with
// FinishOperation.
func (l *Logger) StartOperation(ctx context.Context, operation string, fields ...interface{}) (context.Context, trace.Span) {
	ctx, span := l.tracer.Start(ctx, operation)
	l.WithContext(ctx).Debugw("Operation started", append([]interface{}{"operation", operation}, fields...)...)
	return ctx, span
}

// FinishOperation ends span. A non-nil err is logged through LogError.
func (l *Logger) FinishOperation(ctx context.Context, span trace.Span, operation string, start time.Time, err error, fields ...interface{}) {
	defer span.End()

	duration := time.Since(start)
	all := append([]interface{}{
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	}, fields...)

	if err != nil {
		l.LogError(ctx, err, operation, all...)
	} else {
		l.WithContext(ctx).Debugw("Operation completed successfully", all...)
		span.SetStatus(codes.Ok, "completed")
	}

	spanEvent(ctx, "operation_finished",
		attribute.String("operation", operation),
		attribute.Int64("duration_ms", duration.Milliseconds()),
		attribute.Bool("success", err == nil),
	)
}

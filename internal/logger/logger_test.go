package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  config.LoggerConfig
		wantErr bool
	}{
		{
			name:   "json config",
			config: config.LoggerConfig{Level: "debug", Format: "json"},
		},
		{
			name:   "console config",
			config: config.LoggerConfig{Level: "info", Format: "console"},
		},
		{
			name:    "invalid level",
			config:  config.LoggerConfig{Level: "invalid", Format: "json"},
			wantErr: true,
		},
		{
			name:   "empty config uses defaults",
			config: config.LoggerConfig{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestScopedLoggers(t *testing.T) {
	logger, err := New(config.LoggerConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	scoped := logger.
		WithComponent("diff").
		WithPlatform("hackerone").
		WithProgram("github").
		WithRunID("run-1")
	require.NotNil(t, scoped)
	scoped.Infow("scoped message", "key", "value")

	ctxLogger := scoped.WithContext(context.Background())
	assert.Same(t, scoped, ctxLogger)
}

func TestOperations(t *testing.T) {
	logger, err := New(config.LoggerConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	ctx, span := logger.StartOperation(context.Background(), "sync.platform", "platform", "bugcrowd")
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	logger.LogScopeChange(ctx, "add", "bugcrowd", "tesla", "*.tesla.com", "web")
	logger.LogHTTPRequest(ctx, "GET", "https://api.bugcrowd.com/programs", 503, 20*time.Millisecond)
	logger.LogDatabaseOperation(ctx, "delete", "history_events", 3, time.Millisecond)
	logger.LogError(ctx, nil, "noop")
	logger.FinishOperation(ctx, span, "sync.platform", time.Now(), errors.New("boom"))
}

func TestWithContextAddsTraceIDs(t *testing.T) {
	logger := NewNop()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	assert.NotSame(t, logger, logger.WithContext(ctx))
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestSyncIgnoresTerminalErrors(t *testing.T) {
	assert.NoError(t, NewNop().Sync())
}

func TestLoggerConcurrency(t *testing.T) {
	logger, err := New(config.LoggerConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			logger.WithPlatform("intigriti").Infow("concurrent log", "goroutine", id)
		}(i)
	}
	wg.Wait()
}

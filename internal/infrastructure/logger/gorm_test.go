package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

// newGormTestLogger returns a GormLogger over an observer core.
func newGormTestLogger(observeAt zapcore.Level, gormLevel gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(observeAt)
	return NewGormLogger(zap.New(core), gormLevel, opts...), recorded
}

// traceQuery is a fc stand-in for Trace tests.
func traceQuery(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func TestNewGormLogger(t *testing.T) {
	gormLog, _ := newGormTestLogger(zapcore.InfoLevel, gormlogger.Info)

	assert.NotNil(t, gormLog)
	assert.Equal(t, gormlogger.Info, gormLog.logLevel)
	assert.True(t, gormLog.ignoreRecordNotFoundError)
}

func TestGormLoggerOptions(t *testing.T) {
	gormLog, _ := newGormTestLogger(zapcore.InfoLevel, gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, 500*time.Millisecond, gormLog.slowThreshold)
	assert.False(t, gormLog.ignoreRecordNotFoundError)
}

func TestGormLogger_LogMode(t *testing.T) {
	gormLog, _ := newGormTestLogger(zapcore.InfoLevel, gormlogger.Info)

	clone := gormLog.LogMode(gormlogger.Warn)

	assert.Equal(t, gormlogger.Info, gormLog.logLevel, "original must be unchanged")

	typed, ok := clone.(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, typed.logLevel)
}

func TestGormLogger_Levels(t *testing.T) {
	t.Run("info", func(t *testing.T) {
		gormLog, recorded := newGormTestLogger(zapcore.InfoLevel, gormlogger.Info)
		gormLog.Info(context.Background(), "migrated %s", "connections")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "migrated connections")
	})

	t.Run("warn", func(t *testing.T) {
		gormLog, recorded := newGormTestLogger(zapcore.WarnLevel, gormlogger.Warn)
		gormLog.Warn(context.Background(), "retrying in %d", 42)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("error", func(t *testing.T) {
		gormLog, recorded := newGormTestLogger(zapcore.ErrorLevel, gormlogger.Error)
		gormLog.Error(context.Background(), "connection refused")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	})

	t.Run("silent suppresses info", func(t *testing.T) {
		gormLog, recorded := newGormTestLogger(zapcore.InfoLevel, gormlogger.Silent)
		gormLog.Info(context.Background(), "should not appear")

		assert.Empty(t, recorded.All())
	})
}

func TestGormLogger_Trace_Error(t *testing.T) {
	gormLog, recorded := newGormTestLogger(zapcore.ErrorLevel, gormlogger.Error)

	gormLog.Trace(context.Background(), time.Now(),
		traceQuery("SELECT * FROM connections", 0), errors.New("relation does not exist"))

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SQL Error")
}

func TestGormLogger_Trace_RecordNotFoundIgnored(t *testing.T) {
	gormLog, recorded := newGormTestLogger(zapcore.ErrorLevel, gormlogger.Error,
		WithIgnoreRecordNotFoundError(true))

	gormLog.Trace(context.Background(), time.Now(),
		traceQuery("SELECT * FROM connections WHERE id = ?", 0), gormlogger.ErrRecordNotFound)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace_SlowQuery(t *testing.T) {
	gormLog, recorded := newGormTestLogger(zapcore.WarnLevel, gormlogger.Warn,
		WithSlowThreshold(1*time.Nanosecond))

	begin := time.Now().Add(-1 * time.Second)
	gormLog.Trace(context.Background(), begin, traceQuery("SELECT * FROM sync_jobs", 10), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SLOW SQL")
}

func TestGormLogger_Trace_NormalQuery(t *testing.T) {
	gormLog, recorded := newGormTestLogger(zapcore.DebugLevel, gormlogger.Info)

	gormLog.Trace(context.Background(), time.Now(), traceQuery("SELECT * FROM sync_jobs", 5), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "SQL Query")
}

func TestGormLogger_Trace_Silent(t *testing.T) {
	gormLog, recorded := newGormTestLogger(zapcore.DebugLevel, gormlogger.Silent)

	gormLog.Trace(context.Background(), time.Now(), traceQuery("SELECT 1", 1), nil)

	assert.Empty(t, recorded.All())
}

func TestGormLogger_Trace_ContextIdentifiers(t *testing.T) {
	gormLog, recorded := newGormTestLogger(zapcore.DebugLevel, gormlogger.Info)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	ctx = context.WithValue(ctx, ConnectionIDKey, "conn-9")
	ctx = context.WithValue(ctx, JobIDKey, "job-9")

	gormLog.Trace(ctx, time.Now(), traceQuery("SELECT * FROM audit_log_entries", 5), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)

	got := map[string]string{}
	for _, field := range logs[0].Context {
		got[field.Key] = field.String
	}
	assert.Equal(t, "req-9", got["request_id"])
	assert.Equal(t, "conn-9", got["connection_id"])
	assert.Equal(t, "job-9", got["job_id"])
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"unknown", gormlogger.Warn},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}

func TestGormLoggerImplementsInterface(t *testing.T) {
	gormLog, _ := newGormTestLogger(zapcore.InfoLevel, gormlogger.Info)

	var _ gormlogger.Interface = gormLog
}

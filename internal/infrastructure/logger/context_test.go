package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

func TestContextEnrichment(t *testing.T) {
	base := zap.NewNop()
	ctx := context.Background()

	ctx, l := WithRequestID(ctx, base, "req-123")
	assert.NotNil(t, l)
	assert.Equal(t, "req-123", GetRequestID(ctx))

	ctx, _ = WithPracticeID(ctx, l, "prac-1")
	assert.Equal(t, "prac-1", GetPracticeID(ctx))

	ctx, _ = WithUserID(ctx, l, "user-1")
	assert.Equal(t, "user-1", GetUserID(ctx))
}

func TestFromContext_Missing(t *testing.T) {
	l := FromContext(context.Background())
	assert.NotNil(t, l)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}

func TestMapGormLogLevel(t *testing.T) {
	assert.Equal(t, gormlogger.Silent, MapGormLogLevel("silent"))
	assert.Equal(t, gormlogger.Info, MapGormLogLevel("debug"))
	assert.Equal(t, gormlogger.Warn, MapGormLogLevel(""))
}

package logger_test

import (
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"myduka-web/internal/core/logger"
)

func TestToWriter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	w := logger.ToWriter(zap.New(core), zapcore.WarnLevel)

	_, err := fmt.Fprintln(w, "[GIN-debug] route registered")
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	e := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, e.Level)
	assert.Equal(t, "[GIN-debug] route registered", e.Message)
}

func TestRedirectStdLog(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	undo := logger.RedirectStdLog(zap.New(core), zapcore.InfoLevel)
	log.Print("from std log")
	undo()
	log.Print("after undo")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "from std log", logs.All()[0].Message)
}

func TestNewFallsBackToInfo(t *testing.T) {
	l, flush := logger.New(logger.Options{Level: "loud"})
	defer flush()
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
}

func TestNewWithRotate(t *testing.T) {
	l, flush := logger.New(logger.Options{
		Level:  "debug",
		JSON:   true,
		Rotate: logger.FileRotate{Enable: true, Filename: t.TempDir() + "/web.log", MaxSizeMB: 1},
	})
	defer flush()
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	l.Info("written")
}

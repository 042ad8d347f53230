package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "swapd.log")
	cfg := DefaultConfig()
	cfg.LogFile = path
	cfg.Compress = false

	l, err := New(cfg)
	require.NoError(t, err)

	l.WithComponent("test").Info("hello", zap.String("k", "v"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestConsoleOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = ""
	l, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, l.Logger)
}

func TestWithOperationAndPerformance(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	base := zap.New(core)

	end := TrackPerformance(base, "swap")
	end()

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Starting operation", entries[0].Message)
	assert.Equal(t, "Operation completed", entries[1].Message)

	ctx := entries[1].ContextMap()
	assert.Equal(t, "swap", ctx["operation"])
	assert.NotEmpty(t, ctx["correlation_id"])
	assert.Contains(t, ctx, "duration")
}

func TestPoolFields(t *testing.T) {
	pool := &types.PoolState{AssetA: solana.NewWallet().PublicKey(), FeeRateBps: 30}
	fields := PoolFields(pool)
	require.Len(t, fields, 5)
	assert.Equal(t, "asset_a", fields[0].Key)
	assert.Equal(t, pool.AssetA.String(), fields[0].String)
}

func TestPrettyEncoder(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 4, 5, 0, time.UTC)
	buf, err := PrettyEncoder().EncodeEntry(zapcore.Entry{
		Level:      zapcore.WarnLevel,
		Time:       at,
		LoggerName: "program",
		Message:    "Request rejected",
	}, []zapcore.Field{zap.String("kind", "SlippageExceeded")})
	require.NoError(t, err)
	defer buf.Free()

	line := buf.String()
	assert.True(t, strings.HasPrefix(line, "09:04:05 "+ColorYellow+"[WARN]"+ColorReset), line)
	assert.Contains(t, line, "program Request rejected")
	assert.Contains(t, line, `{"kind": "SlippageExceeded"}`)
}

func TestPrettyConsole(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = ""
	cfg.Pretty = true
	l, err := New(cfg)
	require.NoError(t, err)
	l.Info("pretty console")
	_ = l.Sync()
}

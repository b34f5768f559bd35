package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"availability-dashboard/internal/config"
	"availability-dashboard/internal/storage"
)

const sample = `Plot name,metric (sf_metric),timestamp,value,hour
NOW,synthetic_monitoring_visible_stores,2026-02-01 00:00:00-05:00,1000,0
NOW,synthetic_monitoring_visible_stores,2026-02-01 00:10:00-05:00,1010,0
NOW,synthetic_monitoring_visible_stores,2026-02-01 01:00:00-05:00,1100,1
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "availability.csv")
	require.NoError(t, os.WriteFile(data, []byte(sample), 0o644))
	return &config.Config{
		LLMProvider:  config.ProviderOpenAI,
		LLMModel:     "gpt-4o-mini",
		OpenAIAPIKey: "test",
		DataPath:     data,
		QueryLogPath: filepath.Join(dir, "logs", "queries.jsonl"),
	}
}

func TestNew(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, a.Dataset.Summary().TotalRows)
	assert.IsType(t, &storage.FileRecorder{}, a.Recorder)
	assert.Same(t, a.Dataset, a.Agent.Dataset())
	require.NoError(t, a.Close())
}

func TestNew_Failures(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataPath = filepath.Join(t.TempDir(), "missing.csv")
	_, err := New(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "load dataset")

	cfg = testConfig(t)
	cfg.OpenAIAPIKey = ""
	_, err = New(context.Background(), cfg, zap.NewNop())
	assert.ErrorContains(t, err, "create llm client")
}

func TestNew_QueryLogOptional(t *testing.T) {
	cfg := testConfig(t)
	cfg.QueryLogPath = ""
	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, storage.Nop{}, a.Recorder)
	assert.NoError(t, a.Close())
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zap.InfoLevel))

	l, err = NewLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))

	_, err = NewLogger("chatty", false)
	assert.Error(t, err)
}

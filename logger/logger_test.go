package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLevel(t *testing.T) {

	tests := []struct {
		cfg     Config
		want    zapcore.Level
		wantErr bool
	}{
		{Config{}, zapcore.InfoLevel, false},
		{Config{Level: "warn"}, zapcore.WarnLevel, false},
		{Config{Level: "warn", Debug: true}, zapcore.DebugLevel, false},
		{Config{Level: "loud"}, zapcore.InfoLevel, true},
	}

	for _, tc := range tests {
		lvl, err := tc.cfg.level()

		if tc.wantErr {
			assert.Error(t, err, tc.cfg.Level)
			assert.Error(t, tc.cfg.Validate())
			continue
		}

		require.NoError(t, err)
		assert.Equal(t, tc.want, lvl)
	}
}

func TestConsole(t *testing.T) {

	var buf bytes.Buffer

	log, err := newLogger(Config{Level: "info"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("Processed image", zap.String("image", "000.png"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "Processed image")
	assert.Contains(t, out, "000.png")
}

func TestFile(t *testing.T) {

	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "dope.log")

	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.File = file

	log, err := newLogger(cfg, zapcore.AddSync(&buf))
	require.NoError(t, err)

	log.Debug("Detection", zap.Int("index", 0))
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "Detection", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, float64(0), entry["index"])

	assert.Contains(t, buf.String(), "Detection")
}

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, true, slog.LevelDebug)

	ctx := AppendCtx(context.Background(), slog.String("tool", "segimage2itkimage"))
	ctx = AppendCtx(ctx, slog.Int("segments", 2))
	log.InfoContext(ctx, "decoded")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "decoded", rec["msg"])
	assert.Equal(t, "segimage2itkimage", rec["tool"])
	assert.EqualValues(t, 2, rec["segments"])
}

func TestLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	log := Logger(&buf, false, slog.LevelWarn)
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRotatingWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qrctl.log")
	w := RotatingWriter(RotationConfig{Path: path, MaxSizeMB: 1})
	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.FileExists(t, path)
}

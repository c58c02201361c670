package app

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiHandler(t *testing.T) {
	var debug, info bytes.Buffer

	logger := slog.New(NewMultiHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)).With("schedule_id", 3).WithGroup("hold")

	logger.Debug("seat hold refreshed", "seat", "A1")
	logger.Info("seat hold taken", "seat", "A2")

	assert.Contains(t, debug.String(), "seat hold refreshed")
	assert.Contains(t, debug.String(), "hold.seat=A2")
	assert.NotContains(t, info.String(), "seat hold refreshed")
	assert.Contains(t, info.String(), "schedule_id=3")
	assert.Contains(t, info.String(), "hold.seat=A2")
}

func TestInitTelemetryWithoutCollector(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	shutdown, err := InitTelemetry(Config{Env: "test"}, logger)
	require.NoError(t, err)

	shutdown(context.Background())
	assert.Contains(t, out.String(), "skipping initialization")
}

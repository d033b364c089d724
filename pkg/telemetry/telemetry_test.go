package telemetry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWithoutInit(t *testing.T) {
	ctx, span := Start(context.Background(), "noop")
	defer span.End()
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
}

func TestInitEnabledWritesSpans(t *testing.T) {
	t.Setenv(EnvEnable, "1")
	dir := t.TempDir()

	require.NoError(t, Init("puppetstrap-test", dir))
	_, span := Start(context.Background(), "stage.hostname")
	span.End()
	require.NoError(t, Shutdown(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, "telemetry.jsonl"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "stage.hostname")

	t.Setenv(EnvEnable, "")
	require.NoError(t, Init("puppetstrap-test", dir))
	require.NoError(t, Shutdown(context.Background()))
}

func TestRunIDIsUUID(t *testing.T) {
	_, err := uuid.Parse(RunID())
	assert.NoError(t, err)
}

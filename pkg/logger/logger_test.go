package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"DEBUG":   zapcore.DebugLevel,
		"debug":   zapcore.DebugLevel,
		"INFO":    zapcore.InfoLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"ERROR":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), "input %q", in)
	}
}

func TestSetLevel(t *testing.T) {
	original := Level()
	t.Cleanup(func() { level.SetLevel(original) })

	require.NoError(t, SetLevel("ERROR"))
	assert.Equal(t, zapcore.ErrorLevel, Level())

	require.NoError(t, SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, Level())

	err := SetLevel("LOUD")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
	assert.Equal(t, zapcore.DebugLevel, Level())
}

func TestGetLogFileWriterCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "puppetstrap.log")

	w, err := GetLogFileWriter(path)
	require.NoError(t, err)
	require.NotNil(t, w)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFindWritableLogPathSkipsUnusable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	good := filepath.Join(dir, "ok", "app.log")
	path, err := FindWritableLogPath([]string{filepath.Join(blocker, "sub", "app.log"), good})
	require.NoError(t, err)
	assert.Equal(t, good, path)

	_, err = FindWritableLogPath(nil)
	assert.Error(t, err)
}

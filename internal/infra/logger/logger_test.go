package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"", zerolog.InfoLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tubebox.log")

	require.NoError(t, Init(Config{
		Output:     path,
		Level:      "info",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}))
	t.Cleanup(func() {
		_ = Init(Config{Output: "stderr", Level: "info"})
	})

	zlog.Info().Msg("hello file")
	zlog.Debug().Msg("hidden at info")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"hello file"`)
	assert.NotContains(t, string(data), "hidden at info")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInit_ReplacesFileAndClose(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.log")
	second := filepath.Join(dir, "second.log")
	t.Cleanup(func() {
		_ = Init(Config{Output: "stderr", Level: "info"})
	})

	require.NoError(t, Init(Config{Output: first, Level: "debug"}))
	zlog.Debug().Msg("to first")
	require.NoError(t, Init(Config{Output: second, Level: "debug"}))
	zlog.Debug().Msg("to second")
	require.NoError(t, Close())
	require.NoError(t, Close())

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to first")
	assert.NotContains(t, string(data), "to second")
	// Caller is only recorded at debug level
	assert.Contains(t, string(data), `"caller":"logger/logger_test.go:`)

	data, err = os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to second")
}

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	level, logger, format := zerolog.GlobalLevel(), log.Logger, zerolog.TimeFieldFormat
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
		zerolog.TimeFieldFormat = format
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "stderr", cfg.Output)
}

func TestSetup_InvalidLevel(t *testing.T) {
	restoreGlobals(t)
	_, _, err := Setup(LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestSetup_FileOutputJSON(t *testing.T) {
	restoreGlobals(t)
	path := filepath.Join(t.TempDir(), "previa.log")

	l, closer, err := Setup(LogConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	l.Info().Str("op", "create-job").Msg("state committed")
	cl := WithComponent("engine")
	cl.Debug().Msg("from component")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "state committed", first["message"])
	assert.Equal(t, "create-job", first["op"])
	assert.Contains(t, first, "time")
	assert.Contains(t, first, "caller")

	assert.Contains(t, string(lines[1]), `"component":"engine"`)
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "console", "15:04")
	l.Warn().Msg("persistent store unavailable")
	assert.Contains(t, buf.String(), "persistent store unavailable")
	assert.NotContains(t, buf.String(), "{", "console output should not be JSON")
}

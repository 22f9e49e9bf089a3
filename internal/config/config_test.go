package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "previa.db", c.DBPath)
	assert.Equal(t, "previa_works_state_v2", c.StorageKey)
	assert.Equal(t, 22.0, c.DefaultVAT)
	assert.Equal(t, 15*time.Second, c.DocumentTimeout)
	assert.Equal(t, 6, c.SeriesMonths)
	assert.Equal(t, language.Italian, c.Language())
	assert.Equal(t, "warn", c.LoggerConfig().Level)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "previa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
db_path: /var/lib/previa/state.db
default_vat: 10
document_timeout: 30s
log:
  level: debug
  format: json
`)
	t.Setenv("PREVIA_DEFAULT_VAT", "4")
	t.Setenv("PREVIA_LOG_OUTPUT", "stdout")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/previa/state.db", c.DBPath)
	assert.Equal(t, 4.0, c.DefaultVAT, "environment wins over the file")
	assert.Equal(t, 30*time.Second, c.DocumentTimeout)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
	assert.Equal(t, "stdout", c.LogOutput)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"vat too high", "PREVIA_DEFAULT_VAT", "120"},
		{"negative vat", "PREVIA_DEFAULT_VAT", "-1"},
		{"zero timeout", "PREVIA_DOCUMENT_TIMEOUT", "0s"},
		{"series", "PREVIA_SERIES_MONTHS", "0"},
		{"locale", "PREVIA_LOCALE", "not a locale!"},
		{"log format", "PREVIA_LOG_FORMAT", "xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load("")
			assert.ErrorContains(t, err, "config validation failed")
		})
	}
}

func TestLoad_EmptyEnvIsUnset(t *testing.T) {
	t.Setenv("PREVIA_DB_PATH", "")
	c, err := Load("")
	require.NoError(t, err)
	// Viper ignores empty variables unless AllowEmptyEnv is set.
	assert.Equal(t, "previa.db", c.DBPath)
}

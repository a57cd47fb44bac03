package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/search"
)

// isolate points the user config at an empty temp dir and clears the
// CANTOR_* overrides.
func isolate(t *testing.T) string {
	t.Helper()
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, k := range []string{
		"CANTOR_DB_PATH", "CANTOR_LOG_LEVEL", "CANTOR_MIN_TERM_FREQUENCY",
		"CANTOR_SYNONYM_TTL", "CANTOR_BOOST_MODE", "CANTOR_TELEMETRY",
	} {
		t.Setenv(k, "")
	}
	return xdg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration file exists
	cfg := NewConfig()

	// Then: the engine defaults are used
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, search.DefaultWeights(), cfg.SearchWeights())
	assert.Equal(t, "multiplicative", cfg.Search.BoostMode)

	assert.Equal(t, search.DefaultSynonymKey, cfg.Synonyms.SettingsKey)
	assert.Equal(t, 60*time.Second, cfg.Synonyms.CacheTTL)

	assert.Contains(t, cfg.Database.Path, filepath.Join(".cantor", "cantor.db"))
	assert.Equal(t, 16, cfg.Database.CacheMB)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Contains(t, cfg.Logging.File, "cantor.log")
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, time.Minute, cfg.Telemetry.FlushInterval)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_ReturnsDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectConfig(t *testing.T) {
	// Given: a project config overriding some search fields
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".cantor.yaml"), `
search:
  min_term_frequency: 3
  boost_mode: additive
synonyms:
  cache_ttl: 5s
database:
  path: /data/songs.db
`)

	// When: loading
	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: the file wins and untouched fields keep their defaults
	assert.Equal(t, 3, cfg.Search.MinTermFrequency)
	assert.Equal(t, "additive", cfg.Search.BoostMode)
	assert.Equal(t, 5*time.Second, cfg.Synonyms.CacheTTL)
	assert.Equal(t, "/data/songs.db", cfg.Database.Path)
	assert.Equal(t, 150, cfg.Search.ClusterRadius)

	w := cfg.SearchWeights()
	assert.Equal(t, search.BoostAdditive, w.BoostMode)
	assert.Equal(t, 3, w.MinTermFrequency)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".cantor.yml"), "search:\n  snippet_window: 80\n")
	writeFile(t, filepath.Join(dir, ".cantor.yaml"), "search:\n  snippet_window: 120\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 120, cfg.Search.SnippetWindow)

	require.NoError(t, os.Remove(filepath.Join(dir, ".cantor.yaml")))
	cfg, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Search.SnippetWindow)
}

func TestLoad_Precedence(t *testing.T) {
	// Given: user, project and env all set min_term_frequency
	xdg := isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(xdg, "cantor", "config.yaml"), `
search:
  min_term_frequency: 4
  proximity_window: 7
logging:
  level: warn
`)
	writeFile(t, filepath.Join(dir, ".cantor.yaml"), "search:\n  min_term_frequency: 5\n")
	t.Setenv("CANTOR_MIN_TERM_FREQUENCY", "6")

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Then: env > project > user > defaults
	assert.Equal(t, 6, cfg.Search.MinTermFrequency)
	assert.Equal(t, 7, cfg.Search.ProximityWindow)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("CANTOR_DB_PATH", "/tmp/x.db")
	t.Setenv("CANTOR_LOG_LEVEL", "DEBUG")
	t.Setenv("CANTOR_SYNONYM_TTL", "2m")
	t.Setenv("CANTOR_BOOST_MODE", "Additive")
	t.Setenv("CANTOR_TELEMETRY", "false")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Minute, cfg.Synonyms.CacheTTL)
	assert.Equal(t, "additive", cfg.Search.BoostMode)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_MalformedEnvIgnored(t *testing.T) {
	isolate(t)
	t.Setenv("CANTOR_MIN_TERM_FREQUENCY", "many")
	t.Setenv("CANTOR_SYNONYM_TTL", "-5s")
	t.Setenv("CANTOR_TELEMETRY", "perhaps")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.MinTermFrequency)
	assert.Equal(t, search.DefaultSynonymTTL, cfg.Synonyms.CacheTTL)
	assert.True(t, cfg.Telemetry.Enabled)
}

func TestLoad_TelemetryDisabledInFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".cantor.yaml"), "telemetry:\n  enabled: false\n  flush_interval: 30s\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.FlushInterval)
}

func TestLoad_InvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"malformed yaml", "search: [1, 2"},
		{"wrong type", "search:\n  min_term_frequency: lots\n"},
		{"bad boost mode", "search:\n  boost_mode: exponential\n"},
		{"negative limit", "search:\n  fuzzy_candidate_limit: -1\n"},
		{"bad log level", "logging:\n  level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, ".cantor.yaml"), tt.content)

			_, err := Load(dir)
			require.Error(t, err)
			assert.Equal(t, cerrors.ErrCodeConfigInvalid, cerrors.GetCode(err))
		})
	}
}

func TestValidate_Weights(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.TitleWeight = -1
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Search.TitleWeight = 0
	cfg.Search.ContentWeight = 0
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.Search.TitleWeight = 0
	assert.NoError(t, cfg.Validate(), "content only is allowed")
}

func TestLoggingSetup(t *testing.T) {
	cfg := NewConfig()
	cfg.Logging.File = "/var/log/cantor.log"

	lc := cfg.LoggingSetup(false)
	assert.Equal(t, "info", lc.Level)
	assert.Equal(t, "/var/log/cantor.log", lc.FilePath)
	assert.False(t, lc.WriteToStderr)

	lc = cfg.LoggingSetup(true)
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.WriteToStderr)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	// Given: a config with non-default values
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.SnippetWindow = 99
	cfg.Synonyms.CacheTTL = 90 * time.Second
	cfg.Database.Path = "/srv/cantor.db"

	// When: written as the project config and loaded back
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".cantor.yaml")))
	loaded, err := Load(dir)
	require.NoError(t, err)

	// Then: the values survive
	assert.Equal(t, cfg, loaded)
}

func TestGetUserConfigPath(t *testing.T) {
	xdg := isolate(t)
	assert.Equal(t, filepath.Join(xdg, "cantor", "config.yaml"), GetUserConfigPath())
	assert.Equal(t, filepath.Join(xdg, "cantor"), GetUserConfigDir())
	assert.False(t, UserConfigExists())

	writeFile(t, GetUserConfigPath(), "version: 1\n")
	assert.True(t, UserConfigExists())

	cfg, err := LoadUserConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, 1, cfg.Version)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "songs.db"), expandHome("~/songs.db"))
	assert.Equal(t, "/abs/songs.db", expandHome("/abs/songs.db"))
	assert.Equal(t, "rel.db", expandHome("rel.db"))
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	cerrors "github.com/Aman-CERP/cantor/internal/errors"
	"github.com/Aman-CERP/cantor/internal/logging"
	"github.com/Aman-CERP/cantor/internal/search"
)

// Config represents the complete cantor configuration.
type Config struct {
	Version   int             `yaml:"version" json:"version"`
	Database  DatabaseConfig  `yaml:"database" json:"database"`
	Search    SearchConfig    `yaml:"search" json:"search"`
	Synonyms  SynonymsConfig  `yaml:"synonyms" json:"synonyms"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// DatabaseConfig locates the song database.
type DatabaseConfig struct {
	// Path is the SQLite file. Defaults to ~/.cantor/cantor.db.
	Path string `yaml:"path" json:"path"`
	// CacheMB is the SQLite page cache size in MB (default: 16).
	CacheMB int `yaml:"cache_mb" json:"cache_mb"`
}

// SearchConfig tunes retrieval and ranking. Zero values fall back to the
// engine defaults.
type SearchConfig struct {
	TitleWeight   float64 `yaml:"title_weight" json:"title_weight"`
	ContentWeight float64 `yaml:"content_weight" json:"content_weight"`

	// MinTermFrequency is the document count under which a query term is
	// dropped as noise.
	MinTermFrequency int `yaml:"min_term_frequency" json:"min_term_frequency"`

	ClusterRadius          int `yaml:"cluster_radius" json:"cluster_radius"`
	IdealSpanPerTerm       int `yaml:"ideal_span_per_term" json:"ideal_span_per_term"`
	ProximityWindow        int `yaml:"proximity_window" json:"proximity_window"`
	StandardCandidateLimit int `yaml:"standard_candidate_limit" json:"standard_candidate_limit"`
	FuzzyCandidateLimit    int `yaml:"fuzzy_candidate_limit" json:"fuzzy_candidate_limit"`
	SnippetWindow          int `yaml:"snippet_window" json:"snippet_window"`

	// BoostMode is "multiplicative" (default) or "additive".
	BoostMode string `yaml:"boost_mode" json:"boost_mode"`
}

// SynonymsConfig locates and caches the synonym groups.
type SynonymsConfig struct {
	SettingsKey string        `yaml:"settings_key" json:"settings_key"`
	CacheTTL    time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// LoggingConfig configures the JSON log file.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// TelemetryConfig configures local query metrics.
type TelemetryConfig struct {
	// Enabled records query metrics into the database (default: true).
	Enabled bool `yaml:"enabled" json:"enabled"`
	// FlushInterval is how often metrics are written (default: 60s).
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval"`
}

var validBoostModes = map[string]bool{
	string(search.BoostMultiplicative): true,
	string(search.BoostAdditive):       true,
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	w := search.DefaultWeights()
	return &Config{
		Version: 1,
		Database: DatabaseConfig{
			Path:    DefaultDatabasePath(),
			CacheMB: 16,
		},
		Search: SearchConfig{
			TitleWeight:            w.TitleWeight,
			ContentWeight:          w.ContentWeight,
			MinTermFrequency:       w.MinTermFrequency,
			ClusterRadius:          w.ClusterRadius,
			IdealSpanPerTerm:       w.IdealSpanPerTerm,
			ProximityWindow:        w.ProximityWindow,
			StandardCandidateLimit: w.StandardCandidateLimit,
			FuzzyCandidateLimit:    w.FuzzyCandidateLimit,
			SnippetWindow:          w.SnippetWindow,
			BoostMode:              string(w.BoostMode),
		},
		Synonyms: SynonymsConfig{
			SettingsKey: search.DefaultSynonymKey,
			CacheTTL:    search.DefaultSynonymTTL,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      logging.DefaultLogPath(),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Telemetry: TelemetryConfig{
			Enabled:       true,
			FlushInterval: time.Minute,
		},
	}
}

// DefaultDatabasePath returns ~/.cantor/cantor.db.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".cantor", "cantor.db")
	}
	return filepath.Join(home, ".cantor", "cantor.db")
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory layout:
//   - $XDG_CONFIG_HOME/cantor/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/cantor/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cantor", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "cantor", "config.yaml")
	}
	return filepath.Join(home, ".config", "cantor", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	var cfg Config
	if err := readYAML(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return &cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/cantor/config.yaml)
//  3. Project config (.cantor.yaml in dir)
//  4. Environment variables (CANTOR_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "failed to load user config", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "failed to load project config", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, cerrors.New(cerrors.ErrCodeConfigInvalid, "invalid configuration", err).
			WithSuggestion("Run 'cantor config show' to inspect the effective configuration")
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, preferring
// .cantor.yaml over .cantor.yml. Empty means neither exists.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{".cantor.yaml", ".cantor.yml"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p
		}
	}
	return ""
}

func (c *Config) loadFromFile(dir string) error {
	path := ProjectConfigPath(dir)
	if path == "" {
		return nil
	}

	var parsed Config
	if err := readYAML(path, &parsed); err != nil {
		return err
	}
	c.mergeWith(&parsed)
	return nil
}

func readYAML(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Database.Path != "" {
		c.Database.Path = expandHome(other.Database.Path)
	}
	if other.Database.CacheMB != 0 {
		c.Database.CacheMB = other.Database.CacheMB
	}

	s, o := &c.Search, other.Search
	if o.TitleWeight != 0 {
		s.TitleWeight = o.TitleWeight
	}
	if o.ContentWeight != 0 {
		s.ContentWeight = o.ContentWeight
	}
	if o.MinTermFrequency != 0 {
		s.MinTermFrequency = o.MinTermFrequency
	}
	if o.ClusterRadius != 0 {
		s.ClusterRadius = o.ClusterRadius
	}
	if o.IdealSpanPerTerm != 0 {
		s.IdealSpanPerTerm = o.IdealSpanPerTerm
	}
	if o.ProximityWindow != 0 {
		s.ProximityWindow = o.ProximityWindow
	}
	if o.StandardCandidateLimit != 0 {
		s.StandardCandidateLimit = o.StandardCandidateLimit
	}
	if o.FuzzyCandidateLimit != 0 {
		s.FuzzyCandidateLimit = o.FuzzyCandidateLimit
	}
	if o.SnippetWindow != 0 {
		s.SnippetWindow = o.SnippetWindow
	}
	if o.BoostMode != "" {
		s.BoostMode = o.BoostMode
	}

	if other.Synonyms.SettingsKey != "" {
		c.Synonyms.SettingsKey = other.Synonyms.SettingsKey
	}
	if other.Synonyms.CacheTTL != 0 {
		c.Synonyms.CacheTTL = other.Synonyms.CacheTTL
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.File != "" {
		c.Logging.File = expandHome(other.Logging.File)
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}

	// Enabled can't be told apart from unset, so a section that sets any
	// field also sets Enabled.
	if other.Telemetry.Enabled || other.Telemetry.FlushInterval != 0 {
		c.Telemetry.Enabled = other.Telemetry.Enabled
	}
	if other.Telemetry.FlushInterval != 0 {
		c.Telemetry.FlushInterval = other.Telemetry.FlushInterval
	}
}

// applyEnvOverrides applies CANTOR_* environment variable overrides.
// Malformed values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CANTOR_DB_PATH"); v != "" {
		c.Database.Path = expandHome(v)
	}
	if v := os.Getenv("CANTOR_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CANTOR_MIN_TERM_FREQUENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MinTermFrequency = n
		}
	}
	if v := os.Getenv("CANTOR_SYNONYM_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Synonyms.CacheTTL = d
		}
	}
	if v := os.Getenv("CANTOR_BOOST_MODE"); v != "" {
		c.Search.BoostMode = strings.ToLower(v)
	}
	if v := os.Getenv("CANTOR_TELEMETRY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Telemetry.Enabled = b
		}
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.TitleWeight < 0 {
		return fmt.Errorf("search.title_weight must be non-negative, got %g", c.Search.TitleWeight)
	}
	if c.Search.ContentWeight < 0 {
		return fmt.Errorf("search.content_weight must be non-negative, got %g", c.Search.ContentWeight)
	}
	if c.Search.TitleWeight+c.Search.ContentWeight == 0 {
		return fmt.Errorf("search.title_weight and search.content_weight can't both be zero")
	}

	counts := map[string]int{
		"search.min_term_frequency":       c.Search.MinTermFrequency,
		"search.cluster_radius":           c.Search.ClusterRadius,
		"search.ideal_span_per_term":      c.Search.IdealSpanPerTerm,
		"search.proximity_window":         c.Search.ProximityWindow,
		"search.standard_candidate_limit": c.Search.StandardCandidateLimit,
		"search.fuzzy_candidate_limit":    c.Search.FuzzyCandidateLimit,
		"search.snippet_window":           c.Search.SnippetWindow,
		"database.cache_mb":               c.Database.CacheMB,
		"logging.max_size_mb":             c.Logging.MaxSizeMB,
		"logging.max_files":               c.Logging.MaxFiles,
	}
	for name, v := range counts {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %d", name, v)
		}
	}

	if c.Search.BoostMode != "" && !validBoostModes[strings.ToLower(c.Search.BoostMode)] {
		return fmt.Errorf("search.boost_mode must be 'multiplicative' or 'additive', got %s", c.Search.BoostMode)
	}
	if c.Synonyms.CacheTTL < 0 {
		return fmt.Errorf("synonyms.cache_ttl must be non-negative, got %s", c.Synonyms.CacheTTL)
	}
	if c.Telemetry.FlushInterval < 0 {
		return fmt.Errorf("telemetry.flush_interval must be non-negative, got %s", c.Telemetry.FlushInterval)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}
	return nil
}

// SearchWeights maps the search section onto engine weights.
func (c *Config) SearchWeights() search.Weights {
	return search.Weights{
		TitleWeight:            c.Search.TitleWeight,
		ContentWeight:          c.Search.ContentWeight,
		MinTermFrequency:       c.Search.MinTermFrequency,
		ClusterRadius:          c.Search.ClusterRadius,
		IdealSpanPerTerm:       c.Search.IdealSpanPerTerm,
		ProximityWindow:        c.Search.ProximityWindow,
		StandardCandidateLimit: c.Search.StandardCandidateLimit,
		FuzzyCandidateLimit:    c.Search.FuzzyCandidateLimit,
		SnippetWindow:          c.Search.SnippetWindow,
		BoostMode:              search.BoostMode(strings.ToLower(c.Search.BoostMode)),
	}
}

// LoggingSetup maps the logging section onto a logging.Config. debug
// forces the debug level and mirrors records to stderr.
func (c *Config) LoggingSetup(debug bool) logging.Config {
	lc := logging.Config{
		Level:     c.Logging.Level,
		FilePath:  c.Logging.File,
		MaxSizeMB: c.Logging.MaxSizeMB,
		MaxFiles:  c.Logging.MaxFiles,
	}
	if debug {
		lc.Level = "debug"
		lc.WriteToStderr = true
	}
	return lc
}

// WriteYAML writes the configuration to a YAML file, creating its
// directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// expandHome replaces a leading ~/ with the home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

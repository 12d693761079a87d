// Package config loads the engine's settings: where the event-store and
// template-preference documents live, the catch-up engine's timings, the
// matching engine's feature flags, and the mail-source connection block.
// Adapted from the teacher's internal/config/config.go: the same
// spf13/viper + gopkg.in/yaml.v3 read/unmarshal, SetDefault-per-field,
// marshal/write-whole-file pair, just re-scoped from a TUI mail client's
// account/UI/compose settings to the engine's own knobs.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// MailSourceAuthType is the authentication scheme the reference IMAP
// adapter uses to connect.
type MailSourceAuthType string

const (
	MailSourceAuthPassword MailSourceAuthType = "password"
)

// MailSourceConfig is the connection block consumed by
// internal/adapter/imap.
type MailSourceConfig struct {
	Host     string             `yaml:"host" mapstructure:"host"`
	Port     int                `yaml:"port" mapstructure:"port"`
	TLS      bool               `yaml:"tls" mapstructure:"tls"`
	Username string             `yaml:"username" mapstructure:"username"`
	Password string             `yaml:"password,omitempty" mapstructure:"password"`
	AuthType MailSourceAuthType `yaml:"auth_type" mapstructure:"auth_type"`
}

// StoreConfig names where the engine's persisted JSON documents live.
type StoreConfig struct {
	DataDir                 string `yaml:"data_dir" mapstructure:"data_dir"`
	EventStoreFile          string `yaml:"event_store_file" mapstructure:"event_store_file"`
	TemplatePreferencesFile string `yaml:"template_preferences_file" mapstructure:"template_preferences_file"`
}

// EventStorePath joins DataDir and EventStoreFile.
func (s StoreConfig) EventStorePath() string {
	return filepath.Join(s.DataDir, s.EventStoreFile)
}

// TemplatePreferencesPath joins DataDir and TemplatePreferencesFile.
func (s StoreConfig) TemplatePreferencesPath() string {
	return filepath.Join(s.DataDir, s.TemplatePreferencesFile)
}

// CatchupConfig mirrors internal/catchup.Config's durations in a
// YAML-friendly shape (string durations, parsed at Load time).
type CatchupConfig struct {
	TickInterval       string `yaml:"tick_interval" mapstructure:"tick_interval"`
	InitialDelay       string `yaml:"initial_delay" mapstructure:"initial_delay"`
	MaxDrainPerTick    int    `yaml:"max_drain_per_tick" mapstructure:"max_drain_per_tick"`
	NormalLookbackDays int    `yaml:"normal_lookback_days" mapstructure:"normal_lookback_days"`
	FullHistoryDays    int    `yaml:"full_history_days" mapstructure:"full_history_days"`
	SearchDebounce     string `yaml:"search_debounce" mapstructure:"search_debounce"`
	SearchMaxRetries   int    `yaml:"search_max_retries" mapstructure:"search_max_retries"`
	SearchRetryBackoff string `yaml:"search_retry_backoff" mapstructure:"search_retry_backoff"`
	ForceDrainInterval string `yaml:"force_drain_interval" mapstructure:"force_drain_interval"`
}

// MatchConfig tunes the matching engine.
type MatchConfig struct {
	EnableSecondarySignals bool `yaml:"enable_secondary_signals" mapstructure:"enable_secondary_signals"`
}

// Config is the engine's complete settings document.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Catchup    CatchupConfig    `yaml:"catchup" mapstructure:"catchup"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	MailSource MailSourceConfig `yaml:"mail_source" mapstructure:"mail_source"`
}

// TickIntervalDuration parses Catchup.TickInterval, falling back to 15m.
func (c CatchupConfig) TickIntervalDuration() time.Duration {
	return parseDurationOr(c.TickInterval, 15*time.Minute)
}

// InitialDelayDuration parses Catchup.InitialDelay, falling back to 10s.
func (c CatchupConfig) InitialDelayDuration() time.Duration {
	return parseDurationOr(c.InitialDelay, 10*time.Second)
}

// SearchDebounceDuration parses Catchup.SearchDebounce, falling back to 2s.
func (c CatchupConfig) SearchDebounceDuration() time.Duration {
	return parseDurationOr(c.SearchDebounce, 2*time.Second)
}

// SearchRetryBackoffDuration parses Catchup.SearchRetryBackoff, falling back to 5s.
func (c CatchupConfig) SearchRetryBackoffDuration() time.Duration {
	return parseDurationOr(c.SearchRetryBackoff, 5*time.Second)
}

// ForceDrainIntervalDuration parses Catchup.ForceDrainInterval, falling back to 30s.
func (c CatchupConfig) ForceDrainIntervalDuration() time.Duration {
	return parseDurationOr(c.ForceDrainInterval, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

var cfg *Config

// GetConfigPath returns the directory OSEM's config and data files live
// under: <home>/.config/OSEM, the same layout spec.md names as
// <app-data>/OSEM.
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "OSEM")
}

// GetConfigFile returns the path to the YAML settings document.
func GetConfigFile() string {
	return filepath.Join(GetConfigPath(), "config.yaml")
}

// ConfigExists reports whether a settings document has been written.
func ConfigExists() bool {
	_, err := os.Stat(GetConfigFile())
	return err == nil
}

// Load reads config.yaml, applying the same defaults DefaultConfig
// returns when a field is unset.
func Load() (*Config, error) {
	cfg = nil

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(GetConfigPath())
	viper.AddConfigPath(".")

	def := DefaultConfig()
	viper.SetDefault("store.data_dir", def.Store.DataDir)
	viper.SetDefault("store.event_store_file", def.Store.EventStoreFile)
	viper.SetDefault("store.template_preferences_file", def.Store.TemplatePreferencesFile)
	viper.SetDefault("catchup.tick_interval", def.Catchup.TickInterval)
	viper.SetDefault("catchup.initial_delay", def.Catchup.InitialDelay)
	viper.SetDefault("catchup.max_drain_per_tick", def.Catchup.MaxDrainPerTick)
	viper.SetDefault("catchup.normal_lookback_days", def.Catchup.NormalLookbackDays)
	viper.SetDefault("catchup.full_history_days", def.Catchup.FullHistoryDays)
	viper.SetDefault("catchup.search_debounce", def.Catchup.SearchDebounce)
	viper.SetDefault("catchup.search_max_retries", def.Catchup.SearchMaxRetries)
	viper.SetDefault("catchup.search_retry_backoff", def.Catchup.SearchRetryBackoff)
	viper.SetDefault("catchup.force_drain_interval", def.Catchup.ForceDrainInterval)
	viper.SetDefault("match.enable_secondary_signals", def.Match.EnableSecondarySignals)
	viper.SetDefault("mail_source.port", def.MailSource.Port)
	viper.SetDefault("mail_source.tls", def.MailSource.TLS)
	viper.SetDefault("mail_source.auth_type", def.MailSource.AuthType)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, err
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save marshals c to YAML and writes it to GetConfigFile().
func Save(c *Config) error {
	if err := os.MkdirAll(GetConfigPath(), 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(GetConfigFile(), data, 0o600)
}

// DefaultConfig returns the engine's out-of-the-box settings.
func DefaultConfig() *Config {
	dataDir := filepath.Join(GetConfigPath(), "data")
	return &Config{
		Store: StoreConfig{
			DataDir:                 dataDir,
			EventStoreFile:          "event-store.json",
			TemplatePreferencesFile: "template_preferences.json",
		},
		Catchup: CatchupConfig{
			TickInterval:       "15m",
			InitialDelay:       "10s",
			MaxDrainPerTick:    20,
			NormalLookbackDays: 14,
			FullHistoryDays:    3650,
			SearchDebounce:     "2s",
			SearchMaxRetries:   10,
			SearchRetryBackoff: "5s",
			ForceDrainInterval: "30s",
		},
		Match: MatchConfig{
			EnableSecondarySignals: false,
		},
		MailSource: MailSourceConfig{
			Port:     993,
			TLS:      true,
			AuthType: MailSourceAuthPassword,
		},
	}
}

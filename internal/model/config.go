package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// DirectusConfig holds the connection settings for the content API.
type DirectusConfig struct {
	// URL is the root URL of the Directus instance.
	URL string `mapstructure:"url" yaml:"url"`

	// AssetsURL serves transformed images. Defaults to URL + "/assets".
	AssetsURL string `mapstructure:"assets_url" yaml:"assets_url"`

	// OAuthProvider is the identity provider used by the OAuth login flow.
	OAuthProvider string `mapstructure:"oauth_provider" yaml:"oauth_provider"`

	// AdminRole is the role id granting access to the admin views, in
	// addition to the literal "admin" and "administrator" roles.
	AdminRole string `mapstructure:"admin_role" yaml:"admin_role"`
}

// NotificationConfig holds settings for toasts and backend polling.
type NotificationConfig struct {
	// Polling enables the background reconciler at startup.
	Polling bool `mapstructure:"polling" yaml:"polling"`

	// PollIntervalSec is how often (in seconds) to check for unread records.
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`

	// PageSize bounds the number of records fetched per poll.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	DefaultDurationMS int `mapstructure:"default_duration_ms" yaml:"default_duration_ms"`
	SocialDurationMS  int `mapstructure:"social_duration_ms" yaml:"social_duration_ms"`

	// VisibleToasts is how many toasts are rendered at once.
	VisibleToasts int `mapstructure:"visible_toasts" yaml:"visible_toasts"`

	// RetentionHours is the rolling window of persisted history.
	RetentionHours int `mapstructure:"retention_hours" yaml:"retention_hours"`
}

// PollInterval returns the polling interval as a duration.
func (c NotificationConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// StorageConfig holds local file locations.
type StorageConfig struct {
	DBPath  string `mapstructure:"db_path" yaml:"db_path"`
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Directus      DirectusConfig     `mapstructure:"directus" yaml:"directus"`
	Notifications NotificationConfig `mapstructure:"notifications" yaml:"notifications"`
	Storage       StorageConfig      `mapstructure:"storage" yaml:"storage"`
}

// envOverrides holds raw environment values layered over the config file.
type envOverrides struct {
	DirectusURL  string `env:"MEMEBOX_DIRECTUS_URL"`
	AssetsURL    string `env:"MEMEBOX_ASSETS_URL"`
	AdminRole    string `env:"MEMEBOX_ADMIN_ROLE"`
	Polling      *bool  `env:"MEMEBOX_POLLING"`
	PollInterval int    `env:"MEMEBOX_POLL_INTERVAL_SEC"`
	DBPath       string `env:"MEMEBOX_DB_PATH"`
	LogFile      string `env:"MEMEBOX_LOG_FILE"`
}

// configDir returns ~/.config/memebox, falling back to the working directory.
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "memebox")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/memebox/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := configDir()
	return &AppConfig{
		Directus: DirectusConfig{
			URL:           "http://localhost:8055",
			OAuthProvider: "github",
		},
		Notifications: NotificationConfig{
			Polling:           false,
			PollIntervalSec:   30,
			PageSize:          10,
			DefaultDurationMS: 5000,
			SocialDurationMS:  7000,
			VisibleToasts:     3,
			RetentionHours:    24,
		},
		Storage: StorageConfig{
			DBPath:  filepath.Join(dir, "memebox.db"),
			LogFile: filepath.Join(dir, "memebox.log"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper,
// then applies MEMEBOX_* environment overrides. If the file does not exist,
// the defaults are used.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("directus.url", cfg.Directus.URL)
	v.SetDefault("directus.oauth_provider", cfg.Directus.OAuthProvider)
	v.SetDefault("notifications.poll_interval_sec", cfg.Notifications.PollIntervalSec)
	v.SetDefault("notifications.page_size", cfg.Notifications.PageSize)
	v.SetDefault("notifications.default_duration_ms", cfg.Notifications.DefaultDurationMS)
	v.SetDefault("notifications.social_duration_ms", cfg.Notifications.SocialDurationMS)
	v.SetDefault("notifications.visible_toasts", cfg.Notifications.VisibleToasts)
	v.SetDefault("notifications.retention_hours", cfg.Notifications.RetentionHours)
	v.SetDefault("storage.db_path", cfg.Storage.DBPath)
	v.SetDefault("storage.log_file", cfg.Storage.LogFile)

	if err := v.ReadInConfig(); err != nil {
		_, isPathErr := err.(*os.PathError)
		_, isNotFound := err.(viper.ConfigFileNotFoundError)
		if !isPathErr && !isNotFound {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// applyEnv layers MEMEBOX_* environment variables over cfg.
func applyEnv(cfg *AppConfig) error {
	var raw envOverrides
	if err := env.Parse(&raw); err != nil {
		return fmt.Errorf("parsing environment: %w", err)
	}

	if raw.DirectusURL != "" {
		cfg.Directus.URL = raw.DirectusURL
	}
	if raw.AssetsURL != "" {
		cfg.Directus.AssetsURL = raw.AssetsURL
	}
	if raw.AdminRole != "" {
		cfg.Directus.AdminRole = raw.AdminRole
	}
	if raw.Polling != nil {
		cfg.Notifications.Polling = *raw.Polling
	}
	if raw.PollInterval > 0 {
		cfg.Notifications.PollIntervalSec = raw.PollInterval
	}
	if raw.DBPath != "" {
		cfg.Storage.DBPath = raw.DBPath
	}
	if raw.LogFile != "" {
		cfg.Storage.LogFile = raw.LogFile
	}
	return nil
}

// normalize fills derived values and repairs out-of-range settings.
func (c *AppConfig) normalize() {
	if c.Directus.AssetsURL == "" {
		c.Directus.AssetsURL = c.Directus.URL + "/assets"
	}
	n := &c.Notifications
	if n.PollIntervalSec <= 0 {
		n.PollIntervalSec = 30
	}
	if n.PageSize <= 0 {
		n.PageSize = 10
	}
	if n.DefaultDurationMS <= 0 {
		n.DefaultDurationMS = 5000
	}
	if n.SocialDurationMS <= 0 {
		n.SocialDurationMS = 7000
	}
	if n.VisibleToasts <= 0 {
		n.VisibleToasts = 3
	}
	if n.RetentionHours <= 0 {
		n.RetentionHours = 24
	}
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("directus", cfg.Directus)
	v.Set("notifications", cfg.Notifications)
	v.Set("storage", cfg.Storage)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the service settings. The supervisor core consumes only
// MultiSession and ServerPath; the rest configures the wrapping process.
type Config struct {
	MultiSession      bool   `mapstructure:"multi_session"`
	ServerPath        string `mapstructure:"server_path"`
	SessionHelperPath string `mapstructure:"session_helper_path"`
	LogLevel          string `mapstructure:"log_level"`
	LogFormat         string `mapstructure:"log_format"`
	LogFile           string `mapstructure:"log_file"`
	LogMaxSizeMB      int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups     int    `mapstructure:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		ServerPath:        "/usr/bin/slateview-server",
		SessionHelperPath: "/usr/bin/slateview-session-helper",
		LogLevel:          "info",
		LogFormat:         "text",
		LogMaxSizeMB:      50,
		LogMaxBackups:     3,
	}
}

// Load reads the config file (default /etc/slateview/service.yaml) merged
// over Default(). Environment variables prefixed SLATEVIEW_ override file
// values. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("service")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	// Register every key with its default so env overrides apply even to
	// keys the config file leaves unset.
	v.SetDefault("multi_session", cfg.MultiSession)
	v.SetDefault("server_path", cfg.ServerPath)
	v.SetDefault("session_helper_path", cfg.SessionHelperPath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)

	v.SetEnvPrefix("SLATEVIEW")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings the service cannot run without.
func (c *Config) Validate() error {
	if c.ServerPath == "" {
		return fmt.Errorf("config: server_path must not be empty")
	}
	if !filepath.IsAbs(c.ServerPath) {
		return fmt.Errorf("config: server_path must be absolute, got %q", c.ServerPath)
	}
	if c.MultiSession && c.SessionHelperPath == "" {
		return fmt.Errorf("config: session_helper_path required when multi_session is enabled")
	}
	return nil
}

func configDir() string {
	if dir := os.Getenv("SLATEVIEW_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/slateview"
}

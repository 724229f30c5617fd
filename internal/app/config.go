package app

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/tldr-it-stepankutaj/reconkit/internal/logging"
)

// EnvPrefix prefixes every environment override, e.g. RECONKIT_WORKSPACE.
const EnvPrefix = "RECONKIT"

// Config contains global runtime configuration.
type Config struct {
	Workspace string
	Database  string
	LogLevel  string
	LogFormat string
	LogFile   string
	Timeout   time.Duration
	TUI       bool
}

// SetDefaults registers defaults and environment binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workspace", "./work")
	v.SetDefault("database", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("log_file", "")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("tui", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// A missing file is not an error; variables already set are kept.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadConfig builds Config from v, reading the config file first when one is set.
func LoadConfig(v *viper.Viper) (Config, error) {
	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}
	cfg := Config{
		Workspace: strings.TrimSpace(v.GetString("workspace")),
		Database:  strings.TrimSpace(v.GetString("database")),
		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogFile:   v.GetString("log_file"),
		Timeout:   v.GetDuration("timeout"),
		TUI:       v.GetBool("tui"),
	}
	if cfg.Database == "" && cfg.Workspace != "" {
		cfg.Database = filepath.Join(cfg.Workspace, "reconkit.db")
	}
	if cfg.TUI && cfg.LogFile == "" && cfg.Workspace != "" {
		cfg.LogFile = filepath.Join(cfg.Workspace, "logs", "reconkit.log")
	}
	return cfg, cfg.Validate()
}

// Validate returns error if configuration is invalid.
func (c Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace cannot be empty")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format: %s", c.LogFormat)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Logging returns the logger settings of c.
func (c Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

// WatchLogLevel re-applies log_level to logger whenever the config file changes.
// It does nothing when no config file is in use.
func WatchLogLevel(v *viper.Viper, logger *logrus.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		ApplyLogLevel(v, logger, e)
	})
	v.WatchConfig()
}

// ApplyLogLevel handles one config file event.
func ApplyLogLevel(v *viper.Viper, logger *logrus.Logger, e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}
	level, err := logging.ParseLevel(v.GetString("log_level"))
	if err != nil {
		logger.WithError(err).WithField("file", e.Name).Warn("ignoring config change")
		return
	}
	if level != logger.GetLevel() {
		logger.SetLevel(level)
		logger.WithField("level", level.String()).Info("log level changed")
	}
}

package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, "./work", cfg.Workspace)
	assert.Equal(t, filepath.Join("work", "reconkit.db"), cfg.Database)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.LogFile)
	assert.False(t, cfg.TUI)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RECONKIT_WORKSPACE", dir)
	t.Setenv("RECONKIT_LOG_LEVEL", "debug")
	t.Setenv("RECONKIT_TUI", "true")
	t.Setenv("RECONKIT_TIMEOUT", "5s")

	cfg, err := LoadConfig(newViper())
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.Workspace)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, filepath.Join(dir, "logs", "reconkit.log"), cfg.LogFile, "the TUI owns the terminal")
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workspace: /tmp/engagement\nlog_format: json\ndatabase: /tmp/x.db\n"), 0o600))

	v := newViper()
	v.SetConfigFile(path)
	cfg, err := LoadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/engagement", cfg.Workspace)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "/tmp/x.db", cfg.Database)
}

func TestValidate(t *testing.T) {
	good := Config{Workspace: "w", LogLevel: "warn", LogFormat: "text", Timeout: time.Second}
	require.NoError(t, good.Validate())

	cases := map[string]func(*Config){
		"empty workspace":  func(c *Config) { c.Workspace = "" },
		"bad level":        func(c *Config) { c.LogLevel = "loud" },
		"bad format":       func(c *Config) { c.LogFormat = "xml" },
		"zero timeout":     func(c *Config) { c.Timeout = 0 },
		"negative timeout": func(c *Config) { c.Timeout = -time.Second },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := good
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RECONKIT_TEST_ENV_VALUE=from-file\n"), 0o600))
	t.Setenv("RECONKIT_TEST_ENV_VALUE", "")
	require.NoError(t, os.Unsetenv("RECONKIT_TEST_ENV_VALUE"))

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("RECONKIT_TEST_ENV_VALUE"))
}

func TestApplyLogLevel(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	v := newViper()

	v.Set("log_level", "debug")
	ApplyLogLevel(v, logger, fsnotify.Event{Name: "reconkit.yaml", Op: fsnotify.Write})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	v.Set("log_level", "nonsense")
	ApplyLogLevel(v, logger, fsnotify.Event{Name: "reconkit.yaml", Op: fsnotify.Write})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	v.Set("log_level", "error")
	ApplyLogLevel(v, logger, fsnotify.Event{Name: "reconkit.yaml", Op: fsnotify.Chmod})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel(), "chmod is not a content change")
}

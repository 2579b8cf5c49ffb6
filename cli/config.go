package cli

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	EnvVaultFile        = "KEYVAULT_FILE"
	EnvConfig           = "KEYVAULT_CONFIG"
	EnvClipboardTimeout = "KEYVAULT_CLIPBOARD_TIMEOUT"
	EnvLogLevel         = "KEYVAULT_LOG_LEVEL"

	defaultVaultFile  = ".passwords.keyvault"
	defaultConfigFile = ".config/keyvault/config.yaml"
)

// Config holds the settings of the command line tool.
type Config struct {
	VaultFile        string        `yaml:"vault_file"`
	ClipboardTimeout time.Duration `yaml:"clipboard_timeout"`
	LogLevel         string        `yaml:"log_level"`
}

// DefaultConfig returns the built-in settings. VaultFile is relative to the
// home directory until LoadConfig resolves it.
func DefaultConfig() Config {
	return Config{
		VaultFile:        filepath.Join("~", defaultVaultFile),
		ClipboardTimeout: 30 * time.Second,
		LogLevel:         "warn",
	}
}

// LoadConfig layers the configuration: defaults, then the YAML file, then
// variables from the dotenv files (".env" if none are given), then the
// process environment. Variables already set in the environment win over
// dotenv files.
func LoadConfig(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, errors.Wrap(err, "loading dotenv file")
	}

	cfg := DefaultConfig()

	path, explicit := os.LookupEnv(EnvConfig)
	if !explicit {
		path = filepath.Join("~", defaultConfigFile)
	}
	path, err := expandHome(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.VaultFile, err = expandHome(cfg.VaultFile); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvVaultFile); v != "" {
		c.VaultFile = v
	}
	if v := os.Getenv(EnvClipboardTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parsing %s", EnvClipboardTimeout)
		}
		c.ClipboardTimeout = d
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the values that cannot be fixed up silently.
func (c Config) Validate() error {
	if c.VaultFile == "" {
		return fmt.Errorf("vault_file cannot be empty")
	}
	if c.ClipboardTimeout < 0 {
		return fmt.Errorf("clipboard_timeout cannot be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// NewLogger builds the logger described by c, writing to w.
func (c Config) NewLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(lvl)
	}
	return l
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "locating home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

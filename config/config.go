// Package config loads lockbox settings from defaults, an optional YAML file,
// LOCKBOX_* environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	KeyVaultDir         = "vault_dir"
	KeyVaultFile        = "vault_file"
	KeyMetaFile         = "meta_file"
	KeyClipboardTimeout = "clipboard_timeout"
	KeyAutoSave         = "autosave"
	KeyLogLevel         = "log_level"
	KeyLogFile          = "log_file"

	EnvPrefix = "LOCKBOX"
	fileName  = ".lockbox"
)

var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	VaultDir         string
	VaultFile        string
	MetaFile         string
	ClipboardTimeout time.Duration
	AutoSave         bool
	LogLevel         string
	LogFile          string
}

func (c *Config) VaultPath() string { return filepath.Join(c.VaultDir, c.VaultFile) }
func (c *Config) MetaPath() string  { return filepath.Join(c.VaultDir, c.MetaFile) }

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyVaultDir, "~/.lockbox")
	v.SetDefault(KeyVaultFile, "vault.enc")
	v.SetDefault(KeyMetaFile, "config.json")
	v.SetDefault(KeyClipboardTimeout, 30*time.Second)
	v.SetDefault(KeyAutoSave, true)
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyLogFile, "")
}

// flag name -> config key
var flagKeys = map[string]string{
	"vault-dir":         KeyVaultDir,
	"clipboard-timeout": KeyClipboardTimeout,
	"autosave":          KeyAutoSave,
	"log-level":         KeyLogLevel,
	"log-file":          KeyLogFile,
}

// RegisterFlags adds the persistent flags that override configuration.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default is $HOME/.lockbox.yaml)")
	fs.String("vault-dir", "", "directory holding the vault and its metadata")
	fs.Duration("clipboard-timeout", 0, "clear copied secrets after this long")
	fs.Bool("autosave", true, "write the vault back after every change")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("log-file", "", "write logs to this file instead of stderr")
}

// BindFlags binds the flags added by RegisterFlags to their config keys.
// Unset flags do not shadow file or environment values.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind %s flag: %w", name, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and environment binding,
// and reads configFile. With an empty configFile $HOME/.lockbox.yaml is used
// if present.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(fileName)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load resolves and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	dir, err := expandHome(v.GetString(KeyVaultDir))
	if err != nil {
		return nil, err
	}
	c := &Config{
		VaultDir:         dir,
		VaultFile:        strings.TrimSpace(v.GetString(KeyVaultFile)),
		MetaFile:         strings.TrimSpace(v.GetString(KeyMetaFile)),
		ClipboardTimeout: v.GetDuration(KeyClipboardTimeout),
		AutoSave:         v.GetBool(KeyAutoSave),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFile:          v.GetString(KeyLogFile),
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch {
	case c.VaultDir == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyVaultDir)
	case c.VaultFile == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyVaultFile)
	case c.MetaFile == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyMetaFile)
	case c.VaultFile == c.MetaFile:
		return fmt.Errorf("%w: vault and metadata files must differ", ErrInvalid)
	case c.ClipboardTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyClipboardTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	case "":
		c.LogLevel = "warn"
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalid, c.LogLevel)
	}
	return nil
}

func expandHome(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

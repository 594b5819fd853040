// Package config loads the davdiscover command settings from defaults, an
// optional YAML file, DAVDISCOVER_* environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cyp0633/davdiscover/davclient"
)

// EnvPrefix is prepended to every environment variable, e.g.
// DAVDISCOVER_PASSWORD
const EnvPrefix = "DAVDISCOVER"

// Output formats
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

var outputs = []string{OutputText, OutputJSON, OutputYAML}

type Config struct {
	URL      string        `mapstructure:"url"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Path     string        `mapstructure:"path"`
	Only     []string      `mapstructure:"only"`
	Output   string        `mapstructure:"output"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Debug    bool          `mapstructure:"debug"`
}

// DefaultConfig returns the settings used when nothing else is given
func DefaultConfig() *Config {
	return &Config{
		Only:    []string{},
		Output:  OutputText,
		Timeout: 30 * time.Second,
	}
}

// LoadOptions tells Load where to look besides the environment
type LoadOptions struct {
	// ConfigFile is a YAML file; empty means none
	ConfigFile string
	// Flags are bound by name, see flagKeys
	Flags *pflag.FlagSet
	// URL beats every other source when set
	URL string
}

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"url":      "url",
	"user":     "username",
	"password": "password",
	"path":     "path",
	"only":     "only",
	"output":   "output",
	"timeout":  "timeout",
	"debug":    "debug",
}

var ErrInvalid = errors.New("invalid configuration")

// Load merges all sources and validates the result
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("url", defaults.URL)
	v.SetDefault("username", defaults.Username)
	v.SetDefault("password", defaults.Password)
	v.SetDefault("path", defaults.Path)
	v.SetDefault("only", defaults.Only)
	v.SetDefault("output", defaults.Output)
	v.SetDefault("timeout", defaults.Timeout)
	v.SetDefault("debug", defaults.Debug)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if opts.URL != "" {
		v.Set("url", opts.URL)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: a server URL is required", ErrInvalid)
	}
	c.Output = strings.ToLower(c.Output)
	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("%w: output must be one of %s, got %q", ErrInvalid, strings.Join(outputs, ", "), c.Output)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalid, c.Timeout)
	}
	if _, err := c.Supports(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Supports turns Only into a discovery filter
func (c *Config) Supports() (davclient.Supports, error) {
	return davclient.ParseSupports(c.Only)
}

// Discovery builds the library configuration for one run
func (c *Config) Discovery() (*davclient.Config, error) {
	only, err := c.Supports()
	if err != nil {
		return nil, err
	}
	cfg := davclient.DefaultConfig()
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.PathOverride = c.Path
	cfg.Supports = only
	return cfg, nil
}

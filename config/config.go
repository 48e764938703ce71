// Package config loads apikit settings from an optional file, APIKIT_* environment
// variables and explicit overrides, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. APIKIT_API_BASE_URL.
const EnvPrefix = "APIKIT"

type Config struct {
	API  APIConfig  `mapstructure:"api"`
	Auth AuthConfig `mapstructure:"auth"`
	UI   UIConfig   `mapstructure:"ui"`
	Log  LogConfig  `mapstructure:"log"`
}

type APIConfig struct {
	// BaseURL is absolute or a path prefix resolved against Origin.
	BaseURL string        `mapstructure:"base_url"`
	Origin  string        `mapstructure:"origin"`
	Timeout time.Duration `mapstructure:"timeout"`
	Cookies bool          `mapstructure:"cookies"`

	// Headers are sent with every call.
	Headers         map[string]string `mapstructure:"headers"`
	RequestIDHeader string            `mapstructure:"request_id_header"`
}

type AuthConfig struct {
	TokenKey   string `mapstructure:"token_key"`
	TokenFile  string `mapstructure:"token_file"`
	LoginRoute string `mapstructure:"login_route"`
}

type UIConfig struct {
	LoadingTitle string `mapstructure:"loading_title"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Defaults returns every key with its default value. Keys must be listed here
// for environment variables to reach Unmarshal.
func Defaults() map[string]any {
	return map[string]any{
		"api.base_url":          "/api",
		"api.origin":            "http://localhost",
		"api.timeout":           10 * time.Second,
		"api.cookies":           false,
		"api.headers":           map[string]string{},
		"api.request_id_header": "X-Request-ID",
		"auth.token_key":        "token",
		"auth.token_file":       "",
		"auth.login_route":      "/pages/login/login",
		"ui.loading_title":      "Loading...",
		"log.level":             "info",
		"log.format":            "console",
	}
}

type Option func(*viper.Viper)

// WithOverrides sets keys that win over file and environment, e.g. from CLI flags.
// Empty string values are ignored so unset flags do not mask other sources.
func WithOverrides(kv map[string]any) Option {
	return func(v *viper.Viper) {
		for k, val := range kv {
			if s, ok := val.(string); ok && s == "" {
				continue
			}
			v.Set(k, val)
		}
	}
}

// WithEnvPrefix replaces EnvPrefix.
func WithEnvPrefix(prefix string) Option {
	return func(v *viper.Viper) { v.SetEnvPrefix(prefix) }
}

// Load reads path (yaml, json or toml by extension) if non-empty and returns the merged config.
func Load(path string, opts ...Option) (Config, error) {
	v := viper.New()
	for k, val := range Defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.API.BaseURL) == "" {
		errs = append(errs, errors.New("api.base_url is empty"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout))
	}
	if c.Auth.TokenKey == "" {
		errs = append(errs, errors.New("auth.token_key is empty"))
	}
	return errors.Join(errs...)
}

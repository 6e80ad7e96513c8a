package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

// DefaultRateLimitPerMinute is applied when auth.rateLimitPerMinute is unset.
const DefaultRateLimitPerMinute = 30

// Config is the immutable process-wide configuration. It is loaded once in
// main and passed by reference into every component constructor.
type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort    string        `mapstructure:"HTTPPort"`
		MetricsPort string        `mapstructure:"metricsPort"`
		Timeout     time.Duration `mapstructure:"HTTPTimeout"`
	} `mapstructure:"server"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Auth AuthConfig `mapstructure:"auth"`
}

// AuthConfig carries the fixed authentication policy: signing material,
// token lifetimes and the lockout thresholds.
type AuthConfig struct {
	SecretKey          string        `mapstructure:"secretKey"`
	Issuer             string        `mapstructure:"issuer"`
	AccessTokenTTL     time.Duration `mapstructure:"accessTokenTTL"`
	RefreshTokenTTL    time.Duration `mapstructure:"refreshTokenTTL"`
	ResetTokenTTL      time.Duration `mapstructure:"resetTokenTTL"`
	MaxLoginAttempts   int           `mapstructure:"maxLoginAttempts"`
	LockoutDuration    time.Duration `mapstructure:"lockoutDuration"`
	RateLimitPerMinute int           `mapstructure:"rateLimitPerMinute"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("GHARNEST")
	// Nested keys map to env names with underscores: auth.secretKey is
	// overridden by GHARNEST_AUTH_SECRETKEY.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if c.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secretKey must be set")
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		return fmt.Errorf("auth.maxLoginAttempts must be positive")
	}
	if c.Auth.LockoutDuration <= 0 {
		return fmt.Errorf("auth.lockoutDuration must be positive")
	}
	return nil
}

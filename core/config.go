package core

import (
	"fmt"
	"strings"
	"time"
)

type DefaultsConfig struct {
	Role       string `koanf:"role" mapstructure:"role"`
	Visibility string `koanf:"visibility" mapstructure:"visibility"`
	Locale     string `koanf:"locale" mapstructure:"locale"`
}

type TokenConfig struct {
	ResetTTL  time.Duration `koanf:"reset_ttl" mapstructure:"reset_ttl"`
	Retention time.Duration `koanf:"retention" mapstructure:"retention"`
}

type MailConfig struct {
	From string `koanf:"from" mapstructure:"from"`
}

type Config struct {
	ServiceName      string         `koanf:"service_name" mapstructure:"service_name"`
	WebhookSecret    string         `koanf:"webhook_secret" mapstructure:"webhook_secret"`
	DeploymentSecret string         `koanf:"deployment_secret" mapstructure:"deployment_secret"`
	BaseURL          string         `koanf:"base_url" mapstructure:"base_url"`
	SupportedLocales []string       `koanf:"supported_locales" mapstructure:"supported_locales"`
	Defaults         DefaultsConfig `koanf:"defaults" mapstructure:"defaults"`
	Tokens           TokenConfig    `koanf:"tokens" mapstructure:"tokens"`
	Mail             MailConfig     `koanf:"mail" mapstructure:"mail"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:      "fulfillment",
		SupportedLocales: []string{"en", "de", "fr", "es"},
		Defaults: DefaultsConfig{
			Role:       "user",
			Visibility: string(ScopePurchased),
			Locale:     "en",
		},
		Tokens: TokenConfig{
			ResetTTL:  24 * time.Hour,
			Retention: 30 * 24 * time.Hour,
		},
		Mail: MailConfig{
			From: "no-reply@localhost",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Tokens.ResetTTL <= 0 {
		return fmt.Errorf("core: tokens.reset_ttl must be positive")
	}
	if c.Tokens.Retention <= 0 {
		return fmt.Errorf("core: tokens.retention must be positive")
	}
	if strings.TrimSpace(c.Defaults.Locale) == "" {
		return fmt.Errorf("core: defaults.locale is required")
	}
	return nil
}

package core

import (
	"fmt"
	"strings"
	"time"
)

type ConsentConfig struct {
	LoginBaseURL  string        `koanf:"login_base_url" mapstructure:"login_base_url"`
	RedirectURL   string        `koanf:"redirect_url" mapstructure:"redirect_url"`
	ResultBaseURL string        `koanf:"result_base_url" mapstructure:"result_base_url"`
	StateTTL      time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
}

type ProvisionConfig struct {
	Timeout     time.Duration `koanf:"timeout" mapstructure:"timeout"`
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type ScoreConfig struct {
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Consent     ConsentConfig   `koanf:"consent" mapstructure:"consent"`
	Provision   ProvisionConfig `koanf:"provision" mapstructure:"provision"`
	Score       ScoreConfig     `koanf:"score" mapstructure:"score"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "posture",
		Consent: ConsentConfig{
			LoginBaseURL:  DefaultLoginBaseURL,
			ResultBaseURL: "/consent/result",
			StateTTL:      defaultConsentStateTTL,
		},
		Provision: ProvisionConfig{
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
		},
		Score: ScoreConfig{
			Timeout: 30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Consent.StateTTL < 0 {
		return fmt.Errorf("core: consent.state_ttl must not be negative")
	}
	if c.Provision.Timeout < 0 {
		return fmt.Errorf("core: provision.timeout must not be negative")
	}
	if c.Score.Timeout < 0 {
		return fmt.Errorf("core: score.timeout must not be negative")
	}
	return nil
}

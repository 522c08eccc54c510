package msgraph

import (
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-posture/auth"
	"github.com/goliatone/go-posture/core"
)

const (
	ProviderID = "msgraph"

	DefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
)

type Config struct {
	GraphBaseURL string
	LoginBaseURL string

	// Operator application identity used for cross-tenant provisioning.
	OperatorClientID     string
	OperatorClientSecret string

	Transport   core.Transport
	TokenSource auth.TokenSource
	Logger      core.Logger
	Timeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		GraphBaseURL: DefaultGraphBaseURL,
		LoginBaseURL: core.DefaultLoginBaseURL,
		Timeout:      30 * time.Second,
	}
}

// Provider talks to the graph API on behalf of customer tenants. It serves
// both sides of the workflow: registering the delegated application after
// admin consent, and pulling the secure score feeds once credentials are
// stored.
type Provider struct {
	config    Config
	tokens    auth.TokenSource
	transport core.Transport
	logger    core.Logger
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if strings.TrimSpace(cfg.GraphBaseURL) == "" {
		cfg.GraphBaseURL = defaults.GraphBaseURL
	}
	cfg.GraphBaseURL = strings.TrimRight(strings.TrimSpace(cfg.GraphBaseURL), "/")
	if strings.TrimSpace(cfg.LoginBaseURL) == "" {
		cfg.LoginBaseURL = defaults.LoginBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("msgraph: transport is required")
	}
	tokens := cfg.TokenSource
	if tokens == nil {
		tokens = auth.NewClientCredentialsSource(auth.ClientCredentialsConfig{
			LoginBaseURL: cfg.LoginBaseURL,
			Transport:    cfg.Transport,
			Timeout:      cfg.Timeout,
		})
	}

	return &Provider{
		config:    cfg,
		tokens:    tokens,
		transport: cfg.Transport,
		logger:    glog.Ensure(cfg.Logger),
	}, nil
}

func (*Provider) ID() string {
	return ProviderID
}

func (p *Provider) operatorToken(tenantID string) auth.TokenRequest {
	return auth.TokenRequest{
		TenantID:     tenantID,
		ClientID:     p.config.OperatorClientID,
		ClientSecret: p.config.OperatorClientSecret,
	}
}

var (
	_ core.Provisioner = (*Provider)(nil)
	_ core.ScoreSource = (*Provider)(nil)
)

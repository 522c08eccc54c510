package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-posture/core"
)

// DefaultGraphScope requests every application permission the tenant admin
// consented to, resolved by the token endpoint itself.
const DefaultGraphScope = "https://graph.microsoft.com/.default"

const (
	defaultTokenRenewBefore = 2 * time.Minute
	defaultTokenTimeout     = 30 * time.Second
)

type TokenRequest struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// TokenSource exchanges per-tenant client credentials for bearer tokens.
type TokenSource interface {
	Token(ctx context.Context, req TokenRequest) (Token, error)
}

type ClientCredentialsConfig struct {
	LoginBaseURL string
	Transport    core.Transport
	RenewBefore  time.Duration
	Timeout      time.Duration
	Now          func() time.Time
}

type cachedToken struct {
	token Token
}

// ClientCredentialsSource acquires tokens from each customer tenant's own
// token endpoint and caches them per tenant and client until shortly
// before expiry. The operator's application identity is the same across
// tenants, but every token is tenant-scoped, so the cache key carries the
// tenant identifier.
type ClientCredentialsSource struct {
	config ClientCredentialsConfig
	mu     sync.Mutex
	cache  map[string]cachedToken
}

func NewClientCredentialsSource(cfg ClientCredentialsConfig) *ClientCredentialsSource {
	base := strings.TrimRight(strings.TrimSpace(cfg.LoginBaseURL), "/")
	if base == "" {
		base = core.DefaultLoginBaseURL
	}
	renewBefore := cfg.RenewBefore
	if renewBefore <= 0 {
		renewBefore = defaultTokenRenewBefore
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTokenTimeout
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &ClientCredentialsSource{
		config: ClientCredentialsConfig{
			LoginBaseURL: base,
			Transport:    cfg.Transport,
			RenewBefore:  renewBefore,
			Timeout:      timeout,
			Now:          now,
		},
		cache: map[string]cachedToken{},
	}
}

func (s *ClientCredentialsSource) Token(ctx context.Context, req TokenRequest) (Token, error) {
	if s == nil || s.config.Transport == nil {
		return Token{}, fmt.Errorf("auth: client credentials source requires a transport")
	}
	tenantID := strings.TrimSpace(req.TenantID)
	clientID := strings.TrimSpace(req.ClientID)
	clientSecret := strings.TrimSpace(req.ClientSecret)
	if tenantID == "" {
		return Token{}, fmt.Errorf("auth: tenant id is required")
	}
	if clientID == "" {
		return Token{}, fmt.Errorf("auth: client id is required")
	}
	if clientSecret == "" {
		return Token{}, fmt.Errorf("auth: client secret is required")
	}

	scopes := normalizeValues(req.Scopes)
	if len(scopes) == 0 {
		scopes = []string{DefaultGraphScope}
	}

	cacheKey := tenantID + "|" + clientID + "|" + strings.Join(scopes, " ")
	if token, ok := s.lookupCachedToken(cacheKey); ok {
		return token, nil
	}

	token, err := s.fetchToken(ctx, tenantID, clientID, clientSecret, scopes)
	if err != nil {
		return Token{}, err
	}
	s.storeCachedToken(cacheKey, token)
	return token, nil
}

// Invalidate drops any cached token for the tenant and client pair. Called
// after the stored secret is rotated.
func (s *ClientCredentialsSource) Invalidate(tenantID string, clientID string) {
	if s == nil {
		return
	}
	prefix := strings.TrimSpace(tenantID) + "|" + strings.TrimSpace(clientID) + "|"
	s.mu.Lock()
	for key := range s.cache {
		if strings.HasPrefix(key, prefix) {
			delete(s.cache, key)
		}
	}
	s.mu.Unlock()
}

func (s *ClientCredentialsSource) fetchToken(
	ctx context.Context,
	tenantID string,
	clientID string,
	clientSecret string,
	scopes []string,
) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", clientID)
	form.Set("client_secret", clientSecret)
	form.Set("scope", strings.Join(scopes, " "))

	response, err := s.config.Transport.Do(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", s.config.LoginBaseURL, tenantID),
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		Body:    []byte(form.Encode()),
		Timeout: s.config.Timeout,
	})
	if err != nil {
		return Token{}, fmt.Errorf("auth: token request for tenant %s: %w", tenantID, err)
	}

	var payload struct {
		AccessToken      string `json:"access_token"`
		TokenType        string `json:"token_type"`
		ExpiresIn        int    `json:"expires_in"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	if unmarshalErr := json.Unmarshal(response.Body, &payload); unmarshalErr != nil && response.StatusCode == http.StatusOK {
		return Token{}, fmt.Errorf("auth: decode token response for tenant %s: %w", tenantID, unmarshalErr)
	}

	if response.StatusCode != http.StatusOK || payload.AccessToken == "" {
		return Token{}, ClassifyTokenError(tenantID, payload.Error, payload.ErrorDescription, response.StatusCode)
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	tokenType := strings.TrimSpace(payload.TokenType)
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return Token{
		AccessToken: payload.AccessToken,
		TokenType:   tokenType,
		ExpiresAt:   s.config.Now().UTC().Add(time.Duration(expiresIn) * time.Second),
	}, nil
}

func (s *ClientCredentialsSource) lookupCachedToken(cacheKey string) (Token, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.cache[cacheKey]
	if !ok {
		return Token{}, false
	}
	now := s.config.Now().UTC()
	if !cached.token.ExpiresAt.After(now.Add(s.config.RenewBefore)) {
		delete(s.cache, cacheKey)
		return Token{}, false
	}
	return cached.token, true
}

func (s *ClientCredentialsSource) storeCachedToken(cacheKey string, token Token) {
	s.mu.Lock()
	s.cache[cacheKey] = cachedToken{token: token}
	s.mu.Unlock()
}

var _ TokenSource = (*ClientCredentialsSource)(nil)

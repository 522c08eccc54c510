package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	defaultConsentStateTTL        = 15 * time.Minute
	defaultConsentStateMaxEntries = 1024
)

var (
	ErrStateMalformed = errors.New("core: consent state token is malformed")

	ErrConsentStateNotFound = errors.New("core: consent state not found")
	ErrConsentStateExpired  = errors.New("core: consent state expired")
)

// ConsentState is the correlation token carried through the external
// admin-consent redirect. It travels through a third party's redirect and
// browser history, so it must never hold secrets.
type ConsentState struct {
	CustomerID string    `json:"customer_id"`
	ClientID   string    `json:"client_id"`
	TenantID   string    `json:"tenant_id"`
	Scopes     []string  `json:"scopes,omitempty"`
	Nonce      string    `json:"nonce,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
}

func (s ConsentState) Validate() error {
	if strings.TrimSpace(s.CustomerID) == "" {
		return fmt.Errorf("core: consent state customer id is required")
	}
	if strings.TrimSpace(s.ClientID) == "" {
		return fmt.Errorf("core: consent state client id is required")
	}
	if strings.TrimSpace(s.TenantID) == "" {
		return fmt.Errorf("core: consent state tenant id is required")
	}
	return nil
}

// EncodeConsentState serializes the state to a compact URL-safe token.
func EncodeConsentState(state ConsentState) (string, error) {
	if err := state.Validate(); err != nil {
		return "", err
	}
	if state.IssuedAt.IsZero() {
		state.IssuedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("core: encode consent state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeConsentState reverses EncodeConsentState. It never panics on
// arbitrary input; malformed tokens yield ErrStateMalformed so callers can
// respond with a user-safe message instead of the raw decode error.
func DecodeConsentState(token string) (ConsentState, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return ConsentState{}, fmt.Errorf("%w: empty token", ErrStateMalformed)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		if padded, padErr := base64.URLEncoding.DecodeString(token); padErr == nil {
			raw = padded
		} else {
			return ConsentState{}, fmt.Errorf("%w: %v", ErrStateMalformed, err)
		}
	}
	state := ConsentState{}
	if err := json.Unmarshal(raw, &state); err != nil {
		return ConsentState{}, fmt.Errorf("%w: %v", ErrStateMalformed, err)
	}
	if err := state.Validate(); err != nil {
		return ConsentState{}, fmt.Errorf("%w: %v", ErrStateMalformed, err)
	}
	return state, nil
}

// Expired reports whether the state was issued longer than ttl ago. The
// token is unsigned and client-visible; the TTL plus the one-time-use store
// below are the replay defense.
func (s ConsentState) Expired(ttl time.Duration, now time.Time) bool {
	if ttl <= 0 {
		ttl = defaultConsentStateTTL
	}
	if s.IssuedAt.IsZero() {
		return true
	}
	return now.After(s.IssuedAt.Add(ttl))
}

type ConsentStateRecord struct {
	Nonce      string
	CustomerID string
	TenantID   string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// ConsentStateStore tracks issued consent nonces for one-time use. Consume
// removes the record so a replayed callback cannot be accepted twice.
type ConsentStateStore interface {
	Save(ctx context.Context, record ConsentStateRecord) error
	Consume(ctx context.Context, nonce string) (ConsentStateRecord, error)
}

type MemoryConsentStateStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]ConsentStateRecord
	nowFn      func() time.Time
}

func NewMemoryConsentStateStore(ttl time.Duration) *MemoryConsentStateStore {
	return NewMemoryConsentStateStoreWithLimits(ttl, defaultConsentStateMaxEntries)
}

func NewMemoryConsentStateStoreWithLimits(ttl time.Duration, maxEntries int) *MemoryConsentStateStore {
	if ttl <= 0 {
		ttl = defaultConsentStateTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultConsentStateMaxEntries
	}
	return &MemoryConsentStateStore{
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    map[string]ConsentStateRecord{},
		nowFn:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryConsentStateStore) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn()
}

func (s *MemoryConsentStateStore) Save(_ context.Context, record ConsentStateRecord) error {
	if s == nil {
		return fmt.Errorf("core: consent state store is not configured")
	}
	nonce := strings.TrimSpace(record.Nonce)
	if nonce == "" {
		return fmt.Errorf("core: consent state nonce is required")
	}

	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	s.pruneLocked(now)
	s.entries[nonce] = record
	s.evictOldestLocked()
	s.mu.Unlock()

	return nil
}

func (s *MemoryConsentStateStore) Consume(_ context.Context, nonce string) (ConsentStateRecord, error) {
	if s == nil {
		return ConsentStateRecord{}, fmt.Errorf("core: consent state store is not configured")
	}
	nonce = strings.TrimSpace(nonce)
	if nonce == "" {
		return ConsentStateRecord{}, fmt.Errorf("core: consent state nonce is required")
	}

	s.mu.Lock()
	record, ok := s.entries[nonce]
	if ok {
		delete(s.entries, nonce)
	}
	s.mu.Unlock()

	if !ok {
		return ConsentStateRecord{}, fmt.Errorf("%w: nonce %s", ErrConsentStateNotFound, nonce)
	}
	if !record.ExpiresAt.IsZero() && s.now().After(record.ExpiresAt) {
		return ConsentStateRecord{}, fmt.Errorf("%w: nonce %s", ErrConsentStateExpired, nonce)
	}

	return record, nil
}

func (s *MemoryConsentStateStore) pruneLocked(now time.Time) {
	for nonce, record := range s.entries {
		if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
			delete(s.entries, nonce)
		}
	}
}

func (s *MemoryConsentStateStore) evictOldestLocked() {
	for len(s.entries) > s.maxEntries {
		oldestNonce := ""
		oldestAt := time.Time{}
		for nonce, record := range s.entries {
			if oldestNonce == "" || record.CreatedAt.Before(oldestAt) {
				oldestNonce = nonce
				oldestAt = record.CreatedAt
			}
		}
		if oldestNonce == "" {
			return
		}
		delete(s.entries, oldestNonce)
	}
}

func generateConsentNonce() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate consent nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultProvisionMaxAttempts    = 3
	defaultProvisionInitialBackoff = 500 * time.Millisecond
	defaultProvisionMaxBackoff     = 10 * time.Second
	defaultProvisionLockTTL        = 30 * time.Second
)

type LockHandle interface {
	Unlock(ctx context.Context) error
}

type CustomerLocker interface {
	Acquire(ctx context.Context, customerID string, ttl time.Duration) (LockHandle, error)
}

type ProvisionBackoffScheduler interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialBackoffScheduler struct {
	Initial time.Duration
	Max     time.Duration
}

func (s ExponentialBackoffScheduler) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = defaultProvisionInitialBackoff
	}
	max := s.Max
	if max <= 0 {
		max = defaultProvisionMaxBackoff
	}

	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

type ReprovisionResult struct {
	Attempts int
	Result   ProvisionResult
}

type ReprovisionOptions struct {
	MaxAttempts int
	LockTTL     time.Duration
}

// ReprovisionCustomer re-drives application provisioning alone for a
// customer whose consent succeeded but whose provisioning failed. It only
// runs for customers with a recorded grant: re-driving consent for a
// provisioning retry is a worse experience than retrying provisioning.
func (s *Service) ReprovisionCustomer(ctx context.Context, customerID string, opts ReprovisionOptions) (result ReprovisionResult, err error) {
	startedAt := s.clock()
	fields := map[string]any{"customer_id": customerID}
	defer func() {
		fields["attempts"] = result.Attempts
		s.observeOperation(ctx, startedAt, "reprovision", err, fields)
	}()

	if s == nil {
		return ReprovisionResult{}, fmt.Errorf("core: service is nil")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return ReprovisionResult{}, s.mapError(fmt.Errorf("core: customer id is required"))
	}
	if s.customerStore == nil {
		return ReprovisionResult{}, s.mapError(fmt.Errorf("core: customer store is required"))
	}

	customer, lookupErr := s.customerStore.Get(ctx, customerID)
	if lookupErr != nil {
		err = s.mapError(lookupErr)
		return ReprovisionResult{}, err
	}
	if !customer.HasConsent() {
		err = s.mapError(fmt.Errorf("core: customer %s has not granted consent", customerID))
		return ReprovisionResult{}, err
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = s.config.Provision.MaxAttempts
	}
	if maxAttempts < 1 {
		maxAttempts = defaultProvisionMaxAttempts
	}
	lockTTL := opts.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultProvisionLockTTL
	}

	unlock := func() {}
	if s.customerLocker != nil {
		lockHandle, lockErr := s.customerLocker.Acquire(ctx, customerID, lockTTL)
		if lockErr != nil {
			err = s.mapError(lockErr)
			return ReprovisionResult{}, err
		}
		unlock = func() {
			_ = lockHandle.Unlock(ctx)
		}
	}
	defer unlock()

	request := ProvisionRequest{
		CustomerID:  customer.ID,
		TenantID:    customer.TenantID,
		ClientID:    customer.Credentials.ClientID,
		DisplayName: customer.DisplayName(),
		Metadata: map[string]any{
			"tenant_domain": customer.TenantDomain,
		},
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		provisioned, provisionErr := s.provisionWithTimeout(ctx, request)
		if provisionErr == nil {
			if writeErr := s.recordProvisionOutcome(ctx, customer, provisioned); writeErr != nil {
				err = s.mapError(writeErr)
				return ReprovisionResult{Attempts: attempt}, err
			}
			result = ReprovisionResult{Attempts: attempt, Result: provisioned}
			return result, nil
		}
		lastErr = provisionErr

		if isUnrecoverableProvisionError(provisionErr) || attempt == maxAttempts {
			_ = s.recordProvisionError(ctx, customer, provisionErr)
			err = s.mapError(provisionErr)
			return ReprovisionResult{Attempts: attempt}, err
		}

		delay := defaultProvisionInitialBackoff
		if s.backoffScheduler != nil {
			delay = s.backoffScheduler.NextDelay(attempt)
		}
		if waitErr := waitWithContext(ctx, delay); waitErr != nil {
			err = s.mapError(waitErr)
			return ReprovisionResult{Attempts: attempt}, err
		}
	}

	err = s.mapError(lastErr)
	return ReprovisionResult{Attempts: maxAttempts}, err
}

// recordProvisionOutcome clears the stored provisioning error and fills in
// the provisioned identifiers, preserving the original grant timestamp.
func (s *Service) recordProvisionOutcome(ctx context.Context, customer Customer, provisioned ProvisionResult) error {
	credentials := CustomerCredentials{
		ApplicationID:      provisioned.ApplicationID,
		ClientID:           customer.Credentials.ClientID,
		ServicePrincipalID: provisioned.ServicePrincipalID,
		ClientSecret:       customer.Credentials.ClientSecret,
		ConsentGranted:     true,
		ConsentGrantedAt:   cloneTimePointer(customer.Credentials.ConsentGrantedAt),
	}
	if strings.TrimSpace(provisioned.AppClientID) != "" {
		credentials.ClientID = provisioned.AppClientID
	}
	_, err := s.customerStore.SaveCredentials(ctx, SaveCustomerCredentialsInput{
		CustomerID:  customer.ID,
		Credentials: credentials,
	})
	return err
}

func (s *Service) recordProvisionError(ctx context.Context, customer Customer, source error) error {
	credentials := *customer.Credentials
	credentials.ProvisioningError = strings.TrimSpace(source.Error())
	_, err := s.customerStore.SaveCredentials(ctx, SaveCustomerCredentialsInput{
		CustomerID:  customer.ID,
		Credentials: credentials,
	})
	return err
}

func isUnrecoverableProvisionError(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth, goerrors.CategoryAuthz, goerrors.CategoryValidation, goerrors.CategoryNotFound:
			return true
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(msg, "invalid client") ||
		strings.Contains(msg, "invalid_client") ||
		strings.Contains(msg, "secret") && strings.Contains(msg, "expired") ||
		strings.Contains(msg, "not consented")
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type MemoryCustomerLocker struct {
	mu    sync.Mutex
	locks map[string]time.Time
	nowFn func() time.Time
}

func NewMemoryCustomerLocker() *MemoryCustomerLocker {
	return &MemoryCustomerLocker{
		locks: make(map[string]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryCustomerLocker) Acquire(_ context.Context, customerID string, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: customer locker is not configured")
	}
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("core: customer id is required")
	}
	if ttl <= 0 {
		ttl = defaultProvisionLockTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFn()
	if expiresAt, held := l.locks[customerID]; held && now.Before(expiresAt) {
		return nil, fmt.Errorf("core: provision lock already held for customer %s", customerID)
	}
	l.locks[customerID] = now.Add(ttl)

	return &memoryLockHandle{locker: l, customerID: customerID}, nil
}

type memoryLockHandle struct {
	locker     *MemoryCustomerLocker
	customerID string
}

func (h *memoryLockHandle) Unlock(context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.locker.mu.Lock()
	delete(h.locker.locks, h.customerID)
	h.locker.mu.Unlock()
	return nil
}

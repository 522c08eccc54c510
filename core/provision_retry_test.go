package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

func newReprovisionTestService(t *testing.T, store *fakeCustomerStore, provisioner *fakeProvisioner) *Service {
	t.Helper()
	service, err := NewService(Config{},
		WithCustomerStore(store),
		WithProvisioner(provisioner),
		WithProvisionBackoffScheduler(ExponentialBackoffScheduler{
			Initial: time.Millisecond,
			Max:     2 * time.Millisecond,
		}),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestReprovisionCustomer_RequiresConsent(t *testing.T) {
	customer := Customer{ID: "cust_1", TenantID: "contoso.onmicrosoft.com", Status: CustomerStatusPending}
	store := newFakeCustomerStore(customer)
	service := newReprovisionTestService(t, store, &fakeProvisioner{})

	if _, err := service.ReprovisionCustomer(context.Background(), "cust_1", ReprovisionOptions{}); err == nil {
		t.Fatalf("expected reprovision without consent to fail")
	}
}

func TestReprovisionCustomer_RetriesTransientFailures(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	provisioner := &fakeProvisioner{
		result: ProvisionResult{ApplicationID: "app_obj_1", ServicePrincipalID: "sp_1"},
		errs:   []error{fmt.Errorf("503 upstream hiccup"), nil},
	}
	service := newReprovisionTestService(t, store, provisioner)

	result, err := service.ReprovisionCustomer(context.Background(), "cust_1", ReprovisionOptions{MaxAttempts: 3})
	if err != nil {
		t.Fatalf("reprovision: %v", err)
	}
	if result.Attempts != 2 {
		t.Fatalf("expected success on attempt 2, got %d", result.Attempts)
	}
	if result.Result.ApplicationID != "app_obj_1" {
		t.Fatalf("unexpected provision result %+v", result.Result)
	}

	saved := store.lastSaved(t)
	if !saved.Credentials.ConsentGranted {
		t.Fatalf("expected grant to be preserved")
	}
	if saved.Credentials.ProvisioningError != "" {
		t.Fatalf("expected provisioning error to be cleared, got %q", saved.Credentials.ProvisioningError)
	}
	if saved.Credentials.ApplicationID != "app_obj_1" || saved.Credentials.ServicePrincipalID != "sp_1" {
		t.Fatalf("expected provisioned identifiers, got %+v", saved.Credentials)
	}
	if saved.Credentials.ConsentGrantedAt == nil {
		t.Fatalf("expected original grant timestamp to be preserved")
	}
}

func TestReprovisionCustomer_UnrecoverableErrorStopsEarly(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	provisioner := &fakeProvisioner{
		err: goerrors.New("tenant admin has not consented", goerrors.CategoryAuthz),
	}
	service := newReprovisionTestService(t, store, provisioner)

	result, err := service.ReprovisionCustomer(context.Background(), "cust_1", ReprovisionOptions{MaxAttempts: 5})
	if err == nil {
		t.Fatalf("expected unrecoverable error to surface")
	}
	if result.Attempts != 1 {
		t.Fatalf("expected no retries for an unrecoverable error, got %d attempts", result.Attempts)
	}
	if provisioner.calls != 1 {
		t.Fatalf("expected a single provision call, got %d", provisioner.calls)
	}

	saved := store.lastSaved(t)
	if saved.Credentials.ProvisioningError == "" {
		t.Fatalf("expected provisioning error to be recorded")
	}
	if !saved.Credentials.ConsentGranted {
		t.Fatalf("expected grant to survive the failed retry")
	}
}

func TestReprovisionCustomer_ExhaustsAttempts(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	provisioner := &fakeProvisioner{err: fmt.Errorf("503 upstream hiccup")}
	service := newReprovisionTestService(t, store, provisioner)

	result, err := service.ReprovisionCustomer(context.Background(), "cust_1", ReprovisionOptions{MaxAttempts: 2})
	if err == nil {
		t.Fatalf("expected exhausted retries to surface the last error")
	}
	if result.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", result.Attempts)
	}
	if provisioner.calls != 2 {
		t.Fatalf("expected 2 provision calls, got %d", provisioner.calls)
	}
}

func TestReprovisionCustomer_LockContention(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	locker := NewMemoryCustomerLocker()
	service, err := NewService(Config{},
		WithCustomerStore(store),
		WithProvisioner(&fakeProvisioner{}),
		WithCustomerLocker(locker),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	handle, err := locker.Acquire(context.Background(), "cust_1", time.Minute)
	if err != nil {
		t.Fatalf("acquire lock: %v", err)
	}
	defer func() { _ = handle.Unlock(context.Background()) }()

	if _, err := service.ReprovisionCustomer(context.Background(), "cust_1", ReprovisionOptions{}); err == nil {
		t.Fatalf("expected held lock to block a concurrent reprovision")
	} else if !strings.Contains(err.Error(), "lock") {
		t.Fatalf("expected lock error, got %v", err)
	}
}

func TestExponentialBackoffScheduler_NextDelay(t *testing.T) {
	scheduler := ExponentialBackoffScheduler{Initial: 100 * time.Millisecond, Max: time.Second}

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}
	for _, tc := range cases {
		if got := scheduler.NextDelay(tc.attempt); got != tc.want {
			t.Fatalf("attempt %d: expected %v, got %v", tc.attempt, tc.want, got)
		}
	}
}

func TestMemoryCustomerLocker_ExpiredLockCanBeReacquired(t *testing.T) {
	locker := NewMemoryCustomerLocker()
	now := time.Now().UTC()
	locker.nowFn = func() time.Time { return now }

	if _, err := locker.Acquire(context.Background(), "cust_1", time.Minute); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := locker.Acquire(context.Background(), "cust_1", time.Minute); err == nil {
		t.Fatalf("expected second acquire to fail while held")
	}

	now = now.Add(2 * time.Minute)
	if _, err := locker.Acquire(context.Background(), "cust_1", time.Minute); err != nil {
		t.Fatalf("expected expired lock to be reacquirable, got %v", err)
	}
}

func TestIsUnrecoverableProvisionError(t *testing.T) {
	if isUnrecoverableProvisionError(nil) {
		t.Fatalf("nil is recoverable")
	}
	if !isUnrecoverableProvisionError(fmt.Errorf("AADSTS7000215: invalid client secret provided")) {
		t.Fatalf("invalid client secret must not be retried")
	}
	if !isUnrecoverableProvisionError(fmt.Errorf("the client secret has expired")) {
		t.Fatalf("expired secret must not be retried")
	}
	if !isUnrecoverableProvisionError(goerrors.New("forbidden", goerrors.CategoryAuthz)) {
		t.Fatalf("authorization failures must not be retried")
	}
	if isUnrecoverableProvisionError(fmt.Errorf("503 service unavailable")) {
		t.Fatalf("transient upstream failures should be retried")
	}
}

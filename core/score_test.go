package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeScoreSource struct {
	mu          sync.Mutex
	raw         RawScore
	rawErr      error
	profiles    []ControlProfile
	profilesErr error
	licenses    LicenseUsage
	licensesErr error
	queries     []ScoreQuery
}

func (f *fakeScoreSource) FetchSecureScore(_ context.Context, query ScoreQuery) (RawScore, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.rawErr != nil {
		return RawScore{}, f.rawErr
	}
	return f.raw, nil
}

func (f *fakeScoreSource) FetchControlProfiles(_ context.Context, _ ScoreQuery) ([]ControlProfile, error) {
	if f.profilesErr != nil {
		return nil, f.profilesErr
	}
	return f.profiles, nil
}

func (f *fakeScoreSource) FetchLicenseUsage(_ context.Context, _ ScoreQuery) (LicenseUsage, error) {
	if f.licensesErr != nil {
		return LicenseUsage{}, f.licensesErr
	}
	return f.licenses, nil
}

func consentedCustomer() Customer {
	grantedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return Customer{
		ID:       "cust_1",
		Name:     "Contoso",
		TenantID: "contoso.onmicrosoft.com",
		Status:   CustomerStatusActive,
		Credentials: &CustomerCredentials{
			ClientID:         "client_abc",
			ClientSecret:     "secret_1",
			ConsentGranted:   true,
			ConsentGrantedAt: &grantedAt,
		},
	}
}

func newScoreTestService(t *testing.T, store *fakeCustomerStore, source *fakeScoreSource) *Service {
	t.Helper()
	service, err := NewService(Config{},
		WithCustomerStore(store),
		WithScoreSource(source),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return service
}

func TestCollectScore_HappyPath(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	source := &fakeScoreSource{
		raw: RawScore{
			ID:           "score_1",
			CurrentScore: 42,
			MaxScore:     70,
			ControlScores: []ControlScore{
				{ControlName: "MFARegistrationV2", Score: 9},
				{ControlName: "BlockLegacyAuthPolicy", Score: 3},
			},
		},
		profiles: []ControlProfile{
			{ControlName: "MFARegistrationV2", Title: "Require MFA registration", MaxScore: 10},
			{ControlName: "BlockLegacyAuthPolicy", MaxScore: 10},
		},
		licenses: LicenseUsage{ActiveUsers: 120, LicensedUsers: 150},
	}
	service := newScoreTestService(t, store, source)

	report, err := service.CollectScore(context.Background(), "cust_1")
	if err != nil {
		t.Fatalf("collect score: %v", err)
	}
	if report.Degraded {
		t.Fatalf("expected full report, got degraded")
	}
	if report.CurrentScore != 42 || report.MaxScore != 70 {
		t.Fatalf("unexpected totals %v/%v", report.CurrentScore, report.MaxScore)
	}
	if len(report.Controls) != 2 {
		t.Fatalf("expected 2 enriched controls, got %d", len(report.Controls))
	}
	if report.Controls[0].ImplementationStatus != ImplementationStatusImplemented {
		t.Fatalf("expected 9/10 to read implemented, got %q", report.Controls[0].ImplementationStatus)
	}
	if report.Licenses.ActiveUsers != 120 {
		t.Fatalf("unexpected license usage %+v", report.Licenses)
	}

	if len(source.queries) != 1 {
		t.Fatalf("expected one secure score query, got %d", len(source.queries))
	}
	if source.queries[0].TenantID != "contoso.onmicrosoft.com" || source.queries[0].ClientSecret != "secret_1" {
		t.Fatalf("expected stored credentials in query, got %+v", source.queries[0])
	}
}

func TestCollectScore_MissingCredentials(t *testing.T) {
	customer := consentedCustomer()
	customer.Credentials.ClientSecret = ""
	store := newFakeCustomerStore(customer)
	service := newScoreTestService(t, store, &fakeScoreSource{})

	if _, err := service.CollectScore(context.Background(), "cust_1"); !errors.Is(err, ErrCredentialsMissing) {
		t.Fatalf("expected ErrCredentialsMissing, got %v", err)
	}
}

func TestCollectScore_UnknownCustomer(t *testing.T) {
	store := newFakeCustomerStore()
	service := newScoreTestService(t, store, &fakeScoreSource{})

	if _, err := service.CollectScore(context.Background(), "cust_missing"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestCollectScore_RawFeedFailureFailsCollection(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	source := &fakeScoreSource{rawErr: fmt.Errorf("503 from upstream")}
	service := newScoreTestService(t, store, source)

	_, err := service.CollectScore(context.Background(), "cust_1")
	if err == nil {
		t.Fatalf("expected raw feed failure to fail the collection")
	}
	if !strings.Contains(err.Error(), "upstream unavailable") {
		t.Fatalf("expected upstream unavailable error, got %v", err)
	}
}

func TestCollectScore_ProfileFailureDegrades(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	source := &fakeScoreSource{
		raw: RawScore{
			CurrentScore: 12,
			ControlScores: []ControlScore{
				{ControlName: "MFARegistrationV2", Score: 8},
			},
		},
		profilesErr: fmt.Errorf("profiles endpoint gone"),
		licenses:    LicenseUsage{ActiveUsers: 10, LicensedUsers: 12},
	}
	service := newScoreTestService(t, store, source)

	report, err := service.CollectScore(context.Background(), "cust_1")
	if err != nil {
		t.Fatalf("expected degraded report, got error: %v", err)
	}
	if !report.Degraded {
		t.Fatalf("expected report to be flagged degraded")
	}
	if len(report.Controls) != 1 {
		t.Fatalf("expected enrichment to still run, got %d controls", len(report.Controls))
	}
	// Raw max absent and no profiles: total comes from per-control estimates.
	if report.MaxScore != 10 {
		t.Fatalf("expected summed estimated max 10, got %v", report.MaxScore)
	}
	if report.Licenses.ActiveUsers != 10 {
		t.Fatalf("expected license usage to survive profile failure, got %+v", report.Licenses)
	}
}

func TestCollectScore_LicenseFailureFallsBackToRawCounts(t *testing.T) {
	store := newFakeCustomerStore(consentedCustomer())
	source := &fakeScoreSource{
		raw: RawScore{
			CurrentScore:  12,
			MaxScore:      20,
			ActiveUsers:   33,
			LicensedUsers: 40,
		},
		licensesErr: fmt.Errorf("reports endpoint throttled"),
	}
	service := newScoreTestService(t, store, source)

	report, err := service.CollectScore(context.Background(), "cust_1")
	if err != nil {
		t.Fatalf("expected degraded report, got error: %v", err)
	}
	if !report.Degraded {
		t.Fatalf("expected report to be flagged degraded")
	}
	if report.Licenses.ActiveUsers != 33 || report.Licenses.LicensedUsers != 40 {
		t.Fatalf("expected raw user counts as fallback, got %+v", report.Licenses)
	}
}

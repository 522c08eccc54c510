package core

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestPostureErrorMapper_ClassifiesByMessage(t *testing.T) {
	cases := []struct {
		name         string
		err          error
		wantCategory goerrors.Category
		wantTextCode string
		wantCode     int
	}{
		{
			name:         "customer not found",
			err:          fmt.Errorf("%w: cust_1", ErrCustomerNotFound),
			wantCategory: goerrors.CategoryNotFound,
			wantTextCode: PostureErrorCustomerNotFound,
			wantCode:     http.StatusNotFound,
		},
		{
			name:         "malformed state",
			err:          fmt.Errorf("%w: bad token", ErrStateMalformed),
			wantCategory: goerrors.CategoryAuth,
			wantTextCode: PostureErrorStateInvalid,
			wantCode:     http.StatusUnauthorized,
		},
		{
			name:         "credentials missing",
			err:          fmt.Errorf("%w: customer cust_1 has no stored secret", ErrCredentialsMissing),
			wantCategory: goerrors.CategoryOperation,
			wantTextCode: PostureErrorCredentialsMissing,
		},
		{
			name:         "upstream unavailable",
			err:          fmt.Errorf("core: secure score fetch for tenant t1: upstream unavailable: 503"),
			wantCategory: goerrors.CategoryExternal,
			wantTextCode: PostureErrorUpstreamUnavailable,
			wantCode:     http.StatusBadGateway,
		},
		{
			name:         "provisioning failure",
			err:          fmt.Errorf("application provisioning failed for tenant t1"),
			wantCategory: goerrors.CategoryExternal,
			wantTextCode: PostureErrorProvisioningFailed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mapped := postureErrorMapper(tc.err)
			if mapped == nil {
				t.Fatalf("expected a mapped error")
			}
			if mapped.Category != tc.wantCategory {
				t.Fatalf("expected category %q, got %q", tc.wantCategory, mapped.Category)
			}
			if mapped.TextCode != tc.wantTextCode {
				t.Fatalf("expected text code %q, got %q", tc.wantTextCode, mapped.TextCode)
			}
			if tc.wantCode != 0 && mapped.Code != tc.wantCode {
				t.Fatalf("expected http code %d, got %d", tc.wantCode, mapped.Code)
			}
		})
	}
}

func TestPostureErrorMapper_PreservesSentinels(t *testing.T) {
	mapped := postureErrorMapper(fmt.Errorf("%w: cust_1", ErrCustomerNotFound))
	if !errors.Is(mapped, ErrCustomerNotFound) {
		t.Fatalf("expected the sentinel to survive mapping")
	}
}

func TestPostureErrorMapper_KeepsExistingEnvelope(t *testing.T) {
	source := goerrors.New("quota exceeded", goerrors.CategoryRateLimit).WithTextCode("CUSTOM_CODE")
	mapped := postureErrorMapper(fmt.Errorf("outer: %w", source))
	if mapped.TextCode != "CUSTOM_CODE" {
		t.Fatalf("expected existing text code to be kept, got %q", mapped.TextCode)
	}
	if mapped.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit http code, got %d", mapped.Code)
	}
}

func TestPostureErrorMapper_Nil(t *testing.T) {
	if mapped := postureErrorMapper(nil); mapped != nil {
		t.Fatalf("expected nil for nil input, got %v", mapped)
	}
}

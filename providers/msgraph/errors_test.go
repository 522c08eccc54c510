package msgraph

import (
	"errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-posture/core"
)

func TestClassifyGraphError(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		body       string
		category   goerrors.Category
		textCode   string
	}{
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			body:       `{"error":{"code":"InvalidAuthenticationToken","message":"token expired"}}`,
			category:   goerrors.CategoryAuth,
			textCode:   core.PostureErrorProviderDenied,
		},
		{
			name:       "consent missing",
			statusCode: http.StatusForbidden,
			body:       `{"error":{"code":"Authorization_RequestDenied","message":"insufficient privileges"}}`,
			category:   goerrors.CategoryAuthz,
			textCode:   core.PostureErrorProviderDenied,
		},
		{
			name:       "not found",
			statusCode: http.StatusNotFound,
			body:       `{"error":{"code":"Request_ResourceNotFound","message":"missing"}}`,
			category:   goerrors.CategoryNotFound,
			textCode:   core.PostureErrorCustomerNotFound,
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"code":"Request_BadRequest","message":"invalid filter"}}`,
			category:   goerrors.CategoryBadInput,
			textCode:   core.PostureErrorInputRejected,
		},
		{
			name:       "conflict",
			statusCode: http.StatusConflict,
			body:       `{"error":{"code":"Request_MultipleObjectsWithSameKeyValue","message":"already exists"}}`,
			category:   goerrors.CategoryConflict,
			textCode:   core.PostureErrorProvisioningFailed,
		},
		{
			name:       "throttled",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":{"code":"TooManyRequests","message":"slow down"}}`,
			category:   goerrors.CategoryExternal,
			textCode:   core.PostureErrorUpstreamUnavailable,
		},
		{
			name:       "server error",
			statusCode: http.StatusBadGateway,
			body:       ``,
			category:   goerrors.CategoryExternal,
			textCode:   core.PostureErrorUpstreamUnavailable,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifyGraphError(tc.statusCode, []byte(tc.body), http.MethodGet, "/applications")

			var rich *goerrors.Error
			if !goerrors.As(err, &rich) {
				t.Fatalf("classifyGraphError() = %T, want *goerrors.Error", err)
			}
			if rich.Category != tc.category {
				t.Fatalf("Category = %v, want %v", rich.Category, tc.category)
			}
			if rich.TextCode != tc.textCode {
				t.Fatalf("TextCode = %q, want %q", rich.TextCode, tc.textCode)
			}
			if rich.Metadata["status_code"] != tc.statusCode {
				t.Fatalf("status_code metadata = %v", rich.Metadata["status_code"])
			}
		})
	}
}

func TestIsConflictError(t *testing.T) {
	conflict := classifyGraphError(http.StatusConflict, []byte(`{"error":{"code":"Conflict","message":"dup"}}`), http.MethodPost, "/applications")
	if !isConflictError(conflict) {
		t.Fatal("classified 409 should be a conflict")
	}
	if !isConflictError(errors.New("object already exists in directory")) {
		t.Fatal("already exists message should be a conflict")
	}
	if isConflictError(classifyGraphError(http.StatusForbidden, nil, http.MethodGet, "/applications")) {
		t.Fatal("403 should not be a conflict")
	}
	if isConflictError(nil) {
		t.Fatal("nil should not be a conflict")
	}
}

package auth

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-posture/core"
)

// ClassifyTokenError translates a token-endpoint failure into an error
// envelope whose category tells callers whether retrying can help. AADSTS
// codes are stable identifiers in the error description; the raw
// description never reaches end users.
func ClassifyTokenError(tenantID string, errorCode string, description string, statusCode int) error {
	detail := strings.TrimSpace(errorCode)
	if detail == "" {
		detail = fmt.Sprintf("http status %d", statusCode)
	}
	combined := strings.ToLower(errorCode + " " + description)

	switch {
	case strings.Contains(combined, "aadsts65001"), strings.Contains(combined, "aadsts650052"), strings.Contains(combined, "consent"):
		return goerrors.New(
			fmt.Sprintf("auth: tenant %s has not consented to the application", tenantID),
			goerrors.CategoryAuthz,
		).WithCode(http.StatusForbidden).
			WithTextCode(core.PostureErrorProviderDenied).
			WithMetadata(map[string]any{"tenant_id": tenantID, "provider_code": detail})
	case strings.Contains(combined, "aadsts700016"), strings.Contains(combined, "unauthorized_client"):
		return goerrors.New(
			fmt.Sprintf("auth: application is not registered in tenant %s", tenantID),
			goerrors.CategoryAuth,
		).WithCode(http.StatusUnauthorized).
			WithTextCode(core.PostureErrorCredentialsMissing).
			WithMetadata(map[string]any{"tenant_id": tenantID, "provider_code": detail})
	case strings.Contains(combined, "aadsts7000215"), strings.Contains(combined, "invalid_client"):
		return goerrors.New(
			fmt.Sprintf("auth: invalid client secret for tenant %s", tenantID),
			goerrors.CategoryAuth,
		).WithCode(http.StatusUnauthorized).
			WithTextCode(core.PostureErrorCredentialsMissing).
			WithMetadata(map[string]any{"tenant_id": tenantID, "provider_code": detail})
	case strings.Contains(combined, "aadsts7000222"):
		return goerrors.New(
			fmt.Sprintf("auth: client secret expired for tenant %s", tenantID),
			goerrors.CategoryAuth,
		).WithCode(http.StatusUnauthorized).
			WithTextCode(core.PostureErrorCredentialsMissing).
			WithMetadata(map[string]any{"tenant_id": tenantID, "provider_code": detail})
	case statusCode == http.StatusTooManyRequests, statusCode >= http.StatusInternalServerError:
		return goerrors.New(
			fmt.Sprintf("auth: token endpoint unavailable for tenant %s", tenantID),
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).
			WithTextCode(core.PostureErrorUpstreamUnavailable).
			WithMetadata(map[string]any{"tenant_id": tenantID, "provider_code": detail, "status_code": statusCode})
	default:
		return goerrors.New(
			fmt.Sprintf("auth: authentication failed for tenant %s", tenantID),
			goerrors.CategoryAuth,
		).WithCode(http.StatusUnauthorized).
			WithTextCode(core.PostureErrorProviderDenied).
			WithMetadata(map[string]any{"tenant_id": tenantID, "provider_code": detail, "status_code": statusCode})
	}
}

package msgraph

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-posture/core"
)

type graphErrorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classifyGraphError maps a graph failure response to an envelope whose
// category separates caller mistakes, consent problems, and upstream
// weather. Raw graph messages stay in metadata, not in the user-facing
// message.
func classifyGraphError(statusCode int, body []byte, method string, path string) error {
	payload := graphErrorPayload{}
	_ = json.Unmarshal(body, &payload)
	code := strings.TrimSpace(payload.Error.Code)
	detail := strings.ToLower(code + " " + payload.Error.Message)

	metadata := map[string]any{
		"provider_code": code,
		"status_code":   statusCode,
		"operation":     method + " " + path,
	}

	switch {
	case statusCode == http.StatusUnauthorized:
		return goerrors.New(
			"msgraph: request was not authorized",
			goerrors.CategoryAuth,
		).WithCode(http.StatusUnauthorized).
			WithTextCode(core.PostureErrorProviderDenied).
			WithMetadata(metadata)
	case statusCode == http.StatusForbidden, strings.Contains(detail, "authorization_requestdenied"):
		return goerrors.New(
			"msgraph: the tenant has not granted the required permissions",
			goerrors.CategoryAuthz,
		).WithCode(http.StatusForbidden).
			WithTextCode(core.PostureErrorProviderDenied).
			WithMetadata(metadata)
	case statusCode == http.StatusNotFound:
		return goerrors.New(
			fmt.Sprintf("msgraph: resource not found for %s %s", method, path),
			goerrors.CategoryNotFound,
		).WithCode(http.StatusNotFound).
			WithTextCode(core.PostureErrorCustomerNotFound).
			WithMetadata(metadata)
	case statusCode == http.StatusBadRequest:
		return goerrors.New(
			fmt.Sprintf("msgraph: request rejected for %s %s", method, path),
			goerrors.CategoryBadInput,
		).WithCode(http.StatusBadRequest).
			WithTextCode(core.PostureErrorInputRejected).
			WithMetadata(metadata)
	case statusCode == http.StatusConflict:
		return goerrors.New(
			fmt.Sprintf("msgraph: resource already exists for %s %s", method, path),
			goerrors.CategoryConflict,
		).WithCode(http.StatusConflict).
			WithTextCode(core.PostureErrorProvisioningFailed).
			WithMetadata(metadata)
	case statusCode == http.StatusTooManyRequests, statusCode >= http.StatusInternalServerError:
		return goerrors.New(
			fmt.Sprintf("msgraph: upstream unavailable for %s %s", method, path),
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).
			WithTextCode(core.PostureErrorUpstreamUnavailable).
			WithMetadata(metadata)
	default:
		return goerrors.New(
			fmt.Sprintf("msgraph: unexpected status %d for %s %s", statusCode, method, path),
			goerrors.CategoryExternal,
		).WithCode(http.StatusBadGateway).
			WithTextCode(core.PostureErrorUpstreamUnavailable).
			WithMetadata(metadata)
	}
}

// isConflictError reports an "already exists" style response that an
// idempotent provisioning pass reconciles instead of failing.
func isConflictError(err error) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if rich.Code == http.StatusConflict {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "conflictingobject")
}

package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	PostureErrorInputRejected       = "POSTURE_INPUT_REJECTED"
	PostureErrorProviderDenied      = "POSTURE_PROVIDER_DENIED"
	PostureErrorCustomerNotFound    = "POSTURE_CUSTOMER_NOT_FOUND"
	PostureErrorProvisioningFailed  = "POSTURE_PROVISIONING_FAILED"
	PostureErrorCredentialsMissing  = "POSTURE_CREDENTIALS_MISSING"
	PostureErrorUpstreamUnavailable = "POSTURE_UPSTREAM_UNAVAILABLE"
	PostureErrorStateInvalid        = "POSTURE_STATE_INVALID"
	PostureErrorInternal            = "POSTURE_INTERNAL_ERROR"
)

func postureErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensurePostureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "customer not found"):
		return newPostureError(err, goerrors.CategoryNotFound, PostureErrorCustomerNotFound)
	case strings.Contains(msg, "consent state"), strings.Contains(msg, "state token"):
		return newPostureError(err, goerrors.CategoryAuth, PostureErrorStateInvalid)
	case strings.Contains(msg, "credentials missing"), strings.Contains(msg, "no stored secret"):
		return newPostureError(err, goerrors.CategoryOperation, PostureErrorCredentialsMissing)
	case strings.Contains(msg, "denied"), strings.Contains(msg, "consent was not granted"):
		return newPostureError(err, goerrors.CategoryAuthz, PostureErrorProviderDenied)
	case strings.Contains(msg, "provision"):
		return newPostureError(err, goerrors.CategoryExternal, PostureErrorProvisioningFailed)
	case strings.Contains(msg, "upstream"), strings.Contains(msg, "secure score fetch"):
		return newPostureError(err, goerrors.CategoryExternal, PostureErrorUpstreamUnavailable)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newPostureError(err, goerrors.CategoryBadInput, PostureErrorInputRejected)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensurePostureErrorEnvelope(mapped)
}

// newPostureError wraps the source so sentinel checks keep working through
// the envelope.
func newPostureError(source error, category goerrors.Category, textCode string) *goerrors.Error {
	return ensurePostureErrorEnvelope(
		goerrors.Wrap(source, category, source.Error()).
			WithTextCode(textCode),
	)
}

func ensurePostureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = postureHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultPostureTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultPostureTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return PostureErrorInputRejected
	case goerrors.CategoryNotFound:
		return PostureErrorCustomerNotFound
	case goerrors.CategoryAuth:
		return PostureErrorStateInvalid
	case goerrors.CategoryAuthz:
		return PostureErrorProviderDenied
	case goerrors.CategoryExternal:
		return PostureErrorUpstreamUnavailable
	case goerrors.CategoryOperation:
		return PostureErrorCredentialsMissing
	default:
		return PostureErrorInternal
	}
}

func postureHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

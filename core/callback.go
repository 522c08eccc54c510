package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Callback parameter names form the canonical input schema for a consent
// return. The dispatch layer normalizes GET query parameters or a POST
// body into this one map before calling CompleteConsentCallback.
const (
	CallbackParamError            = "error"
	CallbackParamErrorDescription = "error_description"
	CallbackParamCode             = "code"
	CallbackParamAdminConsent     = "admin_consent"
	CallbackParamState            = "state"
	CallbackParamTenant           = "tenant"
)

// CallbackParamsFromValues flattens url.Values (GET query or POST form)
// into the canonical parameter map, lower-casing keys.
func CallbackParamsFromValues(values url.Values) map[string]string {
	params := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) == 0 {
			continue
		}
		params[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(list[0])
	}
	return params
}

// CallbackParamsFromJSON flattens a decoded JSON body into the canonical
// parameter map. Non-string values are stringified; nested values dropped.
func CallbackParamsFromJSON(body map[string]any) map[string]string {
	params := make(map[string]string, len(body))
	for key, value := range body {
		switch typed := value.(type) {
		case string:
			params[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(typed)
		case bool, float64, int, int64:
			params[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(fmt.Sprint(typed))
		}
	}
	return params
}

// CompleteConsentCallback runs the single-pass callback state machine:
// ReceivingRedirect -> ValidatingInput -> Rejected | Provisioning ->
// Provisioned | PartiallyFailed. Every terminal state yields a
// CallbackResult; the error return is reserved for the observability hook
// and mirrors result.Status != success.
func (s *Service) CompleteConsentCallback(ctx context.Context, in CallbackInput) (result CallbackResult, err error) {
	startedAt := s.clock()
	fields := map[string]any{}
	defer func() {
		fields["callback_status"] = string(result.Status)
		if result.CustomerID != "" {
			fields["customer_id"] = result.CustomerID
		}
		s.observeOperation(ctx, startedAt, "complete_consent_callback", err, fields)
	}()

	params := in.Params
	if params == nil {
		params = map[string]string{}
	}

	// ReceivingRedirect: a provider-reported error short-circuits before
	// any side effect.
	if providerErr := strings.TrimSpace(params[CallbackParamError]); providerErr != "" {
		description := strings.TrimSpace(params[CallbackParamErrorDescription])
		message := fmt.Sprintf("the identity provider denied consent: %s", providerErr)
		if description != "" {
			message = fmt.Sprintf("%s (%s)", message, description)
		}
		result = s.rejectedResult(message, http.StatusBadRequest, "")
		return result, nil
	}

	// ValidatingInput: require an authorization code or an explicit
	// admin-consent confirmation.
	consented := strings.EqualFold(strings.TrimSpace(params[CallbackParamAdminConsent]), "true")
	code := strings.TrimSpace(params[CallbackParamCode])
	if !consented && code == "" {
		result = s.rejectedResult(
			"the authorization response did not include a consent confirmation",
			http.StatusBadRequest,
			"",
		)
		return result, nil
	}

	state, decodeErr := DecodeConsentState(params[CallbackParamState])
	if decodeErr != nil {
		// The raw decode error stays server-side; the caller gets a
		// user-safe message.
		s.logError(ctx, "consent state decode failed", map[string]any{"error": decodeErr.Error()})
		result = s.rejectedResult(
			"the consent state token is invalid",
			http.StatusBadRequest,
			"",
		)
		return result, nil
	}
	fields["tenant_id"] = state.TenantID

	if state.Expired(s.config.Consent.StateTTL, s.clock()) {
		result = s.rejectedResult(
			"the consent state token has expired, restart the consent flow",
			http.StatusBadRequest,
			state.CustomerID,
		)
		return result, nil
	}

	if s.stateStore != nil && strings.TrimSpace(state.Nonce) != "" {
		if _, consumeErr := s.stateStore.Consume(ctx, state.Nonce); consumeErr != nil {
			message := "the consent state token was already used, restart the consent flow"
			if errors.Is(consumeErr, ErrConsentStateExpired) {
				message = "the consent state token has expired, restart the consent flow"
			}
			result = s.rejectedResult(message, http.StatusBadRequest, state.CustomerID)
			return result, nil
		}
	}

	if s.customerStore == nil {
		err = s.mapError(fmt.Errorf("core: customer store is required to complete consent"))
		result = s.rejectedResult("consent could not be recorded", http.StatusInternalServerError, state.CustomerID)
		return result, err
	}

	customer, lookupErr := s.customerStore.Get(ctx, state.CustomerID)
	if lookupErr != nil {
		if errors.Is(lookupErr, ErrCustomerNotFound) {
			result = s.rejectedResult(
				fmt.Sprintf("customer %s was not found", state.CustomerID),
				http.StatusNotFound,
				state.CustomerID,
			)
			return result, nil
		}
		err = s.mapError(lookupErr)
		result = s.rejectedResult("consent could not be recorded", http.StatusInternalServerError, state.CustomerID)
		return result, err
	}

	// Provisioning. A stalled upstream must not hold the request: the
	// outbound call is bounded, and a timeout follows the partial-failure
	// path so the customer record is always written.
	grantedAt := s.clock()
	provisionResult, provisionErr := s.provisionWithTimeout(ctx, ProvisionRequest{
		CustomerID:  customer.ID,
		TenantID:    state.TenantID,
		ClientID:    state.ClientID,
		DisplayName: customer.DisplayName(),
		Metadata: map[string]any{
			"tenant_domain": customer.TenantDomain,
			"contact_email": customer.ContactEmail,
		},
	})

	credentials := CustomerCredentials{
		ClientID:         state.ClientID,
		ConsentGranted:   true,
		ConsentGrantedAt: &grantedAt,
	}
	if customer.Credentials != nil {
		credentials.ClientSecret = customer.Credentials.ClientSecret
	}

	var expect *bool
	if !customer.HasConsent() {
		notGranted := false
		expect = &notGranted
	}

	if provisionErr != nil {
		// The administrator did grant consent; that fact must survive the
		// provisioning failure so the operator can retry provisioning
		// alone instead of re-driving consent.
		credentials.ProvisioningError = provisionErr.Error()
		if _, writeErr := s.customerStore.SaveCredentials(ctx, SaveCustomerCredentialsInput{
			CustomerID:           customer.ID,
			Credentials:          credentials,
			ExpectConsentGranted: expect,
		}); writeErr != nil {
			s.logError(ctx, "consent dual-write failed", map[string]any{
				"customer_id": customer.ID,
				"error":       writeErr.Error(),
			})
		}
		err = s.mapError(provisionErr)
		result = CallbackResult{
			Status:      CallbackStatusPartial,
			Message:     "consent was recorded but application provisioning failed",
			HTTPStatus:  http.StatusInternalServerError,
			RedirectURL: s.resultRedirectURL(CallbackStatusPartial, "consent was recorded but application provisioning failed", customer.ID, ""),
			CustomerID:  customer.ID,
		}
		return result, err
	}

	credentials.ApplicationID = provisionResult.ApplicationID
	credentials.ServicePrincipalID = provisionResult.ServicePrincipalID
	if strings.TrimSpace(provisionResult.AppClientID) != "" {
		credentials.ClientID = provisionResult.AppClientID
	}

	if _, writeErr := s.customerStore.SaveCredentials(ctx, SaveCustomerCredentialsInput{
		CustomerID:           customer.ID,
		Credentials:          credentials,
		ExpectConsentGranted: expect,
	}); writeErr != nil {
		err = s.mapError(writeErr)
		result = s.rejectedResult("consent could not be recorded", http.StatusInternalServerError, customer.ID)
		return result, err
	}

	result = CallbackResult{
		Status:      CallbackStatusSuccess,
		Message:     "consent granted and application provisioned",
		HTTPStatus:  http.StatusOK,
		RedirectURL: s.resultRedirectURL(CallbackStatusSuccess, "consent granted and application provisioned", customer.ID, provisionResult.ApplicationID),
		CustomerID:  customer.ID,
		AppID:       provisionResult.ApplicationID,
	}
	return result, nil
}

func (s *Service) provisionWithTimeout(ctx context.Context, req ProvisionRequest) (ProvisionResult, error) {
	if s == nil || s.provisioner == nil {
		return ProvisionResult{}, fmt.Errorf("core: provisioner is not configured")
	}
	timeout := s.config.Provision.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	provisionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.provisioner.CreateEnterpriseApplication(provisionCtx, req)
}

func (s *Service) rejectedResult(message string, httpStatus int, customerID string) CallbackResult {
	return CallbackResult{
		Status:      CallbackStatusError,
		Message:     message,
		HTTPStatus:  httpStatus,
		RedirectURL: s.resultRedirectURL(CallbackStatusError, message, customerID, ""),
		CustomerID:  customerID,
	}
}

// resultRedirectURL encodes the terminal state for the presentation layer;
// it never carries raw provider errors.
func (s *Service) resultRedirectURL(status CallbackStatus, message string, customerID string, appID string) string {
	base := "/consent/result"
	if s != nil && strings.TrimSpace(s.config.Consent.ResultBaseURL) != "" {
		base = strings.TrimSpace(s.config.Consent.ResultBaseURL)
	}
	query := url.Values{}
	query.Set("status", string(status))
	query.Set("message", message)
	if strings.TrimSpace(customerID) != "" {
		query.Set("customer", customerID)
	}
	if strings.TrimSpace(appID) != "" {
		query.Set("appId", appID)
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + query.Encode()
}

package msgraph

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-posture/core"
)

const multiTenantAudience = "AzureADMultipleOrgs"

type applicationResource struct {
	ID             string `json:"id"`
	AppID          string `json:"appId"`
	DisplayName    string `json:"displayName"`
	SignInAudience string `json:"signInAudience,omitempty"`
}

type servicePrincipalResource struct {
	ID          string `json:"id"`
	AppID       string `json:"appId"`
	DisplayName string `json:"displayName"`
}

type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

// CreateEnterpriseApplication registers the delegated application and its
// service principal inside the customer tenant. The whole pass is
// idempotent: existing objects are looked up first, and a create that
// races another callback reconciles the conflict by re-reading instead of
// failing, so a duplicated consent redirect never produces duplicates.
func (p *Provider) CreateEnterpriseApplication(ctx context.Context, req core.ProvisionRequest) (core.ProvisionResult, error) {
	if p == nil {
		return core.ProvisionResult{}, fmt.Errorf("msgraph: provider is nil")
	}
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return core.ProvisionResult{}, fmt.Errorf("msgraph: tenant id is required")
	}
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = "Posture Assessment"
	}

	token, err := p.tokens.Token(ctx, p.operatorToken(tenantID))
	if err != nil {
		return core.ProvisionResult{}, fmt.Errorf("msgraph: acquire provisioning token for tenant %s: %w", tenantID, err)
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		clientID = strings.TrimSpace(p.config.OperatorClientID)
	}

	application, appExisted, err := p.ensureApplication(ctx, token, clientID, displayName)
	if err != nil {
		return core.ProvisionResult{}, err
	}

	servicePrincipal, spExisted, err := p.ensureServicePrincipal(ctx, token, application.AppID, displayName)
	if err != nil {
		return core.ProvisionResult{}, err
	}

	p.logger.Info("application provisioned",
		"tenant_id", tenantID,
		"application_id", application.ID,
		"service_principal_id", servicePrincipal.ID,
		"already_existed", appExisted && spExisted,
	)

	return core.ProvisionResult{
		ApplicationID:      application.ID,
		AppClientID:        application.AppID,
		ServicePrincipalID: servicePrincipal.ID,
		AlreadyExisted:     appExisted && spExisted,
	}, nil
}

func (p *Provider) ensureApplication(
	ctx context.Context,
	token authToken,
	clientID string,
	displayName string,
) (applicationResource, bool, error) {
	if clientID != "" {
		existing, found, err := p.findApplication(ctx, token, fmt.Sprintf("appId eq '%s'", escapeODataLiteral(clientID)))
		if err != nil {
			return applicationResource{}, false, err
		}
		if found {
			return existing, true, nil
		}
	}
	existing, found, err := p.findApplication(ctx, token, fmt.Sprintf("displayName eq '%s'", escapeODataLiteral(displayName)))
	if err != nil {
		return applicationResource{}, false, err
	}
	if found {
		return existing, true, nil
	}

	created := applicationResource{}
	createErr := p.doGraph(ctx, token, http.MethodPost, "/applications", nil, map[string]any{
		"displayName":    displayName,
		"signInAudience": multiTenantAudience,
	}, &created)
	if createErr != nil {
		if !isConflictError(createErr) {
			return applicationResource{}, false, createErr
		}
		reconciled, found, findErr := p.findApplication(ctx, token, fmt.Sprintf("displayName eq '%s'", escapeODataLiteral(displayName)))
		if findErr != nil {
			return applicationResource{}, false, findErr
		}
		if !found {
			return applicationResource{}, false, createErr
		}
		return reconciled, true, nil
	}
	return created, false, nil
}

func (p *Provider) findApplication(ctx context.Context, token authToken, filter string) (applicationResource, bool, error) {
	envelope := listEnvelope[applicationResource]{}
	err := p.doGraph(ctx, token, http.MethodGet, "/applications", map[string]string{"$filter": filter}, nil, &envelope)
	if err != nil {
		return applicationResource{}, false, err
	}
	if len(envelope.Value) == 0 {
		return applicationResource{}, false, nil
	}
	return envelope.Value[0], true, nil
}

func (p *Provider) ensureServicePrincipal(
	ctx context.Context,
	token authToken,
	appID string,
	displayName string,
) (servicePrincipalResource, bool, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return servicePrincipalResource{}, false, fmt.Errorf("msgraph: application client id is required for a service principal")
	}

	existing, found, err := p.findServicePrincipal(ctx, token, appID)
	if err != nil {
		return servicePrincipalResource{}, false, err
	}
	if found {
		return existing, true, nil
	}

	created := servicePrincipalResource{}
	createErr := p.doGraph(ctx, token, http.MethodPost, "/servicePrincipals", nil, map[string]any{
		"appId":       appID,
		"displayName": displayName,
	}, &created)
	if createErr != nil {
		if !isConflictError(createErr) {
			return servicePrincipalResource{}, false, createErr
		}
		reconciled, found, findErr := p.findServicePrincipal(ctx, token, appID)
		if findErr != nil {
			return servicePrincipalResource{}, false, findErr
		}
		if !found {
			return servicePrincipalResource{}, false, createErr
		}
		return reconciled, true, nil
	}
	return created, false, nil
}

func (p *Provider) findServicePrincipal(ctx context.Context, token authToken, appID string) (servicePrincipalResource, bool, error) {
	envelope := listEnvelope[servicePrincipalResource]{}
	err := p.doGraph(ctx, token, http.MethodGet, "/servicePrincipals", map[string]string{
		"$filter": fmt.Sprintf("appId eq '%s'", escapeODataLiteral(appID)),
	}, nil, &envelope)
	if err != nil {
		return servicePrincipalResource{}, false, err
	}
	if len(envelope.Value) == 0 {
		return servicePrincipalResource{}, false, nil
	}
	return envelope.Value[0], true, nil
}

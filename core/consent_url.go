package core

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	DefaultLoginBaseURL = "https://login.microsoftonline.com"

	// organizationsSegment is the tenant-agnostic authorization endpoint
	// segment. Arbitrary custom domains cannot be used as an endpoint
	// segment: the provider only resolves registered tenant identifiers,
	// so unverified domains would break the consent screen.
	organizationsSegment = "organizations"

	providerDefaultDomainSuffix = ".onmicrosoft.com"
)

// ConsentPermissionCatalog is the fixed set of read-only directory and
// security permissions the delegated application requests. Callers may
// toggle within this catalog but can never inject scopes beyond it.
var ConsentPermissionCatalog = []string{
	"Directory.Read.All",
	"Organization.Read.All",
	"Reports.Read.All",
	"SecurityActions.Read.All",
	"SecurityEvents.Read.All",
}

var guidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

type BuildConsentURLInput struct {
	CustomerID  string
	ClientID    string
	TenantID    string
	RedirectURL string
	Permissions []string
	State       string
}

// ConsentURLBuilder composes the admin-consent authorization URL from a
// customer record and the fixed permission catalog. Pure construction, no
// side effects.
type ConsentURLBuilder struct {
	LoginBaseURL string
}

func NewConsentURLBuilder(loginBaseURL string) *ConsentURLBuilder {
	base := strings.TrimRight(strings.TrimSpace(loginBaseURL), "/")
	if base == "" {
		base = DefaultLoginBaseURL
	}
	return &ConsentURLBuilder{LoginBaseURL: base}
}

// BuildAdminConsentURL returns the fully-qualified admin-consent URL. It
// never emits a malformed URL: missing client or tenant identifiers return
// an empty string and an error.
func (b *ConsentURLBuilder) BuildAdminConsentURL(in BuildConsentURLInput) (string, error) {
	if b == nil {
		return "", fmt.Errorf("core: consent url builder is not configured")
	}
	clientID := strings.TrimSpace(in.ClientID)
	tenantID := strings.TrimSpace(in.TenantID)
	if clientID == "" {
		return "", fmt.Errorf("core: consent url client id is required")
	}
	if tenantID == "" {
		return "", fmt.Errorf("core: consent url tenant id is required")
	}
	redirect := strings.TrimSpace(in.RedirectURL)
	if redirect == "" {
		return "", fmt.Errorf("core: consent url redirect is required")
	}

	query := url.Values{}
	query.Set("client_id", clientID)
	query.Set("redirect_uri", redirect)
	query.Set("scope", strings.Join(FilterConsentPermissions(in.Permissions), " "))
	if state := strings.TrimSpace(in.State); state != "" {
		query.Set("state", state)
	}

	return fmt.Sprintf(
		"%s/%s/v2.0/adminconsent?%s",
		b.LoginBaseURL,
		AuthorityEndpointSegment(tenantID),
		query.Encode(),
	), nil
}

// AuthorityEndpointSegment selects the authorization endpoint segment for a
// tenant identifier. Machine-issued GUIDs and provider-default domains
// resolve reliably and are used verbatim; arbitrary custom domains fall
// back to the tenant-agnostic segment.
func AuthorityEndpointSegment(tenantID string) string {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return organizationsSegment
	}
	if guidPattern.MatchString(tenantID) {
		return tenantID
	}
	if strings.HasSuffix(strings.ToLower(tenantID), providerDefaultDomainSuffix) {
		return tenantID
	}
	return organizationsSegment
}

// FilterConsentPermissions narrows requested permissions to the fixed
// catalog, preserving catalog order. An empty request means the full
// catalog.
func FilterConsentPermissions(requested []string) []string {
	if len(requested) == 0 {
		return cloneStrings(ConsentPermissionCatalog)
	}
	wanted := make(map[string]struct{}, len(requested))
	for _, permission := range requested {
		permission = strings.TrimSpace(permission)
		if permission == "" {
			continue
		}
		wanted[strings.ToLower(permission)] = struct{}{}
	}
	out := make([]string, 0, len(ConsentPermissionCatalog))
	for _, permission := range ConsentPermissionCatalog {
		if _, ok := wanted[strings.ToLower(permission)]; ok {
			out = append(out, permission)
		}
	}
	if len(out) == 0 {
		return cloneStrings(ConsentPermissionCatalog)
	}
	return out
}

package core

import (
	"net/url"
	"strings"
	"testing"
)

func TestAuthorityEndpointSegment(t *testing.T) {
	cases := []struct {
		name     string
		tenantID string
		want     string
	}{
		{"guid is used verbatim", "a9f6e1d0-4f7b-4a6e-9b6f-0d2f5a7c1e33", "a9f6e1d0-4f7b-4a6e-9b6f-0d2f5a7c1e33"},
		{"provider default domain is used verbatim", "contoso.onmicrosoft.com", "contoso.onmicrosoft.com"},
		{"provider default domain is case insensitive", "Contoso.OnMicrosoft.Com", "Contoso.OnMicrosoft.Com"},
		{"custom domain falls back", "contoso.example.com", "organizations"},
		{"bare word falls back", "contoso", "organizations"},
		{"empty falls back", "", "organizations"},
		{"malformed guid falls back", "a9f6e1d0-4f7b-4a6e-9b6f", "organizations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := AuthorityEndpointSegment(tc.tenantID); got != tc.want {
				t.Fatalf("segment for %q: expected %q, got %q", tc.tenantID, tc.want, got)
			}
		})
	}
}

func TestConsentURLBuilder_BuildAdminConsentURL(t *testing.T) {
	builder := NewConsentURLBuilder("")

	raw, err := builder.BuildAdminConsentURL(BuildConsentURLInput{
		CustomerID:  "cust_123",
		ClientID:    "client_abc",
		TenantID:    "a9f6e1d0-4f7b-4a6e-9b6f-0d2f5a7c1e33",
		RedirectURL: "https://posture.example.com/consent/callback",
		State:       "token_xyz",
	})
	if err != nil {
		t.Fatalf("build admin consent url: %v", err)
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse built url: %v", err)
	}
	wantPath := "/a9f6e1d0-4f7b-4a6e-9b6f-0d2f5a7c1e33/v2.0/adminconsent"
	if parsed.Path != wantPath {
		t.Fatalf("expected path %q, got %q", wantPath, parsed.Path)
	}
	query := parsed.Query()
	if query.Get("client_id") != "client_abc" {
		t.Fatalf("expected client_id client_abc, got %q", query.Get("client_id"))
	}
	if query.Get("redirect_uri") != "https://posture.example.com/consent/callback" {
		t.Fatalf("unexpected redirect_uri %q", query.Get("redirect_uri"))
	}
	if query.Get("state") != "token_xyz" {
		t.Fatalf("expected state token_xyz, got %q", query.Get("state"))
	}
	scopes := strings.Fields(query.Get("scope"))
	if len(scopes) != len(ConsentPermissionCatalog) {
		t.Fatalf("expected full catalog by default, got %v", scopes)
	}
}

func TestConsentURLBuilder_CustomDomainUsesOrganizations(t *testing.T) {
	builder := NewConsentURLBuilder(DefaultLoginBaseURL)

	raw, err := builder.BuildAdminConsentURL(BuildConsentURLInput{
		ClientID:    "client_abc",
		TenantID:    "contoso.example.com",
		RedirectURL: "https://posture.example.com/consent/callback",
	})
	if err != nil {
		t.Fatalf("build admin consent url: %v", err)
	}
	if !strings.HasPrefix(raw, "https://login.microsoftonline.com/organizations/v2.0/adminconsent?") {
		t.Fatalf("expected organizations segment, got %q", raw)
	}
}

func TestConsentURLBuilder_RequiresIdentifiers(t *testing.T) {
	builder := NewConsentURLBuilder("")

	if _, err := builder.BuildAdminConsentURL(BuildConsentURLInput{
		TenantID:    "contoso.onmicrosoft.com",
		RedirectURL: "https://posture.example.com/consent/callback",
	}); err == nil {
		t.Fatalf("expected error for missing client id")
	}
	if _, err := builder.BuildAdminConsentURL(BuildConsentURLInput{
		ClientID:    "client_abc",
		RedirectURL: "https://posture.example.com/consent/callback",
	}); err == nil {
		t.Fatalf("expected error for missing tenant id")
	}
	if _, err := builder.BuildAdminConsentURL(BuildConsentURLInput{
		ClientID: "client_abc",
		TenantID: "contoso.onmicrosoft.com",
	}); err == nil {
		t.Fatalf("expected error for missing redirect url")
	}
}

func TestFilterConsentPermissions(t *testing.T) {
	got := FilterConsentPermissions([]string{"reports.read.all", "Directory.Read.All", "Mail.ReadWrite"})
	want := []string{"Directory.Read.All", "Reports.Read.All"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v in catalog order, got %v", want, got)
		}
	}

	if got := FilterConsentPermissions(nil); len(got) != len(ConsentPermissionCatalog) {
		t.Fatalf("expected empty request to mean the full catalog, got %v", got)
	}
	if got := FilterConsentPermissions([]string{"Mail.ReadWrite"}); len(got) != len(ConsentPermissionCatalog) {
		t.Fatalf("expected fully out-of-catalog request to fall back to the catalog, got %v", got)
	}
}

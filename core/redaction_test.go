package core

import "testing"

func TestRedactSensitiveMap(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"customer_id":   "cust_1",
		"tenant_id":     "contoso.onmicrosoft.com",
		"client_secret": "super-secret",
		"access_token":  "tok",
		"metadata": map[string]any{
			"api_key":       "key",
			"tenant_domain": "contoso.onmicrosoft.com",
		},
	})

	if redacted["customer_id"] != "cust_1" {
		t.Fatalf("traceability keys must not be redacted, got %v", redacted["customer_id"])
	}
	if redacted["client_secret"] != RedactedValue {
		t.Fatalf("expected client_secret to be redacted, got %v", redacted["client_secret"])
	}
	if redacted["access_token"] != RedactedValue {
		t.Fatalf("expected access_token to be redacted, got %v", redacted["access_token"])
	}
	nested, ok := redacted["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested map to survive, got %T", redacted["metadata"])
	}
	if nested["api_key"] != RedactedValue {
		t.Fatalf("expected nested api_key to be redacted, got %v", nested["api_key"])
	}
	if nested["tenant_domain"] != "contoso.onmicrosoft.com" {
		t.Fatalf("expected nested tenant_domain to be kept, got %v", nested["tenant_domain"])
	}
}

func TestRedactSensitiveMap_Empty(t *testing.T) {
	if got := RedactSensitiveMap(nil); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
}

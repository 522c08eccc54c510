package core

import "strings"

const RedactedValue = "[REDACTED]"

// RedactSensitiveMap copies log or metadata fields with credential material
// masked. Provisioning flows carry client secrets next to tenant
// identifiers, so anything that looks like a secret never reaches a log
// line or a callback redirect.
func RedactSensitiveMap(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	return redactSensitiveMap(fields)
}

func redactSensitiveMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		if shouldRedactKey(key) {
			target[key] = RedactedValue
			continue
		}
		target[key] = redactSensitiveValue(value)
	}
	return target
}

func redactSensitiveValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return redactSensitiveMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = redactSensitiveValue(typed[i])
		}
		return out
	default:
		return value
	}
}

func shouldRedactKey(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" || isTraceabilityKey(key) {
		return false
	}
	sensitiveTokens := []string{
		"password",
		"secret",
		"token",
		"authorization",
		"api_key",
		"apikey",
		"access_key",
		"credential",
		"signature",
	}
	for _, token := range sensitiveTokens {
		if strings.Contains(key, token) {
			return true
		}
	}
	return false
}

// isTraceabilityKey exempts correlation identifiers that would otherwise
// trip the substring match.
func isTraceabilityKey(key string) bool {
	switch key {
	case "customer_id",
		"tenant_id",
		"tenant_domain",
		"application_id",
		"service_principal_id",
		"client_id",
		"trace_id",
		"request_id",
		"correlation_id":
		return true
	default:
		return false
	}
}

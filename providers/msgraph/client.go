package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-posture/auth"
	"github.com/goliatone/go-posture/core"
)

type authToken = auth.Token

// doGraph executes one authenticated graph call and decodes the response
// into out when it is non-nil. Failures come back as classified envelopes.
func (p *Provider) doGraph(
	ctx context.Context,
	token auth.Token,
	method string,
	path string,
	query map[string]string,
	payload any,
	out any,
) error {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("msgraph: encode request payload: %w", err)
		}
		body = encoded
	}

	headers := map[string]string{
		"Authorization": token.TokenType + " " + token.AccessToken,
		"Accept":        "application/json",
	}
	if len(body) > 0 {
		headers["Content-Type"] = "application/json"
	}

	response, err := p.transport.Do(ctx, core.TransportRequest{
		Method:  method,
		URL:     p.config.GraphBaseURL + path,
		Query:   query,
		Headers: headers,
		Body:    body,
		Timeout: p.config.Timeout,
	})
	if err != nil {
		return err
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return classifyGraphError(response.StatusCode, response.Body, method, path)
	}
	if out == nil || len(response.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(response.Body, out); err != nil {
		return fmt.Errorf("msgraph: decode %s %s response: %w", method, path, err)
	}
	return nil
}

func escapeODataLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

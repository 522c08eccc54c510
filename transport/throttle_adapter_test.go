package transport

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-posture/core"
)

type scriptedTransport struct {
	mu        sync.Mutex
	responses []core.TransportResponse
	calls     int
}

func (s *scriptedTransport) Kind() string { return "scripted" }

func (s *scriptedTransport) Do(context.Context, core.TransportRequest) (core.TransportResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.responses) == 0 {
		return core.TransportResponse{StatusCode: http.StatusOK}, nil
	}
	response := s.responses[0]
	s.responses = s.responses[1:]
	return response, nil
}

func TestThrottleAwareAdapter_RetriesThrottledResponses(t *testing.T) {
	next := &scriptedTransport{responses: []core.TransportResponse{
		{StatusCode: http.StatusTooManyRequests, Headers: map[string][]string{"Retry-After": {"0"}}},
		{StatusCode: http.StatusOK, Body: []byte("ok")},
	}}
	adapter := NewThrottleAwareAdapter(next)
	adapter.BaseDelay = time.Millisecond

	response, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		t.Fatalf("expected retried request to succeed, got %d", response.StatusCode)
	}
	if next.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", next.calls)
	}
}

func TestThrottleAwareAdapter_GivesUpAfterMaxRetries(t *testing.T) {
	next := &scriptedTransport{responses: []core.TransportResponse{
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusTooManyRequests},
		{StatusCode: http.StatusTooManyRequests},
	}}
	adapter := NewThrottleAwareAdapter(next)
	adapter.MaxRetries = 2
	adapter.BaseDelay = time.Millisecond

	response, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("exhausted retries still return the last response: %v", err)
	}
	if response.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected the throttled status to surface, got %d", response.StatusCode)
	}
	if next.calls != 3 {
		t.Fatalf("expected initial call plus 2 retries, got %d", next.calls)
	}
}

func TestThrottleAwareAdapter_PassesThroughNormalResponses(t *testing.T) {
	next := &scriptedTransport{responses: []core.TransportResponse{
		{StatusCode: http.StatusNotFound},
	}}
	adapter := NewThrottleAwareAdapter(next)

	response, err := adapter.Do(context.Background(), core.TransportRequest{URL: "https://example.com"})
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	if response.StatusCode != http.StatusNotFound || next.calls != 1 {
		t.Fatalf("expected pass-through without retry, got %d after %d calls", response.StatusCode, next.calls)
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter(map[string][]string{"Retry-After": {"5"}}); got != 5*time.Second {
		t.Fatalf("expected 5s, got %v", got)
	}
	if got := parseRetryAfter(map[string][]string{"retry-after": {"7"}}); got != 7*time.Second {
		t.Fatalf("expected case-insensitive header match, got %v", got)
	}
	if got := parseRetryAfter(map[string][]string{"Retry-After": {"garbage"}}); got != 0 {
		t.Fatalf("expected unparseable value to be ignored, got %v", got)
	}
	if got := parseRetryAfter(nil); got != 0 {
		t.Fatalf("expected no header to mean no delay, got %v", got)
	}
}

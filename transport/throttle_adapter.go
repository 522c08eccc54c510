package transport

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-posture/core"
)

const (
	defaultThrottleMaxRetries = 2
	defaultThrottleBaseDelay  = time.Second
	maxRetryAfterWait         = 30 * time.Second
)

// ThrottleAwareAdapter wraps another transport and retries responses the
// upstream explicitly throttled (429) or briefly shed (503), honoring
// Retry-After when it is present and sane. Anything else passes through
// untouched.
type ThrottleAwareAdapter struct {
	Next       core.Transport
	MaxRetries int
	BaseDelay  time.Duration
}

func NewThrottleAwareAdapter(next core.Transport) *ThrottleAwareAdapter {
	return &ThrottleAwareAdapter{
		Next:       next,
		MaxRetries: defaultThrottleMaxRetries,
		BaseDelay:  defaultThrottleBaseDelay,
	}
}

func (a *ThrottleAwareAdapter) Kind() string {
	if a == nil || a.Next == nil {
		return ""
	}
	return a.Next.Kind()
}

func (a *ThrottleAwareAdapter) Do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if a == nil || a.Next == nil {
		return core.TransportResponse{}, transportError(
			"transport: throttle adapter requires a next transport",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	maxRetries := a.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var response core.TransportResponse
	var err error
	for attempt := 0; ; attempt++ {
		response, err = a.Next.Do(ctx, req)
		if err != nil {
			return response, err
		}
		if !isThrottledStatus(response.StatusCode) || attempt >= maxRetries {
			return response, nil
		}

		delay := a.retryDelay(response, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return response, transportWrapError(
				ctx.Err(),
				goerrors.CategoryExternal,
				"transport: canceled while waiting out upstream throttling",
				http.StatusBadGateway,
				map[string]any{"status_code": response.StatusCode},
			)
		case <-timer.C:
		}
	}
}

func (a *ThrottleAwareAdapter) retryDelay(response core.TransportResponse, attempt int) time.Duration {
	if retryAfter := parseRetryAfter(response.Headers); retryAfter > 0 {
		if retryAfter > maxRetryAfterWait {
			return maxRetryAfterWait
		}
		return retryAfter
	}
	base := a.BaseDelay
	if base <= 0 {
		base = defaultThrottleBaseDelay
	}
	return base << attempt
}

func parseRetryAfter(headers map[string][]string) time.Duration {
	for key, values := range headers {
		if !strings.EqualFold(key, "Retry-After") || len(values) == 0 {
			continue
		}
		raw := strings.TrimSpace(values[0])
		if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		if at, err := http.ParseTime(raw); err == nil {
			if wait := time.Until(at); wait > 0 {
				return wait
			}
		}
	}
	return 0
}

func isThrottledStatus(status int) bool {
	return status == http.StatusTooManyRequests || status == http.StatusServiceUnavailable
}

var _ core.Transport = (*ThrottleAwareAdapter)(nil)

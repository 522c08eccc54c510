package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-posture/core"
)

const defaultMaxBodyBytes = 1 << 20 // 1 MiB

// ConsentCallbackHandler is the slice of the core service the dispatcher
// drives.
type ConsentCallbackHandler interface {
	CompleteConsentCallback(ctx context.Context, in core.CallbackInput) (core.CallbackResult, error)
}

// Dispatcher accepts consent-return HTTP requests, normalizes them into a
// core.CallbackInput, and runs the callback state machine. The zero value
// is not usable; construct with NewDispatcher.
type Dispatcher struct {
	Handler      ConsentCallbackHandler
	MaxBodyBytes int64
	Logger       glog.Logger
}

func NewDispatcher(handler ConsentCallbackHandler, opts ...func(*Dispatcher)) *Dispatcher {
	d := &Dispatcher{
		Handler:      handler,
		MaxBodyBytes: defaultMaxBodyBytes,
		Logger:       glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

func WithLogger(logger glog.Logger) func(*Dispatcher) {
	return func(d *Dispatcher) {
		d.Logger = glog.Ensure(logger)
	}
}

func WithMaxBodyBytes(limit int64) func(*Dispatcher) {
	return func(d *Dispatcher) {
		if limit > 0 {
			d.MaxBodyBytes = limit
		}
	}
}

// Normalize flattens the request into the canonical callback parameter
// map. GET reads query parameters; POST reads a url-encoded form or a
// JSON object body depending on Content-Type.
func (d *Dispatcher) Normalize(r *http.Request) (core.CallbackInput, error) {
	if r == nil {
		return core.CallbackInput{}, inboundBadInput("inbound: request is nil", nil)
	}

	switch r.Method {
	case http.MethodGet:
		return core.CallbackInput{Params: core.CallbackParamsFromValues(r.URL.Query())}, nil
	case http.MethodPost:
		return d.normalizePost(r)
	default:
		return core.CallbackInput{}, inboundBadInput(
			fmt.Sprintf("inbound: unsupported method %q", r.Method),
			map[string]any{"method": r.Method},
		)
	}
}

func (d *Dispatcher) normalizePost(r *http.Request) (core.CallbackInput, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}

	switch {
	case mediaType == "application/json":
		limit := d.MaxBodyBytes
		if limit <= 0 {
			limit = defaultMaxBodyBytes
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, limit))
		if err != nil {
			return core.CallbackInput{}, inboundWrapError(err, "inbound: reading callback body failed")
		}
		body := map[string]any{}
		if err := json.Unmarshal(raw, &body); err != nil {
			return core.CallbackInput{}, inboundWrapError(err, "inbound: callback body is not a JSON object")
		}
		return core.CallbackInput{Params: core.CallbackParamsFromJSON(body)}, nil
	case mediaType == "application/x-www-form-urlencoded" || strings.TrimSpace(mediaType) == "":
		if err := r.ParseForm(); err != nil {
			return core.CallbackInput{}, inboundWrapError(err, "inbound: parsing callback form failed")
		}
		return core.CallbackInput{Params: core.CallbackParamsFromValues(r.PostForm)}, nil
	default:
		return core.CallbackInput{}, inboundBadInput(
			fmt.Sprintf("inbound: unsupported content type %q", contentType),
			map[string]any{"content_type": contentType},
		)
	}
}

// Dispatch normalizes the request and runs the callback pass. The returned
// CallbackResult is terminal even when err is non-nil; err mirrors a
// non-success status for callers that want to observe failures.
func (d *Dispatcher) Dispatch(ctx context.Context, r *http.Request) (core.CallbackResult, error) {
	if d == nil || d.Handler == nil {
		return core.CallbackResult{}, inboundInternal("inbound: callback handler is required", nil)
	}
	input, err := d.Normalize(r)
	if err != nil {
		return core.CallbackResult{
			Status:     core.CallbackStatusError,
			Message:    err.Error(),
			HTTPStatus: http.StatusBadRequest,
		}, err
	}
	return d.Handler.CompleteConsentCallback(ctx, input)
}

// ServeHTTP runs the callback and routes the browser: a redirect target
// wins, otherwise the result is written as a JSON body with the result's
// HTTP status.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result, err := d.Dispatch(r.Context(), r)
	if err != nil {
		logger := glog.Ensure(d.loggerOrNil())
		logger.Warn("consent callback did not complete cleanly",
			"status", string(result.Status),
			"customer_id", result.CustomerID,
			"error", err,
		)
	}

	if result.RedirectURL != "" {
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
		return
	}

	status := result.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":      result.Status,
		"message":     result.Message,
		"customer_id": result.CustomerID,
		"app_id":      result.AppID,
	})
}

func (d *Dispatcher) loggerOrNil() glog.Logger {
	if d == nil {
		return nil
	}
	return d.Logger
}

package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-posture/core"
)

type stubMutatingService struct {
	beginConsentFn     func(ctx context.Context, req core.BeginConsentRequest) (core.BeginConsentResponse, error)
	completeCallbackFn func(ctx context.Context, in core.CallbackInput) (core.CallbackResult, error)
	reprovisionFn      func(ctx context.Context, customerID string, opts core.ReprovisionOptions) (core.ReprovisionResult, error)
	collectScoreFn     func(ctx context.Context, customerID string) (core.PostureReport, error)
}

func (s stubMutatingService) BeginConsent(ctx context.Context, req core.BeginConsentRequest) (core.BeginConsentResponse, error) {
	if s.beginConsentFn == nil {
		return core.BeginConsentResponse{}, nil
	}
	return s.beginConsentFn(ctx, req)
}

func (s stubMutatingService) CompleteConsentCallback(ctx context.Context, in core.CallbackInput) (core.CallbackResult, error) {
	if s.completeCallbackFn == nil {
		return core.CallbackResult{}, nil
	}
	return s.completeCallbackFn(ctx, in)
}

func (s stubMutatingService) ReprovisionCustomer(ctx context.Context, customerID string, opts core.ReprovisionOptions) (core.ReprovisionResult, error) {
	if s.reprovisionFn == nil {
		return core.ReprovisionResult{}, nil
	}
	return s.reprovisionFn(ctx, customerID, opts)
}

func (s stubMutatingService) CollectScore(ctx context.Context, customerID string) (core.PostureReport, error) {
	if s.collectScoreFn == nil {
		return core.PostureReport{}, nil
	}
	return s.collectScoreFn(ctx, customerID)
}

func TestBeginConsentCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.BeginConsentResponse{URL: "https://login.microsoftonline.com/organizations/v2.0/adminconsent", State: "st"}
	called := false

	svc := stubMutatingService{
		beginConsentFn: func(_ context.Context, req core.BeginConsentRequest) (core.BeginConsentResponse, error) {
			called = true
			if req.CustomerID != "cust_1" {
				t.Fatalf("expected customer cust_1, got %q", req.CustomerID)
			}
			return expected, nil
		},
	}

	cmd := NewBeginConsentCommand(svc)
	collector := gocmd.NewResult[core.BeginConsentResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	if err := cmd.Execute(ctx, BeginConsentMessage{Request: core.BeginConsentRequest{CustomerID: "cust_1"}}); err != nil {
		t.Fatalf("execute begin consent: %v", err)
	}
	if !called {
		t.Fatalf("expected consent service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.URL != expected.URL || result.State != expected.State {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestCompleteCallbackCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.CallbackResult{Status: core.CallbackStatusSuccess, CustomerID: "cust_1"}

	svc := stubMutatingService{
		completeCallbackFn: func(_ context.Context, in core.CallbackInput) (core.CallbackResult, error) {
			if in.Params["state"] != "tok" {
				t.Fatalf("unexpected callback params: %#v", in.Params)
			}
			return expected, nil
		},
	}

	cmd := NewCompleteCallbackCommand(svc)
	collector := gocmd.NewResult[core.CallbackResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := CompleteCallbackMessage{Input: core.CallbackInput{Params: map[string]string{"state": "tok"}}}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute callback: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Status != core.CallbackStatusSuccess || result.CustomerID != "cust_1" {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestReprovisionCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	svc := stubMutatingService{
		reprovisionFn: func(_ context.Context, customerID string, opts core.ReprovisionOptions) (core.ReprovisionResult, error) {
			if customerID != "cust_1" || opts.MaxAttempts != 2 {
				t.Fatalf("unexpected reprovision input: %q %#v", customerID, opts)
			}
			return core.ReprovisionResult{Attempts: 2}, nil
		},
	}

	cmd := NewReprovisionCommand(svc)
	collector := gocmd.NewResult[core.ReprovisionResult]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	msg := ReprovisionMessage{CustomerID: "cust_1", Options: core.ReprovisionOptions{MaxAttempts: 2}}
	if err := cmd.Execute(ctx, msg); err != nil {
		t.Fatalf("execute reprovision: %v", err)
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Attempts != 2 {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestCollectScoreCommand_PropagatesServiceError(t *testing.T) {
	wantErr := errors.New("upstream rejected the request")
	svc := stubMutatingService{
		collectScoreFn: func(_ context.Context, customerID string) (core.PostureReport, error) {
			return core.PostureReport{}, wantErr
		},
	}

	cmd := NewCollectScoreCommand(svc)
	err := cmd.Execute(context.Background(), CollectScoreMessage{CustomerID: "cust_1"})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected service error, got %v", err)
	}
}

func TestMessageValidation(t *testing.T) {
	cases := []struct {
		name    string
		message interface{ Validate() error }
		wantErr bool
	}{
		{name: "begin consent valid", message: BeginConsentMessage{Request: core.BeginConsentRequest{CustomerID: "c1"}}},
		{name: "begin consent missing customer", message: BeginConsentMessage{}, wantErr: true},
		{name: "callback valid", message: CompleteCallbackMessage{Input: core.CallbackInput{Params: map[string]string{"state": "s"}}}},
		{name: "callback empty params", message: CompleteCallbackMessage{}, wantErr: true},
		{name: "reprovision valid", message: ReprovisionMessage{CustomerID: "c1"}},
		{name: "reprovision missing customer", message: ReprovisionMessage{}, wantErr: true},
		{name: "collect valid", message: CollectScoreMessage{CustomerID: "c1"}},
		{name: "collect missing customer", message: CollectScoreMessage{}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.message.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

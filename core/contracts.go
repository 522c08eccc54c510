package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type CreateCustomerInput struct {
	Name         string
	TenantID     string
	TenantDomain string
	ContactEmail string
	Status       CustomerStatus
}

type UpdateCustomerInput struct {
	Name         *string
	TenantDomain *string
	ContactEmail *string
	Status       *CustomerStatus
}

// SaveCustomerCredentialsInput writes the credentials sub-object after a
// consent callback. ExpectConsentGranted, when set, makes the write
// conditional on the currently stored consent flag so concurrent callbacks
// for the same customer cannot silently clobber each other.
type SaveCustomerCredentialsInput struct {
	CustomerID           string
	Credentials          CustomerCredentials
	ExpectConsentGranted *bool
}

type ListCustomersFilter struct {
	Status      CustomerStatus
	ConsentOnly bool
}

// CustomerStore is the narrow repository boundary this core reads customer
// identity from and writes provisioning outcomes to.
type CustomerStore interface {
	Get(ctx context.Context, id string) (Customer, error)
	GetByTenant(ctx context.Context, tenantID string) (Customer, error)
	List(ctx context.Context, filter ListCustomersFilter) ([]Customer, error)
	Create(ctx context.Context, in CreateCustomerInput) (Customer, error)
	Update(ctx context.Context, id string, in UpdateCustomerInput) (Customer, error)
	SaveCredentials(ctx context.Context, in SaveCustomerCredentialsInput) (Customer, error)
}

type ProvisionRequest struct {
	CustomerID  string
	TenantID    string
	ClientID    string
	DisplayName string
	Metadata    map[string]any
}

type ProvisionResult struct {
	ApplicationID      string
	AppClientID        string
	ServicePrincipalID string
	AlreadyExisted     bool
}

// Provisioner registers the delegated application and its service principal
// inside the target tenant using the operator's own credentials. The call
// must be idempotent: re-running for an already provisioned tenant
// reconciles identifiers instead of creating duplicates.
type Provisioner interface {
	CreateEnterpriseApplication(ctx context.Context, req ProvisionRequest) (ProvisionResult, error)
}

type ScoreQuery struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// ScoreSource exposes the per-tenant upstream feeds. FetchSecureScore is
// authoritative; the other two feeds are best-effort for the caller.
type ScoreSource interface {
	FetchSecureScore(ctx context.Context, query ScoreQuery) (RawScore, error)
	FetchControlProfiles(ctx context.Context, query ScoreQuery) ([]ControlProfile, error)
	FetchLicenseUsage(ctx context.Context, query ScoreQuery) (LicenseUsage, error)
}

type TransportRequest struct {
	Method  string
	URL     string
	Query   map[string]string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
}

type Transport interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type StoreProvider interface {
	CustomerStore() CustomerStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type CallbackStatus string

const (
	CallbackStatusSuccess CallbackStatus = "success"
	CallbackStatusPartial CallbackStatus = "partial"
	CallbackStatusError   CallbackStatus = "error"
)

// CallbackInput is the canonical schema for a consent callback after the
// dispatch layer normalized GET query parameters or a POST body into one
// parameter map. Validation happens here, at the boundary, not deeper in.
type CallbackInput struct {
	Params map[string]string
}

// CallbackResult is the machine-readable terminal state of one callback
// pass plus the redirect target the presentation layer routes the user to.
type CallbackResult struct {
	Status      CallbackStatus
	Message     string
	HTTPStatus  int
	RedirectURL string
	CustomerID  string
	AppID       string
}

type BeginConsentRequest struct {
	CustomerID  string
	ClientID    string
	TenantID    string
	Permissions []string
	RedirectURL string
}

type BeginConsentResponse struct {
	URL      string
	State    string
	Nonce    string
	IssuedAt time.Time
}

// Package posture wires tenant onboarding through admin consent with
// security posture collection. The root package re-exports the core
// surface so hosts can depend on a single import.
package posture

import "github.com/goliatone/go-posture/core"

type Config = core.Config

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type ConsentStateStore = core.ConsentStateStore
type CustomerLocker = core.CustomerLocker
type CustomerStore = core.CustomerStore
type Provisioner = core.Provisioner
type ScoreSource = core.ScoreSource
type MetricsRecorder = core.MetricsRecorder

type BeginConsentRequest = core.BeginConsentRequest
type BeginConsentResponse = core.BeginConsentResponse
type CallbackInput = core.CallbackInput
type CallbackResult = core.CallbackResult
type ReprovisionOptions = core.ReprovisionOptions
type ReprovisionResult = core.ReprovisionResult
type PostureReport = core.PostureReport
type Customer = core.Customer
type CustomerCredentials = core.CustomerCredentials

var (
	WithLogger                    = core.WithLogger
	WithLoggerProvider            = core.WithLoggerProvider
	WithMetricsRecorder           = core.WithMetricsRecorder
	WithErrorFactory              = core.WithErrorFactory
	WithErrorMapper               = core.WithErrorMapper
	WithPersistenceClient         = core.WithPersistenceClient
	WithRepositoryFactory         = core.WithRepositoryFactory
	WithConfigProvider            = core.WithConfigProvider
	WithOptionsResolver           = core.WithOptionsResolver
	WithCustomerStore             = core.WithCustomerStore
	WithProvisioner               = core.WithProvisioner
	WithScoreSource               = core.WithScoreSource
	WithConsentURLBuilder         = core.WithConsentURLBuilder
	WithConsentStateStore         = core.WithConsentStateStore
	WithCustomerLocker            = core.WithCustomerLocker
	WithProvisionBackoffScheduler = core.WithProvisionBackoffScheduler
	WithClock                     = core.WithClock
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

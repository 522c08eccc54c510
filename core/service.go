package core

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// Service orchestrates the consent workflow and posture collection. All
// collaborators are injected; there is no module-level state, so tests can
// substitute fakes per call.
type Service struct {
	config           Config
	logger           Logger
	loggerProvider   LoggerProvider
	metricsRecorder  MetricsRecorder
	errorFactory     ErrorFactory
	errorMapper      ErrorMapper
	customerStore    CustomerStore
	provisioner      Provisioner
	scoreSource      ScoreSource
	urlBuilder       *ConsentURLBuilder
	stateStore       ConsentStateStore
	customerLocker   CustomerLocker
	backoffScheduler ProvisionBackoffScheduler
	now              func() time.Time
}

type ServiceDependencies struct {
	Logger           Logger
	LoggerProvider   LoggerProvider
	MetricsRecorder  MetricsRecorder
	ErrorFactory     ErrorFactory
	ErrorMapper      ErrorMapper
	CustomerStore    CustomerStore
	Provisioner      Provisioner
	ScoreSource      ScoreSource
	URLBuilder       *ConsentURLBuilder
	StateStore       ConsentStateStore
	CustomerLocker   CustomerLocker
	BackoffScheduler ProvisionBackoffScheduler
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("posture", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("posture"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.customerStore == nil && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				builder.customerStore = storeProvider.CustomerStore()
			}
		}
	}

	if builder.urlBuilder == nil {
		builder.urlBuilder = NewConsentURLBuilder(finalConfig.Consent.LoginBaseURL)
	}
	if builder.stateStore == nil {
		stateStore := NewMemoryConsentStateStore(finalConfig.Consent.StateTTL)
		// the default store shares the service clock
		stateStore.nowFn = builder.now
		builder.stateStore = stateStore
	}
	if builder.customerLocker == nil {
		builder.customerLocker = NewMemoryCustomerLocker()
	}
	if builder.backoffScheduler == nil {
		builder.backoffScheduler = ExponentialBackoffScheduler{
			Initial: defaultProvisionInitialBackoff,
			Max:     defaultProvisionMaxBackoff,
		}
	}

	return &Service{
		config:           finalConfig,
		logger:           logger,
		loggerProvider:   builder.loggerProvider,
		metricsRecorder:  builder.metricsRecorder,
		errorFactory:     builder.errorFactory,
		errorMapper:      builder.errorMapper,
		customerStore:    builder.customerStore,
		provisioner:      builder.provisioner,
		scoreSource:      builder.scoreSource,
		urlBuilder:       builder.urlBuilder,
		stateStore:       builder.stateStore,
		customerLocker:   builder.customerLocker,
		backoffScheduler: builder.backoffScheduler,
		now:              builder.now,
	}, nil
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:           s.logger,
		LoggerProvider:   s.loggerProvider,
		MetricsRecorder:  s.metricsRecorder,
		ErrorFactory:     s.errorFactory,
		ErrorMapper:      s.errorMapper,
		CustomerStore:    s.customerStore,
		Provisioner:      s.provisioner,
		ScoreSource:      s.scoreSource,
		URLBuilder:       s.urlBuilder,
		StateStore:       s.stateStore,
		CustomerLocker:   s.customerLocker,
		BackoffScheduler: s.backoffScheduler,
	}
}

// BeginConsent builds the admin-consent redirect for a customer and records
// the issued state nonce for one-time use on the way back.
func (s *Service) BeginConsent(ctx context.Context, req BeginConsentRequest) (response BeginConsentResponse, err error) {
	startedAt := s.clock()
	fields := map[string]any{
		"customer_id": req.CustomerID,
		"tenant_id":   req.TenantID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "begin_consent", err, fields)
	}()

	clientID := strings.TrimSpace(req.ClientID)
	tenantID := strings.TrimSpace(req.TenantID)
	customerID := strings.TrimSpace(req.CustomerID)

	if customerID != "" && (clientID == "" || tenantID == "") && s.customerStore != nil {
		customer, lookupErr := s.customerStore.Get(ctx, customerID)
		if lookupErr != nil {
			err = s.mapError(lookupErr)
			return BeginConsentResponse{}, err
		}
		if tenantID == "" {
			tenantID = strings.TrimSpace(customer.TenantID)
		}
		if clientID == "" && customer.Credentials != nil {
			clientID = strings.TrimSpace(customer.Credentials.ClientID)
		}
	}

	nonce, err := generateConsentNonce()
	if err != nil {
		err = s.mapError(err)
		return BeginConsentResponse{}, err
	}

	issuedAt := s.clock()
	state := ConsentState{
		CustomerID: customerID,
		ClientID:   clientID,
		TenantID:   tenantID,
		Scopes:     FilterConsentPermissions(req.Permissions),
		Nonce:      nonce,
		IssuedAt:   issuedAt,
	}
	token, err := EncodeConsentState(state)
	if err != nil {
		err = s.mapError(err)
		return BeginConsentResponse{}, err
	}

	redirect := strings.TrimSpace(req.RedirectURL)
	if redirect == "" {
		redirect = strings.TrimSpace(s.config.Consent.RedirectURL)
	}

	consentURL, err := s.urlBuilder.BuildAdminConsentURL(BuildConsentURLInput{
		CustomerID:  customerID,
		ClientID:    clientID,
		TenantID:    tenantID,
		RedirectURL: redirect,
		Permissions: req.Permissions,
		State:       token,
	})
	if err != nil {
		err = s.mapError(err)
		return BeginConsentResponse{}, err
	}

	if s.stateStore != nil {
		saveErr := s.stateStore.Save(ctx, ConsentStateRecord{
			Nonce:      nonce,
			CustomerID: customerID,
			TenantID:   tenantID,
			CreatedAt:  issuedAt,
		})
		if saveErr != nil {
			err = s.mapError(saveErr)
			return BeginConsentResponse{}, err
		}
	}

	response = BeginConsentResponse{
		URL:      consentURL,
		State:    token,
		Nonce:    nonce,
		IssuedAt: issuedAt,
	}
	return response, nil
}

func (s *Service) clock() time.Time {
	if s == nil || s.now == nil {
		return time.Now().UTC()
	}
	return s.now()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return err
}

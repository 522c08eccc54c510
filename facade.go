package posture

import (
	"fmt"

	posturecommand "github.com/goliatone/go-posture/command"
	"github.com/goliatone/go-posture/query"
)

// CommandService is the slice of the posture service the facade's
// commands execute against. *core.Service satisfies it.
type CommandService = posturecommand.MutatingService

// CustomerReader is the read-only store slice the facade's queries run
// against. Any core.CustomerStore satisfies it.
type CustomerReader = query.CustomerReader

type Commands struct {
	BeginConsent     *posturecommand.BeginConsentCommand
	CompleteCallback *posturecommand.CompleteCallbackCommand
	Reprovision      *posturecommand.ReprovisionCommand
	CollectScore     *posturecommand.CollectScoreCommand
}

type Queries struct {
	GetCustomer         *query.GetCustomerQuery
	GetCustomerByTenant *query.GetCustomerByTenantQuery
	ListCustomers       *query.ListCustomersQuery
}

// Facade bundles the command and query handlers for a single service
// instance so a host can register them with its dispatcher in one pass.
type Facade struct {
	service  CommandService
	commands Commands
	queries  Queries
}

type FacadeOption func(*Facade)

// WithCustomerReader enables the read-side queries on the facade.
func WithCustomerReader(reader CustomerReader) FacadeOption {
	return func(f *Facade) {
		if reader == nil {
			return
		}
		f.queries = Queries{
			GetCustomer:         query.NewGetCustomerQuery(reader),
			GetCustomerByTenant: query.NewGetCustomerByTenantQuery(reader),
			ListCustomers:       query.NewListCustomersQuery(reader),
		}
	}
}

func NewFacade(service CommandService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("posture: command service is required")
	}

	f := &Facade{
		service: service,
		commands: Commands{
			BeginConsent:     posturecommand.NewBeginConsentCommand(service),
			CompleteCallback: posturecommand.NewCompleteCallbackCommand(service),
			Reprovision:      posturecommand.NewReprovisionCommand(service),
			CollectScore:     posturecommand.NewCollectScoreCommand(service),
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandService {
	if f == nil {
		return nil
	}
	return f.service
}

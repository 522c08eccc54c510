package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-posture/core"
)

// MutatingService is the slice of the posture service the command layer
// drives. core.Service satisfies it.
type MutatingService interface {
	BeginConsent(ctx context.Context, req core.BeginConsentRequest) (core.BeginConsentResponse, error)
	CompleteConsentCallback(ctx context.Context, in core.CallbackInput) (core.CallbackResult, error)
	ReprovisionCustomer(ctx context.Context, customerID string, opts core.ReprovisionOptions) (core.ReprovisionResult, error)
	CollectScore(ctx context.Context, customerID string) (core.PostureReport, error)
}

type BeginConsentCommand struct {
	service MutatingService
}

func NewBeginConsentCommand(service MutatingService) *BeginConsentCommand {
	return &BeginConsentCommand{service: service}
}

func (c *BeginConsentCommand) Execute(ctx context.Context, msg BeginConsentMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: consent service is required")
	}
	out, err := c.service.BeginConsent(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteConsentCallback(ctx, msg.Input)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReprovisionCommand struct {
	service MutatingService
}

func NewReprovisionCommand(service MutatingService) *ReprovisionCommand {
	return &ReprovisionCommand{service: service}
}

func (c *ReprovisionCommand) Execute(ctx context.Context, msg ReprovisionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: provisioning service is required")
	}
	out, err := c.service.ReprovisionCustomer(ctx, msg.CustomerID, msg.Options)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CollectScoreCommand struct {
	service MutatingService
}

func NewCollectScoreCommand(service MutatingService) *CollectScoreCommand {
	return &CollectScoreCommand{service: service}
}

func (c *CollectScoreCommand) Execute(ctx context.Context, msg CollectScoreMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: score service is required")
	}
	out, err := c.service.CollectScore(ctx, msg.CustomerID)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}

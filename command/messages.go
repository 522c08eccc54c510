package command

import (
	"strings"

	"github.com/goliatone/go-posture/core"
)

const (
	TypeBeginConsent     = "posture.command.consent.begin"
	TypeCompleteCallback = "posture.command.callback.complete"
	TypeReprovision      = "posture.command.provision.retry"
	TypeCollectScore     = "posture.command.score.collect"
)

type BeginConsentMessage struct {
	Request core.BeginConsentRequest
}

func (BeginConsentMessage) Type() string { return TypeBeginConsent }

func (m BeginConsentMessage) Validate() error {
	if strings.TrimSpace(m.Request.CustomerID) == "" {
		return commandInvalidInputError("command: customer id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Input core.CallbackInput
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if len(m.Input.Params) == 0 {
		return commandInvalidInputError("command: callback parameters are required")
	}
	return nil
}

type ReprovisionMessage struct {
	CustomerID string
	Options    core.ReprovisionOptions
}

func (ReprovisionMessage) Type() string { return TypeReprovision }

func (m ReprovisionMessage) Validate() error {
	if strings.TrimSpace(m.CustomerID) == "" {
		return commandInvalidInputError("command: customer id is required")
	}
	return nil
}

type CollectScoreMessage struct {
	CustomerID string
}

func (CollectScoreMessage) Type() string { return TypeCollectScore }

func (m CollectScoreMessage) Validate() error {
	if strings.TrimSpace(m.CustomerID) == "" {
		return commandInvalidInputError("command: customer id is required")
	}
	return nil
}

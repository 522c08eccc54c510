package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[BeginConsentMessage]     = (*BeginConsentCommand)(nil)
	_ gocmd.Commander[CompleteCallbackMessage] = (*CompleteCallbackCommand)(nil)
	_ gocmd.Commander[ReprovisionMessage]      = (*ReprovisionCommand)(nil)
	_ gocmd.Commander[CollectScoreMessage]     = (*CollectScoreCommand)(nil)
)

package posture

import (
	"github.com/goliatone/go-posture/providers/msgraph"
	"github.com/goliatone/go-posture/transport"
)

// MSGraphProvider builds the Microsoft Graph provider. The returned value
// serves both core ports: pass it to WithProvisioner and WithScoreSource.
//
// When the config carries no transport, outbound calls go through the
// throttle-aware REST adapter so Graph 429 responses back requests off.
func MSGraphProvider(cfg msgraph.Config) (*msgraph.Provider, error) {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewThrottleAwareAdapter(transport.NewRESTAdapter(nil))
	}
	return msgraph.New(cfg)
}

package notify

import (
	"cldpip/config"
	"context"
	"net/netip"
)

// Interface announces an address change to third parties.
type Interface interface {
	Notify(ctx context.Context, old, new netip.Addr) error
}

// Message is the payload sent for an address change.
type Message struct {
	Old netip.Addr `json:"old"`
	New netip.Addr `json:"new"`
}

var Notifiers = map[string]func(ctx context.Context, c config.Notifier) (Interface, error){
	"mqtt": newMQTT,
}

// New returns the configured notifier, or nil when notifications are
// disabled.
func New(ctx context.Context, c config.Notifier) (Interface, error) {
	if !c.Enabled {
		return nil, nil
	}
	return Notifiers["mqtt"](ctx, c)
}

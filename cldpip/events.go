package cldpip

import (
	"fmt"
	"net/netip"
	"time"
)

type EventKind int

const (
	// Unchanged reports a successful poll that returned the known address.
	Unchanged EventKind = iota
	// LookupFailed reports a poll whose lookup failed.
	LookupFailed
	// AddressChanged reports a poll that returned a different address.
	AddressChanged
)

func (k EventKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case LookupFailed:
		return "lookup_failed"
	case AddressChanged:
		return "address_changed"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is the outcome of one poll.
//
// For Unchanged, New holds the address that was seen. For LookupFailed, Err
// holds the failure and Old the address still known.
type Event struct {
	Kind EventKind
	Old  netip.Addr
	New  netip.Addr
	Err  error
	At   time.Time
}

func (e Event) String() string {
	switch e.Kind {
	case AddressChanged:
		return fmt.Sprintf("%s %s -> %s", e.Kind, e.Old, e.New)
	case LookupFailed:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.New)
	}
}

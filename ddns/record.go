package ddns

import (
	"net/netip"
	"slices"
)

// Record is a DNS record as fetched from the provider.
type Record struct {
	ID      string
	ZoneID  string
	Name    string
	Type    string
	Content string
	Proxied *bool
	TTL     int
	Comment string
	Tags    []string
}

// RecordUpdate is the full projection written back to the provider. Fields
// left out of a partial patch could be reset by the provider, so every field
// of the fetched record travels with it.
type RecordUpdate struct {
	ID      string
	ZoneID  string
	Name    string
	Type    string
	Content string
	Proxied *bool
	TTL     int
	Comment string
	Tags    []string
}

// Retarget builds the update that points r at addr and keeps everything else.
func (r Record) Retarget(addr netip.Addr) RecordUpdate {
	u := RecordUpdate{
		ID:      r.ID,
		ZoneID:  r.ZoneID,
		Name:    r.Name,
		Type:    r.Type,
		Content: addr.String(),
		TTL:     r.TTL,
		Comment: r.Comment,
		Tags:    slices.Clone(r.Tags),
	}

	if r.Proxied != nil {
		proxied := *r.Proxied
		u.Proxied = &proxied
	}

	return u
}

func (r Record) HasTags() bool {
	return len(r.Tags) != 0
}

// ContentAddr parses the record content as an address.
func (r Record) ContentAddr() (netip.Addr, error) {
	return netip.ParseAddr(r.Content)
}

package ddns

import (
	"cldpip/config"
	"context"
	"net/netip"
)

// Interface is the record store the reconciler drives.
type Interface interface {
	// ListRecordsByContent returns every record whose content is addr.
	ListRecordsByContent(ctx context.Context, addr netip.Addr) ([]Record, error)
	// UpdateRecord writes the full projection u. Repeating a write is safe.
	UpdateRecord(ctx context.Context, u RecordUpdate) error
}

var Providers = map[string]func(ctx context.Context, provider config.CloudflareConfig) (Interface, error){
	"cloudflare": newCloudflare,
}

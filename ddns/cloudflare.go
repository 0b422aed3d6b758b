package ddns

import (
	"cldpip/common"
	"cldpip/config"
	"cldpip/log"
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"time"

	cfapi "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

type cloudflare struct {
	token  string
	zoneID string
	conf   config.CloudflareConfig
}

type logger struct {
	ctx context.Context
}

func (l *logger) Printf(format string, v ...interface{}) {
	log.S(l.ctx).Debugf(format, v...)
}

func (d *cloudflare) getAPI(ctx context.Context) (*cfapi.API, error) {
	client := http.DefaultClient

	if ctxClient, ok := ctx.Value(common.HttpClientKey).(*http.Client); ok && ctxClient != nil {
		client = ctxClient
	}

	opts := []cfapi.Option{
		cfapi.HTTPClient(client),
		cfapi.UsingLogger(&logger{ctx: ctx}),
		cfapi.UsingRetryPolicy(
			d.conf.MaxRetries,
			int(time.Duration(d.conf.MinRetryDelay)/time.Second),
			int(time.Duration(d.conf.MaxRetryDelay)/time.Second),
		),
	}

	if d.conf.BaseURL != "" {
		opts = append(opts, cfapi.BaseURL(d.conf.BaseURL))
	}

	api, err := cfapi.NewWithAPIToken(d.token, opts...)
	if err != nil {
		log.S(ctx).Errorw("failed create cloudflare API", zap.Error(err))
		return nil, fmt.Errorf("failed create cloudflare API: %w", err)
	}

	return api, nil
}

func (d *cloudflare) ListRecordsByContent(ctx context.Context, addr netip.Addr) (records []Record, err error) {
	ctx = log.SWith(ctx,
		"action", "list",
		"zone_id", d.zoneID,
		"content", addr.String())

	api, err := d.getAPI(ctx)
	if err != nil {
		return nil, err
	}

	params := cfapi.ListDNSRecordsParams{
		Content: addr.String(),
	}

	cfRecords, info, err := api.ListDNSRecords(ctx, cfapi.ZoneIdentifier(d.zoneID), params)
	if err != nil {
		err = classify("list records", err)
		log.S(ctx).Warnw("failed list records", errorClass(err), zap.Error(err))
		return nil, fmt.Errorf("failed list records: %w", err)
	}

	if info != nil && info.HasMorePages() {
		log.S(ctx).Warnw("partial result, remaining pages left for the next attempt", "count", len(cfRecords), "page_count", info.Count, "pages", info.TotalPages)
	}

	for _, record := range cfRecords {
		// the API matches content loosely on some record types
		if record.Content != addr.String() {
			continue
		}

		records = append(records, fromCloudflare(record, d.zoneID))
	}

	log.S(ctx).Debugw("found records", "count", len(records))

	return records, nil
}

func (d *cloudflare) UpdateRecord(ctx context.Context, u RecordUpdate) error {
	zoneID := u.ZoneID
	if zoneID == "" {
		zoneID = d.zoneID
	}

	ctx = log.SWith(ctx,
		"action", "update",
		"zone_id", zoneID,
		"record_id", u.ID,
		"ns_type", u.Type,
		"domain", u.Name,
		"content", u.Content)

	api, err := d.getAPI(ctx)
	if err != nil {
		return err
	}

	params := cfapi.UpdateDNSRecordParams{
		ID:      u.ID,
		Type:    u.Type,
		Name:    u.Name,
		Content: u.Content,
		TTL:     u.TTL,
		Proxied: u.Proxied,
		Comment: &u.Comment,
		Tags:    u.Tags,
	}

	if _, err := api.UpdateDNSRecord(ctx, cfapi.ZoneIdentifier(zoneID), params); err != nil {
		err = classify("update record", err)
		log.S(ctx).Warnw("failed update record", errorClass(err), zap.Error(err))
		return fmt.Errorf("failed update record %s: %w", u.Name, err)
	}

	log.S(ctx).Debugw("record written")

	return nil
}

func fromCloudflare(r cfapi.DNSRecord, zoneID string) Record {
	return Record{
		ID:      r.ID,
		ZoneID:  zoneID,
		Name:    r.Name,
		Type:    r.Type,
		Content: r.Content,
		Proxied: r.Proxied,
		TTL:     r.TTL,
		Comment: r.Comment,
		Tags:    r.Tags,
	}
}

func errorClass(err error) zap.Field {
	if IsRejection(err) {
		return log.Rejected
	}
	return log.Transport
}

func newCloudflare(ctx context.Context, provider config.CloudflareConfig) (_ Interface, err error) {
	ctx = log.SWith(ctx, "type", "cloudflare")

	if provider.APIToken == "" {
		log.S(ctx).Errorw("missing api token")
		return nil, config.ErrMissingToken
	}

	d := &cloudflare{
		token:  provider.APIToken,
		zoneID: provider.ZoneID,
		conf:   provider,
	}

	if d.zoneID != "" {
		return d, nil
	}

	if provider.ZoneName == "" {
		log.S(ctx).Errorw("missing zone")
		return nil, config.ErrMissingZone
	}

	api, err := d.getAPI(ctx)
	if err != nil {
		return nil, err
	}

	id, err := api.ZoneIDByName(provider.ZoneName)
	if err != nil {
		log.S(ctx).Errorw("failed get zone id", "zone", provider.ZoneName, zap.Error(err))
		return nil, fmt.Errorf("failed get zone id: %w", err)
	}

	log.S(ctx).Infow("resolved zone", "zone", provider.ZoneName, "zone_id", id)
	d.zoneID = id

	return d, nil
}

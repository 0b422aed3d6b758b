package cldpip

import (
	"cldpip/ddns"
	"context"
	"errors"
	"net/netip"
	"sort"
	"sync"
	"time"
)

var errUnreachable = errors.New("unreachable")

type fakeResolver struct {
	mu      sync.Mutex
	results []any
	calls   int
}

// Resolve returns the next scripted result; the last one repeats.
func (f *fakeResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++

	switch v := f.results[i].(type) {
	case error:
		return netip.Addr{}, v
	case string:
		return netip.MustParseAddr(v), nil
	default:
		panic("bad fake result")
	}
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]ddns.Record

	lists      int
	writes     []ddns.RecordUpdate
	failWrites int
	failLists  int
	writeErr   error
}

func newFakeStore(records ...ddns.Record) *fakeStore {
	s := &fakeStore{records: map[string]ddns.Record{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) ListRecordsByContent(ctx context.Context, addr netip.Addr) ([]ddns.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lists++
	if s.failLists > 0 {
		s.failLists--
		return nil, &ddns.TransportError{Op: "list records", Err: errUnreachable}
	}

	var out []ddns.Record
	for _, r := range s.records {
		if r.Content == addr.String() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

func (s *fakeStore) UpdateRecord(ctx context.Context, u ddns.RecordUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failWrites > 0 {
		s.failWrites--
		if s.writeErr != nil {
			return s.writeErr
		}
		return &ddns.TransportError{Op: "update record", Err: errUnreachable}
	}

	s.writes = append(s.writes, u)
	s.records[u.ID] = ddns.Record(u)

	return nil
}

func (s *fakeStore) record(id string) ddns.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

func (s *fakeStore) counts() (lists, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists, len(s.writes)
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls [][2]netip.Addr
	err   error
}

func (n *fakeNotifier) Notify(ctx context.Context, old, new netip.Addr) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, [2]netip.Addr{old, new})
	return n.err
}

// recordWaits replaces the backoff sleep of r and records every delay.
func recordWaits(r *Reconciler, hook func(n int)) *[]time.Duration {
	var waits []time.Duration
	r.wait = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		if hook != nil {
			hook(len(waits))
		}
		return ctx.Err()
	}
	return &waits
}

func aRecord(id, name, content string) ddns.Record {
	proxied := false
	return ddns.Record{
		ID:      id,
		ZoneID:  "zone",
		Name:    name,
		Type:    "A",
		Content: content,
		Proxied: &proxied,
		TTL:     300,
		Comment: "managed",
		Tags:    []string{"home"},
	}
}

package ddns

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetargetPreservesFields(t *testing.T) {
	proxied := true
	r := Record{
		ID:      "rec-a",
		ZoneID:  "zone",
		Name:    "home.example.com",
		Type:    "A",
		Content: "1.2.3.4",
		Proxied: &proxied,
		TTL:     120,
		Comment: "router",
		Tags:    []string{"owner:me", "env:home"},
	}

	u := r.Retarget(netip.MustParseAddr("5.6.7.8"))

	assert.Equal(t, "5.6.7.8", u.Content)
	assert.Equal(t, RecordUpdate{
		ID:      r.ID,
		ZoneID:  r.ZoneID,
		Name:    r.Name,
		Type:    r.Type,
		Content: "5.6.7.8",
		Proxied: r.Proxied,
		TTL:     r.TTL,
		Comment: r.Comment,
		Tags:    r.Tags,
	}, u)

	// the projection must not alias the fetched record
	u.Tags[0] = "changed"
	*u.Proxied = false
	assert.Equal(t, "owner:me", r.Tags[0])
	assert.True(t, *r.Proxied)
}

func TestRetargetKeepsUnsetProxied(t *testing.T) {
	u := Record{ID: "x", Type: "A", Content: "1.2.3.4"}.Retarget(netip.MustParseAddr("5.6.7.8"))
	assert.Nil(t, u.Proxied)
	assert.Nil(t, u.Tags)
}

func TestRecordHelpers(t *testing.T) {
	assert.False(t, Record{}.HasTags())
	assert.False(t, Record{Tags: []string{}}.HasTags())
	assert.True(t, Record{Tags: []string{"a"}}.HasTags())

	addr, err := Record{Content: "127.0.0.1"}.ContentAddr()
	assert.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("127.0.0.1"), addr)
}

type fakeCFError struct {
	codes []int
	msgs  []string
}

func (e fakeCFError) Error() string           { return "cloudflare error" }
func (e fakeCFError) ErrorCodes() []int       { return e.codes }
func (e fakeCFError) ErrorMessages() []string { return e.msgs }

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("op", nil))

	err := classify("update record", fmt.Errorf("wrapped: %w", fakeCFError{codes: []int{9005}, msgs: []string{"bad content"}}))
	var apiErr *APIError
	if assert.ErrorAs(t, err, &apiErr) {
		assert.Equal(t, []Message{{Code: 9005, Message: "bad content"}}, apiErr.Messages)
		assert.Contains(t, apiErr.Error(), "9005: bad content")
	}
	assert.True(t, IsRejection(err))

	err = classify("list records", errors.New("connection refused"))
	var tErr *TransportError
	assert.ErrorAs(t, err, &tErr)
	assert.False(t, IsRejection(err))

	// already classified errors pass through
	assert.Same(t, tErr, classify("again", tErr))
}

package common

import (
	"encoding"
	"fmt"
	"net/netip"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// WeakDecodeMap decodes a loosely typed config map into output, running
// string values through encoding.TextUnmarshaler where the target supports it.
func WeakDecodeMap(input, output any) error {
	config := &mapstructure.DecoderConfig{
		Metadata: nil,
		Result:   output,
		DecodeHook: func(
			f reflect.Type,
			t reflect.Type,
			data interface{}) (interface{}, error) {
			if !reflect.PointerTo(t).Implements(textUnmarshalerType) {
				return data, nil
			}

			str, ok := data.(string)
			if !ok {
				return data, nil
			}

			v := reflect.New(t).Interface().(encoding.TextUnmarshaler)
			if err := v.UnmarshalText([]byte(str)); err != nil {
				return nil, err
			}

			return v, nil
		},
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func DetectNormalizeAddr(addr string) (norm string, isIP bool) {
	if _, err := netip.ParseAddr(addr); err == nil {
		return addr, true
	}

	if len(addr) > 2 && addr[0] == '[' && addr[len(addr)-1] == ']' {
		addrStrip := addr[1 : len(addr)-1]
		if ip, err := netip.ParseAddr(addrStrip); err == nil {
			if ip.Is6() {
				return addrStrip, true
			}
		}
	}

	return addr, false
}

// ParseIPv4 parses s as an IPv4 address. IPv4-mapped IPv6 addresses are
// unmapped; anything else is rejected.
func ParseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, err
	}

	return AsIPv4(addr)
}

func AsIPv4(addr netip.Addr) (netip.Addr, error) {
	switch {
	case !addr.IsValid():
		return netip.Addr{}, fmt.Errorf("invalid address")
	case addr.Zone() != "":
		return netip.Addr{}, fmt.Errorf("unsupported: found zone in address %s", addr)
	case addr.Is4():
		return addr, nil
	case addr.Is4In6():
		return addr.Unmap(), nil
	default:
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %s", addr)
	}
}

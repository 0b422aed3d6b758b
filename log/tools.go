package log

import (
	"net/netip"
	"unicode/utf8"

	"go.uber.org/zap"
)

func ByteField(key string, data []byte) zap.Field {
	if utf8.Valid(data) {
		return zap.ByteString(key, data)
	} else {
		return zap.Binary(key, data)
	}
}

func Addr(key string, addr netip.Addr) zap.Field {
	return zap.Stringer(key, addr)
}

func IP(addr netip.Addr) zap.Field {
	return Addr("ip", addr)
}

func Stage(stage string) zap.Field {
	return zap.String("stage", stage)
}

func Attempt(n int) zap.Field {
	return zap.Int("attempt", n)
}

package log

import (
	"net"
	"unicode/utf8"

	"go.uber.org/zap"
)

// ByteField logs raw response data, as text when it is valid UTF-8.
func ByteField(key string, data []byte) zap.Field {
	if utf8.Valid(data) {
		return zap.ByteString(key, data)
	}
	return zap.Binary(key, data)
}

func IP(ip net.IP) zap.Field {
	return zap.Stringer("ip", ip)
}

func Stage(stage string) zap.Field {
	return zap.String("stage", stage)
}

// Op names the provider API operation being called.
func Op(op string) zap.Field {
	return zap.String("op", op)
}

func DomainID(id string) zap.Field {
	return zap.String("domain_id", id)
}

func RecordID(id string) zap.Field {
	return zap.String("record_id", id)
}

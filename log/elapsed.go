package log

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type elapsed struct {
	since time.Time
	key   string
}

func (v *elapsed) MarshalLogObject(e zapcore.ObjectEncoder) error {
	e.AddDuration(v.key, time.Since(v.since))
	return nil
}

// Elapsed starts a clock now and reports the time passed whenever the
// returned field is encoded. Pass it to individual log calls, not to With,
// which encodes fields immediately.
func Elapsed(key string) zap.Field {
	return zap.Inline(&elapsed{
		since: time.Now(),
		key:   key,
	})
}

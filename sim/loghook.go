package sim

import (
	"fmt"

	"go.uber.org/zap"
)

// A LogHook is a hook that writes every invocation to a logger at debug
// level.
type LogHook struct {
	logger *zap.Logger
	time   TimeTeller
}

// NewLogHook creates a LogHook. The time teller may be nil.
func NewLogHook(logger *zap.Logger, time TimeTeller) *LogHook {
	return &LogHook{
		logger: logger,
		time:   time,
	}
}

// Func logs the hook position, the domain and the item.
func (h *LogHook) Func(ctx HookCtx) {
	if ce := h.logger.Check(zap.DebugLevel, ctx.Pos.Name); ce != nil {
		fields := []zap.Field{zap.String("item", fmt.Sprint(ctx.Item))}

		if named, ok := ctx.Domain.(Named); ok {
			fields = append(fields, zap.String("where", named.Name()))
		}

		if h.time != nil {
			fields = append(fields,
				zap.Float64("time", float64(h.time.CurrentTime())))
		}

		ce.Write(fields...)
	}
}

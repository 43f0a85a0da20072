package telemetry

import (
	"context"

	"goa.design/clue/log"
)

// ClueLogger delegates to goa.design/clue/log. The logger reads formatting and
// debug settings from the context (set via log.Context and log.WithFormat/
// log.WithDebug upstream), so construction itself carries no state.
type ClueLogger struct{}

// NewClueLogger constructs a Logger backed by goa.design/clue/log.
func NewClueLogger() Logger { return ClueLogger{} }

// Debug emits a debug-level log message with structured key-value pairs.
func (ClueLogger) Debug(ctx context.Context, msg string, kv ...any) {
	log.Debug(ctx, clueFields(msg, kv)...)
}

// Info emits an info-level log message with structured key-value pairs.
func (ClueLogger) Info(ctx context.Context, msg string, kv ...any) {
	log.Info(ctx, clueFields(msg, kv)...)
}

// Warn emits a warning-level log message with structured key-value pairs.
func (ClueLogger) Warn(ctx context.Context, msg string, kv ...any) {
	fields := append([]log.Fielder{log.KV{K: "msg", V: msg}, log.KV{K: "severity", V: "warning"}}, kvToFielders(kv)...)
	log.Warn(ctx, fields...)
}

// Error emits an error-level log message with structured key-value pairs.
func (ClueLogger) Error(ctx context.Context, msg string, kv ...any) {
	log.Error(ctx, nil, clueFields(msg, kv)...)
}

func clueFields(msg string, kv []any) []log.Fielder {
	return append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvToFielders(kv)...)
}

// kvToFielders converts variadic key/value pairs (k1, v1, k2, v2, ...) into
// Clue's log.Fielder slice. Non-string keys are skipped; a dangling last key
// pairs with nil.
func kvToFielders(kv []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		var val any
		if i+1 < len(kv) {
			val = kv[i+1]
		}
		fielders = append(fielders, log.KV{K: key, V: val})
	}
	return fielders
}

// Package zap adapts a *zap.Logger to arcache.Logger.
package zap

import (
	"sort"

	"github.com/unkn0wn-root/arcache"
	"go.uber.org/zap"
)

var _ arcache.Logger = Logger{}

// Logger writes arcache events to L. Fields are emitted in key order; values
// of type error are logged with zap.NamedError.
type Logger struct{ L *zap.Logger }

// New returns a Logger named "arcache" under l.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("arcache")} }

func (z Logger) Debug(msg string, f arcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f arcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f arcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f arcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f arcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		switch v := f[k].(type) {
		case error:
			out = append(out, zap.NamedError(k, v))
		default:
			out = append(out, zap.Any(k, v))
		}
	}
	return out
}

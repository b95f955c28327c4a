// Package logrus adapts a *logrus.Entry to arcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/arcache"
)

var _ arcache.Logger = Logger{}

// Logger writes arcache events through E. A field named "err" holding an
// error is attached with WithError so formatters render it as logrus.ErrorKey.
type Logger struct{ E *logrus.Entry }

// New returns a Logger tagged with component=arcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "arcache")}
}

func (l Logger) Debug(msg string, f arcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f arcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f arcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f arcache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f arcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	rest := make(logrus.Fields, len(f))
	var err error
	for k, v := range f {
		if e, ok := v.(error); ok && k == "err" {
			err = e
			continue
		}
		rest[k] = v
	}
	e := l.E.WithFields(rest)
	if err != nil {
		e = e.WithError(err)
	}
	return e
}

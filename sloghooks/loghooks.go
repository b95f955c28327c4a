// Package sloghooks logs arcache hook events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/arcache"
	"github.com/unkn0wn-root/arcache/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	CompletedEvery uint64
	RelaxedEvery   uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	completedCtr atomic.Uint64
	relaxedCtr   atomic.Uint64
}

var _ arcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.Fingerprint(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) GetCompleted(t arcache.ResultType, took time.Duration) {
	if h.l == nil || !sample(h.opts.CompletedEvery, &h.completedCtr) {
		return
	}
	h.l.Debug("arcache.get_completed",
		"result", t.String(),
		"took", took)
}

func (h *Hooks) EnvelopeTypeMismatch(backendKey, got string) {
	if h.l == nil {
		return
	}
	h.l.Warn("arcache.envelope_type_mismatch",
		"key", h.redact(backendKey),
		"got", got)
}

func (h *Hooks) ValueDecodeError(backendKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("arcache.value_decode_error",
		"key", h.redact(backendKey),
		"err", err)
}

func (h *Hooks) InvalidationRecordIgnored(group, got string) {
	if h.l == nil {
		return
	}
	h.l.Warn("arcache.invalidation_record_ignored",
		"group", group,
		"got", got)
}

func (h *Hooks) TimeoutRelaxed(remaining, allotted time.Duration) {
	if h.l == nil || !sample(h.opts.RelaxedEvery, &h.relaxedCtr) {
		return
	}
	h.l.Info("arcache.timeout_relaxed",
		"remaining", remaining,
		"allotted", allotted)
}

func (h *Hooks) BackendSetRejected(backendKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("arcache.backend_set_rejected",
		"key", h.redact(backendKey))
}

func (h *Hooks) PriorInvalidationUnreadable(group string, err error) {
	if h.l == nil {
		return
	}
	h.l.Info("arcache.prior_invalidation_unreadable",
		"group", group,
		"err", err)
}

func (h *Hooks) InvalidationWritten(group string, hard bool) {
	if h.l == nil {
		return
	}
	h.l.Debug("arcache.invalidation_written",
		"group", group,
		"hard", hard)
}

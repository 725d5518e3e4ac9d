package sloghooks

import (
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/unkn0wn-root/rwcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	GapEvery     uint64
	CorruptEvery uint64
	// Optional key redactor. Defaults to an xxhash prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	gapCtr     atomic.Uint64
	corruptCtr atomic.Uint64
}

var _ rwcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	var b [8]byte
	sum := xxhash.Sum64String(k)
	for i := range b {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return hex.EncodeToString(b[:])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CorruptEntry(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.CorruptEvery, &h.corruptCtr) {
		return
	}
	h.l.Warn("rwcache.corrupt_entry",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) CounterUpdateFailed(op string, id uint64, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("rwcache.counter_update_failed",
		"op", op,
		"id", id,
		"err", err)
}

func (h *Hooks) VersionStoreError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("rwcache.version_store_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) CollectionGap(ns string, requested, returned int) {
	if h.l == nil || !sample(h.opts.GapEvery, &h.gapCtr) {
		return
	}
	h.l.Debug("rwcache.collection_gap",
		"ns", ns,
		"requested", requested,
		"returned", returned)
}

func (h *Hooks) Relocated(ns string, from, to uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("rwcache.relocated",
		"ns", ns,
		"from", from,
		"to", to)
}

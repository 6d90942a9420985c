package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/coordcache/coordcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

// Hooks is a slog-backed coordcache.Hooks implementation. Grounded on the
// teacher's sloghooks redaction/sampling pattern, generalized from the
// single-tier cache's vocabulary (bulk rejects, generation bumps) to the
// coordinator's (fanout failures, version conflicts, backend outages).
type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
}

var _ coordcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SelfHealSingle(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("coordcache.self_heal_single",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) FanoutPartialFailure(op string, handleIndex int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("coordcache.fanout_partial_failure",
		"op", op,
		"handle", handleIndex,
		"err", err)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("coordcache.provider_set_rejected",
		"key", h.redact(storageKey))
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("coordcache.gen_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("coordcache.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) VersionConflict(storageKey string, tries int) {
	if h.l == nil {
		return
	}
	h.l.Debug("coordcache.version_conflict",
		"key", h.redact(storageKey),
		"tries", tries)
}

func (h *Hooks) OperationOutage(op, key string, writeErr, evictErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("coordcache.operation_outage",
		"op", op,
		"key", h.redact(key),
		"write_err", writeErr,
		"evict_err", evictErr)
}

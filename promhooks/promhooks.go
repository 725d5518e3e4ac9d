// Package promhooks exports rwcache.Hooks events as Prometheus counters.
package promhooks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/rwcache"
)

type Hooks struct {
	corrupt        *prometheus.CounterVec
	counterFailed  *prometheus.CounterVec
	versionErrors  prometheus.Counter
	gaps           *prometheus.CounterVec
	missingEntries *prometheus.CounterVec
	relocations    *prometheus.CounterVec
}

var _ rwcache.Hooks = (*Hooks)(nil)

// New registers the rwcache metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		corrupt: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwcache_corrupt_entries_total",
			Help: "Stored entries that failed to decode.",
		}, []string{"reason" /* wire | payload | counter */}),
		counterFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwcache_counter_update_failures_total",
			Help: "Sequential mutations whose counter step failed after the entry step succeeded.",
		}, []string{"op" /* insert | remove */}),
		versionErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "rwcache_version_store_errors_total",
			Help: "Failures issuing a version for a write.",
		}),
		gaps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwcache_collection_gaps_total",
			Help: "Collection reads that returned fewer values than keys requested.",
		}, []string{"namespace"}),
		missingEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwcache_collection_missing_entries_total",
			Help: "Keys requested by collection reads that were absent or skipped.",
		}, []string{"namespace"}),
		relocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rwcache_relocations_total",
			Help: "Entries moved into a hole by swap-last removal.",
		}, []string{"namespace"}),
	}
}

func (h *Hooks) CorruptEntry(_ string, reason string) { h.corrupt.WithLabelValues(reason).Inc() }
func (h *Hooks) CounterUpdateFailed(op string, _ uint64, _ error) {
	h.counterFailed.WithLabelValues(op).Inc()
}
func (h *Hooks) VersionStoreError(string, error) { h.versionErrors.Inc() }

func (h *Hooks) CollectionGap(ns string, requested, returned int) {
	h.gaps.WithLabelValues(ns).Inc()
	if missing := requested - returned; missing > 0 {
		h.missingEntries.WithLabelValues(ns).Add(float64(missing))
	}
}

func (h *Hooks) Relocated(ns string, _, _ uint64) { h.relocations.WithLabelValues(ns).Inc() }

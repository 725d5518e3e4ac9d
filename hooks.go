package rwcache

// Hooks are lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; they run on request paths.
type Hooks interface {
	// Stored bytes failed to decode.
	// reason ∈ {"wire", "payload", "counter"}
	CorruptEntry(storageKey, reason string)

	// A sequential insert/remove changed the entry but could not update the
	// counter. op ∈ {"insert", "remove"}
	CounterUpdateFailed(op string, id uint64, err error)

	// The version store failed while stamping a write.
	VersionStoreError(storageKey string, err error)

	// A collection read returned fewer values than keys requested (gaps or a
	// page past the end).
	CollectionGap(namespace string, requested, returned int)

	// RemoveSwapLast moved entry `from` into the hole at `to`.
	Relocated(namespace string, from, to uint64)
}

// NopHooks is the default no-op.
type NopHooks struct{}

func (NopHooks) CorruptEntry(string, string)               {}
func (NopHooks) CounterUpdateFailed(string, uint64, error) {}
func (NopHooks) VersionStoreError(string, error)           {}
func (NopHooks) CollectionGap(string, int, int)            {}
func (NopHooks) Relocated(string, uint64, uint64)          {}

// MultiHooks fans every event out to each member in order.
type MultiHooks []Hooks

func (m MultiHooks) CorruptEntry(k, reason string) {
	for _, h := range m {
		h.CorruptEntry(k, reason)
	}
}

func (m MultiHooks) CounterUpdateFailed(op string, id uint64, err error) {
	for _, h := range m {
		h.CounterUpdateFailed(op, id, err)
	}
}

func (m MultiHooks) VersionStoreError(k string, err error) {
	for _, h := range m {
		h.VersionStoreError(k, err)
	}
}

func (m MultiHooks) CollectionGap(ns string, requested, returned int) {
	for _, h := range m {
		h.CollectionGap(ns, requested, returned)
	}
}

func (m MultiHooks) Relocated(ns string, from, to uint64) {
	for _, h := range m {
		h.Relocated(ns, from, to)
	}
}

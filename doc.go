// Package rwcache implements a versioned entry cache over any byte store, with
// a sequential collection index and read-set derivation.
//
// Every stored value is framed with a uint32 version. A write always stamps a
// version strictly greater than any version previously written to that key, so
// a consumer holding a version vector for a set of keys can detect staleness by
// comparing versions instead of re-reading payloads.
//
// Components:
//   - Provider: byte store (in-memory, BigCache, Ristretto, Redis, Memcached, Postgres).
//   - Codec[V]: (de)serializes V <-> []byte.
//   - verstore.Store: remembers issued versions per key (local by default, Redis for replicas).
//
// Keys:
//
//	<ns>:<id>    - entries; sequential entries use decimal ids 0..count-1
//	<ns>:count   - the collection counter (reserved)
//
// With an empty namespace the keys are the bare ids and "count".
//
// Read-set pattern:
//
//	keys, _ := cache.DerivePageReadSet(page, 20) // no I/O
//	vers, _ := cache.Versions(ctx, keys)         // cheap staleness token
//	posts, _ := cache.ReadCollection(ctx, keys)  // absent ids are skipped
package rwcache

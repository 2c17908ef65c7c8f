// Package memory implements the bounded, TTL-scoped key/value service that
// persists conversation and task traces. The in-memory tier is cache-aside
// with write-through to a DurableStore: Set updates both tiers, Get checks
// the cache first and falls back to the durable store on miss or expiry,
// repopulating the cache. The cache holds a hard capacity bound with
// oldest-first eviction; entries expire lazily once their TTL elapses even
// when still physically present.
package memory

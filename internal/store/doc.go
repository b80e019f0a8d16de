// Package store holds the latest chain results in memory, keyed by chain and
// device, with TTL eviction, plus a bounded log of recent alarm events.
package store

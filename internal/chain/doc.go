// Package chain assembles registered stage factories into named processing
// chains and drives records through them. Chain creation is all-or-nothing,
// execution is strictly sequential with a pluggable transform on every edge,
// and every stage run is counted and timed in Prometheus metrics.
package chain

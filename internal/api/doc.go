// Package api implements the REST surface of machinepulsed: chain listing,
// latest results, recent alarm events and a liveness probe. The Prometheus
// /metrics endpoint and the WebSocket stream are mounted alongside it by the
// daemon.
package api

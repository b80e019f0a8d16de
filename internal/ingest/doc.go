// Package ingest feeds records into chains from the outside world: an MQTT
// subscriber decoding JSON envelopes, and a poller that scrapes Prometheus
// text endpoints into sensor snapshots.
package ingest

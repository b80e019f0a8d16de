// Package config loads and validates the machinepulsed YAML configuration:
// HTTP/MQTT/AMQP endpoints, scrape targets, store retention and the chain
// definitions. Watcher reloads the file on change, debounces editor write
// bursts and keeps the previous config when a reload fails.
package config

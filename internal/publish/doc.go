// Package publish delivers alarm events to an AMQP exchange. Events are
// queued in memory and published by a background goroutine that reconnects
// with backoff when the broker drops the connection.
package publish

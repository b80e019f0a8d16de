// Package ws implements the WebSocket hub for machinepulsed.
//
// Hub manages a set of connected clients and pushes chain results and alarm
// events to all of them as they happen.
//
// NewHub() creates a Hub. Hub.Run(ctx) blocks until ctx is cancelled, then
// closes all active connections. Hub.ServeHTTP upgrades an HTTP connection
// to WebSocket and streams broadcasts until the client disconnects.
//
// Message format sent to clients:
//
//	{
//	  "event": "result" | "alarm",
//	  "data":  { /* chain result values or alarm event */ }
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. The endpoint is mounted at /ws/stream by the daemon.
package ws

package store

import (
	"sync"

	"github.com/machinepulse/machinepulse/internal/alarm"
)

// EventLog keeps the most recent alarm events, newest first, bounded to a
// fixed capacity.
type EventLog struct {
	mu     sync.RWMutex
	events []alarm.Event
	cap    int
}

// NewEventLog creates an EventLog holding at most capacity events.
func NewEventLog(capacity int) *EventLog {
	if capacity < 1 {
		capacity = 1
	}
	return &EventLog{cap: capacity}
}

// Append records one event, dropping the oldest when full.
func (l *EventLog) Append(ev alarm.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	if len(l.events) > l.cap {
		l.events = l.events[len(l.events)-l.cap:]
	}
}

// Recent returns up to n events, newest first. n <= 0 returns everything.
func (l *EventLog) Recent(n int) []alarm.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.events) {
		n = len(l.events)
	}
	out := make([]alarm.Event, n)
	for i := 0; i < n; i++ {
		out[i] = l.events[len(l.events)-1-i]
	}
	return out
}

// Len returns the number of stored events.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

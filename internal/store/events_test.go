package store

import (
	"fmt"
	"testing"

	"github.com/machinepulse/machinepulse/internal/alarm"
)

func event(n int) alarm.Event {
	return alarm.Event{ID: fmt.Sprintf("ev-%d", n), Type: alarm.TypeScore, Name: "overall"}
}

func TestEventLog_NewestFirst(t *testing.T) {
	l := NewEventLog(10)
	for i := 0; i < 3; i++ {
		l.Append(event(i))
	}

	recent := l.Recent(0)
	if len(recent) != 3 {
		t.Fatalf("Recent: got %d events, want 3", len(recent))
	}
	if recent[0].ID != "ev-2" || recent[2].ID != "ev-0" {
		t.Errorf("ordering: got %q..%q, want newest first", recent[0].ID, recent[2].ID)
	}
}

func TestEventLog_Bounded(t *testing.T) {
	l := NewEventLog(2)
	for i := 0; i < 5; i++ {
		l.Append(event(i))
	}
	if l.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", l.Len())
	}
	recent := l.Recent(0)
	if recent[0].ID != "ev-4" || recent[1].ID != "ev-3" {
		t.Errorf("bounded log kept %q, %q", recent[0].ID, recent[1].ID)
	}
}

func TestEventLog_RecentLimit(t *testing.T) {
	l := NewEventLog(10)
	for i := 0; i < 5; i++ {
		l.Append(event(i))
	}
	if got := l.Recent(2); len(got) != 2 || got[0].ID != "ev-4" {
		t.Errorf("Recent(2): got %v", got)
	}
	if got := l.Recent(100); len(got) != 5 {
		t.Errorf("Recent beyond size: got %d events", len(got))
	}
}

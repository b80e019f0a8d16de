package alarm

import (
	"time"

	"github.com/google/uuid"
)

// Event types.
const (
	TypeScore  = "SCORE_ALARM"
	TypeStatus = "STATUS_ALARM"
)

// Event is one raised alarm.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Device      string    `json:"device"`
	Description string    `json:"description"`
	Severity    int       `json:"severity"`
	Time        time.Time `json:"time"`
}

func newEvent(typ, name, device, description string, severity int, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        typ,
		Name:        name,
		Device:      device,
		Description: description,
		Severity:    severity,
		Time:        at,
	}
}

// Emitter receives every raised event, typically fanning out to AMQP and the
// WebSocket hub. It must not block.
type Emitter func(Event)

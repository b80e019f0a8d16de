package stage

import (
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
)

// Stage is one processing step in a chain.
//
// Init validates and captures configuration; a stage that returns an error
// from Init never becomes usable. Process consumes one record and either
// returns the stage's output record or an error, never both and never a
// partial output. Cleanup releases per-instance state; the stage must not be
// used afterwards.
type Stage interface {
	Init(p *Params) error
	Process(rec record.Record, now time.Time) (record.Record, error)
	Cleanup()
}

// Factory constructs a fresh, uninitialized stage instance. Each chain gets
// its own instances so per-device state is isolated per chain.
type Factory func() Stage

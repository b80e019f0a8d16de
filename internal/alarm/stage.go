package alarm

import (
	"fmt"
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

const (
	defaultTolerableLength = 5
	defaultAlarmInterval   = 180
)

// scoreRule watches one health key.
type scoreRule struct {
	name      string
	lines     []float64 // ascending, lines[0] is the deepest band
	tolerable int
	interval  time.Duration
}

// statusRule watches one status code.
type statusRule struct {
	status      int
	name        string
	maxAlarmNum int
	recovery    time.Duration
}

type scoreState struct {
	badCtr    int
	lastAlarm time.Time
	count     int
}

type statusState struct {
	lastAlarm time.Time
	count     int
}

// Stage raises score and status alarms from classified health results.
type Stage struct {
	scoreRules  []scoreRule
	statusRules []statusRule
	emit        Emitter

	scoreStates  map[string]*scoreState
	statusStates map[string]*statusState
}

// New returns an uninitialized alarm stage.
func New() *Stage { return &Stage{} }

// SetEmitter installs the event fan-out callback. May be left nil.
func (s *Stage) SetEmitter(e Emitter) { s.emit = e }

func (s *Stage) Init(p *stage.Params) error {
	s.scoreRules = s.scoreRules[:0]
	for _, e := range p.Maps("health_define") {
		r := scoreRule{
			name:      e.String("name", ""),
			lines:     e.Floats("alarm_line"),
			tolerable: e.Int("tolerable_length", defaultTolerableLength),
			interval:  time.Duration(e.Int("alarm_interval", defaultAlarmInterval)) * time.Second,
		}
		if r.name == "" {
			return stage.Validationf("health_define", "entry missing name")
		}
		if len(r.lines) == 0 {
			return stage.Validationf("health_define", "%s: alarm_line must not be empty", r.name)
		}
		for i := 1; i < len(r.lines); i++ {
			if r.lines[i] < r.lines[i-1] {
				return stage.Validationf("health_define", "%s: alarm_line must be ascending", r.name)
			}
		}
		if r.tolerable < 1 {
			return stage.Validationf("health_define", "%s: tolerable_length must be at least 1", r.name)
		}
		s.scoreRules = append(s.scoreRules, r)
	}

	s.statusRules = s.statusRules[:0]
	for _, e := range p.Maps("status_rules") {
		r := statusRule{
			status:      e.Int("status", -1),
			name:        e.String("name", ""),
			maxAlarmNum: e.Int("max_alarm_num", 1),
			recovery:    time.Duration(e.Int("recovery_reset_time", 0)) * time.Second,
		}
		if r.name == "" {
			return stage.Validationf("status_rules", "entry missing name")
		}
		if r.maxAlarmNum < 1 {
			return stage.Validationf("status_rules", "%s: max_alarm_num must be at least 1", r.name)
		}
		s.statusRules = append(s.statusRules, r)
	}

	if len(s.scoreRules) == 0 && len(s.statusRules) == 0 {
		return stage.Validationf("health_define", "no score or status rules configured")
	}

	s.scoreStates = make(map[string]*scoreState)
	s.statusStates = make(map[string]*statusState)
	return nil
}

func (s *Stage) Cleanup() {
	s.scoreStates = nil
	s.statusStates = nil
}

// Process checks every configured rule against one result and echoes the
// input with any raised events appended.
func (s *Stage) Process(rec record.Record, now time.Time) (record.Record, error) {
	in, ok := rec.(*record.Result)
	if !ok {
		return nil, stage.Inputf("alarm: unsupported record type %T", rec)
	}

	var events []Event
	for _, r := range s.scoreRules {
		score, ok := in.Float(r.name)
		if !ok {
			continue
		}
		if ev, fired := s.checkScore(r, in.DeviceID, score, now); fired {
			events = append(events, ev)
		}
	}
	if status, ok := in.Int("status"); ok {
		for _, r := range s.statusRules {
			if r.status != int(status) {
				continue
			}
			if ev, fired := s.checkStatus(r, in.DeviceID, now); fired {
				events = append(events, ev)
			}
		}
	}

	out := record.NewResult(in.DeviceID, in.Timestamp)
	for k, v := range in.Values {
		out.Values[k] = v
	}
	appendEvents(out, events)
	if s.emit != nil {
		for _, ev := range events {
			s.emit(ev)
		}
	}
	return out, nil
}

// checkScore runs one score rule. An observation is bad when it sits at or
// under the highest alarm line.
func (s *Stage) checkScore(r scoreRule, device string, score float64, now time.Time) (Event, bool) {
	key := device + "/" + r.name
	st := s.scoreStates[key]
	if st == nil {
		st = &scoreState{}
		s.scoreStates[key] = st
	}

	if score > r.lines[len(r.lines)-1] {
		st.badCtr = 0
		return Event{}, false
	}
	st.badCtr++
	if st.badCtr < r.tolerable {
		return Event{}, false
	}
	if !st.lastAlarm.IsZero() && now.Sub(st.lastAlarm) < r.interval {
		return Event{}, false
	}

	st.lastAlarm = now
	st.count++
	st.badCtr = 0
	desc := fmt.Sprintf("%s held at %.1f for %d observations", r.name, score, r.tolerable)
	return newEvent(TypeScore, r.name, device, desc, severity(score, r.lines), now), true
}

// severity maps a score onto its alarm band, band 1 being the deepest.
func severity(score float64, lines []float64) int {
	for i, line := range lines {
		if score <= line {
			return i + 1
		}
	}
	return len(lines) + 1
}

// checkStatus runs one status rule. It fires while the alarm count sits under
// max_alarm_num, spacing consecutive alarms by recovery_reset_time.
func (s *Stage) checkStatus(r statusRule, device string, now time.Time) (Event, bool) {
	key := fmt.Sprintf("%s/%d", device, r.status)
	st := s.statusStates[key]
	if st == nil {
		st = &statusState{}
		s.statusStates[key] = st
	}

	if st.count >= r.maxAlarmNum {
		return Event{}, false
	}
	if r.recovery > 0 && !st.lastAlarm.IsZero() && now.Sub(st.lastAlarm) < r.recovery {
		return Event{}, false
	}
	st.count++
	st.lastAlarm = now
	desc := fmt.Sprintf("status %d reported", r.status)
	return newEvent(TypeStatus, r.name, device, desc, 1, now), true
}

// appendEvents writes the raised events onto the result as parallel arrays,
// one element per event.
func appendEvents(out *record.Result, events []Event) {
	if len(events) == 0 {
		return
	}
	types := make([]string, len(events))
	names := make([]string, len(events))
	descs := make([]string, len(events))
	sevs := make([]int64, len(events))
	times := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
		names[i] = ev.Name
		descs[i] = ev.Description
		sevs[i] = int64(ev.Severity)
		times[i] = ev.Time.UTC().Format(time.RFC3339)
	}
	out.Values["event_type"] = record.Strings(types)
	out.Values["event_name"] = record.Strings(names)
	out.Values["event_description"] = record.Strings(descs)
	out.Values["severity_level"] = record.Ints(sevs)
	out.Values["event_time"] = record.Strings(times)
}

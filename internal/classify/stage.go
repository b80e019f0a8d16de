package classify

import (
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

// Status codes. Codes other than stopped/running are reserved for
// transition/anomaly states supplied through status_mapping.
const (
	StatusStopped = 0
	StatusRunning = 1
)

const defaultMaxHistory = 100

// deviceState is the per-device temporal state block.
type deviceState struct {
	lastSeen time.Time

	// accepted is the last accepted status, -1 before the first observation
	// (and after an offline reset).
	accepted int

	transitionCtr int // consecutive 0→1 attempts
	closeCtr      int // consecutive 1→0 attempts
	tsCtr         int // consecutive differing samples (time-series debounce)

	history []int // bounded, oldest first
}

func newDeviceState() *deviceState {
	return &deviceState{accepted: -1}
}

func (d *deviceState) reset() {
	d.accepted = -1
	d.transitionCtr = 0
	d.closeCtr = 0
	d.tsCtr = 0
	d.history = d.history[:0]
	d.lastSeen = time.Time{}
}

func (d *deviceState) pushHistory(status, max int) {
	d.history = append(d.history, status)
	if len(d.history) > max {
		d.history = d.history[len(d.history)-max:]
	}
}

// mode returns the most frequent status in the bounded history, -1 when empty.
func (d *deviceState) mode() int {
	if len(d.history) == 0 {
		return -1
	}
	counts := make(map[int]int)
	for _, s := range d.history {
		counts[s]++
	}
	best, bestCount := -1, 0
	for s, c := range counts {
		if c > bestCount || (c == bestCount && s < best) {
			best, bestCount = s, c
		}
	}
	return best
}

// Stage is the hysteresis state machine.
type Stage struct {
	features        []string
	thresholds      [][]float64
	runFeatureNum   int
	vetoIndex       int
	transitionWidth [2]int
	tsWidth         [2]int
	offlineLength   time.Duration
	maxHistory      int
	labels          map[int]string

	devices map[string]*deviceState
}

// New returns an uninitialized classification stage.
func New() *Stage { return &Stage{} }

func (s *Stage) Init(p *stage.Params) error {
	s.features = p.Strings("select_features")
	if len(s.features) == 0 {
		return stage.Validationf("select_features", "must name at least one feature")
	}
	s.thresholds = p.FloatMatrix("threshold")
	if len(s.thresholds) != len(s.features) {
		return stage.Validationf("threshold", "need one threshold list per feature (%d features, %d lists)",
			len(s.features), len(s.thresholds))
	}

	s.runFeatureNum = p.Int("run_feature_num", 1)
	if s.runFeatureNum < 1 {
		return stage.Validationf("run_feature_num", "must be at least 1")
	}
	s.vetoIndex = p.Int("veto_index", -1)
	if s.vetoIndex >= len(s.features) {
		return stage.Validationf("veto_index", "index %d out of range for %d features", s.vetoIndex, len(s.features))
	}

	s.transitionWidth = [2]int{3, 3}
	if w := p.Ints("transition_width"); w != nil {
		if len(w) != 2 || w[0] < 1 || w[1] < 1 {
			return stage.Validationf("transition_width", "must be two positive integers")
		}
		s.transitionWidth = [2]int{w[0], w[1]}
	}
	s.tsWidth = [2]int{0, 0}
	if w := p.Ints("time_series_width"); w != nil {
		if len(w) != 2 || w[0] < 0 {
			return stage.Validationf("time_series_width", "must be two non-negative integers")
		}
		s.tsWidth = [2]int{w[0], w[1]}
	}

	s.offlineLength = time.Duration(p.Int("offline_length", 3600)) * time.Second
	s.maxHistory = p.Int("max_history_size", defaultMaxHistory)
	if s.maxHistory < 1 {
		return stage.Validationf("max_history_size", "must be at least 1")
	}

	s.labels = p.IntLabels("status_mapping")
	if s.labels == nil {
		s.labels = map[int]string{StatusStopped: "stopped", StatusRunning: "running"}
	}

	s.devices = make(map[string]*deviceState)
	return nil
}

func (s *Stage) Cleanup() { s.devices = nil }

// Process classifies one feature observation for one device.
func (s *Stage) Process(rec record.Record, now time.Time) (record.Record, error) {
	features, ok := record.Features(rec)
	if !ok {
		return nil, stage.Inputf("classify: unsupported record type %T", rec)
	}

	dev := s.devices[rec.Device()]
	if dev == nil {
		dev = newDeviceState()
		s.devices[rec.Device()] = dev
	}

	// Offline gap: accumulated counters and history describe a stale episode.
	if !dev.lastSeen.IsZero() && now.Sub(dev.lastSeen) > s.offlineLength {
		dev.reset()
	}
	dev.lastSeen = now

	levels := make([]int, len(s.features))
	for i, name := range s.features {
		v, ok := features[name]
		if !ok {
			return nil, stage.Inputf("classify: input missing feature %q", name)
		}
		levels[i] = stage.Level(v, s.thresholds[i])
	}

	raw := s.overall(levels)
	accepted := s.debounce(dev, raw)

	dev.pushHistory(accepted, s.maxHistory)
	dev.accepted = accepted

	out := record.NewResult(rec.Device(), rec.Time())
	out.SetInt("status", int64(accepted))
	out.SetString("status_name", s.label(accepted))
	out.SetFloat("confidence", confidence(levels, dev.mode()))
	// Echo the input features so downstream stages see them unchanged.
	for k, v := range features {
		out.SetFloat(k, v)
	}
	return out, nil
}

// overall combines per-feature levels: veto feature at level 0 forces
// stopped; otherwise running iff enough features sit above level 0.
func (s *Stage) overall(levels []int) int {
	if s.vetoIndex >= 0 && levels[s.vetoIndex] == 0 {
		return StatusStopped
	}
	running := 0
	for _, l := range levels {
		if l > 0 {
			running++
		}
	}
	if running >= s.runFeatureNum {
		return StatusRunning
	}
	return StatusStopped
}

// debounce applies both hysteresis layers and returns the accepted status.
func (s *Stage) debounce(dev *deviceState, raw int) int {
	prev := dev.accepted
	if prev == -1 {
		// Fresh device (or just reset): accept the first observation as-is.
		return raw
	}

	accepted := prev
	switch {
	case raw == prev:
		dev.transitionCtr = 0
		dev.closeCtr = 0
	case prev == StatusStopped && raw == StatusRunning:
		dev.transitionCtr++
		if dev.transitionCtr >= s.transitionWidth[0] {
			dev.transitionCtr = 0
			dev.closeCtr = 0
			accepted = raw
		}
	case prev == StatusRunning && raw == StatusStopped:
		dev.closeCtr++
		if dev.closeCtr >= s.transitionWidth[1] {
			dev.closeCtr = 0
			dev.transitionCtr = 0
			accepted = raw
		}
	default:
		// Transitions between reserved codes are not gated.
		accepted = raw
	}

	// Second debounce over the raw sample series. It counts independently of
	// the transition gate, so both layers can complete over the same run of
	// contrary observations.
	if s.tsWidth[0] > 0 {
		if raw != prev {
			dev.tsCtr++
			if dev.tsCtr < s.tsWidth[0] {
				accepted = prev
			}
		} else {
			dev.tsCtr = 0
		}
	}
	return accepted
}

// confidence is the fraction of per-feature levels that agree with the most
// frequent status in the bounded history.
func confidence(levels []int, mode int) float64 {
	if len(levels) == 0 || mode < 0 {
		return 0
	}
	agree := 0
	for _, l := range levels {
		if l == mode {
			agree++
		}
	}
	return float64(agree) / float64(len(levels))
}

func (s *Stage) label(status int) string {
	if l, ok := s.labels[status]; ok {
		return l
	}
	return "unknown"
}

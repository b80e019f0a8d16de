package health

import (
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

const (
	defaultMinimumQuantity = 30
	defaultCloseWidth      = 1
	defaultOfflineSeconds  = 15 * 24 * 3600
	defaultBufferLimit     = 1000
)

// featureRule configures the windowed evaluation of one feature channel.
type featureRule struct {
	feature      string
	statistics   []string
	thresholds   []float64
	upperLimit   float64
	clean        []string
	smoothMethod string
	winLength    int
}

// compositeRule combines per-feature healths into one weighted score.
type compositeRule struct {
	name         string
	dependencies []string
	weights      []float64
}

type deviceState struct {
	lastSeen   time.Time
	closeCtr   int
	buffers    map[string][]float64
	lastScores map[string]float64
}

func newDeviceState() *deviceState {
	return &deviceState{buffers: make(map[string][]float64)}
}

func (d *deviceState) reset() {
	d.buffers = make(map[string][]float64)
	d.lastScores = nil
	d.closeCtr = 0
	d.lastSeen = time.Time{}
}

// Stage is the sliding-window health evaluator.
type Stage struct {
	rules      []featureRule
	composites []compositeRule
	minQty     int
	closeWidth int
	offline    time.Duration
	bufLimit   int

	devices map[string]*deviceState
}

// New returns an uninitialized health stage.
func New() *Stage { return &Stage{} }

func (s *Stage) Init(p *stage.Params) error {
	entries := p.Maps("feature_stats")
	if len(entries) == 0 {
		return stage.Validationf("feature_stats", "must declare at least one feature")
	}
	s.rules = s.rules[:0]
	for _, e := range entries {
		r := featureRule{
			feature:      e.String("feature", ""),
			statistics:   e.Strings("statistics"),
			thresholds:   e.Floats("thresholds"),
			upperLimit:   e.Float("upper_limit", 0),
			clean:        e.Strings("clean"),
			smoothMethod: e.String("smooth", ""),
			winLength:    e.Int("win_length", 0),
		}
		if r.feature == "" {
			return stage.Validationf("feature_stats", "entry missing feature name")
		}
		if len(r.statistics) == 0 {
			r.statistics = []string{"mean"}
		}
		for _, st := range r.statistics {
			if !validStatistic(st) {
				return stage.Validationf("feature_stats", "unknown statistic %q", st)
			}
		}
		for _, c := range r.clean {
			if c != cleanRemoveEdges && c != cleanPercentile {
				return stage.Validationf("feature_stats", "unknown cleaning method %q", c)
			}
		}
		if r.smoothMethod != "" {
			if !validSmooth(r.smoothMethod) {
				return stage.Validationf("feature_stats", "unknown smooth method %q", r.smoothMethod)
			}
			if r.winLength < 2 {
				return stage.Validationf("feature_stats", "smooth %q needs win_length >= 2", r.smoothMethod)
			}
		}
		s.rules = append(s.rules, r)
	}

	s.composites = s.composites[:0]
	for _, e := range p.Maps("healths") {
		c := compositeRule{
			name:         e.String("name", ""),
			dependencies: e.Strings("dependencies"),
			weights:      e.Floats("weights"),
		}
		if c.name == "" {
			return stage.Validationf("healths", "entry missing name")
		}
		if len(c.dependencies) != len(c.weights) {
			return stage.Validationf("healths", "%s: %d dependencies but %d weights",
				c.name, len(c.dependencies), len(c.weights))
		}
		s.composites = append(s.composites, c)
	}

	s.minQty = p.Int("minimum_quantity", defaultMinimumQuantity)
	if s.minQty < 1 {
		return stage.Validationf("minimum_quantity", "must be at least 1")
	}
	s.closeWidth = p.Int("close_width", defaultCloseWidth)
	if s.closeWidth < 1 {
		return stage.Validationf("close_width", "must be at least 1")
	}
	s.offline = time.Duration(p.Int("offline_length", defaultOfflineSeconds)) * time.Second
	s.bufLimit = p.Int("buffer_limit", defaultBufferLimit)
	if s.bufLimit < s.minQty {
		return stage.Validationf("buffer_limit", "must be at least minimum_quantity")
	}

	s.devices = make(map[string]*deviceState)
	return nil
}

func (s *Stage) Cleanup() { s.devices = nil }

// Process folds one observation into the device's window and emits the
// current scores.
func (s *Stage) Process(rec record.Record, now time.Time) (record.Record, error) {
	status, features, err := splitInput(rec)
	if err != nil {
		return nil, err
	}

	dev := s.devices[rec.Device()]
	if dev == nil {
		dev = newDeviceState()
		s.devices[rec.Device()] = dev
	}
	if !dev.lastSeen.IsZero() && now.Sub(dev.lastSeen) > s.offline {
		dev.reset()
	}
	dev.lastSeen = now

	if status != 1 {
		dev.closeCtr++
		if dev.closeCtr >= s.closeWidth {
			// The run episode is over; the window no longer describes the
			// next one. Scores survive so consumers keep a stable reading.
			dev.buffers = make(map[string][]float64)
			dev.closeCtr = 0
		}
		return s.emit(rec, status, features, dev.lastScores), nil
	}
	dev.closeCtr = 0

	for _, r := range s.rules {
		v, ok := features[r.feature]
		if !ok {
			return nil, stage.Inputf("health: input missing feature %q", r.feature)
		}
		buf := append(dev.buffers[r.feature], v)
		if len(buf) > s.bufLimit {
			buf = buf[len(buf)-s.bufLimit:]
		}
		dev.buffers[r.feature] = buf
	}

	scores := s.evaluate(dev)
	dev.lastScores = scores
	return s.emit(rec, status, features, scores), nil
}

// evaluate scores every configured feature and composite from the device's
// current buffers.
func (s *Stage) evaluate(dev *deviceState) map[string]float64 {
	out := make(map[string]float64)
	featureHealth := make(map[string]float64, len(s.rules))
	for _, r := range s.rules {
		vals := dev.buffers[r.feature]
		if len(vals) < s.minQty {
			for _, st := range r.statistics {
				out[r.feature+"_"+st] = statistic(st, vals)
			}
			featureHealth[r.feature] = 100
			out[r.feature+"_health"] = 100
			continue
		}
		for _, c := range r.clean {
			switch c {
			case cleanRemoveEdges:
				vals = removeEdges(vals)
			case cleanPercentile:
				vals = percentileClean(vals)
			}
		}
		if r.smoothMethod != "" {
			vals = smooth(vals, r.smoothMethod, r.winLength)
		}
		sum := 0.0
		for _, st := range r.statistics {
			v := statistic(st, vals)
			out[r.feature+"_"+st] = v
			sum += ladderScore(v, r.thresholds, r.upperLimit)
		}
		h := sum / float64(len(r.statistics))
		featureHealth[r.feature] = h
		out[r.feature+"_health"] = h
	}

	for _, c := range s.composites {
		total, weighted := 0.0, 0.0
		for i, dep := range c.dependencies {
			h, ok := featureHealth[dep]
			if !ok {
				// Composites may chain on other composites.
				h, ok = out[dep]
				if !ok {
					continue
				}
			}
			total += c.weights[i]
			weighted += c.weights[i] * h
		}
		if total == 0 {
			out[c.name] = 100
		} else {
			out[c.name] = weighted / total
		}
	}
	return out
}

// emit builds the output Result: input values echoed, score keys overlaid.
func (s *Stage) emit(rec record.Record, status int, features map[string]float64, scores map[string]float64) *record.Result {
	out := record.NewResult(rec.Device(), rec.Time())
	if in, ok := rec.(*record.Result); ok {
		for k, v := range in.Values {
			out.Values[k] = v
		}
	} else {
		for k, v := range features {
			out.SetFloat(k, v)
		}
	}
	out.SetInt("status", int64(status))
	for k, v := range scores {
		out.SetFloat(k, v)
	}
	return out
}

// splitInput extracts the running status and the numeric channels from the
// accepted record variants. FeatureSets carry no status and are treated as
// running.
func splitInput(rec record.Record) (int, map[string]float64, error) {
	switch r := rec.(type) {
	case *record.Result:
		status := 1
		if n, ok := r.Int("status"); ok {
			status = int(n)
		}
		return status, r.Floats(), nil
	case *record.FeatureSet:
		return 1, r.Features, nil
	case *record.StatusRecord:
		return r.Code, map[string]float64{}, nil
	default:
		return 0, nil, stage.Inputf("health: unsupported record type %T", rec)
	}
}

package health

import (
	"time"

	"github.com/machinepulse/machinepulse/internal/record"
	"github.com/machinepulse/machinepulse/internal/stage"
)

const defaultErrorWindow = 60

// ErrorStage scores error-style channels. Unlike Stage it never gates on the
// running status: every observation enters the rolling window and the latest
// smoothed point is scored directly.
type ErrorStage struct {
	features     []string
	thresholds   [][]float64
	upperLimits  []float64
	smoothMethod string
	window       int

	devices map[string]map[string][]float64
}

// NewError returns an uninitialized error-health stage.
func NewError() *ErrorStage { return &ErrorStage{} }

func (s *ErrorStage) Init(p *stage.Params) error {
	s.features = p.Strings("features")
	if len(s.features) == 0 {
		return stage.Validationf("features", "must name at least one feature")
	}
	s.thresholds = p.FloatMatrix("thresholds")
	if len(s.thresholds) != len(s.features) {
		return stage.Validationf("thresholds", "need one threshold list per feature (%d features, %d lists)",
			len(s.features), len(s.thresholds))
	}
	s.upperLimits = p.Floats("upper_limit")
	if s.upperLimits != nil && len(s.upperLimits) != len(s.features) {
		return stage.Validationf("upper_limit", "need one limit per feature")
	}
	s.smoothMethod = p.String("smooth", smoothMean)
	if !validSmooth(s.smoothMethod) {
		return stage.Validationf("smooth", "unknown smooth method %q", s.smoothMethod)
	}
	s.window = p.Int("window", defaultErrorWindow)
	if s.window < 1 {
		return stage.Validationf("window", "must be at least 1")
	}
	s.devices = make(map[string]map[string][]float64)
	return nil
}

func (s *ErrorStage) Cleanup() { s.devices = nil }

func (s *ErrorStage) Process(rec record.Record, now time.Time) (record.Record, error) {
	features, ok := record.Features(rec)
	if !ok {
		return nil, stage.Inputf("error_health: unsupported record type %T", rec)
	}

	bufs := s.devices[rec.Device()]
	if bufs == nil {
		bufs = make(map[string][]float64)
		s.devices[rec.Device()] = bufs
	}

	out := record.NewResult(rec.Device(), rec.Time())
	for k, v := range features {
		out.SetFloat(k, v)
	}
	for i, name := range s.features {
		v, ok := features[name]
		if !ok {
			return nil, stage.Inputf("error_health: input missing feature %q", name)
		}
		buf := append(bufs[name], v)
		if len(buf) > s.window {
			buf = buf[len(buf)-s.window:]
		}
		bufs[name] = buf

		smoothed := smooth(buf, s.smoothMethod, s.window)
		latest := smoothed[len(smoothed)-1]
		limit := 0.0
		if s.upperLimits != nil {
			limit = s.upperLimits[i]
		}
		out.SetFloat(name+"_error", ladderScore(latest, s.thresholds[i], limit))
	}
	return out, nil
}

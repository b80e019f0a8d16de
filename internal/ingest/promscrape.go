package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/machinepulse/machinepulse/internal/config"
	"github.com/machinepulse/machinepulse/internal/record"
)

const scrapeTimeout = 10 * time.Second

// Poller periodically scrapes Prometheus text endpoints and feeds the
// resulting snapshots through their chains.
type Poller struct {
	cfg      config.ScrapeConfig
	pipe     Pipeline
	onResult ResultFunc
	client   *http.Client
	log      *slog.Logger
}

// NewPoller builds the poller. onResult may be nil.
func NewPoller(cfg config.ScrapeConfig, pipe Pipeline, onResult ResultFunc, log *slog.Logger) *Poller {
	if log == nil {
		log = slog.Default()
	}
	return &Poller{
		cfg:      cfg,
		pipe:     pipe,
		onResult: onResult,
		client:   &http.Client{Timeout: scrapeTimeout},
		log:      log,
	}
}

// Run polls every target on the configured interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	if len(p.cfg.Targets) == 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, t := range p.cfg.Targets {
				p.pollOne(ctx, t)
			}
		}
	}
}

func (p *Poller) pollOne(ctx context.Context, t config.ScrapeTarget) {
	snap, err := p.scrape(ctx, t)
	if err != nil {
		p.log.Warn("scrape failed", "url", t.URL, "device", t.Device, "err", err)
		return
	}
	res, err := p.pipe.Execute(t.Chain, snap, time.Now().UTC())
	if err != nil {
		p.log.Warn("scrape: chain failed", "chain", t.Chain, "device", t.Device, "err", err)
		return
	}
	if p.onResult != nil {
		p.onResult(t.Chain, res)
	}
}

// scrape fetches and parses one target into a snapshot. Every gauge, counter
// and untyped family lands in the snapshot's custom channels under its
// family name; well-known names also fill the fixed fields.
func (p *Poller) scrape(ctx context.Context, t config.ScrapeTarget) (*record.SensorSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	mfs, err := parseMetrics(resp.Body)
	if err != nil {
		return nil, err
	}

	snap := &record.SensorSnapshot{
		DeviceID:  t.Device,
		Timestamp: time.Now().UTC(),
		Custom:    make(map[string]float64, len(mfs)),
	}
	for name, mf := range mfs {
		v := firstValue(mf)
		snap.Custom[name] = v
		switch name {
		case "speed":
			snap.Speed = v
		case "temperature":
			snap.Temperature = v
		case "mean":
			snap.Mean = v
		case "mean_hf":
			snap.MeanHF = v
		case "mean_lf":
			snap.MeanLF = v
		case "std":
			snap.Std = v
		}
	}
	return snap, nil
}

// parseMetrics decodes a Prometheus text exposition into metric families.
// A partial result with a non-fatal parse warning is still returned.
func parseMetrics(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// firstValue returns the first gauge, counter or untyped sample of a family.
func firstValue(mf *dto.MetricFamily) float64 {
	for _, m := range mf.GetMetric() {
		switch {
		case m.Gauge != nil:
			return m.Gauge.GetValue()
		case m.Counter != nil:
			return m.Counter.GetValue()
		case m.Untyped != nil:
			return m.Untyped.GetValue()
		}
	}
	return 0
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/machinepulse/machinepulse/internal/config"
	"github.com/machinepulse/machinepulse/internal/record"
)

// Pipeline executes a named chain. Satisfied by chain.Manager.
type Pipeline interface {
	Execute(chain string, rec record.Record, now time.Time) (record.Record, error)
}

// ResultFunc receives every successful chain result.
type ResultFunc func(chain string, res record.Record)

const (
	connectTimeout = 10 * time.Second
	disconnectMs   = 250
)

// MQTTSource subscribes configured topic routes and pushes decoded records
// through their chains.
type MQTTSource struct {
	cfg      config.MQTTConfig
	pipe     Pipeline
	onResult ResultFunc
	log      *slog.Logger
}

// NewMQTT builds the source. onResult may be nil.
func NewMQTT(cfg config.MQTTConfig, pipe Pipeline, onResult ResultFunc, log *slog.Logger) *MQTTSource {
	if log == nil {
		log = slog.Default()
	}
	return &MQTTSource{cfg: cfg, pipe: pipe, onResult: onResult, log: log}
}

// Run connects, subscribes every route and blocks until ctx is cancelled.
func (s *MQTTSource) Run(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetUsername(s.cfg.Username).
		SetPassword(s.cfg.Password()).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("mqtt: connect to %s timed out", s.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: connect to %s: %w", s.cfg.Broker, err)
	}
	defer client.Disconnect(disconnectMs)

	for _, route := range s.cfg.Routes {
		chainName := route.Chain
		handler := func(_ mqtt.Client, msg mqtt.Message) {
			s.handle(chainName, msg.Topic(), msg.Payload())
		}
		tok := client.Subscribe(route.Topic, byte(s.cfg.QoS), handler)
		tok.Wait()
		if err := tok.Error(); err != nil {
			return fmt.Errorf("mqtt: subscribe %q: %w", route.Topic, err)
		}
		s.log.Info("mqtt: subscribed", "topic", route.Topic, "chain", chainName)
	}

	<-ctx.Done()
	return nil
}

func (s *MQTTSource) handle(chainName, topic string, payload []byte) {
	rec, err := DecodePayload(payload)
	if err != nil {
		s.log.Warn("mqtt: bad payload", "topic", topic, "err", err)
		return
	}
	res, err := s.pipe.Execute(chainName, rec, time.Now().UTC())
	if err != nil {
		s.log.Warn("mqtt: chain failed", "topic", topic, "chain", chainName,
			"device", rec.Device(), "err", err)
		return
	}
	if s.onResult != nil {
		s.onResult(chainName, res)
	}
}

// envelope is the wire format of ingested MQTT messages.
type envelope struct {
	Device string    `json:"device"`
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`

	Snapshot *snapshotPayload `json:"snapshot,omitempty"`
	Waveform *waveformPayload `json:"waveform,omitempty"`
}

type snapshotPayload struct {
	MeanHF      float64            `json:"mean_hf"`
	MeanLF      float64            `json:"mean_lf"`
	Mean        float64            `json:"mean"`
	Std         float64            `json:"std"`
	Temperature float64            `json:"temperature"`
	Speed       float64            `json:"speed"`
	Custom      map[string]float64 `json:"custom,omitempty"`
}

type waveformPayload struct {
	Waveform     []float64 `json:"waveform"`
	Speed        []float64 `json:"speed"`
	SamplingRate int       `json:"sampling_rate"`
	Status       string    `json:"status"`
	Start        int       `json:"start"`
	Stop         int       `json:"stop"`
}

// DecodePayload turns one JSON envelope into a record. A zero time field
// falls back to the arrival time.
func DecodePayload(payload []byte) (record.Record, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Device == "" {
		return nil, fmt.Errorf("decode envelope: missing device")
	}
	ts := env.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	switch env.Kind {
	case "snapshot":
		if env.Snapshot == nil {
			return nil, fmt.Errorf("decode envelope: kind snapshot without snapshot body")
		}
		p := env.Snapshot
		return &record.SensorSnapshot{
			DeviceID:    env.Device,
			Timestamp:   ts,
			MeanHF:      p.MeanHF,
			MeanLF:      p.MeanLF,
			Mean:        p.Mean,
			Std:         p.Std,
			Temperature: p.Temperature,
			Speed:       p.Speed,
			Custom:      p.Custom,
		}, nil
	case "waveform":
		if env.Waveform == nil {
			return nil, fmt.Errorf("decode envelope: kind waveform without waveform body")
		}
		p := env.Waveform
		if len(p.Waveform) == 0 {
			return nil, fmt.Errorf("decode envelope: empty waveform")
		}
		return &record.WaveformBatch{
			DeviceID:     env.Device,
			Timestamp:    ts,
			Waveform:     p.Waveform,
			Speed:        p.Speed,
			SamplingRate: p.SamplingRate,
			Status:       p.Status,
			Start:        p.Start,
			Stop:         p.Stop,
		}, nil
	default:
		return nil, fmt.Errorf("decode envelope: unknown kind %q", env.Kind)
	}
}

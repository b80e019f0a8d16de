package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
http:
  port: 9090
mqtt:
  broker: tcp://broker:1883
  client_id: machinepulsed
  routes:
    - topic: plant/+/vibration
      chain: pump-line
scrape:
  interval: 15s
  targets:
    - url: http://exporter:9100/metrics
      device: compressor-7
      chain: pump-line
store:
  ttl: 1h
  max_events: 100
chains:
  - name: pump-line
    stages:
      - type: extract
        name: features
        params:
          sampling_rate: 1000
      - type: classify
        params:
          select_features: [mean]
          threshold: [[0.5]]
    projections:
      - stage: classify
        keys: [mean]
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("http.port: got %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Store.TTL != time.Hour {
		t.Errorf("store.ttl: got %v, want 1h", cfg.Store.TTL)
	}
	if len(cfg.Chains) != 1 || cfg.Chains[0].Name != "pump-line" {
		t.Fatalf("chains: got %+v", cfg.Chains)
	}
	ch := cfg.Chains[0]
	if len(ch.Stages) != 2 || ch.Stages[0].Type != "extract" {
		t.Errorf("stages: got %+v", ch.Stages)
	}
	if rate, ok := ch.Stages[0].Params["sampling_rate"]; !ok || rate != 1000 {
		t.Errorf("stage params: got %v", ch.Stages[0].Params)
	}
	if len(ch.Projections) != 1 || ch.Projections[0].Stage != "classify" {
		t.Errorf("projections: got %+v", ch.Projections)
	}
	if len(cfg.MQTT.Routes) != 1 || cfg.MQTT.Routes[0].Chain != "pump-line" {
		t.Errorf("mqtt routes: got %+v", cfg.MQTT.Routes)
	}
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(`
chains:
  - name: minimal
    stages:
      - type: alarm
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != DefaultHTTPPort {
		t.Errorf("default http port: got %d, want %d", cfg.HTTP.Port, DefaultHTTPPort)
	}
	if cfg.Store.TTL != DefaultStoreTTL {
		t.Errorf("default store ttl: got %v", cfg.Store.TTL)
	}
	if cfg.Store.MaxEvents != DefaultMaxEvents {
		t.Errorf("default max events: got %d", cfg.Store.MaxEvents)
	}
	if cfg.Scrape.Interval != DefaultScrapeInterval {
		t.Errorf("default scrape interval: got %v", cfg.Scrape.Interval)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no chains",
			yaml:    `http: {port: 8080}`,
			wantErr: "at least one chain",
		},
		{
			name: "unknown stage type",
			yaml: `
chains:
  - name: c
    stages:
      - type: teleport
`,
			wantErr: "unknown type",
		},
		{
			name: "duplicate chain name",
			yaml: `
chains:
  - name: c
    stages: [{type: alarm}]
  - name: c
    stages: [{type: alarm}]
`,
			wantErr: "duplicate name",
		},
		{
			name: "mqtt route to unknown chain",
			yaml: `
mqtt:
  broker: tcp://b:1883
  routes:
    - topic: t
      chain: ghost
chains:
  - name: c
    stages: [{type: alarm}]
`,
			wantErr: "unknown chain",
		},
		{
			name: "mqtt broker without routes",
			yaml: `
mqtt:
  broker: tcp://b:1883
chains:
  - name: c
    stages: [{type: alarm}]
`,
			wantErr: "mqtt.routes",
		},
		{
			name: "scrape target without device",
			yaml: `
scrape:
  targets:
    - url: http://x/metrics
      chain: c
chains:
  - name: c
    stages: [{type: alarm}]
`,
			wantErr: "device is required",
		},
		{
			name:    "broken yaml",
			yaml:    `chains: [`,
			wantErr: "parse yaml",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("Parse: expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(validYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("http.port: got %d", cfg.HTTP.Port)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load missing file: expected error")
	}
}

func TestEnvResolution(t *testing.T) {
	t.Setenv("TEST_MQTT_PW", "hunter2")
	m := MQTTConfig{PasswordEnv: "TEST_MQTT_PW"}
	if got := m.Password(); got != "hunter2" {
		t.Errorf("Password: got %q", got)
	}
	if got := (MQTTConfig{}).Password(); got != "" {
		t.Errorf("Password without env: got %q", got)
	}

	t.Setenv("TEST_AMQP_URL", "amqp://u:p@host/")
	a := AMQPConfig{URLEnv: "TEST_AMQP_URL"}
	if got := a.URL(); got != "amqp://u:p@host/" {
		t.Errorf("URL: got %q", got)
	}
}

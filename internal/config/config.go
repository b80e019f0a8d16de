package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultHTTPPort       = 8080
	DefaultStoreTTL       = 24 * time.Hour
	DefaultMaxEvents      = 500
	DefaultScrapeInterval = 30 * time.Second
	DefaultMQTTQoS        = 1
)

// Config is the top-level configuration for machinepulsed.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	HTTP   HTTPConfig   `yaml:"http"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	AMQP   AMQPConfig   `yaml:"amqp"`
	Scrape ScrapeConfig `yaml:"scrape"`
	Store  StoreConfig  `yaml:"store"`
	Chains []Chain      `yaml:"chains"`
}

// HTTPConfig holds the REST/WebSocket/metrics listener settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// MQTTConfig configures the MQTT ingest source. An empty Broker disables it.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://broker:1883.
	Broker string `yaml:"broker"`

	// ClientID identifies this consumer to the broker.
	ClientID string `yaml:"client_id"`

	// QoS is the subscription quality of service (0..2).
	QoS int `yaml:"qos"`

	// Username is the literal broker username (safe to store in config).
	Username string `yaml:"username"`

	// PasswordEnv is the name of the environment variable holding the password.
	PasswordEnv string `yaml:"password_env"`

	// Routes bind subscribed topics to chains.
	Routes []MQTTRoute `yaml:"routes"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// MQTTRoute routes one topic filter into one chain.
type MQTTRoute struct {
	// Topic is the MQTT topic filter to subscribe, wildcards allowed.
	Topic string `yaml:"topic"`

	// Chain is the chain that receives records decoded from this topic.
	Chain string `yaml:"chain"`
}

// AMQPConfig configures the alarm event publisher. An empty URL disables it.
type AMQPConfig struct {
	// URLEnv is the name of the environment variable holding the broker URL
	// (it usually embeds credentials).
	URLEnv string `yaml:"url_env"`

	// Exchange is the target exchange, declared as a durable topic exchange.
	Exchange string `yaml:"exchange"`

	// RoutingKey is the routing key events are published under.
	RoutingKey string `yaml:"routing_key"`
}

// URL returns the broker URL resolved from the environment.
func (a AMQPConfig) URL() string {
	if a.URLEnv == "" {
		return ""
	}
	return os.Getenv(a.URLEnv)
}

// ScrapeConfig configures the Prometheus endpoint poller.
type ScrapeConfig struct {
	// Interval controls how often each target is polled.
	Interval time.Duration `yaml:"interval"`

	// Targets is the list of exporter endpoints to poll.
	Targets []ScrapeTarget `yaml:"targets"`
}

// ScrapeTarget is one polled exporter endpoint.
type ScrapeTarget struct {
	// URL is the full metrics endpoint URL.
	URL string `yaml:"url"`

	// Device is the device id attached to scraped snapshots.
	Device string `yaml:"device"`

	// Chain is the chain that receives the snapshots.
	Chain string `yaml:"chain"`
}

// StoreConfig controls the latest-result store and the event log.
type StoreConfig struct {
	// TTL is how long a chain result stays readable after its last update.
	TTL time.Duration `yaml:"ttl"`

	// MaxEvents bounds the in-memory alarm event log.
	MaxEvents int `yaml:"max_events"`
}

// Chain defines one processing chain.
type Chain struct {
	// Name is the unique chain identifier.
	Name string `yaml:"name"`

	// Stages run in declaration order.
	Stages []Stage `yaml:"stages"`

	// Projections optionally narrow the record on the edge into a stage.
	Projections []Projection `yaml:"projections"`
}

// Stage declares one stage instance inside a chain.
type Stage struct {
	// Type selects the registered stage factory:
	// extract | classify | health | error_health | alarm.
	Type string `yaml:"type"`

	// Name is the stage's label in metrics and errors; defaults to Type.
	Name string `yaml:"name"`

	// Params is the stage-specific parameter document, passed through as-is.
	Params map[string]any `yaml:"params"`
}

// Projection keeps only the named result keys on the edge into a stage.
type Projection struct {
	Stage string   `yaml:"stage"`
	Keys  []string `yaml:"keys"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML config document.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		HTTP: HTTPConfig{Port: DefaultHTTPPort},
		MQTT: MQTTConfig{QoS: DefaultMQTTQoS},
		Scrape: ScrapeConfig{
			Interval: DefaultScrapeInterval,
		},
		Store: StoreConfig{
			TTL:       DefaultStoreTTL,
			MaxEvents: DefaultMaxEvents,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be in 1..65535")
	}
	if cfg.Store.TTL <= 0 {
		return fmt.Errorf("store.ttl must be positive")
	}
	if cfg.Store.MaxEvents <= 0 {
		return fmt.Errorf("store.max_events must be positive")
	}
	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}

	chains := make(map[string]bool, len(cfg.Chains))
	for i, ch := range cfg.Chains {
		if ch.Name == "" {
			return fmt.Errorf("chains[%d]: name is required", i)
		}
		if chains[ch.Name] {
			return fmt.Errorf("chains[%d]: duplicate name %q", i, ch.Name)
		}
		chains[ch.Name] = true
		if len(ch.Stages) == 0 {
			return fmt.Errorf("chain %q: at least one stage is required", ch.Name)
		}
		for j, st := range ch.Stages {
			switch st.Type {
			case "extract", "classify", "health", "error_health", "alarm":
			case "":
				return fmt.Errorf("chain %q: stages[%d]: type is required", ch.Name, j)
			default:
				return fmt.Errorf("chain %q: stages[%d]: unknown type %q", ch.Name, j, st.Type)
			}
		}
		for _, pr := range ch.Projections {
			if pr.Stage == "" || len(pr.Keys) == 0 {
				return fmt.Errorf("chain %q: projections need a stage and keys", ch.Name)
			}
		}
	}

	if cfg.MQTT.Broker != "" {
		if len(cfg.MQTT.Routes) == 0 {
			return fmt.Errorf("mqtt.routes is required when mqtt.broker is set")
		}
		if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		for i, r := range cfg.MQTT.Routes {
			if r.Topic == "" {
				return fmt.Errorf("mqtt.routes[%d]: topic is required", i)
			}
			if !chains[r.Chain] {
				return fmt.Errorf("mqtt.routes[%d]: unknown chain %q", i, r.Chain)
			}
		}
	}

	if cfg.Scrape.Interval <= 0 {
		return fmt.Errorf("scrape.interval must be positive")
	}
	for i, t := range cfg.Scrape.Targets {
		if t.URL == "" {
			return fmt.Errorf("scrape.targets[%d]: url is required", i)
		}
		if t.Device == "" {
			return fmt.Errorf("scrape.targets[%d]: device is required", i)
		}
		if !chains[t.Chain] {
			return fmt.Errorf("scrape.targets[%d]: unknown chain %q", i, t.Chain)
		}
	}

	if cfg.AMQP.URLEnv != "" && cfg.AMQP.Exchange == "" {
		return fmt.Errorf("amqp.exchange is required when amqp.url_env is set")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the client, decoded from YAML.
type Config struct {
	Client    ClientConfig    `yaml:"client"`
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Timeouts  TimeoutsConfig  `yaml:"timeouts"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Auth      AuthConfig      `yaml:"auth"`
}

// ClientConfig carries top-level identity fields, mirroring the teacher's
// CryptoflowConfig block.
type ClientConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// EndpointsConfig holds the public and private WebSocket URLs.
type EndpointsConfig struct {
	Public  string `yaml:"public"`
	Private string `yaml:"private"`
}

// ChannelsConfig sizes the internal queues per spec.md §4.7/§5.
type ChannelsConfig struct {
	CommandBuffer int `yaml:"command_buffer"`
	EventBuffer   int `yaml:"event_buffer"`
}

// ReconnectConfig parameterizes the exponential backoff policy.
type ReconnectConfig struct {
	Base       time.Duration `yaml:"base"`
	Cap        time.Duration `yaml:"cap"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

// TimeoutsConfig carries the fixed timeouts from spec.md §5.
type TimeoutsConfig struct {
	Connect           time.Duration `yaml:"connect"`
	Ping              time.Duration `yaml:"ping"`
	SubscriptionAck   time.Duration `yaml:"subscription_ack"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// LoggingConfig mirrors the teacher's LoggingConfig block verbatim.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// MetricsConfig gates the optional CloudWatch publisher.
type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

// CloudWatchConfig toggles metrics.InitCloudWatch.
type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
}

// AuthConfig configures the REST token endpoint used for private channels.
type AuthConfig struct {
	TokenURL          string        `yaml:"token_url"`
	TokenPath         string        `yaml:"token_path"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
}

// Default returns the configuration the client uses when no file is
// supplied, matching the production defaults named in spec.md §4.7.
func Default() Config {
	return Config{
		Client: ClientConfig{Name: "krakenfeed", Version: "dev"},
		Endpoints: EndpointsConfig{
			Public:  "wss://ws.kraken.com",
			Private: "wss://ws-auth.kraken.com",
		},
		Channels: ChannelsConfig{
			CommandBuffer: 32,
			EventBuffer:   100,
		},
		Reconnect: ReconnectConfig{
			Base:       1 * time.Second,
			Cap:        60 * time.Second,
			Multiplier: 2,
			Jitter:     0.2,
		},
		Timeouts: TimeoutsConfig{
			Connect:           10 * time.Second,
			Ping:              10 * time.Second,
			SubscriptionAck:   10 * time.Second,
			HeartbeatInterval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			TokenURL:          "https://api.kraken.com",
			TokenPath:         "/0/private/GetWebSocketsToken",
			RequestsPerSecond: 1,
			Burst:             1,
			RequestTimeout:    10 * time.Second,
		},
	}
}

// LoadConfig reads a YAML file at path, applying it on top of Default(), and
// validates the result. An empty path yields the validated defaults. API
// credentials are not part of Config; APIKey and APISecret read them from the
// environment.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// APIKey returns the REST API key from the environment.
func APIKey() string {
	return strings.TrimSpace(os.Getenv("API_KEY"))
}

// APISecret returns the base64-encoded REST API secret from the environment.
func APISecret() string {
	return strings.TrimSpace(os.Getenv("API_SECRET"))
}

// Validate fails fast on configuration that would make the client loop
// unable to start, mirroring the teacher's validateConfig.
func Validate(cfg *Config) error {
	if cfg.Endpoints.Public == "" {
		return fmt.Errorf("endpoints.public is required")
	}
	if cfg.Channels.CommandBuffer <= 0 {
		return fmt.Errorf("channels.command_buffer must be greater than 0")
	}
	if cfg.Channels.EventBuffer <= 0 {
		return fmt.Errorf("channels.event_buffer must be greater than 0")
	}
	if cfg.Reconnect.Base <= 0 {
		return fmt.Errorf("reconnect.base must be greater than 0")
	}
	if cfg.Reconnect.Cap < cfg.Reconnect.Base {
		return fmt.Errorf("reconnect.cap must be >= reconnect.base")
	}
	if cfg.Reconnect.Multiplier <= 1 {
		return fmt.Errorf("reconnect.multiplier must be greater than 1")
	}
	if cfg.Reconnect.Jitter < 0 || cfg.Reconnect.Jitter >= 1 {
		return fmt.Errorf("reconnect.jitter must be in [0, 1)")
	}
	if cfg.Timeouts.HeartbeatInterval <= 0 {
		return fmt.Errorf("timeouts.heartbeat_interval must be greater than 0")
	}

	if env := AppEnvironment(); IsProductionLike(env) {
		if cfg.Logging.Level == "debug" || cfg.Logging.Level == "trace" {
			return fmt.Errorf("logging.level %q is not allowed in a production-like environment (%s)", cfg.Logging.Level, env)
		}
		if !cfg.Metrics.CloudWatch.Enabled {
			return fmt.Errorf("metrics.cloudwatch.enabled must be true in a production-like environment (%s)", env)
		}
	}
	return nil
}

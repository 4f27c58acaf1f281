package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// ConfigPathEnv overrides the default config file location.
const ConfigPathEnv = "AUTOFIX_NOTIFIER_CONFIG_PATH"

const defaultConfigPath = "./config.yaml"

type RateLimit struct {
	// Rate is the number of requests per second allowed per client IP.
	Rate float64 `yaml:"rate"`
	// Burst is the maximum burst per client IP.
	Burst int `yaml:"burst"`
}

const (
	DefaultReadTimeout       = 30 * time.Second
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultWriteTimeout      = 60 * time.Second
	DefaultIdleTimeout       = 120 * time.Second
	DefaultMaxHeaderBytes    = 1 << 20
	DefaultShutdownTimeout   = 30 * time.Second
)

// ServerTimeouts holds the http.Server timeouts as duration strings.
// All getters are safe on a nil receiver and fall back to the defaults.
type ServerTimeouts struct {
	ReadTimeout       string `yaml:"readTimeout"`
	ReadHeaderTimeout string `yaml:"readHeaderTimeout"`
	WriteTimeout      string `yaml:"writeTimeout"`
	IdleTimeout       string `yaml:"idleTimeout"`
	MaxHeaderBytes    int    `yaml:"maxHeaderBytes"`
}

func (t *ServerTimeouts) GetReadTimeout() time.Duration {
	if t == nil {
		return DefaultReadTimeout
	}
	return ParseDurationOrDefault(t.ReadTimeout, DefaultReadTimeout)
}

func (t *ServerTimeouts) GetReadHeaderTimeout() time.Duration {
	if t == nil {
		return DefaultReadHeaderTimeout
	}
	return ParseDurationOrDefault(t.ReadHeaderTimeout, DefaultReadHeaderTimeout)
}

func (t *ServerTimeouts) GetWriteTimeout() time.Duration {
	if t == nil {
		return DefaultWriteTimeout
	}
	return ParseDurationOrDefault(t.WriteTimeout, DefaultWriteTimeout)
}

func (t *ServerTimeouts) GetIdleTimeout() time.Duration {
	if t == nil {
		return DefaultIdleTimeout
	}
	return ParseDurationOrDefault(t.IdleTimeout, DefaultIdleTimeout)
}

func (t *ServerTimeouts) GetMaxHeaderBytes() int {
	if t == nil || t.MaxHeaderBytes <= 0 {
		return DefaultMaxHeaderBytes
	}
	return t.MaxHeaderBytes
}

type Server struct {
	ListenAddress string    `yaml:"listenAddress"`
	TLSCertFile   string    `yaml:"tlsCertFile"`
	TLSKeyFile    string    `yaml:"tlsKeyFile"`
	RateLimit     RateLimit `yaml:"rateLimit"`
	// AllowedOrigins enables CORS for the listed origins.
	AllowedOrigins  []string        `yaml:"allowedOrigins"`
	Timeouts        *ServerTimeouts `yaml:"timeouts"`
	ShutdownTimeout string          `yaml:"shutdownTimeout"`
}

// GetServerTimeouts never returns nil.
func (s Server) GetServerTimeouts() *ServerTimeouts {
	if s.Timeouts == nil {
		return &ServerTimeouts{}
	}
	return s.Timeouts
}

func (s Server) GetShutdownTimeout() time.Duration {
	return ParseDurationOrDefault(s.ShutdownTimeout, DefaultShutdownTimeout)
}

// SMTP configures direct delivery when Mail.Delivery is "smtp".
type SMTP struct {
	Host               string `yaml:"host"`
	Port               int    `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SenderName         string `yaml:"senderName"`
	RetryCount         int    `yaml:"retryCount"`
	RetryBackoffMs     int    `yaml:"retryBackoffMs"`
}

const (
	DeliveryHTTP = "http"
	DeliverySMTP = "smtp"
)

type Mail struct {
	// Delivery selects the transport: "http" posts the envelope to the mail
	// service (default), "smtp" renders locally and sends via SMTP.
	Delivery string `yaml:"delivery"`
	// Timeout bounds a single mail service request (e.g. "10s").
	Timeout string `yaml:"timeout"`
	// CommonFixFireAndForget makes the batch fix notification report success
	// even when delivery failed. Failures are still logged and audited.
	CommonFixFireAndForget bool `yaml:"commonFixFireAndForget"`
	// TemplateDir optionally points at a directory of <name>.html files that
	// take precedence over the embedded templates.
	TemplateDir string `yaml:"templateDir"`
	SMTP        SMTP   `yaml:"smtp"`
}

// TimeoutDuration parses Timeout, falling back to def when unset or invalid.
func (m Mail) TimeoutDuration(def time.Duration) time.Duration {
	return ParseDurationOrDefault(m.Timeout, def)
}

// ParseDurationOrDefault parses value as a duration. Empty, invalid or
// non-positive values yield def.
func ParseDurationOrDefault(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

type Kafka struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	BatchTimeout string   `yaml:"batchTimeout"`
	Async        bool     `yaml:"async"`
	Compression  string   `yaml:"compression"`
}

// CircuitBreaker guards the Kafka sink against an unreachable broker.
type CircuitBreaker struct {
	// FailureThreshold is the number of consecutive failures that open the circuit.
	FailureThreshold int `yaml:"failureThreshold"`
	// OpenTimeout is how long the circuit stays open (e.g. "30s").
	OpenTimeout string `yaml:"openTimeout"`
}

type Audit struct {
	// Kafka is optional; an empty broker list disables the Kafka sink.
	Kafka          Kafka          `yaml:"kafka"`
	CircuitBreaker CircuitBreaker `yaml:"circuitBreaker"`
	// QueueSize enables a per-sink async queue for the Kafka sink when > 0.
	QueueSize int `yaml:"queueSize"`
	// Workers is the number of queue workers. Default: 2
	Workers int `yaml:"workers"`
}

// Telemetry configures OpenTelemetry tracing of notification dispatches.
type Telemetry struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is one of "otlp" (default), "stdout" or "none".
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	Insecure     bool    `yaml:"insecure"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// DefaultSamplingRate samples every dispatch.
const DefaultSamplingRate = 1.0

// GetSamplingRate returns the configured trace sampling ratio. Values outside
// (0, 1] fall back to DefaultSamplingRate.
func (t Telemetry) GetSamplingRate() float64 {
	if t.SamplingRate <= 0 || t.SamplingRate > 1 {
		return DefaultSamplingRate
	}
	return t.SamplingRate
}

type Config struct {
	Server     Server            `yaml:"server"`
	Mail       Mail              `yaml:"mail"`
	Audit      Audit             `yaml:"audit"`
	Telemetry  Telemetry         `yaml:"telemetry"`
	Properties map[string]string `yaml:"properties"`
}

// Load loads the notifier configuration from a file path.
// If configPath is empty, the AUTOFIX_NOTIFIER_CONFIG_PATH environment variable
// is consulted before defaulting to "./config.yaml".
func Load(configPath ...string) (Config, error) {
	var path string

	switch {
	case len(configPath) > 0 && configPath[0] != "":
		path = configPath[0]
	case os.Getenv(ConfigPathEnv) != "":
		path = os.Getenv(ConfigPathEnv)
	default:
		path = defaultConfigPath
	}

	var config Config

	content, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("trying to open notifier config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(content, &config); err != nil {
		return config, fmt.Errorf("error unmarshaling YAML %s: %w", path, err)
	}
	config.applyDefaults()
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.Mail.Delivery == "" {
		c.Mail.Delivery = DeliveryHTTP
	}
	if c.Telemetry.Enabled {
		c.Telemetry.SamplingRate = c.Telemetry.GetSamplingRate()
	}
	if c.Properties == nil {
		c.Properties = map[string]string{}
	}
}

// PropertyStore returns the typed resolver over the configured properties.
func (c Config) PropertyStore() *Properties {
	return NewProperties(c.Properties)
}

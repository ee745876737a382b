package mqtt3

import (
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for configuration files that cannot be used.
var ErrInvalidConfig = errors.New("mqtt3: invalid config")

// Duration is a time.Duration written as a Go duration string ("30s", "1m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the file form of the client options.
//
//	servers: ["tcp://broker:1883"]
//	client_id: sensor-1
//	keep_alive: 30s
//	will: {topic: sensors/sensor-1/status, payload: offline, qos: 1, retain: true}
type Config struct {
	Servers         []string `yaml:"servers"`
	ClientID        string   `yaml:"client_id,omitempty"`
	Username        string   `yaml:"username,omitempty"`
	Password        string   `yaml:"password,omitempty"`
	ProtocolVersion string   `yaml:"protocol_version,omitempty"`
	CleanSession    *bool    `yaml:"clean_session,omitempty"`
	KeepAlive       Duration `yaml:"keep_alive,omitempty"`
	ConnectTimeout  Duration `yaml:"connect_timeout,omitempty"`
	MaxPacketSize   uint32   `yaml:"max_packet_size,omitempty"`
	LogLevel        string   `yaml:"log_level,omitempty"`

	Will             *WillConfig       `yaml:"will,omitempty"`
	TLS              *TLSConfig        `yaml:"tls,omitempty"`
	Proxy            *ProxyConfig      `yaml:"proxy,omitempty"`
	ProxyFromEnv     bool              `yaml:"proxy_from_environment,omitempty"`
	WebSocketHeaders map[string]string `yaml:"websocket_headers,omitempty"`
	PublishRateLimit *RateLimitConfig  `yaml:"publish_rate_limit,omitempty"`
}

// WillConfig describes the will message.
type WillConfig struct {
	Topic   string `yaml:"topic"`
	Payload string `yaml:"payload,omitempty"`
	QoS     QoS    `yaml:"qos,omitempty"`
	Retain  bool   `yaml:"retain,omitempty"`
}

// TLSConfig points at PEM files for broker verification and client
// certificates.
type TLSConfig struct {
	CAFile             string `yaml:"ca_file,omitempty"`
	CertFile           string `yaml:"cert_file,omitempty"`
	KeyFile            string `yaml:"key_file,omitempty"`
	ServerName         string `yaml:"server_name,omitempty"`
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
}

// RateLimitConfig configures WithPublishRateLimit.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst,omitempty"`
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML configuration. Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that do not depend on files.
func (c *Config) Validate() error {
	if _, err := c.protocolVersion(); err != nil {
		return err
	}
	if c.KeepAlive < 0 || time.Duration(c.KeepAlive) > time.Duration(maxUint16)*time.Second {
		return fmt.Errorf("%w: keep_alive out of range", ErrInvalidConfig)
	}
	if c.Will != nil {
		if c.Will.Topic == "" {
			return fmt.Errorf("%w: will.topic is required", ErrInvalidConfig)
		}
		if !c.Will.QoS.Valid() {
			return fmt.Errorf("%w: will.qos %d", ErrInvalidConfig, c.Will.QoS)
		}
	}
	if _, err := parseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) protocolVersion() (ProtocolVersion, error) {
	switch c.ProtocolVersion {
	case "", "3.1.1", "4":
		return ProtocolVersion311, nil
	case "3.1", "3":
		return ProtocolVersion31, nil
	default:
		return 0, fmt.Errorf("%w: protocol_version %q", ErrInvalidConfig, c.ProtocolVersion)
	}
}

func parseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(s) {
	case "":
		return LogLevelNone, nil
	case "debug":
		return LogLevelDebug, nil
	case "info":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	case "none":
		return LogLevelNone, nil
	default:
		return LogLevelNone, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, s)
	}
}

// Options converts the configuration into client options. TLS files are
// read here.
func (c *Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	version, _ := c.protocolVersion()
	opts := []Option{
		WithProtocolVersion(version),
		WithServers(c.Servers...),
	}

	if c.ClientID != "" {
		opts = append(opts, WithClientID(c.ClientID))
	}
	if c.Username != "" {
		opts = append(opts, WithCredentials(c.Username, c.Password))
	}
	if c.CleanSession != nil {
		opts = append(opts, WithCleanSession(*c.CleanSession))
	}
	if c.KeepAlive > 0 {
		opts = append(opts, WithKeepAlive(uint16(time.Duration(c.KeepAlive)/time.Second)))
	}
	if c.ConnectTimeout > 0 {
		opts = append(opts, WithConnectTimeout(time.Duration(c.ConnectTimeout)))
	}
	if c.MaxPacketSize > 0 {
		opts = append(opts, WithMaxPacketSize(c.MaxPacketSize))
	}
	if c.Will != nil {
		opts = append(opts, WithWill(c.Will.Topic, []byte(c.Will.Payload), c.Will.QoS, c.Will.Retain))
	}
	if c.Proxy != nil {
		opts = append(opts, WithProxy(*c.Proxy))
	}
	if c.ProxyFromEnv {
		opts = append(opts, WithProxyFromEnvironment(true))
	}
	if len(c.WebSocketHeaders) > 0 {
		header := make(http.Header, len(c.WebSocketHeaders))
		for k, v := range c.WebSocketHeaders {
			header.Set(k, v)
		}
		opts = append(opts, WithWebSocketHeader(header))
	}
	if c.PublishRateLimit != nil {
		opts = append(opts, WithPublishRateLimit(c.PublishRateLimit.PerSecond, c.PublishRateLimit.Burst))
	}
	if c.LogLevel != "" {
		level, _ := parseLogLevel(c.LogLevel)
		opts = append(opts, WithLogger(NewSlogLogger(nil, level)))
	}

	if c.TLS != nil {
		tlsConfig, err := c.TLS.Load()
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithTLS(tlsConfig))
	}

	return opts, nil
}

// Load builds a *tls.Config from the referenced files.
func (t *TLSConfig) Load() (*tls.Config, error) {
	config := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // opt-in from configuration
	}

	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("%w: no certificates in %s", ErrInvalidConfig, t.CAFile)
		}
		config.RootCAs = pool
	}

	if t.CertFile != "" || t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, err
		}
		config.Certificates = []tls.Certificate{cert}
	}

	return config, nil
}

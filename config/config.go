package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/searchktools/fast-socket/core"
)

// EnvPrefix is prepended to every environment variable, e.g. FASTSOCKET_PORT
const EnvPrefix = "fastsocket"

// Keys shared by the cobra flags, the environment and Load
const (
	KeyPort              = "port"
	KeyProtocol          = "protocol"
	KeyMaxPackageLength  = "max-package-length"
	KeyReceiveBufferSize = "receive-buffer-size"
	KeyMinPoolSize       = "min-pool-size"
	KeyMaxPoolSize       = "max-pool-size"
	KeySendingQueueSize  = "sending-queue-size"
	KeyIdleTimeout       = "idle-timeout"
	KeyMetricsAddr       = "metrics-addr"
	KeyGCPercent         = "gc-percent"
	KeyWorkers           = "workers"
	KeyEnv               = "env"
)

// Protocols served by the application
var Protocols = []string{"line", "http", "websocket", "rpc"}

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Port     int
	Protocol string
	Env      string

	// engine
	MaxPackageLength  int
	ReceiveBufferSize int
	MinPoolSize       int
	MaxPoolSize       int
	SendingQueueSize  int
	IdleTimeout       time.Duration
	Workers           int

	// runtime
	MetricsAddr string
	GCPercent   int
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	opts := core.DefaultOptions()
	return &Config{
		Port:              8080,
		Protocol:          "line",
		Env:               "development",
		MaxPackageLength:  opts.MaxPackageLength,
		ReceiveBufferSize: opts.ReceiveBufferSize,
		MinPoolSize:       opts.MinPoolSize,
		MaxPoolSize:       opts.MaxPoolSize,
		SendingQueueSize:  opts.SendingQueueSize,
		IdleTimeout:       opts.IdleTimeout,
		MetricsAddr:       "",
		GCPercent:         200,
	}
}

// SetDefaults registers the defaults on v so unset keys fall back to them
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault(KeyPort, d.Port)
	v.SetDefault(KeyProtocol, d.Protocol)
	v.SetDefault(KeyEnv, d.Env)
	v.SetDefault(KeyMaxPackageLength, d.MaxPackageLength)
	v.SetDefault(KeyReceiveBufferSize, d.ReceiveBufferSize)
	v.SetDefault(KeyMinPoolSize, d.MinPoolSize)
	v.SetDefault(KeyMaxPoolSize, d.MaxPoolSize)
	v.SetDefault(KeySendingQueueSize, d.SendingQueueSize)
	v.SetDefault(KeyIdleTimeout, d.IdleTimeout)
	v.SetDefault(KeyMetricsAddr, d.MetricsAddr)
	v.SetDefault(KeyGCPercent, d.GCPercent)
	v.SetDefault(KeyWorkers, d.Workers)
}

// BindEnv makes v read FASTSOCKET_<KEY> variables, dashes become underscores
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:              v.GetInt(KeyPort),
		Protocol:          strings.ToLower(v.GetString(KeyProtocol)),
		Env:               v.GetString(KeyEnv),
		MaxPackageLength:  v.GetInt(KeyMaxPackageLength),
		ReceiveBufferSize: v.GetInt(KeyReceiveBufferSize),
		MinPoolSize:       v.GetInt(KeyMinPoolSize),
		MaxPoolSize:       v.GetInt(KeyMaxPoolSize),
		SendingQueueSize:  v.GetInt(KeySendingQueueSize),
		IdleTimeout:       v.GetDuration(KeyIdleTimeout),
		MetricsAddr:       v.GetString(KeyMetricsAddr),
		GCPercent:         v.GetInt(KeyGCPercent),
		Workers:           v.GetInt(KeyWorkers),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and the protocol name
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}

	known := false
	for _, p := range Protocols {
		if p == c.Protocol {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: unknown protocol %q (expected one of: %s)",
			ErrInvalidConfig, c.Protocol, strings.Join(Protocols, ", "))
	}

	if c.ReceiveBufferSize <= 0 {
		return fmt.Errorf("%w: receive buffer size must be positive", ErrInvalidConfig)
	}
	if c.SendingQueueSize <= 0 {
		return fmt.Errorf("%w: sending queue size must be positive", ErrInvalidConfig)
	}
	if c.MinPoolSize <= 0 || c.MaxPoolSize < c.MinPoolSize {
		return fmt.Errorf("%w: pool size %d..%d", ErrInvalidConfig, c.MinPoolSize, c.MaxPoolSize)
	}
	if c.MaxPackageLength < 0 {
		return fmt.Errorf("%w: max package length must not be negative", ErrInvalidConfig)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("%w: idle timeout must not be negative", ErrInvalidConfig)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidConfig)
	}

	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// EngineOptions converts the configuration to engine options
func (c *Config) EngineOptions() core.Options {
	return core.Options{
		ReceiveBufferSize: c.ReceiveBufferSize,
		MinPoolSize:       c.MinPoolSize,
		MaxPoolSize:       c.MaxPoolSize,
		SendingQueueSize:  c.SendingQueueSize,
		MaxPackageLength:  c.MaxPackageLength,
		IdleTimeout:       c.IdleTimeout,
		Workers:           c.Workers,
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Server")
	addField("Address", c.Addr())
	addField("Protocol", c.Protocol)
	addField("Environment", c.Env)

	addSection("Framing")
	if c.MaxPackageLength == 0 {
		addField("Max Package Length", "unbounded")
	} else {
		addField("Max Package Length", fmt.Sprintf("%d bytes", c.MaxPackageLength))
	}
	addField("Receive Buffer", fmt.Sprintf("%d bytes", c.ReceiveBufferSize))
	addField("Sending Queue", fmt.Sprintf("%d slots", c.SendingQueueSize))

	addSection("Pools")
	addField("Pool Size", fmt.Sprintf("%d..%d", c.MinPoolSize, c.MaxPoolSize))
	if c.Workers == 0 {
		addField("Workers", "one per CPU")
	} else {
		addField("Workers", strconv.Itoa(c.Workers))
	}
	addField("Idle Timeout", c.IdleTimeout.String())

	addSection("Runtime")
	addField("GC Percent", strconv.Itoa(c.GCPercent))
	if c.MetricsAddr == "" {
		addField("Metrics", "disabled")
	} else {
		addField("Metrics", c.MetricsAddr)
	}

	return sb.String()
}

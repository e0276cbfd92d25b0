package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	BindEnv(v)
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper())
	if err != nil {
		t.Fatal(err)
	}

	d := Default()
	if *cfg != *d {
		t.Errorf("Expected defaults %+v, got %+v", d, cfg)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Expected :8080, got %s", cfg.Addr())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FASTSOCKET_PORT", "9000")
	t.Setenv("FASTSOCKET_PROTOCOL", "RPC")
	t.Setenv("FASTSOCKET_MAX_PACKAGE_LENGTH", "2048")
	t.Setenv("FASTSOCKET_IDLE_TIMEOUT", "30s")

	cfg, err := Load(newViper())
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Port)
	}
	if cfg.Protocol != "rpc" {
		t.Errorf("Expected protocol rpc, got %s", cfg.Protocol)
	}
	if cfg.MaxPackageLength != 2048 {
		t.Errorf("Expected max package length 2048, got %d", cfg.MaxPackageLength)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("Expected 30s idle timeout, got %s", cfg.IdleTimeout)
	}
}

func TestLoadOverride(t *testing.T) {
	v := newViper()
	v.Set(KeyReceiveBufferSize, 512)
	v.Set(KeyWorkers, 3)

	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}

	opts := cfg.EngineOptions()
	if opts.ReceiveBufferSize != 512 || opts.Workers != 3 {
		t.Errorf("Unexpected engine options %+v", opts)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"port":           func(c *Config) { c.Port = 70000 },
		"protocol":       func(c *Config) { c.Protocol = "smtp" },
		"receive buffer": func(c *Config) { c.ReceiveBufferSize = 0 },
		"queue":          func(c *Config) { c.SendingQueueSize = -1 },
		"pool range":     func(c *Config) { c.MinPoolSize, c.MaxPoolSize = 10, 5 },
		"package length": func(c *Config) { c.MaxPackageLength = -1 },
		"idle timeout":   func(c *Config) { c.IdleTimeout = -time.Second },
		"workers":        func(c *Config) { c.Workers = -2 },
	}

	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("Defaults must be valid: %v", err)
	}
}

func TestString(t *testing.T) {
	cfg := Default()
	cfg.MetricsAddr = ":9100"

	s := cfg.String()
	for _, want := range []string{"SERVER", "FRAMING", "POOLS", "RUNTIME", ":9100", "line"} {
		if !strings.Contains(s, want) {
			t.Errorf("Expected %q in\n%s", want, s)
		}
	}
}

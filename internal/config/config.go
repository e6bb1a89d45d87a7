// Package config defines the configuration of the checkout service.
package config

import (
	"strings"

	"github.com/abgdnv/gopos/pkg/config"
	"github.com/abgdnv/gopos/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

type Config struct {
	HTTPServer  config.HTTPConfig        `koanf:"server"`
	Database    config.DatabaseConfig    `koanf:"database"`
	Redis       config.RedisConfig       `koanf:"redis"`
	Nats        config.NATSConfig        `koanf:"nats"`
	Resilience  config.ResilienceConfig  `koanf:"resilience"`
	Telemetry   config.TelemetryConfig   `koanf:"telemetry"`
	Log         config.LogConfig         `koanf:"log"`
	Diagnostics config.DiagnosticsConfig `koanf:"diagnostics"`
	Shutdown    config.ShutdownConfig    `koanf:"shutdown"`
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Database.String())
	b.WriteString(c.Redis.String())
	b.WriteString(c.Nats.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.Diagnostics.String())
	b.WriteString(c.Shutdown.String())
	return b.String()
}

// Validate checks if the configuration values are valid
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Database,
		&c.Redis,
		&c.Nats,
		&c.Resilience,
		&c.Telemetry,
		&c.Log,
		&c.Diagnostics,
		&c.Shutdown,
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

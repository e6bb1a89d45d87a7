package config

import (
	"fmt"
	"net"
	"strings"
)

// DiagnosticsConfig configures the side server exposing Prometheus metrics and,
// when Profiling is set, net/http/pprof.
type DiagnosticsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Addr      string `koanf:"addr"`
	Profiling bool   `koanf:"profiling"`
}

func (c *DiagnosticsConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Diagnostics ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	b.WriteString(fmt.Sprintf("  address: %s\n", c.Addr))
	b.WriteString(fmt.Sprintf("  profiling: %t\n", c.Profiling))
	return b.String()
}

func (c *DiagnosticsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("diagnostics address %q is not host:port: %w", c.Addr, err)
	}
	return nil
}

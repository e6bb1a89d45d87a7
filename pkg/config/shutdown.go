package config

import (
	"fmt"
	"strings"
	"time"
)

// ShutdownConfig bounds the stop sequence: in-flight requests (and the checkouts they
// commit) get Timeout, then sale events still buffered for NATS get EventDrain.
type ShutdownConfig struct {
	Timeout    time.Duration `koanf:"timeout"`
	EventDrain time.Duration `koanf:"eventdrain"`
}

func (c *ShutdownConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Shutdown ---\n")
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  eventdrain: %s\n", c.EventDrain))
	return b.String()
}

func (c *ShutdownConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("shutdown timeout is not configured")
	}
	if c.EventDrain <= 0 {
		return fmt.Errorf("shutdown eventdrain is not configured")
	}
	return nil
}

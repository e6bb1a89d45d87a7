package config

import (
	"fmt"
	"strings"
	"time"
)

// RedisConfig configures the Redis instance that keeps session carts.
type RedisConfig struct {
	Addr       string        `koanf:"addr"`
	Password   string        `koanf:"password"`
	DB         int           `koanf:"db"`
	Timeout    time.Duration `koanf:"timeout"`
	SessionTTL time.Duration `koanf:"sessionTTL"`
}

// String returns a string representation of the Redis configuration.
func (c *RedisConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Redis ---\n")
	b.WriteString(fmt.Sprintf("  addr: %s\n", c.Addr))
	if c.Password != "" {
		b.WriteString("  password: ****\n")
	}
	b.WriteString(fmt.Sprintf("  db: %d\n", c.DB))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  sessionTTL: %s\n", c.SessionTTL))
	return b.String()
}

func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis address is not configured")
	}
	if c.DB < 0 {
		return fmt.Errorf("invalid redis db index: %d", c.DB)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("redis timeout is not configured")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("redis session TTL is not configured")
	}
	return nil
}

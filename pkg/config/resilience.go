package config

import (
	"fmt"
	"strings"
	"time"
)

// ResilienceConfig guards publishing of sale events. A sale is already committed when
// its event is sent, so the whole publish, retries included, must fit in PublishTimeout.
type ResilienceConfig struct {
	PublishTimeout time.Duration        `koanf:"publishtimeout"`
	Retry          RetryConfig          `koanf:"retry"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type RetryConfig struct {
	MaxAttempts    int           `koanf:"maxattempts"`
	InitialBackoff time.Duration `koanf:"initialbackoff"`
}

// Budget is the longest time spent waiting between attempts.
func (c RetryConfig) Budget() time.Duration {
	return time.Duration(max(c.MaxAttempts-1, 0)) * c.InitialBackoff
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

func (c *ResilienceConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Event publishing ---\n")
	b.WriteString(fmt.Sprintf("  publishtimeout: %v\n", c.PublishTimeout))
	b.WriteString(fmt.Sprintf("  retry: %d attempts, %v apart (budget %v)\n",
		c.Retry.MaxAttempts, c.Retry.InitialBackoff, c.Retry.Budget()))
	b.WriteString(fmt.Sprintf("  breaker: opens after %d failures or %d%% errors, for %v\n",
		c.CircuitBreaker.ConsecutiveFailures, c.CircuitBreaker.ErrorRatePercent, c.CircuitBreaker.OpenTimeout))
	return b.String()
}

func (c *ResilienceConfig) Validate() error {
	if c.PublishTimeout <= 0 {
		return fmt.Errorf("resilience.publishtimeout must be greater than 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("resilience.retry.maxattempts must be greater than 0")
	}
	if c.Retry.InitialBackoff <= 0 {
		return fmt.Errorf("resilience.retry.initialbackoff must be greater than 0")
	}
	if c.Retry.Budget() >= c.PublishTimeout {
		return fmt.Errorf("resilience.retry budget %v does not fit in publishtimeout %v", c.Retry.Budget(), c.PublishTimeout)
	}
	if c.CircuitBreaker.ConsecutiveFailures == 0 {
		return fmt.Errorf("resilience.circuitbreaker.consecutivefailures must be greater than 0")
	}
	if c.CircuitBreaker.ErrorRatePercent < 0 || c.CircuitBreaker.ErrorRatePercent > 100 {
		return fmt.Errorf("resilience.circuitbreaker.errorratepercent must be between 0 and 100")
	}
	if c.CircuitBreaker.OpenTimeout <= 0 {
		return fmt.Errorf("resilience.circuitbreaker.opentimeout must be greater than 0")
	}
	return nil
}

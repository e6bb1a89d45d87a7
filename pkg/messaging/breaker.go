package messaging

import (
	"context"
	"log/slog"

	"github.com/abgdnv/gopos/pkg/config"
	"github.com/sony/gobreaker/v2"
)

// BreakerPublisher guards a Publisher with a circuit breaker so a broker outage
// fails fast instead of stalling every caller on connection timeouts.
type BreakerPublisher struct {
	next Publisher
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerPublisher wraps next with a circuit breaker configured from cfg.
func NewBreakerPublisher(next Publisher, cfg config.CircuitBreakerConfig, logger *slog.Logger) *BreakerPublisher {
	st := gobreaker.Settings{
		Name:        "event-publisher-cb",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(total > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerPublisher{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[struct{}](st),
	}
}

// Publish forwards the event unless the breaker is open, in which case gobreaker.ErrOpenState is returned.
func (p *BreakerPublisher) Publish(ctx context.Context, event Event) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, event)
	})
	return err
}

package ftpfetch

import (
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreaker guards fetches against a repeatedly failing host.
// *gobreaker.CircuitBreaker[any] satisfies it.
type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	State() gobreaker.State
}

// NewCircuitBreakerConfig returns a function that creates circuit breakers
// for hosts, for use as Config.NewCircuitBreaker. A breaker trips once a
// host has answered at least 3 requests with a failure ratio of 60% or
// more.
func NewCircuitBreakerConfig(maxRequests uint32, interval, timeout time.Duration) func(addr string) CircuitBreaker {
	return func(addr string) CircuitBreaker {
		settings := gobreaker.Settings{
			Name:        addr,
			MaxRequests: maxRequests,
			Interval:    interval,
			Timeout:     timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= 0.6
			},
		}
		return gobreaker.NewCircuitBreaker[any](settings)
	}
}

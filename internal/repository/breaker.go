package repository

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// newStoreBreaker guards lookup and commit calls against a down store.
// Breaker only, no retries: a failed commit is reported, never replayed.
func newStoreBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("store breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

package db

import (
	"context"
	"errors"
	"fmt"

	"mongoflow/internal/config"

	"github.com/sony/gobreaker"
)

// errAbandoned marks a failure caused by the caller giving up (client
// disconnect, gateway or Lambda deadline) rather than by MongoDB.
var errAbandoned = errors.New("caller context done")

// NewCircuitBreaker guards MongoDB calls. It opens after cfg.BreakerFailures
// consecutive failures and lets one trial request through after
// cfg.BreakerTimeout. Abandoned calls do not count against MongoDB.
func NewCircuitBreaker(name string, cfg config.MongoConfig) *gobreaker.CircuitBreaker {
	failures := cfg.BreakerFailures
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errAbandoned)
		},
	})
}

// abandoned tags err with errAbandoned when the caller's own context ended.
func abandoned(caller context.Context, err error) error {
	if cause := caller.Err(); cause != nil {
		return fmt.Errorf("%w: %w", errAbandoned, cause)
	}
	return err
}

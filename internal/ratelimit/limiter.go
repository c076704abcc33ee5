package ratelimit

import "context"

// Limiter paces provider calls within a scope.
type Limiter interface {
	Allow(ctx context.Context, scope string) (bool, error)
	Wait(ctx context.Context, scope string) error
}

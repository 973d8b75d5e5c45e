package cache

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/search-core/pkg/resilience"
)

// GuardedRemote routes remote calls through a circuit breaker so an unhealthy
// remote tier degrades to local-only caching instead of adding latency to
// every request.
type GuardedRemote struct {
	remote  Remote
	breaker *resilience.CircuitBreaker
}

func NewGuardedRemote(remote Remote, breaker *resilience.CircuitBreaker) *GuardedRemote {
	return &GuardedRemote{remote: remote, breaker: breaker}
}

func (g *GuardedRemote) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		data  []byte
		found bool
	)
	err := g.breaker.Execute(func() error {
		var err error
		data, found, err = g.remote.Get(ctx, key)
		return err
	})
	return data, found, err
}

func (g *GuardedRemote) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return g.breaker.Execute(func() error {
		return g.remote.Set(ctx, key, data, ttl)
	})
}

func (g *GuardedRemote) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var deleted int64
	err := g.breaker.Execute(func() error {
		var err error
		deleted, err = g.remote.DeletePrefix(ctx, prefix)
		return err
	})
	return deleted, err
}

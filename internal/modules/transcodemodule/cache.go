package transcodemodule

import (
	"context"
	"sync"
)

// EngineFactory creates the shared engine on first use.
type EngineFactory func(ctx context.Context) (Engine, error)

// engineCache initializes the engine lazily and shares one instance across
// all loads. Concurrent first users wait for the single in-flight attempt;
// a failed attempt is not cached, so the next load retries, which matters
// when ffmpeg gets installed while the app is running.
type engineCache struct {
	factory EngineFactory

	mu       sync.Mutex
	engine   Engine
	inflight chan struct{}
}

func newEngineCache(factory EngineFactory) *engineCache {
	return &engineCache{factory: factory}
}

// Get returns the shared engine, initializing it on first call.
func (c *engineCache) Get(ctx context.Context) (Engine, error) {
	for {
		c.mu.Lock()
		if c.engine != nil {
			engine := c.engine
			c.mu.Unlock()
			return engine, nil
		}

		if c.inflight == nil {
			done := make(chan struct{})
			c.inflight = done
			c.mu.Unlock()

			engine, err := c.factory(ctx)

			c.mu.Lock()
			c.inflight = nil
			if err == nil {
				c.engine = engine
			}
			c.mu.Unlock()
			close(done)

			if err != nil {
				return nil, err
			}
			return engine, nil
		}

		wait := c.inflight
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// PoolConfig describes where model fits run. It is always passed in
// explicitly; nothing is resolved from the user's environment.
type PoolConfig struct {
	// Workers bounds concurrent fits. Values <= 0 mean DefaultWorkers().
	Workers int `yaml:"workers" mapstructure:"workers"`

	// Nodes lists worker node addresses (IP or host, no port). When empty,
	// fits run in-process.
	Nodes []string `yaml:"nodes" mapstructure:"nodes"`

	// Port is the port shared by every worker node.
	Port int `yaml:"port" mapstructure:"port"`

	// Coordinator is the address of the node that orchestrates the run. It
	// is informational for remote setups and is never sent fits itself.
	Coordinator string `yaml:"coordinator" mapstructure:"coordinator"`
}

// DefaultWorkers returns the number of available cores minus one, at least 1.
func DefaultWorkers() int {
	n := runtime.NumCPU() - 1
	if n < 1 {
		return 1
	}
	return n
}

// Resolved returns a copy with Workers defaulted.
func (c PoolConfig) Resolved() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers()
	}
	return c
}

// Distributed reports whether fits are sent to worker nodes.
func (c PoolConfig) Distributed() bool {
	return len(c.Nodes) > 0
}

// Validate checks the configuration for a distributed setup.
func (c PoolConfig) Validate() error {
	if c.Workers < 0 {
		return errors.NewConfigError("pool.workers", "must be >= 0", c.Workers)
	}
	if c.Distributed() && (c.Port <= 0 || c.Port > 65535) {
		return errors.NewConfigError("pool.port", "worker nodes require a port in 1..65535", c.Port)
	}
	for _, n := range c.Nodes {
		if n == "" {
			return errors.NewConfigError("pool.nodes", "empty node address", c.Nodes)
		}
	}
	return nil
}

// Pool bounds the number of concurrently running tasks.
type Pool struct {
	workers int
}

// NewPool creates a Pool with the given concurrency. Values <= 0 mean
// DefaultWorkers().
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Pool{workers: workers}
}

// Workers returns the pool's concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Map runs fn(ctx, i) for every i in [0, n) and returns once all calls have
// finished. The first error cancels the context passed to calls that have
// not started and is returned. Panics in fn are returned as PanicError.
func (p *Pool) Map(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for i := 0; i < n; i++ {
		g.Go(func() (err error) {
			defer errors.Recover(&err, "parallel.Pool.Map")
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}

	return g.Wait()
}

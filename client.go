package ftpfetch

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sony/gobreaker/v2"
)

// Defaults applied by NewClient for zero-valued Config fields.
const (
	DefaultMaxConnsPerHost = 2
	DefaultUsername        = "anonymous"
	DefaultPassword        = "anonymous@"
)

// Config holds configuration for the fetch client and its connection
// pools.
type Config struct {
	// MaxConnsPerHost is the maximum number of pooled connections per
	// host:port. Zero means DefaultMaxConnsPerHost. Control and data
	// connections to the same address share the budget.
	MaxConnsPerHost int32

	// MaxConnLifetime is the maximum duration a connection can be reused.
	// Zero means no limit.
	MaxConnLifetime time.Duration

	// MaxConnIdleTime is the maximum duration a connection can sit idle
	// before being closed. Zero means no limit.
	MaxConnIdleTime time.Duration

	// HealthCheckInterval is how often idle connections are probed with
	// NOOP. Zero disables health checks.
	HealthCheckInterval time.Duration

	// Dialer is the net.Dialer used to create new connections.
	// If nil, the default net.Dialer is used.
	Dialer *net.Dialer

	// Username and Password are the login defaults for requests that
	// carry no credentials. Empty means the anonymous convention.
	Username string
	Password string

	// NewSink builds the destination for each response body.
	// If nil, responses buffer in memory.
	NewSink func() Sink

	// Recorder, when set, observes every session's traffic.
	Recorder Recorder

	// NewCircuitBreaker creates a circuit breaker for a host address.
	// Called once per address on first use. If nil, no breaker is used.
	NewCircuitBreaker func(addr string) CircuitBreaker

	// for testing purposes only
	constructor func(ctx context.Context, addr string) (net.Conn, error)
}

// Client fetches resources over FTP using pooled connections. Sessions
// hand out the per-request lifecycle; the client owns everything shared
// across them.
type Client struct {
	pools *PoolSet
	cfg   Config

	mu       sync.RWMutex
	breakers map[string]CircuitBreaker

	stats *fetchStatsCollector
}

// NewClient creates a client with the given configuration. The zero
// Config is usable.
func NewClient(config Config) *Client {
	if config.MaxConnsPerHost <= 0 {
		config.MaxConnsPerHost = DefaultMaxConnsPerHost
	}
	if config.Username == "" {
		config.Username = DefaultUsername
	}
	if config.Password == "" {
		config.Password = DefaultPassword
	}

	pools := newPoolSet(poolConfig{
		maxSize:             config.MaxConnsPerHost,
		maxConnLifetime:     config.MaxConnLifetime,
		maxConnIdleTime:     config.MaxConnIdleTime,
		healthCheckInterval: config.HealthCheckInterval,
		dialer:              config.Dialer,
		constructor:         config.constructor,
	})

	return &Client{
		pools:    pools,
		cfg:      config,
		breakers: make(map[string]CircuitBreaker),
		stats:    newFetchStatsCollector(),
	}
}

// Close tears down all connection pools. In-flight sessions finish their
// current command; their connections are destroyed on return.
func (c *Client) Close() {
	c.pools.Close()
}

// Session returns a fresh session bound to this client's pools, recorder,
// and defaults. The caller owns its lifecycle: run one fetch, then Clean
// or Close.
func (c *Client) Session() *Session {
	return &Session{client: c, state: StateIdle}
}

func (c *Client) newSink() Sink {
	if c.cfg.NewSink != nil {
		return c.cfg.NewSink()
	}
	return NewMemorySink()
}

// Fetch runs one file fetch in a throwaway session. On success the control
// connection is returned for reuse; on failure it is discarded since its
// protocol state is suspect.
func (c *Client) Fetch(ctx context.Context, req *Request) (*Response, error) {
	out, err := c.execute(req.hostPort(), func() (any, error) {
		sess := c.Session()
		resp, err := sess.Fetch(ctx, req)
		if err != nil {
			sess.Close()
			return nil, err
		}
		sess.Clean()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*Response), nil
}

// FetchListing runs one directory listing in a throwaway session, with the
// same connection handling as Fetch.
func (c *Client) FetchListing(ctx context.Context, req *Request) (*ListingResponse, error) {
	out, err := c.execute(req.hostPort(), func() (any, error) {
		sess := c.Session()
		resp, err := sess.FetchListing(ctx, req)
		if err != nil {
			sess.Close()
			return nil, err
		}
		sess.Clean()
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*ListingResponse), nil
}

// execute wraps fn with the host's circuit breaker when one is configured.
func (c *Client) execute(addr string, fn func() (any, error)) (any, error) {
	cb := c.breakerFor(addr)
	if cb == nil {
		return fn()
	}
	return cb.Execute(fn)
}

func (c *Client) breakerFor(addr string) CircuitBreaker {
	if c.cfg.NewCircuitBreaker == nil {
		return nil
	}

	c.mu.RLock()
	cb, exists := c.breakers[addr]
	c.mu.RUnlock()
	if exists {
		return cb
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cb, exists := c.breakers[addr]; exists {
		return cb
	}
	cb = c.cfg.NewCircuitBreaker(addr)
	c.breakers[addr] = cb
	return cb
}

// FetchAll fetches the given requests concurrently, at most concurrency at
// a time. Responses are returned in request order. The first failure
// cancels the remaining fetches and is returned; responses completed
// before the failure are still present.
func (c *Client) FetchAll(ctx context.Context, reqs []*Request, concurrency int) ([]*Response, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	if concurrency <= 0 {
		concurrency = len(reqs)
	}

	responses := make([]*Response, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			resp, err := c.Fetch(ctx, req)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}

	return responses, g.Wait()
}

// Stats returns a snapshot of client statistics.
func (c *Client) Stats() FetchStats {
	return c.stats.snapshot()
}

// PoolStats returns a snapshot per host pool.
func (c *Client) PoolStats() []PoolStats {
	return c.pools.Stats()
}

// BreakerStates reports the state of every circuit breaker created so far,
// keyed by host address.
func (c *Client) BreakerStates() map[string]gobreaker.State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	states := make(map[string]gobreaker.State, len(c.breakers))
	for addr, cb := range c.breakers {
		states[addr] = cb.State()
	}
	return states
}

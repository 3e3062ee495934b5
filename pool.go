package ftpfetch

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jackc/puddle/v2"

	"github.com/crawlkit/ftpfetch/wire"
)

// poolConfig holds the pool configuration extracted from Config.
type poolConfig struct {
	maxSize             int32
	maxConnLifetime     time.Duration
	maxConnIdleTime     time.Duration
	healthCheckInterval time.Duration
	dialer              *net.Dialer
	constructor         func(ctx context.Context, addr string) (net.Conn, error) // for testing
}

// PoolSet manages one connection pool per host:port, created lazily on
// first checkout. It is the only state shared across sessions.
type PoolSet struct {
	mu    sync.RWMutex
	pools map[string]*hostPool

	cfg    poolConfig
	closed bool

	stopHealthCheck chan struct{}
}

type hostPool struct {
	addr string
	pool *puddle.Pool[*Conn]
}

func newPoolSet(cfg poolConfig) *PoolSet {
	if cfg.dialer == nil {
		cfg.dialer = &net.Dialer{}
	}
	ps := &PoolSet{
		pools:           make(map[string]*hostPool),
		cfg:             cfg,
		stopHealthCheck: make(chan struct{}),
	}
	if cfg.healthCheckInterval > 0 {
		go ps.healthCheckLoop()
	}
	return ps
}

// CheckOut lends a connection to addr, suspending until one is idle or a
// new one can be established. The returned handle is live and exclusively
// owned until Release or Discard.
func (ps *PoolSet) CheckOut(ctx context.Context, addr string, role Role) (*Conn, error) {
	hp, err := ps.getOrCreatePool(addr)
	if err != nil {
		return nil, err
	}

	res, err := hp.pool.Acquire(ctx)
	if err != nil {
		return nil, &ConnError{Addr: addr, Err: err}
	}

	conn := res.Value()
	conn.res = res
	conn.role = role
	conn.done = false
	return conn, nil
}

func (ps *PoolSet) getOrCreatePool(addr string) (*hostPool, error) {
	// Fast path: read lock
	ps.mu.RLock()
	hp, exists := ps.pools[addr]
	closed := ps.closed
	ps.mu.RUnlock()
	if closed {
		return nil, ErrPoolClosed
	}
	if exists {
		return hp, nil
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.closed {
		return nil, ErrPoolClosed
	}
	// Double-check after acquiring write lock
	if hp, exists := ps.pools[addr]; exists {
		return hp, nil
	}

	pool, err := puddle.NewPool(&puddle.Config[*Conn]{
		Constructor: func(ctx context.Context) (*Conn, error) {
			netConn, err := ps.dial(ctx, addr)
			if err != nil {
				return nil, err
			}
			return newConn(netConn, addr), nil
		},
		Destructor: func(c *Conn) {
			c.close()
		},
		MaxSize: ps.cfg.maxSize,
	})
	if err != nil {
		return nil, err
	}

	hp = &hostPool{addr: addr, pool: pool}
	ps.pools[addr] = hp
	return hp, nil
}

func (ps *PoolSet) dial(ctx context.Context, addr string) (net.Conn, error) {
	if ps.cfg.constructor != nil {
		return ps.cfg.constructor(ctx, addr)
	}
	return ps.cfg.dialer.DialContext(ctx, "tcp", addr)
}

// Outstanding reports how many connections are currently checked out
// across all pools.
func (ps *PoolSet) Outstanding() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	total := 0
	for _, hp := range ps.pools {
		total += int(hp.pool.Stat().AcquiredResources())
	}
	return total
}

// Close destroys all idle connections and marks the set closed. Checked-out
// connections are destroyed as they come back.
func (ps *PoolSet) Close() {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return
	}
	ps.closed = true
	pools := make([]*hostPool, 0, len(ps.pools))
	for _, hp := range ps.pools {
		pools = append(pools, hp)
	}
	ps.mu.Unlock()

	if ps.cfg.healthCheckInterval > 0 {
		close(ps.stopHealthCheck)
	}

	// puddle's Close blocks until all resources are returned, so it must
	// run outside the lock.
	for _, hp := range pools {
		hp.pool.Close()
	}
}

// healthCheckLoop periodically probes idle connections and destroys those
// that are stale or dead.
func (ps *PoolSet) healthCheckLoop() {
	ticker := time.NewTicker(ps.cfg.healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ps.stopHealthCheck:
			return
		case <-ticker.C:
			ps.checkAllPools()
		}
	}
}

func (ps *PoolSet) checkAllPools() {
	ps.mu.RLock()
	pools := make([]*hostPool, 0, len(ps.pools))
	for _, hp := range ps.pools {
		pools = append(pools, hp)
	}
	ps.mu.RUnlock()

	for _, hp := range pools {
		ps.checkPoolConnections(hp)
	}
}

// checkPoolConnections inspects every idle connection in one pool and
// destroys those past their lifetime or idle limits, plus any that fail a
// NOOP probe.
func (ps *PoolSet) checkPoolConnections(hp *hostPool) {
	now := time.Now()

	for _, res := range hp.pool.AcquireAllIdle() {
		if ps.cfg.maxConnLifetime > 0 && now.Sub(res.CreationTime()) > ps.cfg.maxConnLifetime {
			res.Destroy()
			continue
		}
		if ps.cfg.maxConnIdleTime > 0 && res.IdleDuration() > ps.cfg.maxConnIdleTime {
			res.Destroy()
			continue
		}
		if err := ps.healthCheck(res.Value()); err != nil {
			res.Destroy()
			continue
		}
		res.ReleaseUnused()
	}
}

// healthCheck probes a connection with NOOP. Fresh connections are left
// alone: their greeting is still unread and a probe would consume it.
func (ps *PoolSet) healthCheck(conn *Conn) error {
	if conn.fresh {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	commander := wire.NewCommander(wire.NewControlStream(conn.netConn, conn.reader))
	return commander.Noop(ctx)
}

// PoolStats is a snapshot of one host pool, in puddle's terms.
type PoolStats struct {
	// Addr is the host:port the pool serves
	Addr string

	TotalConns    int32 // connections in the pool (idle + checked out)
	IdleConns     int32 // idle connections available
	AcquiredConns int32 // connections currently checked out

	AcquireCount      int64 // total checkouts
	EmptyAcquireCount int64 // checkouts that had to wait or dial
	CanceledAcquire   int64 // checkouts canceled before completion
	AcquireWaitTimeNs int64 // total nanoseconds spent waiting in checkouts
	MaxSize           int32
}

// Stats returns a snapshot per host pool.
func (ps *PoolSet) Stats() []PoolStats {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	stats := make([]PoolStats, 0, len(ps.pools))
	for _, hp := range ps.pools {
		s := hp.pool.Stat()
		stats = append(stats, PoolStats{
			Addr:              hp.addr,
			TotalConns:        s.TotalResources(),
			IdleConns:         s.IdleResources(),
			AcquiredConns:     s.AcquiredResources(),
			AcquireCount:      s.AcquireCount(),
			EmptyAcquireCount: s.EmptyAcquireCount(),
			CanceledAcquire:   s.CanceledAcquireCount(),
			AcquireWaitTimeNs: s.EmptyAcquireWaitTime().Nanoseconds(),
			MaxSize:           s.MaxResources(),
		})
	}
	return stats
}

// Package pool caches live transport adapters, one per host. It is the only
// shared mutable state in the core: executors acquire connections here,
// report transport failures back through Invalidate, and never touch the
// internal map directly.
package pool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/models"
)

// HostResolver resolves a host identifier to its stored connection
// parameters. Implemented by the storage layer; read-only for the pool.
type HostResolver interface {
	ResolveHost(ctx context.Context, hostID string) (*models.Host, error)
}

// AdapterFactory constructs transport adapters for resolved hosts.
type AdapterFactory interface {
	NewAdapter(host *models.Host) (transport.Adapter, error)
}

// Conn wraps one live adapter for one host. Engine API calls may be issued
// concurrently; shell execution serializes through WithShell so two Compose
// invocations never interleave in the same project directory.
type Conn struct {
	hostID  string
	adapter transport.Adapter

	shellMu sync.Mutex

	mu       sync.Mutex
	lastUsed time.Time
	broken   bool
}

// Adapter returns the underlying transport adapter.
func (c *Conn) Adapter() transport.Adapter { return c.adapter }

// HostID returns the owning host identifier.
func (c *Conn) HostID() string { return c.hostID }

// WithShell runs fn with exclusive access to the connection's shell
// capability. Fails before invoking fn when the transport cannot execute
// commands on the host.
func (c *Conn) WithShell(fn func(sh transport.ShellAdapter) error) error {
	sh := transport.Shell(c.adapter)
	if sh == nil {
		return models.NewError(models.KindInvalidDefinition,
			"host %s transport does not support command execution", c.hostID)
	}
	c.shellMu.Lock()
	defer c.shellMu.Unlock()
	return fn(sh)
}

func (c *Conn) touch() {
	c.mu.Lock()
	c.lastUsed = time.Now()
	c.mu.Unlock()
}

func (c *Conn) usable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.broken
}

func (c *Conn) idleSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed.Before(cutoff)
}

func (c *Conn) markBroken() {
	c.mu.Lock()
	c.broken = true
	c.mu.Unlock()
}

// Options configures pool timeouts.
type Options struct {
	// ProbeTimeout bounds the liveness check run on a new adapter
	ProbeTimeout time.Duration

	// IdleTimeout closes connections unused for this long; zero disables
	// the reaper
	IdleTimeout time.Duration
}

// Pool caches at most one live connection per host identifier. Concurrent
// acquisitions for the same host share a single in-flight construction
// instead of racing to build duplicate adapters.
type Pool struct {
	registry HostResolver
	factory  AdapterFactory
	opts     Options

	mu    sync.Mutex
	conns map[string]*Conn
	group singleflight.Group

	done chan struct{}
}

// New creates a connection pool and starts the idle reaper when an idle
// timeout is configured.
func New(registry HostResolver, factory AdapterFactory, opts Options) *Pool {
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 10 * time.Second
	}

	p := &Pool{
		registry: registry,
		factory:  factory,
		opts:     opts,
		conns:    make(map[string]*Conn),
		done:     make(chan struct{}),
	}

	if opts.IdleTimeout > 0 {
		go p.reap()
	}

	return p
}

// Acquire returns the live connection for a host, constructing and probing
// a new adapter when none is cached or the cached one is broken. The second
// concurrent caller for the same host waits for the first construction.
func (p *Pool) Acquire(ctx context.Context, hostID string) (*Conn, error) {
	p.mu.Lock()
	if conn, ok := p.conns[hostID]; ok && conn.usable() {
		conn.touch()
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(hostID, func() (interface{}, error) {
		// A concurrent winner may have cached a connection between the
		// fast path and entering the group.
		p.mu.Lock()
		if conn, ok := p.conns[hostID]; ok && conn.usable() {
			p.mu.Unlock()
			return conn, nil
		}
		delete(p.conns, hostID)
		p.mu.Unlock()

		return p.connect(ctx, hostID)
	})
	if err != nil {
		return nil, err
	}

	conn := v.(*Conn)
	conn.touch()
	return conn, nil
}

// connect resolves host parameters, builds the matching adapter, and runs
// the liveness probe before caching.
func (p *Pool) connect(ctx context.Context, hostID string) (*Conn, error) {
	host, err := p.registry.ResolveHost(ctx, hostID)
	if err != nil {
		return nil, err
	}

	adapter, err := p.factory.NewAdapter(host)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.opts.ProbeTimeout)
	defer cancel()
	if err := adapter.Ping(probeCtx); err != nil {
		_ = adapter.Close()
		return nil, err
	}

	conn := &Conn{
		hostID:   hostID,
		adapter:  adapter,
		lastUsed: time.Now(),
	}

	p.mu.Lock()
	p.conns[hostID] = conn
	p.mu.Unlock()

	return conn, nil
}

// Invalidate evicts and closes the host's connection. Called after any
// operation reports a transport-level failure; a timed-out transport is
// assumed wedged and never reused. Safe on hosts with no cached entry.
func (p *Pool) Invalidate(hostID string) {
	p.mu.Lock()
	conn, ok := p.conns[hostID]
	delete(p.conns, hostID)
	p.mu.Unlock()

	if ok {
		conn.markBroken()
		_ = conn.adapter.Close()
	}
}

// Has reports whether a live connection is cached for the host.
func (p *Pool) Has(hostID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	conn, ok := p.conns[hostID]
	return ok && conn.usable()
}

// Count returns the number of cached connections.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// Close stops the reaper and closes every cached connection.
func (p *Pool) Close() {
	select {
	case <-p.done:
	default:
		close(p.done)
	}

	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*Conn)
	p.mu.Unlock()

	for _, conn := range conns {
		conn.markBroken()
		_ = conn.adapter.Close()
	}
}

// reap periodically evicts connections idle past the configured window.
func (p *Pool) reap() {
	interval := p.opts.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.evictIdle(time.Now().Add(-p.opts.IdleTimeout))
		}
	}
}

// evictIdle closes connections whose last use predates the cutoff.
func (p *Pool) evictIdle(cutoff time.Time) {
	p.mu.Lock()
	var idle []*Conn
	for hostID, conn := range p.conns {
		if conn.idleSince(cutoff) {
			idle = append(idle, conn)
			delete(p.conns, hostID)
		}
	}
	p.mu.Unlock()

	for _, conn := range idle {
		conn.markBroken()
		_ = conn.adapter.Close()
	}
}

package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/models"
)

type fakeAdapter struct {
	mu      sync.Mutex
	pingErr error
	closed  bool
	execs   []transport.Command
}

func (f *fakeAdapter) Kind() models.TransportKind { return models.TransportSSH }

func (f *fakeAdapter) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeAdapter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAdapter) Exec(ctx context.Context, cmd transport.Command) (*transport.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, cmd)
	return &transport.ExecResult{}, nil
}

func (f *fakeAdapter) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeFactory struct {
	constructions atomic.Int64
	delay         time.Duration
	pingErr       error

	mu   sync.Mutex
	last *fakeAdapter
}

func (f *fakeFactory) NewAdapter(host *models.Host) (transport.Adapter, error) {
	f.constructions.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	adapter := &fakeAdapter{pingErr: f.pingErr}
	f.mu.Lock()
	f.last = adapter
	f.mu.Unlock()
	return adapter, nil
}

func (f *fakeFactory) lastAdapter() *fakeAdapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeResolver struct {
	hosts map[string]*models.Host

	resolved atomic.Int64
}

func (r *fakeResolver) ResolveHost(ctx context.Context, hostID string) (*models.Host, error) {
	r.resolved.Add(1)
	host, ok := r.hosts[hostID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "host %s not registered", hostID)
	}
	return host, nil
}

func testResolver() *fakeResolver {
	return &fakeResolver{hosts: map[string]*models.Host{
		"h1": {ID: "h1", Transport: models.TransportSSH, Address: "10.0.0.1"},
		"h2": {ID: "h2", Transport: models.TransportSSH, Address: "10.0.0.2"},
	}}
}

func TestAcquireCachesConnection(t *testing.T) {
	factory := &fakeFactory{}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	conn1, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)

	conn2, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)

	assert.Same(t, conn1, conn2)
	assert.Equal(t, int64(1), factory.constructions.Load())
	assert.True(t, p.Has("h1"))
	assert.Equal(t, 1, p.Count())
}

func TestConcurrentAcquireSharesConstruction(t *testing.T) {
	factory := &fakeFactory{delay: 20 * time.Millisecond}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Acquire(context.Background(), "h1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), factory.constructions.Load())
}

func TestAcquireUnknownHost(t *testing.T) {
	factory := &fakeFactory{}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	_, err := p.Acquire(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.Equal(t, int64(0), factory.constructions.Load())
	assert.False(t, p.Has("ghost"))
}

func TestFailedProbeIsNotCached(t *testing.T) {
	factory := &fakeFactory{
		pingErr: models.NewError(models.KindHostUnreachable, "connection refused"),
	}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	_, err := p.Acquire(context.Background(), "h1")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindHostUnreachable))
	assert.False(t, p.Has("h1"))
	assert.True(t, factory.lastAdapter().isClosed())
}

func TestInvalidateEvictsAndRebuildsOnNextAcquire(t *testing.T) {
	factory := &fakeFactory{}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	_, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)
	first := factory.lastAdapter()

	p.Invalidate("h1")
	assert.False(t, p.Has("h1"))
	assert.True(t, first.isClosed())

	_, err = p.Acquire(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), factory.constructions.Load())
}

func TestInvalidateUnknownHostIsHarmless(t *testing.T) {
	p := New(testResolver(), &fakeFactory{}, Options{})
	defer p.Close()

	p.Invalidate("never-seen")
	assert.Equal(t, 0, p.Count())
}

func TestEvictIdle(t *testing.T) {
	factory := &fakeFactory{}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	_, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)
	_, err = p.Acquire(context.Background(), "h2")
	require.NoError(t, err)
	require.Equal(t, 2, p.Count())

	// Everything was used just now, so a past cutoff evicts nothing.
	p.evictIdle(time.Now().Add(-time.Minute))
	assert.Equal(t, 2, p.Count())

	// A future cutoff makes both connections idle.
	p.evictIdle(time.Now().Add(time.Minute))
	assert.Equal(t, 0, p.Count())
	assert.True(t, factory.lastAdapter().isClosed())
}

func TestWithShellSerializes(t *testing.T) {
	factory := &fakeFactory{}
	p := New(testResolver(), factory, Options{})
	defer p.Close()

	conn, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)

	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := conn.WithShell(func(sh transport.ShellAdapter) error {
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxActive) {
					atomic.StoreInt32(&maxActive, n)
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				_, err := sh.Exec(context.Background(), transport.Command{Script: "true"})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive)
	assert.Len(t, factory.lastAdapter().execs, 5)
}

// engineOnlyAdapter has no Exec; it models a remote tcp:// engine endpoint
// without shell access.
type engineOnlyAdapter struct{}

func (engineOnlyAdapter) Kind() models.TransportKind     { return models.TransportDirect }
func (engineOnlyAdapter) Ping(ctx context.Context) error { return nil }
func (engineOnlyAdapter) Close() error                   { return nil }

type engineOnlyFactory struct{}

func (engineOnlyFactory) NewAdapter(host *models.Host) (transport.Adapter, error) {
	return engineOnlyAdapter{}, nil
}

func TestWithShellRejectsShelllessTransport(t *testing.T) {
	p := New(testResolver(), engineOnlyFactory{}, Options{})
	defer p.Close()

	conn, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)

	err = conn.WithShell(func(sh transport.ShellAdapter) error { return nil })
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidDefinition))
}

func TestCloseShutsEverythingDown(t *testing.T) {
	factory := &fakeFactory{}
	p := New(testResolver(), factory, Options{IdleTimeout: time.Minute})

	_, err := p.Acquire(context.Background(), "h1")
	require.NoError(t, err)

	p.Close()
	assert.Equal(t, 0, p.Count())
	assert.True(t, factory.lastAdapter().isClosed())

	// Close is idempotent.
	p.Close()
}

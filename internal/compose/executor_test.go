package compose

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/dockhand/internal/pool"
	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/models"
)

// execResponse scripts one remote command outcome.
type execResponse struct {
	stdout string
	err    error
}

// scriptedShell is a shell transport whose Exec outcomes are queued up
// front. Commands past the end of the queue succeed with empty output.
type scriptedShell struct {
	mu        sync.Mutex
	responses []execResponse
	scripts   []string
}

func (s *scriptedShell) Kind() models.TransportKind {
	return models.TransportSSH
}

func (s *scriptedShell) Ping(ctx context.Context) error { return nil }

func (s *scriptedShell) Close() error { return nil }

func (s *scriptedShell) Exec(ctx context.Context, cmd transport.Command) (*transport.ExecResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts = append(s.scripts, cmd.Script)

	if len(s.responses) == 0 {
		return &transport.ExecResult{}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	if resp.err != nil {
		return nil, resp.err
	}
	return &transport.ExecResult{Stdout: resp.stdout}, nil
}

func (s *scriptedShell) execCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scripts)
}

func (s *scriptedShell) lastScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scripts) == 0 {
		return ""
	}
	return s.scripts[len(s.scripts)-1]
}

type shellFactory struct{ shell *scriptedShell }

func (f *shellFactory) NewAdapter(host *models.Host) (transport.Adapter, error) {
	return f.shell, nil
}

type hostMap map[string]*models.Host

func (m hostMap) ResolveHost(ctx context.Context, hostID string) (*models.Host, error) {
	host, ok := m[hostID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "host %s not registered", hostID)
	}
	return host, nil
}

// memStore keeps stacks in memory keyed by ID.
type memStore struct {
	mu      sync.Mutex
	stacks  map[string]*models.Stack
	saves   int
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{stacks: make(map[string]*models.Stack)}
}

func (m *memStore) LoadStack(ctx context.Context, stackID string) (*models.Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack, ok := m.stacks[stackID]
	if !ok {
		return nil, models.NewError(models.KindNotFound, "stack %s not registered", stackID)
	}
	copied := *stack
	return &copied, nil
}

func (m *memStore) SaveStack(ctx context.Context, stack *models.Stack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *stack
	m.stacks[stack.ID] = &copied
	m.saves++
	return nil
}

func (m *memStore) FindStackByProject(ctx context.Context, hostID, project string) (*models.Stack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, stack := range m.stacks {
		if stack.HostID == hostID && stack.Project == project {
			copied := *stack
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) stored(stackID string) *models.Stack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stacks[stackID]
}

type composeFixture struct {
	exec  *Executor
	pool  *pool.Pool
	store *memStore
	shell *scriptedShell
}

func newComposeFixture(t *testing.T) *composeFixture {
	t.Helper()

	hosts := hostMap{"h1": {ID: "h1", Transport: models.TransportSSH, Address: "10.0.0.1"}}
	shell := &scriptedShell{}
	p := pool.New(hosts, &shellFactory{shell: shell}, pool.Options{})
	t.Cleanup(p.Close)

	store := newMemStore()
	return &composeFixture{
		exec:  NewExecutor(p, store, hosts, 5*time.Second, "/var/lib/dockhand/stacks"),
		pool:  p,
		store: store,
		shell: shell,
	}
}

func (f *composeFixture) createStack(t *testing.T) *models.Stack {
	t.Helper()
	stack, err := f.exec.Create(context.Background(), "h1", "shop", sampleDefinition)
	require.NoError(t, err)
	return stack
}

func TestCreateRegistersStack(t *testing.T) {
	f := newComposeFixture(t)

	stack, err := f.exec.Create(context.Background(), "h1", "shop", sampleDefinition)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stack.ID, "stack-"))
	assert.Equal(t, models.StackCreated, stack.State)
	assert.Equal(t, "h1", stack.HostID)
	assert.Equal(t, "shop", stack.Project)
	assert.NotNil(t, f.store.stored(stack.ID))
	assert.Zero(t, f.shell.execCount(), "create must not touch the host")
}

func TestCreateRejectsDuplicateProject(t *testing.T) {
	f := newComposeFixture(t)
	f.createStack(t)

	_, err := f.exec.Create(context.Background(), "h1", "shop", sampleDefinition)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindConflict))
}

func TestCreateRejectsInvalidDefinition(t *testing.T) {
	f := newComposeFixture(t)

	_, err := f.exec.Create(context.Background(), "h1", "shop", "services: {}")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindInvalidDefinition))
	assert.Empty(t, f.store.stacks)
}

func TestCreateRejectsInvalidProjectName(t *testing.T) {
	f := newComposeFixture(t)

	for _, project := range []string{"My Project!", "Shop", "-shop", "shop/prod"} {
		_, err := f.exec.Create(context.Background(), "h1", project, sampleDefinition)
		require.Error(t, err, "project %q", project)
		assert.True(t, models.IsKind(err, models.KindInvalidDefinition))
	}
	assert.Empty(t, f.store.stacks)
	assert.Zero(t, f.shell.execCount())
}

func TestCreateRejectsUnknownHost(t *testing.T) {
	f := newComposeFixture(t)

	_, err := f.exec.Create(context.Background(), "ghost", "shop", sampleDefinition)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.Empty(t, f.store.stacks)
}

func TestUpRendersDefinitionAndCommitsState(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	res, err := f.exec.Up(context.Background(), stack.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)

	// Render first, compose command second.
	require.Equal(t, 2, f.shell.execCount())
	assert.Contains(t, f.shell.scripts[0], "cat > '/var/lib/dockhand/stacks/shop/compose.yaml'")
	assert.Equal(t, "docker compose -p 'shop' -f '/var/lib/dockhand/stacks/shop/compose.yaml' up -d", f.shell.lastScript())

	stored := f.store.stored(stack.ID)
	assert.Equal(t, models.StackUp, stored.State)
	assert.Empty(t, stored.LastError)
}

func TestDownCommitsState(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	res, err := f.exec.Down(context.Background(), stack.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "docker compose -p 'shop' -f '/var/lib/dockhand/stacks/shop/compose.yaml' down", f.shell.lastScript())
	assert.Equal(t, models.StackDown, f.store.stored(stack.ID).State)
}

func TestUpCommandFailureMovesStackToUnknown(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	f.shell.responses = []execResponse{
		{}, // render succeeds
		{err: models.RemoteCommandError(1, "no such image: nginx:1.27", "compose up failed")},
	}

	res, err := f.exec.Up(context.Background(), stack.ID)
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.True(t, models.IsKind(err, models.KindRemoteCommand))

	stored := f.store.stored(stack.ID)
	assert.Equal(t, models.StackUnknown, stored.State)
	assert.Equal(t, "no such image: nginx:1.27", stored.LastError)
}

func TestRenderFailureKeepsStoredState(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	f.shell.responses = []execResponse{
		{err: models.RemoteCommandError(1, "permission denied", "write definition failed")},
	}

	_, err := f.exec.Up(context.Background(), stack.ID)
	require.Error(t, err)

	// Nothing ran against the stack, so the recorded state must not move.
	assert.Equal(t, models.StackCreated, f.store.stored(stack.ID).State)
	assert.Equal(t, 1, f.shell.execCount())
}

func TestRestartServiceUnknownServiceIssuesNoCommand(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	res, err := f.exec.RestartService(context.Background(), stack.ID, "cache")
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindNotFound))
	assert.False(t, res.Success)
	assert.Zero(t, f.shell.execCount())
}

func TestRestartServiceRunsComposeRestart(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	res, err := f.exec.RestartService(context.Background(), stack.ID, "web")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "docker compose -p 'shop' -f '/var/lib/dockhand/stacks/shop/compose.yaml' restart 'web'", f.shell.lastScript())

	// A service restart is not a stack state transition.
	assert.Equal(t, models.StackCreated, f.store.stored(stack.ID).State)
}

func TestPSResolvesUnknownStateFromListing(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)
	require.NoError(t, f.exec.saveState(context.Background(), stack, models.StackUnknown, "boom"))

	// Empty listing resolves Unknown to Down.
	summaries, err := f.exec.PS(context.Background(), stack.ID)
	require.NoError(t, err)
	assert.Empty(t, summaries)
	assert.Equal(t, models.StackDown, f.store.stored(stack.ID).State)

	// A running container resolves Unknown to Up.
	require.NoError(t, f.exec.saveState(context.Background(), stack, models.StackUnknown, "boom"))
	f.shell.responses = []execResponse{
		{}, // render
		{stdout: `{"ID":"abc123","Name":"shop-web-1","Image":"nginx:1.27","Service":"web","State":"running"}`},
	}

	summaries, err = f.exec.PS(context.Background(), stack.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "web", summaries[0].Service)
	assert.Equal(t, models.StackUp, f.store.stored(stack.ID).State)
}

func TestPSSurfacesStateCommitFailure(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)
	require.NoError(t, f.exec.saveState(context.Background(), stack, models.StackUnknown, "boom"))

	f.store.saveErr = errors.New("couchdb unavailable")

	_, err := f.exec.PS(context.Background(), stack.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, f.store.saveErr)
}

func TestTimeoutInvalidatesPooledConnection(t *testing.T) {
	f := newComposeFixture(t)
	stack := f.createStack(t)

	_, err := f.exec.Up(context.Background(), stack.ID)
	require.NoError(t, err)
	require.True(t, f.pool.Has("h1"))

	f.shell.responses = []execResponse{
		{}, // render
		{err: models.NewError(models.KindTimeout, "compose down timed out")},
	}

	_, err = f.exec.Down(context.Background(), stack.ID)
	require.Error(t, err)
	assert.True(t, models.IsKind(err, models.KindTimeout))

	assert.False(t, f.pool.Has("h1"), "wedged transport must be evicted")
	assert.Equal(t, models.StackUnknown, f.store.stored(stack.ID).State)
}

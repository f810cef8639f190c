// Package compose manages Compose stacks on registered hosts: it validates
// definitions before any dispatch, renders them to the host filesystem, and
// drives `docker compose` over the host's shell transport while keeping the
// stored Stack state machine in step with observed outcomes.
package compose

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"evalgo.org/dockhand/internal/docker"
	"evalgo.org/dockhand/internal/pool"
	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/internal/validation"
	"evalgo.org/dockhand/models"
)

// DefaultStackDir is where rendered Compose files live on managed hosts.
const DefaultStackDir = "/var/lib/dockhand/stacks"

// StackStore persists Stack records.
type StackStore interface {
	// LoadStack returns the stack or a NotFound error.
	LoadStack(ctx context.Context, stackID string) (*models.Stack, error)

	// SaveStack creates or updates a stack record.
	SaveStack(ctx context.Context, stack *models.Stack) error

	// FindStackByProject returns the stack using the project name on the
	// host, or (nil, nil) when the name is free.
	FindStackByProject(ctx context.Context, hostID, project string) (*models.Stack, error)
}

// Executor runs Compose stack operations.
type Executor struct {
	pool           *pool.Pool
	store          StackStore
	hosts          pool.HostResolver
	commandTimeout time.Duration
	stackDir       string
}

// NewExecutor creates a Compose executor. commandTimeout bounds each remote
// compose invocation; stackDir overrides DefaultStackDir when non-empty.
func NewExecutor(p *pool.Pool, store StackStore, hosts pool.HostResolver, commandTimeout time.Duration, stackDir string) *Executor {
	if stackDir == "" {
		stackDir = DefaultStackDir
	}
	return &Executor{
		pool:           p,
		store:          store,
		hosts:          hosts,
		commandTimeout: commandTimeout,
		stackDir:       stackDir,
	}
}

// Create validates and registers a stack without touching the host's
// containers. The definition must parse and the project name must be free
// on the host; both checks happen before anything is persisted.
func (e *Executor) Create(ctx context.Context, hostID, project, definition string) (*models.Stack, error) {
	if project == "" {
		return nil, models.NewError(models.KindInvalidDefinition, "project name is required")
	}
	if !validation.ValidProjectName(project) {
		return nil, models.NewError(models.KindInvalidDefinition,
			"project name %s must be lowercase alphanumeric with '-' or '_'", project)
	}
	if _, err := ParseDefinition(definition); err != nil {
		return nil, err
	}

	if _, err := e.hosts.ResolveHost(ctx, hostID); err != nil {
		return nil, err
	}

	existing, err := e.store.FindStackByProject(ctx, hostID, project)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewError(models.KindConflict,
			"project %s already registered on host %s", project, hostID)
	}

	now := time.Now().UTC()
	stack := &models.Stack{
		Kind:       models.DocKindStack,
		ID:         "stack-" + uuid.New().String(),
		HostID:     hostID,
		Project:    project,
		Definition: definition,
		State:      models.StackCreated,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := e.store.SaveStack(ctx, stack); err != nil {
		return nil, err
	}
	return stack, nil
}

// Up brings the whole stack up in detached mode. Success moves the stack to
// Up; a failed compose run moves it to Unknown with the raw stderr recorded.
func (e *Executor) Up(ctx context.Context, stackID string) (*models.OperationResult, error) {
	return e.runStateOp(ctx, stackID, "stack_up", models.StackUp, func(stack *models.Stack, file string) string {
		return composeCmd(stack.Project, file, "up -d", "")
	})
}

// Down stops and removes the stack's containers. Success moves the stack to
// Down. Issuing down on an already-down stack is harmless; compose treats
// it as a no-op.
func (e *Executor) Down(ctx context.Context, stackID string) (*models.OperationResult, error) {
	return e.runStateOp(ctx, stackID, "stack_down", models.StackDown, func(stack *models.Stack, file string) string {
		return composeCmd(stack.Project, file, "down", "")
	})
}

// RestartService restarts one service of the stack. The service name is
// checked against the stored definition first; an unknown name fails with
// NotFound and issues no remote command. A successful restart leaves the
// stack state untouched.
func (e *Executor) RestartService(ctx context.Context, stackID, service string) (*models.OperationResult, error) {
	const op = "restart_service"

	stack, err := e.store.LoadStack(ctx, stackID)
	if err != nil {
		return models.FailResult(op, err), err
	}

	def, err := ParseDefinition(stack.Definition)
	if err != nil {
		return models.FailResult(op, err), err
	}
	if !def.HasService(service) {
		err = models.NewError(models.KindNotFound,
			"service %s is not defined in stack %s", service, stack.Project)
		return models.FailResult(op, err), err
	}

	_, err = e.dispatch(ctx, stack, func(file string) string {
		return composeCmd(stack.Project, file, "restart", service)
	})
	if err != nil {
		err = e.recordFailure(ctx, stack, err)
		return models.FailResult(op, err), err
	}

	return models.OKResult(op, map[string]string{"project": stack.Project, "service": service}), nil
}

// PS lists the stack's containers as Compose sees them. An empty listing is
// a valid result; when the stack was in Unknown it also resolves the state
// (empty listing means Down, a running container means Up).
func (e *Executor) PS(ctx context.Context, stackID string) ([]models.ContainerSummary, error) {
	stack, err := e.store.LoadStack(ctx, stackID)
	if err != nil {
		return nil, err
	}

	out, err := e.dispatch(ctx, stack, func(file string) string {
		return composeCmd(stack.Project, file, "ps --format json", "")
	})
	if err != nil {
		return nil, e.recordFailure(ctx, stack, err)
	}

	summaries, err := docker.SummariesFromComposePS(out)
	if err != nil {
		return nil, err
	}

	if stack.State == models.StackUnknown {
		resolved := models.StackDown
		if anyRunning(summaries) {
			resolved = models.StackUp
		}
		if err := e.saveState(ctx, stack, resolved, ""); err != nil {
			return nil, err
		}
	}

	return summaries, nil
}

// runStateOp runs a whole-stack command and commits the target state on
// success or Unknown on remote failure.
func (e *Executor) runStateOp(ctx context.Context, stackID, op string, onSuccess models.StackState, cmd func(stack *models.Stack, file string) string) (*models.OperationResult, error) {
	stack, err := e.store.LoadStack(ctx, stackID)
	if err != nil {
		return models.FailResult(op, err), err
	}

	if _, err = e.dispatch(ctx, stack, func(file string) string { return cmd(stack, file) }); err != nil {
		err = e.recordFailure(ctx, stack, err)
		return models.FailResult(op, err), err
	}

	if err := e.saveState(ctx, stack, onSuccess, ""); err != nil {
		return models.FailResult(op, err), err
	}

	return models.OKResult(op, map[string]string{"project": stack.Project, "state": string(onSuccess)}), nil
}

// dispatch renders the stack's definition to the host and runs one compose
// command against it, serialized with every other shell operation on the
// same connection. The definition is re-rendered on every call so the host
// copy can never drift from the stored record.
func (e *Executor) dispatch(ctx context.Context, stack *models.Stack, cmd func(file string) string) (string, error) {
	conn, err := e.pool.Acquire(ctx, stack.HostID)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	dir := path.Join(e.stackDir, stack.Project)
	file := path.Join(dir, "compose.yaml")

	var out string
	err = conn.WithShell(func(sh transport.ShellAdapter) error {
		_, err := sh.Exec(ctx, transport.Command{
			Script: fmt.Sprintf("mkdir -p %s && cat > %s", shellQuote(dir), shellQuote(file)),
			Stdin:  []byte(stack.Definition),
		})
		if err != nil {
			return &renderError{err}
		}

		res, err := sh.Exec(ctx, transport.Command{
			Script: cmd(file),
			Dir:    dir,
		})
		if err != nil {
			return err
		}
		out = res.Stdout
		return nil
	})
	if err != nil {
		switch models.KindOf(err) {
		case models.KindHostUnreachable, models.KindTimeout:
			e.pool.Invalidate(stack.HostID)
		}
		return "", err
	}
	return out, nil
}

// recordFailure updates the stack record after a failed remote operation.
// When the compose command itself failed or its outcome is indeterminate
// the stack moves to Unknown and the stderr is kept in LastError. Failures
// before the command ran (rendering, unreachable host) leave the recorded
// state untouched because nothing changed on the host.
func (e *Executor) recordFailure(ctx context.Context, stack *models.Stack, err error) error {
	var render *renderError
	if errors.As(err, &render) {
		return err
	}

	switch models.KindOf(err) {
	case models.KindRemoteCommand, models.KindTimeout, models.KindCancelled:
		e.saveState(ctx, stack, models.StackUnknown, stderrOf(err))
	}
	return err
}

// saveState commits a state transition. The write uses a fresh context so a
// caller cancellation that triggered the transition cannot also suppress
// recording it.
func (e *Executor) saveState(ctx context.Context, stack *models.Stack, state models.StackState, lastError string) error {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	stack.State = state
	stack.LastError = lastError
	stack.UpdatedAt = time.Now().UTC()
	return e.store.SaveStack(ctx, stack)
}

// renderError marks a failure that happened while writing the definition to
// the host, before any compose command ran.
type renderError struct{ err error }

func (r *renderError) Error() string { return "render compose definition: " + r.err.Error() }
func (r *renderError) Unwrap() error { return r.err }

func anyRunning(summaries []models.ContainerSummary) bool {
	for _, s := range summaries {
		if strings.EqualFold(s.State, "running") {
			return true
		}
	}
	return false
}

func stderrOf(err error) string {
	var typed *models.Error
	if errors.As(err, &typed) && typed.Stderr != "" {
		return typed.Stderr
	}
	return err.Error()
}

func composeCmd(project, file, subcommand, service string) string {
	var b strings.Builder
	b.WriteString("docker compose -p ")
	b.WriteString(shellQuote(project))
	b.WriteString(" -f ")
	b.WriteString(shellQuote(file))
	b.WriteString(" ")
	b.WriteString(subcommand)
	if service != "" {
		b.WriteString(" ")
		b.WriteString(shellQuote(service))
	}
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

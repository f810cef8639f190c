// Package transport provides the adapters Dockhand uses to reach a Docker
// host. Two variants exist: a direct adapter speaking to a Docker engine
// endpoint, and an SSH adapter running commands on the remote machine with
// an optional engine client tunneled over a forwarded socket.
//
// Every adapter method classifies failures into the models.ErrorKind
// taxonomy: connect/auth problems become KindHostUnreachable, nonzero
// remote exits become KindRemoteCommand with exit code and stderr, and
// expired or cancelled contexts become KindTimeout or KindCancelled.
package transport

import (
	"context"
	"errors"

	dockerclient "github.com/docker/docker/client"

	"evalgo.org/dockhand/models"
)

// Adapter is a live channel to one host. Adapters are owned by the
// connection pool and must not be closed by callers.
type Adapter interface {
	// Kind returns the transport variant this adapter implements.
	Kind() models.TransportKind

	// Ping verifies the channel is usable (engine version probe or
	// SSH keepalive). Used by the pool as the liveness check.
	Ping(ctx context.Context) error

	// Close releases all transport resources. Safe to call more than once.
	Close() error
}

// EngineAdapter is implemented by adapters that expose a Docker engine API
// client. Engine calls may be multiplexed by concurrent callers.
type EngineAdapter interface {
	Adapter

	// Engine returns the engine API client, or false when container
	// operations must fall back to CLI execution over the shell.
	Engine() (*dockerclient.Client, bool)
}

// ShellAdapter is implemented by adapters that can run shell commands on
// the host. Compose operations require this capability.
type ShellAdapter interface {
	Adapter

	// Exec runs a command on the host. A nonzero exit returns both the
	// result and a KindRemoteCommand error; the caller decides whether
	// the exit code is fatal. No per-call resource outlives the return.
	Exec(ctx context.Context, cmd Command) (*ExecResult, error)
}

// Command describes one shell invocation on a host.
type Command struct {
	// Script is the sh command line to run.
	Script string

	// Dir is the working directory; empty runs in the login default.
	Dir string

	// Stdin is piped to the process when non-nil.
	Stdin []byte
}

// ExecResult holds the outcome of a completed shell invocation.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// ctxError maps a context failure observed during a remote call to the
// taxonomy. A timed-out transport is assumed wedged; the pool evicts it.
func ctxError(ctx context.Context, op string) *models.Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.WrapError(models.KindTimeout, ctx.Err(), "%s deadline exceeded", op)
	}
	return models.WrapError(models.KindCancelled, ctx.Err(), "%s cancelled", op)
}

// Shell returns the adapter's shell capability, or nil when the host
// cannot execute commands (remote tcp engine without local access).
func Shell(a Adapter) ShellAdapter {
	if sh, ok := a.(ShellAdapter); ok {
		return sh
	}
	return nil
}

// Package docker translates logical container operations into engine API
// calls or docker CLI invocations over whichever transport adapter is live
// for a host, and normalizes every outcome into the shared result shapes.
package docker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	dockerclient "github.com/docker/docker/client"

	"evalgo.org/dockhand/internal/pool"
	"evalgo.org/dockhand/internal/transport"
	"evalgo.org/dockhand/models"
)

// Executor runs container operations against registered hosts.
type Executor struct {
	pool           *pool.Pool
	commandTimeout time.Duration
}

// NewExecutor creates an executor. commandTimeout bounds each remote call.
func NewExecutor(p *pool.Pool, commandTimeout time.Duration) *Executor {
	return &Executor{pool: p, commandTimeout: commandTimeout}
}

// ListContainers lists all containers on a host, running or not. An empty
// slice is a valid result, not an error.
func (e *Executor) ListContainers(ctx context.Context, hostID string) ([]models.ContainerSummary, error) {
	conn, err := e.pool.Acquire(ctx, hostID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	if engine, ok := engineOf(conn); ok {
		list, err := engine.ContainerList(ctx, container.ListOptions{All: true})
		if err != nil {
			return nil, e.engineFailure(ctx, hostID, err, "list containers")
		}

		summaries := make([]models.ContainerSummary, 0, len(list))
		for _, c := range list {
			summaries = append(summaries, summaryFromEngine(c))
		}
		return summaries, nil
	}

	var out string
	err = conn.WithShell(func(sh transport.ShellAdapter) error {
		res, err := sh.Exec(ctx, transport.Command{
			Script: "docker ps -a --no-trunc --format '{{json .}}'",
		})
		if err != nil {
			return err
		}
		out = res.Stdout
		return nil
	})
	if err != nil {
		return nil, e.transportFailure(hostID, err)
	}

	return summariesFromCLI(out)
}

// StartContainer starts a container by ID or name. Starting an already
// running container is idempotent and reports success.
func (e *Executor) StartContainer(ctx context.Context, hostID, containerID string) (*models.OperationResult, error) {
	const op = "start_container"

	conn, err := e.pool.Acquire(ctx, hostID)
	if err != nil {
		return models.FailResult(op, err), err
	}

	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	if engine, ok := engineOf(conn); ok {
		// ContainerStart is a no-op on a running container.
		if err := engine.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
			err = e.engineFailure(ctx, hostID, err, "start container "+containerID)
			return models.FailResult(op, err), err
		}
		return models.OKResult(op, map[string]string{"id": containerID}), nil
	}

	err = conn.WithShell(func(sh transport.ShellAdapter) error {
		_, err := sh.Exec(ctx, transport.Command{
			Script: "docker start " + shellQuote(containerID),
		})
		return err
	})
	if err != nil {
		err = e.cliContainerFailure(hostID, containerID, err)
		return models.FailResult(op, err), err
	}

	return models.OKResult(op, map[string]string{"id": containerID}), nil
}

// ContainerStatus inspects a single container on a host.
func (e *Executor) ContainerStatus(ctx context.Context, hostID, containerID string) (*models.ContainerStatus, error) {
	conn, err := e.pool.Acquire(ctx, hostID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.commandTimeout)
	defer cancel()

	if engine, ok := engineOf(conn); ok {
		info, err := engine.ContainerInspect(ctx, containerID)
		if err != nil {
			return nil, e.engineFailure(ctx, hostID, err, "inspect container "+containerID)
		}
		return statusFromEngine(info), nil
	}

	var out string
	err = conn.WithShell(func(sh transport.ShellAdapter) error {
		res, err := sh.Exec(ctx, transport.Command{
			Script: "docker inspect --type container --format '{{json .}}' " + shellQuote(containerID),
		})
		if err != nil {
			return err
		}
		out = res.Stdout
		return nil
	})
	if err != nil {
		return nil, e.cliContainerFailure(hostID, containerID, err)
	}

	return statusFromCLI(out)
}

// engineOf returns the connection's engine API client when one is available.
func engineOf(conn *pool.Conn) (*dockerclient.Client, bool) {
	if ea, ok := conn.Adapter().(transport.EngineAdapter); ok {
		return ea.Engine()
	}
	return nil, false
}

// engineFailure classifies an engine API error. Unknown container IDs map
// to NotFound and keep the connection; everything else is a transport
// failure that evicts the pooled connection so the next call retries fresh.
func (e *Executor) engineFailure(ctx context.Context, hostID string, err error, op string) error {
	if dockerclient.IsErrNotFound(err) {
		return models.WrapError(models.KindNotFound, err, "%s: not found on host %s", op, hostID)
	}
	if ctx.Err() != nil {
		if ctx.Err() == context.DeadlineExceeded {
			e.pool.Invalidate(hostID)
			return models.WrapError(models.KindTimeout, err, "%s timed out on host %s", op, hostID)
		}
		return models.WrapError(models.KindCancelled, err, "%s cancelled on host %s", op, hostID)
	}
	e.pool.Invalidate(hostID)
	return models.WrapError(models.KindHostUnreachable, err, "%s failed on host %s", op, hostID)
}

// cliContainerFailure refines CLI execution errors: a nonzero exit naming
// an unknown container becomes NotFound, transport errors evict the
// connection, and other nonzero exits pass through as remote command errors.
func (e *Executor) cliContainerFailure(hostID, containerID string, err error) error {
	var typed *models.Error
	if models.IsKind(err, models.KindRemoteCommand) {
		if errors.As(err, &typed) && strings.Contains(typed.Stderr, "No such container") {
			return models.WrapError(models.KindNotFound, err,
				"container %s not found on host %s", containerID, hostID)
		}
		return err
	}
	return e.transportFailure(hostID, err)
}

// transportFailure invalidates the pooled connection on transport-level
// kinds and passes the error through untouched otherwise.
func (e *Executor) transportFailure(hostID string, err error) error {
	switch models.KindOf(err) {
	case models.KindHostUnreachable, models.KindTimeout:
		e.pool.Invalidate(hostID)
	}
	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

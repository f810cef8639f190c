package transport

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	dockerclient "github.com/docker/docker/client"

	"evalgo.org/dockhand/models"
)

// DirectAdapter speaks to a Docker engine endpoint without an intermediary.
//
// Engine addresses:
//   - unix:///var/run/docker.sock (local socket)
//   - tcp://192.168.1.10:2376 (remote engine API)
//
// A local unix socket implies shell access to the same machine, so Compose
// commands run through local process execution. A remote tcp engine offers
// no shell; Compose operations against such hosts are rejected.
type DirectAdapter struct {
	host   *models.Host
	client *dockerclient.Client
	local  bool
	sudo   bool
}

// NewDirect creates an adapter for a direct engine endpoint. The connection
// is verified by the pool's liveness probe, not here.
func NewDirect(host *models.Host) (*DirectAdapter, error) {
	cli, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(host.Address),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		return nil, models.WrapError(models.KindHostUnreachable, err,
			"failed to create engine client for host %s", host.ID)
	}

	return &DirectAdapter{
		host:   host,
		client: cli,
		local:  strings.HasPrefix(host.Address, "unix://"),
		sudo:   host.Sudo,
	}, nil
}

func (d *DirectAdapter) Kind() models.TransportKind { return models.TransportDirect }

// Engine returns the engine API client. Always available on direct hosts.
func (d *DirectAdapter) Engine() (*dockerclient.Client, bool) {
	return d.client, d.client != nil
}

// Ping probes the engine daemon.
func (d *DirectAdapter) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			return ctxError(ctx, "engine ping")
		}
		return models.WrapError(models.KindHostUnreachable, err,
			"engine ping failed for host %s", d.host.ID)
	}
	return nil
}

// Exec runs a command through the local shell. Only valid when the engine
// address is a local unix socket; a pure engine-API connection to a remote
// machine gives no way to execute processes there.
func (d *DirectAdapter) Exec(ctx context.Context, cmd Command) (*ExecResult, error) {
	if !d.local {
		return nil, models.NewError(models.KindInvalidDefinition,
			"host %s uses a remote engine endpoint without shell access", d.host.ID)
	}

	script := cmd.Script
	if d.sudo {
		script = sudoScript(script)
	}

	proc := exec.CommandContext(ctx, "sh", "-c", script)
	proc.Dir = cmd.Dir
	if cmd.Stdin != nil {
		proc.Stdin = bytes.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	res := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		if ctx.Err() != nil {
			return res, ctxError(ctx, "command")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, models.RemoteCommandError(res.ExitCode, res.Stderr,
				"command exited nonzero on host "+d.host.ID)
		}
		return res, models.WrapError(models.KindHostUnreachable, err,
			"failed to run command on host %s", d.host.ID)
	}

	return res, nil
}

// Close releases the engine client. Idempotent.
func (d *DirectAdapter) Close() error {
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

package transport

import (
	"bytes"
	"context"
	"encoding/pem"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	dockerclient "github.com/docker/docker/client"
	"golang.org/x/crypto/ssh"

	"eve.evalgo.org/network"

	"evalgo.org/dockhand/internal/credentials"
	"evalgo.org/dockhand/models"
)

const defaultSSHPort = 22

// SSHAdapter reaches a host over an authenticated SSH connection. Container
// operations prefer an engine API client tunneled over a forwarded socket;
// when the tunnel cannot be established the docker CLI is invoked as a
// remote shell command instead. Compose operations always run as remote
// shell commands in the stack's working directory.
type SSHAdapter struct {
	host   *models.Host
	client *ssh.Client
	engine *dockerclient.Client
	tunnel *network.SSHTunnel
	sudo   bool
}

// NewSSH dials the host and authenticates with the resolved key material.
// The engine tunnel is attempted best-effort; a host that refuses socket
// forwarding still works through the CLI path.
func NewSSH(host *models.Host, cred *credentials.Credential, connectTimeout time.Duration) (*SSHAdapter, error) {
	signer, err := signerFromKey(cred.Key, cred.Passphrase)
	if err != nil {
		return nil, models.WrapError(models.KindHostUnreachable, err,
			"invalid ssh key for host %s", host.ID)
	}

	port := host.Port
	if port == 0 {
		port = defaultSSHPort
	}
	addr := net.JoinHostPort(host.Address, strconv.Itoa(port))

	cfg := &ssh.ClientConfig{
		User:            host.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         connectTimeout,
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, models.WrapError(models.KindHostUnreachable, err,
			"ssh connection to host %s failed", host.ID)
	}

	adapter := &SSHAdapter{
		host:   host,
		client: client,
		sudo:   host.Sudo,
	}

	// Sudo hosts cannot forward the root-owned socket to an unprivileged
	// session, so they always go through the CLI.
	if !host.Sudo {
		adapter.openEngineTunnel(addr, cred.KeyPath, connectTimeout)
	}

	return adapter, nil
}

// signerFromKey parses a PEM private key, decrypting it when the block is
// marked encrypted and a passphrase is available.
func signerFromKey(pemBytes, passphrase []byte) (ssh.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("ssh: no key found")
	}

	if strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		return ssh.ParsePrivateKeyWithPassphrase(pemBytes, passphrase)
	}
	return ssh.ParsePrivateKey(pemBytes)
}

// openEngineTunnel forwards the remote engine socket and builds an engine
// API client over it. Failures leave the adapter on the CLI path.
func (a *SSHAdapter) openEngineTunnel(sshAddr, keyPath string, timeout time.Duration) {
	tunnel, err := network.NewSSHTunnel(sshAddr, a.host.User, keyPath, "")
	if err != nil {
		return
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, netw, addr string) (net.Conn, error) {
				return tunnel.Dial("unix", "/var/run/docker.sock")
			},
		},
	}

	engine, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost("http://docker"),
		dockerclient.WithHTTPClient(httpClient),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		_ = tunnel.Close()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := engine.Ping(ctx); err != nil {
		_ = engine.Close()
		_ = tunnel.Close()
		return
	}

	a.engine = engine
	a.tunnel = tunnel
}

func (a *SSHAdapter) Kind() models.TransportKind { return models.TransportSSH }

// Engine returns the tunneled engine client when socket forwarding worked.
func (a *SSHAdapter) Engine() (*dockerclient.Client, bool) {
	return a.engine, a.engine != nil
}

// Ping verifies the SSH connection is still alive, and the tunneled engine
// when one is open.
func (a *SSHAdapter) Ping(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := a.client.SendRequest("keepalive@openssh.com", true, nil)
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctxError(ctx, "ssh keepalive")
	case err := <-done:
		if err != nil {
			return models.WrapError(models.KindHostUnreachable, err,
				"ssh keepalive failed for host %s", a.host.ID)
		}
	}

	if a.engine != nil {
		if _, err := a.engine.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return ctxError(ctx, "engine ping")
			}
			return models.WrapError(models.KindHostUnreachable, err,
				"tunneled engine ping failed for host %s", a.host.ID)
		}
	}

	return nil
}

// Exec runs a command in a fresh SSH session. The session is closed before
// return on every path; cancellation tears it down mid-flight, which
// best-effort aborts the remote process.
func (a *SSHAdapter) Exec(ctx context.Context, cmd Command) (*ExecResult, error) {
	session, err := a.client.NewSession()
	if err != nil {
		return nil, models.WrapError(models.KindHostUnreachable, err,
			"failed to open ssh session to host %s", a.host.ID)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	if cmd.Stdin != nil {
		session.Stdin = bytes.NewReader(cmd.Stdin)
	}

	script := cmd.Script
	if cmd.Dir != "" {
		script = "cd " + shellQuote(cmd.Dir) + " && " + script
	}
	if a.sudo {
		script = sudoScript(script)
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(script) }()

	select {
	case <-ctx.Done():
		_ = session.Close()
		<-done
		return nil, ctxError(ctx, "remote command")
	case err = <-done:
	}

	res := &ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, models.RemoteCommandError(res.ExitCode, res.Stderr,
				"remote command exited nonzero on host "+a.host.ID)
		}
		return res, models.WrapError(models.KindHostUnreachable, err,
			"remote command failed on host %s", a.host.ID)
	}

	return res, nil
}

// Close releases the engine client, the tunnel, and the SSH connection.
// Idempotent and safe on a broken adapter.
func (a *SSHAdapter) Close() error {
	if a.engine != nil {
		_ = a.engine.Close()
		a.engine = nil
	}
	if a.tunnel != nil {
		_ = a.tunnel.Close()
		a.tunnel = nil
	}
	if a.client != nil {
		err := a.client.Close()
		a.client = nil
		return err
	}
	return nil
}

// shellQuote wraps s in single quotes for safe use in a remote sh command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// sudoScript elevates the whole script through one privileged shell. A bare
// "sudo -n <script>" prefix would elevate only the first simple command;
// redirections and everything after && would run as the login user.
func sudoScript(script string) string {
	return "sudo -n sh -c " + shellQuote(script)
}

package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
)

const (
	// DefaultSSHConnectTimeout is the default timeout for establishing SSH connections
	DefaultSSHConnectTimeout = 30 * time.Second
)

// Remote identifies an SSH target in user@host[:port] form.
type Remote struct {
	User string
	Host string
	Port int
}

// ParseRemote parses a user@host[:port] spec. Port defaults to 22.
func ParseRemote(spec string) (Remote, error) {
	r := Remote{Port: 22}

	at := strings.Index(spec, "@")
	if at <= 0 || at == len(spec)-1 {
		return r, fmt.Errorf("invalid remote %q: expected user@host[:port]", spec)
	}
	r.User = spec[:at]
	hostPort := spec[at+1:]

	if host, port, err := net.SplitHostPort(hostPort); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return r, fmt.Errorf("invalid remote %q: bad port %q", spec, port)
		}
		r.Host = host
		r.Port = p
	} else {
		r.Host = hostPort
	}

	if r.Host == "" {
		return r, fmt.Errorf("invalid remote %q: empty host", spec)
	}
	return r, nil
}

// SSHRunner executes commands on a remote host over an established SSH
// connection. It lets the harness benchmark an Ollama install on a GPU
// box from a workstation.
type SSHRunner struct {
	client *ssh.Client
	remote Remote
}

// DialSSH connects to the remote and returns a runner bound to the
// connection. The caller owns the connection and must Close it.
func DialSSH(ctx context.Context, remote Remote, privateKey []byte) (*SSHRunner, error) {
	if remote.Host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}
	if remote.User == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}
	if len(privateKey) == 0 {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	signer, err := ssh.ParsePrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: remote.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // GPU instances have dynamic host keys
		Timeout:         DefaultSSHConnectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", remote.Host, remote.Port)

	dialer := net.Dialer{Timeout: DefaultSSHConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake failed: %w", err)
	}

	return &SSHRunner{
		client: ssh.NewClient(sshConn, chans, reqs),
		remote: remote,
	}, nil
}

// Remote returns the target this runner is connected to.
func (r *SSHRunner) Remote() Remote {
	return r.remote
}

// Close closes the underlying SSH connection.
func (r *SSHRunner) Close() error {
	if r.client != nil {
		err := r.client.Close()
		r.client = nil
		return err
	}
	return nil
}

// Run executes the command in a fresh session. On context expiry the
// session is signalled with KILL and the partial output is discarded.
func (r *SSHRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	if r.client == nil {
		return "", "", fmt.Errorf("connection is closed")
	}

	session, err := r.client.NewSession()
	if err != nil {
		return "", "", fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(quoteCommand(name, args))
	}()

	select {
	case runErr := <-done:
		if runErr != nil {
			var exitErr *ssh.ExitError
			if errors.As(runErr, &exitErr) {
				return trimOutput(stdoutBuf.String()), trimOutput(stderrBuf.String()), &ExitError{
					Name:   name,
					Code:   exitErr.ExitStatus(),
					Stderr: trimOutput(stderrBuf.String()),
				}
			}
			return "", "", fmt.Errorf("%s: %w", name, runErr)
		}
		return trimOutput(stdoutBuf.String()), trimOutput(stderrBuf.String()), nil
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		if ctx.Err() == context.DeadlineExceeded {
			return "", "", fmt.Errorf("%s: %w", name, ErrTimeout)
		}
		return "", "", fmt.Errorf("%s: %w", name, ctx.Err())
	}
}

// LookPath checks the binary through the remote shell.
func (r *SSHRunner) LookPath(ctx context.Context, name string) error {
	_, _, err := r.Run(ctx, "command", "-v", name)
	if err != nil {
		return fmt.Errorf("%s: %w", name, ErrNotInstalled)
	}
	return nil
}

// quoteCommand builds a single shell line with each argument quoted, so
// prompts with spaces survive the remote shell.
func quoteCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, name)
	for _, a := range args {
		parts = append(parts, "'"+strings.ReplaceAll(a, "'", `'\''`)+"'")
	}
	return strings.Join(parts, " ")
}

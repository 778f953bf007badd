// Package filetransfer uploads rendered reports to a remote archive
// host over SFTP.
package filetransfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

const (
	// DefaultConnectTimeout is the default timeout for establishing SSH connections
	DefaultConnectTimeout = 30 * time.Second

	// DefaultPort is the SSH port used when the destination names none
	DefaultPort = 22
)

// Destination is a parsed upload target of the form user@host:/path.
// A path ending in "/" is treated as a directory; the local file name
// is appended on upload.
type Destination struct {
	User string
	Host string
	Port int
	Path string
}

// ParseDestination parses an scp-style destination string.
func ParseDestination(spec string) (Destination, error) {
	user, rest, ok := strings.Cut(spec, "@")
	if !ok || user == "" {
		return Destination{}, fmt.Errorf("destination %q must be user@host:/path", spec)
	}

	host, remotePath, ok := strings.Cut(rest, ":")
	if !ok || host == "" || remotePath == "" {
		return Destination{}, fmt.Errorf("destination %q must be user@host:/path", spec)
	}

	return Destination{
		User: user,
		Host: host,
		Port: DefaultPort,
		Path: remotePath,
	}, nil
}

// Credentials holds SSH connection details for file transfer
type Credentials struct {
	Host       string
	Port       int
	User       string
	PrivateKey []byte // PEM-encoded private key
}

// Validate checks that the credentials have all required fields
func (c *Credentials) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.User == "" {
		return fmt.Errorf("user cannot be empty")
	}
	if len(c.PrivateKey) == 0 {
		return fmt.Errorf("private key cannot be empty")
	}
	return nil
}

// Uploader copies report files to a remote host over SSH/SFTP
type Uploader struct {
	dest           Destination
	privateKey     []byte
	connectTimeout time.Duration
}

// Option configures an Uploader instance
type Option func(*Uploader)

// WithConnectTimeout sets the connection timeout
func WithConnectTimeout(d time.Duration) Option {
	return func(u *Uploader) {
		u.connectTimeout = d
	}
}

// WithPort overrides the destination SSH port
func WithPort(port int) Option {
	return func(u *Uploader) {
		u.dest.Port = port
	}
}

// New creates a new Uploader for the given destination
func New(dest Destination, privateKey []byte, opts ...Option) *Uploader {
	u := &Uploader{
		dest:           dest,
		privateKey:     privateKey,
		connectTimeout: DefaultConnectTimeout,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// RemotePath resolves the remote file path for a local file.
func (u *Uploader) RemotePath(localPath string) string {
	if strings.HasSuffix(u.dest.Path, "/") {
		return path.Join(u.dest.Path, filepath.Base(localPath))
	}
	return u.dest.Path
}

// Upload copies a local report file to the destination
func (u *Uploader) Upload(ctx context.Context, localPath string) error {
	if localPath == "" {
		return fmt.Errorf("local path cannot be empty")
	}

	// Verify local file exists and is readable
	localInfo, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}
	if localInfo.IsDir() {
		return fmt.Errorf("local path is a directory, not a file")
	}

	client, err := u.connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("failed to create sftp client: %w", err)
	}
	defer sftpClient.Close()

	// Open local file
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open local file: %w", err)
	}
	defer localFile.Close()

	remotePath := u.RemotePath(localPath)

	// Create parent directories if needed, ignore errors (they might already exist)
	remoteDir := path.Dir(remotePath)
	if remoteDir != "" && remoteDir != "." && remoteDir != "/" {
		_ = sftpClient.MkdirAll(remoteDir)
	}

	remoteFile, err := sftpClient.Create(remotePath)
	if err != nil {
		return fmt.Errorf("failed to create remote file: %w", err)
	}
	defer remoteFile.Close()

	// Copy with context cancellation support
	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(remoteFile, localFile)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to copy file: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("upload cancelled: %w", ctx.Err())
	}
}

// connect establishes an SSH connection to the destination host
func (u *Uploader) connect(ctx context.Context) (*ssh.Client, error) {
	creds := Credentials{
		Host:       u.dest.Host,
		Port:       u.dest.Port,
		User:       u.dest.User,
		PrivateKey: u.privateKey,
	}
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(creds.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	config := &ssh.ClientConfig{
		User: creds.User,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // Benchmark targets have unknown/dynamic host keys
		Timeout:         u.connectTimeout,
	}

	addr := fmt.Sprintf("%s:%d", creds.Host, creds.Port)

	// Check context before attempting connection
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return client, nil
}

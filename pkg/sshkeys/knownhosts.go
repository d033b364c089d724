// pkg/sshkeys/knownhosts.go

package sshkeys

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// KeyScanner fetches the host keys a server presents.
type KeyScanner interface {
	Scan(ctx context.Context, host string) ([]ssh.PublicKey, error)
}

// errKeyCaptured aborts the handshake once the host key has been seen.
var errKeyCaptured = cerr.New("host key captured")

// NetScanner performs an SSH handshake per key algorithm and records the
// offered host key without authenticating.
type NetScanner struct {
	Port       string
	Timeout    time.Duration
	Algorithms []string
}

// NewNetScanner scans port 22 for the common host key types.
func NewNetScanner() *NetScanner {
	return &NetScanner{
		Port:    "22",
		Timeout: 10 * time.Second,
		Algorithms: []string{
			ssh.KeyAlgoED25519,
			ssh.KeyAlgoECDSA256,
			ssh.KeyAlgoRSASHA512,
		},
	}
}

func (s *NetScanner) Scan(ctx context.Context, host string) ([]ssh.PublicKey, error) {
	addr := net.JoinHostPort(host, s.Port)
	var keys []ssh.PublicKey
	var lastErr error

	for _, algo := range s.Algorithms {
		key, err := s.scanOne(ctx, addr, algo)
		if err != nil {
			lastErr = err
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		if lastErr == nil {
			lastErr = cerr.New("no host key algorithms configured")
		}
		return nil, cerr.Wrapf(lastErr, "scan host keys of %s", host)
	}
	return keys, nil
}

func (s *NetScanner) scanOne(ctx context.Context, addr, algo string) (ssh.PublicKey, error) {
	d := net.Dialer{Timeout: s.Timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if s.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.Timeout))
	}

	var captured ssh.PublicKey
	cfg := &ssh.ClientConfig{
		User:              "git",
		HostKeyAlgorithms: []string{algo},
		HostKeyCallback: func(_ string, _ net.Addr, key ssh.PublicKey) error {
			captured = key
			return errKeyCaptured
		},
		Timeout: s.Timeout,
	}
	_, _, _, err = ssh.NewClientConn(conn, addr, cfg)
	if captured != nil {
		return captured, nil
	}
	if err == nil {
		err = cerr.Newf("no %s host key offered", algo)
	}
	return nil, err
}

// KnownHostsPath is the owner's ~/.ssh/known_hosts.
func (o *Owner) KnownHostsPath() string { return filepath.Join(o.SSHDir(), "known_hosts") }

// RegisterHost appends the host's keys to the owner's known_hosts. Lines
// already present are skipped. It returns the number of lines added.
func RegisterHost(rc *eos_io.RuntimeContext, scanner KeyScanner, owner *Owner, host string) (int, error) {
	logger := otelzap.Ctx(rc.Ctx)

	keys, err := scanner.Scan(rc.Ctx, host)
	if err != nil {
		return 0, err
	}

	path := owner.KnownHostsPath()
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return 0, cerr.Wrapf(err, "read %s", path)
	}
	present := map[string]bool{}
	for _, line := range strings.Split(string(existing), "\n") {
		if l := strings.TrimSpace(line); l != "" {
			present[l] = true
		}
	}

	var b strings.Builder
	b.Write(existing)
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	added := 0
	for _, key := range keys {
		line := knownhosts.Line([]string{host}, key)
		if present[line] {
			continue
		}
		b.WriteString(line + "\n")
		present[line] = true
		added++
	}
	if added == 0 {
		logger.Info("Host already in known_hosts", zap.String("host", host))
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), sshDirPerm); err != nil {
		return 0, cerr.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := eos_io.WriteFileAtomic(rc.Ctx, path, []byte(b.String()), 0644); err != nil {
		return 0, cerr.Wrap(err, "write known_hosts")
	}
	if err := os.Chown(path, owner.UID, owner.GID); err != nil {
		return added, cerr.Wrapf(err, "chown %s", path)
	}
	logger.Info("Host keys added to known_hosts", zap.String("host", host), zap.Int("added", added))
	return added, nil
}

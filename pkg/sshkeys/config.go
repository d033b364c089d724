// pkg/sshkeys/config.go

package sshkeys

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/kevinburke/ssh_config"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const sshConfigPerm = 0600

// ConfigPath is the owner's ~/.ssh/config.
func (o *Owner) ConfigPath() string { return filepath.Join(o.SSHDir(), "config") }

// EnsureHostIdentity makes ssh use keyPath when connecting to host as the
// owner. shellgit relies on this since it cannot be told which key to use.
// Existing entries are preserved; the new block is placed first because ssh
// takes the first value it finds for each option.
func EnsureHostIdentity(rc *eos_io.RuntimeContext, owner *Owner, host, keyPath string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)
	path := owner.ConfigPath()

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, cerr.Wrapf(err, "read %s", path)
	}

	if len(existing) > 0 {
		cfg, err := ssh_config.DecodeBytes(existing)
		if err != nil {
			return false, cerr.Wrapf(err, "parse %s", path)
		}
		current, err := cfg.Get(host, "IdentityFile")
		if err != nil {
			return false, cerr.Wrapf(err, "look up IdentityFile for %s", host)
		}
		if current == keyPath {
			logger.Info("SSH config already binds host to deploy key", zap.String("host", host))
			return false, nil
		}
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "Host %s\n", host)
	fmt.Fprintf(&b, "  IdentityFile %s\n", keyPath)
	b.WriteString("  User git\n")
	if len(existing) > 0 {
		b.WriteString("\n")
		b.Write(existing)
	}

	if err := os.MkdirAll(filepath.Dir(path), sshDirPerm); err != nil {
		return false, cerr.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := eos_io.WriteFileAtomic(rc.Ctx, path, b.Bytes(), sshConfigPerm); err != nil {
		return false, cerr.Wrap(err, "write ssh config")
	}
	if err := os.Chown(path, owner.UID, owner.GID); err != nil {
		return true, cerr.Wrapf(err, "chown %s", path)
	}
	logger.Info("SSH config entry written", zap.String("host", host), zap.String("path", path))
	return true, nil
}

// pkg/sshkeys/keys.go
//
// Deploy keys for pulling a private control repository over SSH.

package sshkeys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
)

const (
	DefaultKeyName = "r10k_deploy_key"
	KeyComment     = "r10k"

	privateKeyPerm = 0600
	publicKeyPerm  = 0644
	sshDirPerm     = 0700
)

// Source says where deploy key material comes from.
type Source string

const (
	SourceNone     Source = ""
	SourcePath     Source = "path"
	SourceInline   Source = "inline"
	SourceGenerate Source = "generate"
)

// DeployKey is the key material and where it ends up.
type DeployKey struct {
	Source  Source
	Private string
	Public  string
	// OriginalPath is the operator-supplied file for SourcePath.
	OriginalPath string
	// Path is the installed private key, set once written.
	Path string
}

// Owner is the local account that runs git for r10k.
type Owner struct {
	Name string
	UID  int
	GID  int
	Home string
}

// SSHDir is the owner's ~/.ssh.
func (o *Owner) SSHDir() string { return filepath.Join(o.Home, ".ssh") }

// LookupOwner resolves name through the system account database.
func LookupOwner(name string) (*Owner, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return nil, cerr.Wrapf(err, "look up deploy key owner %q", name)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, cerr.Wrapf(err, "parse uid of %q", name)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, cerr.Wrapf(err, "parse gid of %q", name)
	}
	return &Owner{Name: name, UID: uid, GID: gid, Home: u.HomeDir}, nil
}

// ReadKeyFile loads operator-supplied private key material.
func ReadKeyFile(path string) (*DeployKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "read deploy key at %s", path)
	}
	return &DeployKey{Source: SourcePath, Private: string(data), OriginalPath: path}, nil
}

// Install writes key into the owner's ssh directory as name and fixes its
// ownership and mode.
func Install(rc *eos_io.RuntimeContext, owner *Owner, name string, key *DeployKey) error {
	logger := otelzap.Ctx(rc.Ctx)
	if key.Private == "" {
		return cerr.New("deploy key has no private key material")
	}
	path, err := prepare(owner, name)
	if err != nil {
		return err
	}

	private := key.Private
	if !strings.HasSuffix(private, "\n") {
		private += "\n"
	}
	if err := eos_io.WriteFileAtomic(rc.Ctx, path, []byte(private), privateKeyPerm); err != nil {
		return cerr.Wrap(err, "write deploy key")
	}
	if key.Public != "" {
		if err := eos_io.WriteFileAtomic(rc.Ctx, path+".pub", []byte(key.Public), publicKeyPerm); err != nil {
			return cerr.Wrap(err, "write deploy public key")
		}
	}
	key.Path = path
	if err := setOwnership(owner, path); err != nil {
		return err
	}
	logger.Info("Deploy key installed", zap.String("path", path), zap.String("owner", owner.Name))
	return nil
}

// Generate creates a fresh ed25519 key pair for the owner, replacing any
// stale key of the same name.
func Generate(rc *eos_io.RuntimeContext, owner *Owner, name string) (*DeployKey, error) {
	logger := otelzap.Ctx(rc.Ctx)
	path, err := prepare(owner, name)
	if err != nil {
		return nil, err
	}

	for _, stale := range []string{path, path + ".pub"} {
		if err := os.Remove(stale); err == nil {
			logger.Info("Removed existing deploy key", zap.String("path", stale))
		} else if !os.IsNotExist(err) {
			return nil, cerr.Wrapf(err, "remove existing deploy key %s", stale)
		}
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, cerr.Wrap(err, "generate ed25519 key")
	}
	block, err := ssh.MarshalPrivateKey(priv, KeyComment)
	if err != nil {
		return nil, cerr.Wrap(err, "marshal private key")
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, cerr.Wrap(err, "create ssh public key")
	}
	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub))) + " " + KeyComment + "\n"

	key := &DeployKey{
		Source:  SourceGenerate,
		Private: string(pem.EncodeToMemory(block)),
		Public:  authorized,
	}
	if err := Install(rc, owner, name, key); err != nil {
		return nil, err
	}
	logger.Info("Generated deploy key", zap.String("path", key.Path))
	return key, nil
}

func prepare(owner *Owner, name string) (string, error) {
	if name == "" {
		name = DefaultKeyName
	}
	dir := owner.SSHDir()
	if err := os.MkdirAll(dir, sshDirPerm); err != nil {
		return "", cerr.Wrapf(err, "create %s", dir)
	}
	if err := os.Chown(dir, owner.UID, owner.GID); err != nil {
		return "", cerr.Wrapf(err, "chown %s to %s", dir, owner.Name)
	}
	return filepath.Join(dir, name), nil
}

func setOwnership(owner *Owner, path string) error {
	for _, p := range []string{path, path + ".pub"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := os.Chown(p, owner.UID, owner.GID); err != nil {
			return cerr.Wrapf(err, "chown %s to %s", p, owner.Name)
		}
	}
	if err := os.Chmod(path, privateKeyPerm); err != nil {
		return cerr.Wrapf(err, "chmod %s", path)
	}
	return nil
}

// pkg/puppet/eyaml.go
//
// hiera-eyaml key placement.

package puppet

import (
	"os"
	"os/user"
	"path/filepath"
	"strconv"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	DefaultEyamlKeyDir   = "/etc/puppetlabs/puppet/eyaml"
	EyamlPrivateKeyName  = "private_key.pkcs7.pem"
	EyamlPublicKeyName   = "public_key.pkcs7.pem"
	eyamlKeyDirMode      = 0750
	eyamlPrivateKeyMode  = 0600
	eyamlPublicKeyMode   = 0644
	puppetServiceAccount = "puppet"
)

// lookupOwner resolves an account to uid/gid; replaced in tests.
var lookupOwner = lookupAccount

// EyamlKeys is a PKCS7 key pair and where it was read from.
type EyamlKeys struct {
	Private       string
	Public        string
	PrivateSource string
	PublicSource  string
}

// EyamlPaths are the installed key locations.
type EyamlPaths struct {
	Private string
	Public  string
}

// InstallEyamlKeys writes keys into dir. When the puppet service account
// exists, the directory and files are handed to it so puppetserver can read
// them.
func InstallEyamlKeys(rc *eos_io.RuntimeContext, dir string, keys EyamlKeys) (EyamlPaths, error) {
	logger := otelzap.Ctx(rc.Ctx)
	paths := EyamlPaths{
		Private: filepath.Join(dir, EyamlPrivateKeyName),
		Public:  filepath.Join(dir, EyamlPublicKeyName),
	}

	if err := os.MkdirAll(dir, eyamlKeyDirMode); err != nil {
		return paths, cerr.Wrapf(err, "create eyaml key directory %s", dir)
	}
	if err := eos_io.WriteFileAtomic(rc.Ctx, paths.Private, []byte(keys.Private), eyamlPrivateKeyMode); err != nil {
		return paths, cerr.Wrap(err, "write eyaml private key")
	}
	if err := eos_io.WriteFileAtomic(rc.Ctx, paths.Public, []byte(keys.Public), eyamlPublicKeyMode); err != nil {
		return paths, cerr.Wrap(err, "write eyaml public key")
	}

	uid, gid, ok := lookupOwner(puppetServiceAccount)
	if ok {
		for _, p := range []string{dir, paths.Private, paths.Public} {
			if err := os.Chown(p, uid, gid); err != nil {
				return paths, cerr.Wrapf(err, "chown %s to %s", p, puppetServiceAccount)
			}
		}
	} else {
		logger.Warn("puppet account not found, leaving eyaml keys owned by the current user")
	}

	logger.Info("eyaml keys installed", zap.String("dir", dir))
	return paths, nil
}

func lookupAccount(name string) (int, int, bool) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, false
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, false
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, false
	}
	return uid, gid, true
}

// ReadEyamlKeys loads a key pair from disk, remembering the source paths.
func ReadEyamlKeys(privatePath, publicPath string) (EyamlKeys, error) {
	priv, err := os.ReadFile(privatePath)
	if err != nil {
		return EyamlKeys{}, cerr.Wrapf(err, "read eyaml private key %s", privatePath)
	}
	pub, err := os.ReadFile(publicPath)
	if err != nil {
		return EyamlKeys{}, cerr.Wrapf(err, "read eyaml public key %s", publicPath)
	}
	return EyamlKeys{
		Private:       string(priv),
		Public:        string(pub),
		PrivateSource: privatePath,
		PublicSource:  publicPath,
	}, nil
}

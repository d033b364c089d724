// pkg/r10k/r10k.go
//
// r10k pulls a control repository and deploys each branch as a Puppet
// environment. This package writes its configuration, runs the deploy and
// checks the result looks like a usable bootstrap environment.

package r10k

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const (
	DefaultConfigPath      = "/etc/puppetlabs/r10k/r10k.yaml"
	DefaultCacheDir        = "/var/cache/r10k"
	DefaultEnvironmentsDir = "/etc/puppetlabs/code/environments"
	DefaultRepoName        = "control_repo"
	DefaultOriginHost      = "github.com"

	ProviderShellGit = "shellgit"
	ProviderRugged   = "rugged"
)

// RepoName derives a short name from a repository URI: the last path
// segment with everything from its last dot removed.
//
//	git@github.com:my-org/Puppet.git -> Puppet
func RepoName(uri string) string {
	uri = strings.TrimRight(strings.TrimSpace(uri), "/")
	seg := uri
	if i := strings.LastIndexAny(seg, "/:"); i >= 0 {
		seg = seg[i+1:]
	}
	if i := strings.LastIndex(seg, "."); i >= 0 {
		seg = seg[:i]
	}
	if seg == "" {
		return DefaultRepoName
	}
	return seg
}

// OriginHost returns the host serving uri. It understands URL forms
// (ssh://, https://) and scp-like git@host:path forms.
func OriginHost(uri string) string {
	uri = strings.TrimSpace(uri)
	if strings.Contains(uri, "://") {
		if u, err := url.Parse(uri); err == nil && u.Hostname() != "" {
			return u.Hostname()
		}
		return DefaultOriginHost
	}
	if i := strings.Index(uri, ":"); i > 0 {
		host := uri[:i]
		if at := strings.LastIndex(host, "@"); at >= 0 {
			host = host[at+1:]
		}
		if host != "" {
			return host
		}
	}
	return DefaultOriginHost
}

// IsSSH reports whether uri will be fetched over SSH.
func IsSSH(uri string) bool {
	return strings.HasPrefix(uri, "git@") || strings.HasPrefix(uri, "ssh://")
}

// Source is one r10k source.
type Source struct {
	Basedir string `yaml:"basedir"`
	Remote  string `yaml:"remote"`
}

// Git holds settings for the rugged provider.
type Git struct {
	Provider   string `yaml:"provider"`
	PrivateKey string `yaml:"private_key"`
	Username   string `yaml:"username"`
}

// Config is the r10k.yaml document.
type Config struct {
	CacheDir string            `yaml:":cachedir"`
	Sources  map[string]Source `yaml:":sources"`
	Git      *Git              `yaml:"git,omitempty"`
}

// ConfigRequest collects what BuildConfig needs.
type ConfigRequest struct {
	Remote          string
	Environment     string
	EnvironmentsDir string
	CacheDir        string
	Provider        string
	DeployKeyPath   string
}

// BuildConfig renders the r10k configuration. The source is keyed by the
// bootstrap environment name. A private key is only recorded for the rugged
// provider; shellgit finds its key through the ssh client config.
func BuildConfig(req ConfigRequest) Config {
	cfg := Config{
		CacheDir: firstNonEmpty(req.CacheDir, DefaultCacheDir),
		Sources: map[string]Source{
			req.Environment: {
				Basedir: firstNonEmpty(req.EnvironmentsDir, DefaultEnvironmentsDir),
				Remote:  req.Remote,
			},
		},
	}
	if req.Provider == ProviderRugged && req.DeployKeyPath != "" {
		cfg.Git = &Git{Provider: ProviderRugged, PrivateKey: req.DeployKeyPath, Username: "git"}
	}
	return cfg
}

// WriteConfig writes cfg to path, creating the parent directory.
func WriteConfig(rc *eos_io.RuntimeContext, path string, cfg Config) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, cerr.Wrapf(err, "create %s", filepath.Dir(path))
	}
	changed, err := eos_io.WriteYAML(rc.Ctx, path, cfg, 0644)
	if err != nil {
		return false, cerr.Wrap(err, "write r10k configuration")
	}
	otelzap.Ctx(rc.Ctx).Info("r10k configuration written", zap.String("path", path), zap.Bool("changed", changed))
	return changed, nil
}

// Deploy runs "r10k deploy environment --puppetfile".
func Deploy(rc *eos_io.RuntimeContext, runner execute.Runner, bin string) error {
	if bin == "" {
		bin = "r10k"
	}
	otelzap.Ctx(rc.Ctx).Info("Deploying environments with r10k, this may take some time")
	if _, err := runner.Run(rc.Ctx, execute.Options{
		Command: bin,
		Args:    []string{"deploy", "environment", "--puppetfile"},
	}); err != nil {
		return cerr.WithHint(cerr.Wrap(err, "deploy environments with r10k"),
			"An exit code of 128 usually means git could not authenticate or verify the host key")
	}
	return nil
}

// Layout describes a deployed bootstrap environment.
type Layout struct {
	EnvironmentsDir string
	Environment     string
	HieraFile       string
}

// EnvironmentPath is <environments>/<environment>.
func (l Layout) EnvironmentPath() string {
	return filepath.Join(firstNonEmpty(l.EnvironmentsDir, DefaultEnvironmentsDir), l.Environment)
}

// HieraPath is the bootstrap hiera file inside the environment.
func (l Layout) HieraPath() string {
	return filepath.Join(l.EnvironmentPath(), l.HieraFile)
}

// ModulePath lists the module directories used for apply.
func (l Layout) ModulePath() []string {
	env := l.EnvironmentPath()
	return []string{filepath.Join(env, "modules"), filepath.Join(env, "ext-modules")}
}

// Verify checks the deploy produced the environment and its hiera file.
func (l Layout) Verify() error {
	if !eos_io.IsDir(l.EnvironmentPath()) {
		return eos_err.NewStageError("pull-deployment",
			cerr.Newf("the bootstrap environment %q does not exist under %s", l.Environment, filepath.Dir(l.EnvironmentPath())),
			"Check the branch exists in the control repository and the repository URI is correct")
	}
	if !eos_io.FileExists(l.HieraPath()) {
		return eos_err.NewStageError("pull-deployment",
			cerr.Newf("the bootstrap hiera file %q does not exist under %s", l.HieraFile, l.EnvironmentPath()),
			"Check the hiera file name passed with --bootstrap-hiera")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

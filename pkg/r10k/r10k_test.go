package r10k

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepoName(t *testing.T) {
	tests := map[string]string{
		"git@github.com:my-org/Puppet.git":          "Puppet",
		"https://github.com/my-org/control-repo.git": "control-repo",
		"https://github.com/my-org/control.repo.git": "control.repo",
		"https://example.com/repos/plain":            "plain",
		"https://example.com/repos/plain/":           "plain",
		"git@github.com:.git":                        DefaultRepoName,
		"":                                           DefaultRepoName,
	}
	for in, want := range tests {
		assert.Equal(t, want, RepoName(in), in)
	}
}

func TestRepoNameNeverEmpty(t *testing.T) {
	for _, in := range []string{".", "/", ":", "a/.", "x:.y", "..."} {
		got := RepoName(in)
		assert.NotEmpty(t, got, in)
		assert.NotContains(t, got, "/")
	}
}

func TestOriginHost(t *testing.T) {
	assert.Equal(t, "github.com", OriginHost("git@github.com:my-org/Puppet.git"))
	assert.Equal(t, "git.example.com", OriginHost("ssh://git@git.example.com:2222/org/repo.git"))
	assert.Equal(t, "gitlab.com", OriginHost("https://gitlab.com/org/repo.git"))
	assert.Equal(t, DefaultOriginHost, OriginHost("repo.git"))
	assert.True(t, IsSSH("git@github.com:org/repo.git"))
	assert.False(t, IsSSH("https://github.com/org/repo.git"))
}

func TestBuildAndWriteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r10k", "r10k.yaml")
	rc := eos_io.NewTestContext(t)

	cfg := BuildConfig(ConfigRequest{
		Remote:        "https://github.com/org/control.git",
		Environment:   "production",
		Provider:      ProviderShellGit,
		DeployKeyPath: "/root/.ssh/r10k_deploy_key",
	})
	assert.Nil(t, cfg.Git, "shellgit must not carry a private_key")

	changed, err := WriteConfig(rc, path, cfg)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `:cachedir: /var/cache/r10k
:sources:
  production:
    basedir: /etc/puppetlabs/code/environments
    remote: https://github.com/org/control.git
`, string(data))

	rugged := BuildConfig(ConfigRequest{
		Remote:        "git@github.com:org/control.git",
		Environment:   "bootstrap",
		Provider:      ProviderRugged,
		DeployKeyPath: "/root/.ssh/r10k_deploy_key",
	})
	require.NotNil(t, rugged.Git)
	_, err = WriteConfig(rc, path, rugged)
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "private_key: /root/.ssh/r10k_deploy_key"))
	assert.True(t, strings.Contains(string(data), "provider: rugged"))
}

func TestDeploy(t *testing.T) {
	runner := execute.NewRecorder()
	require.NoError(t, Deploy(eos_io.NewTestContext(t), runner, ""))
	assert.Equal(t, []string{"r10k deploy environment --puppetfile"}, runner.Calls)

	runner = execute.NewRecorder().On("/usr/local/bin/r10k", execute.Response{ExitCode: 128})
	err := Deploy(eos_io.NewTestContext(t), runner, "/usr/local/bin/r10k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "128")
}

func TestLayoutVerify(t *testing.T) {
	base := t.TempDir()
	l := Layout{EnvironmentsDir: base, Environment: "production", HieraFile: "hiera.bootstrap.yaml"}

	err := l.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")

	require.NoError(t, os.MkdirAll(l.EnvironmentPath(), 0755))
	err = l.Verify()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hiera.bootstrap.yaml")

	require.NoError(t, os.WriteFile(l.HieraPath(), []byte("---\n"), 0644))
	assert.NoError(t, l.Verify())
	assert.Equal(t, []string{
		filepath.Join(base, "production", "modules"),
		filepath.Join(base, "production", "ext-modules"),
	}, l.ModulePath())
}

package puppet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionWhitelist(t *testing.T) {
	assert.Len(t, RegistrationExtensions, 25)
	assert.Len(t, AuthorizationExtensions, 2)
	assert.True(t, IsAllowedExtension("pp_role"))
	assert.True(t, IsAllowedExtension("pp_auth_role"))
	assert.False(t, IsAllowedExtension("role"))
	assert.False(t, IsAllowedExtension("PP_ROLE"))
}

func TestParseExtensionAttributes(t *testing.T) {
	attrs, err := ParseExtensionAttributes(`{"pp_role":"web","pp_environment":"prod"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"pp_environment", "pp_role"}, attrs.Keys())

	attrs, err = ParseExtensionAttributes("  ")
	require.NoError(t, err)
	assert.Nil(t, attrs)

	_, err = ParseExtensionAttributes(`["pp_role"]`)
	assert.Error(t, err)
}

func TestWriteCSRAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csr_attributes.yaml")
	rc := eos_io.NewTestContext(t)
	attrs := ExtensionAttributes{"pp_role": "web", "pp_environment": "prod"}

	changed, err := WriteCSRAttributes(rc, path, attrs)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "extension_requests:\n  pp_environment: prod\n  pp_role: web\n", string(data))

	changed, err = WriteCSRAttributes(rc, path, attrs)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestWriteCSRAttributesRejectsWholeBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csr_attributes.yaml")
	attrs := ExtensionAttributes{"pp_role": "web", "role": "db", "owner": "me"}

	_, err := WriteCSRAttributes(eos_io.NewTestContext(t), path, attrs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role")
	assert.Contains(t, err.Error(), "owner")
	cat, ok := eos_err.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, eos_err.CategoryValidation, cat)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "nothing may be written when any key is rejected")
}

func newTestClient(t *testing.T) (*Client, *execute.Recorder) {
	t.Helper()
	dir := t.TempDir()
	bin := filepath.Join(dir, "puppet")
	conf := filepath.Join(dir, "puppet.conf")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(conf, nil, 0644))
	runner := execute.NewRecorder()
	return &Client{Runner: runner, Bin: bin, ConfigFile: conf, Out: &bytes.Buffer{}}, runner
}

func TestSetConfig(t *testing.T) {
	c, runner := newTestClient(t)
	err := c.SetConfig(eos_io.NewTestContext(t), []Setting{
		{Section: "main", Key: "server", Value: "puppet.example.com"},
		{Section: "agent", Key: "environment", Value: "production"},
	})
	require.NoError(t, err)
	require.Len(t, runner.Calls, 2)
	assert.Equal(t, c.Bin+" config set server puppet.example.com --config "+c.ConfigFile+" --section main", runner.Calls[0])
	assert.Equal(t, c.Bin+" config set environment production --config "+c.ConfigFile+" --section agent", runner.Calls[1])
}

func TestSetConfigPreconditions(t *testing.T) {
	c, runner := newTestClient(t)
	rc := eos_io.NewTestContext(t)

	err := c.SetConfig(rc, []Setting{{Section: "bogus", Key: "k", Value: "v"}})
	assert.Error(t, err)

	c.ConfigFile = filepath.Join(t.TempDir(), "missing.conf")
	err = c.SetConfig(rc, []Setting{{Section: "main", Key: "k", Value: "v"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.conf")
	assert.Empty(t, runner.Calls)
}

func TestSetConfigStopsOnFailure(t *testing.T) {
	c, runner := newTestClient(t)
	runner.On(c.Bin+" config set server", execute.Response{ExitCode: 1, Output: "Error: permission denied"})
	err := c.SetConfig(eos_io.NewTestContext(t), []Setting{
		{Section: "main", Key: "server", Value: "p"},
		{Section: "agent", Key: "environment", Value: "e"},
	})
	require.Error(t, err)
	assert.Len(t, runner.Calls, 1)
}

func TestAgentTestExitCodes(t *testing.T) {
	for _, tt := range []struct {
		code int
		ok   bool
	}{{0, true}, {2, true}, {1, false}, {4, false}, {6, false}} {
		c, runner := newTestClient(t)
		runner.On(c.Bin+" agent", execute.Response{ExitCode: tt.code})
		err := c.AgentTest(eos_io.NewTestContext(t), 30)
		if tt.ok {
			assert.NoError(t, err, "exit %d", tt.code)
		} else {
			require.Error(t, err, "exit %d", tt.code)
			cat, _ := eos_err.CategoryOf(err)
			assert.Equal(t, eos_err.CategoryConvergence, cat)
		}
		assert.Equal(t, c.Bin+" agent --test --detailed-exitcodes --waitforcert 30", runner.Calls[0])
	}
}

func TestApplyArgs(t *testing.T) {
	req := ApplyRequest{
		HieraConfig: "/etc/puppetlabs/code/environments/production/hiera.bootstrap.yaml",
		ModulePath:  []string{"/env/modules", "/env/ext-modules"},
		Class:       "role::puppetserver",
	}
	assert.Equal(t, []string{
		"apply",
		"--hiera_config=/etc/puppetlabs/code/environments/production/hiera.bootstrap.yaml",
		"--modulepath=/env/modules:/env/ext-modules",
		"-e", "include role::puppetserver",
		"--detailed-exitcodes",
	}, req.Args())

	c, _ := newTestClient(t)
	assert.Error(t, c.Apply(eos_io.NewTestContext(t), ApplyRequest{}))
}

func TestGemInstaller(t *testing.T) {
	runner := execute.NewRecorder().
		On("gem list -i hiera-eyaml", execute.Response{ExitCode: 1}).
		On("/opt/puppetlabs/bin/puppetserver gem list -i hiera-eyaml", execute.Response{Output: "true"})
	rc := eos_io.NewTestContext(t)

	system := &GemInstaller{Runner: runner}
	changed, err := system.Ensure(rc, "hiera-eyaml", "3.4.0")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, runner.Ran("gem install hiera-eyaml -v 3.4.0"))

	server := &GemInstaller{Runner: runner, Puppetserver: DefaultPuppetserverBin}
	changed, err = server.Ensure(rc, "hiera-eyaml", "")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, runner.Ran(DefaultPuppetserverBin+" gem install"))
}

func TestInstallEyamlKeys(t *testing.T) {
	lookupOwner = func(string) (int, int, bool) { return 0, 0, false }
	t.Cleanup(func() { lookupOwner = lookupAccount })

	dir := filepath.Join(t.TempDir(), "eyaml")
	paths, err := InstallEyamlKeys(eos_io.NewTestContext(t), dir, EyamlKeys{Private: "PRIV", Public: "PUB"})
	require.NoError(t, err)

	info, err := os.Stat(paths.Private)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	info, err = os.Stat(paths.Public)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	data, err := os.ReadFile(paths.Private)
	require.NoError(t, err)
	assert.Equal(t, "PRIV", string(data))
	assert.Equal(t, filepath.Join(dir, "public_key.pkcs7.pem"), paths.Public)
}

package hosts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, hostsContent string) (*Manager, *execute.Recorder) {
	t.Helper()
	dir := t.TempDir()
	runner := execute.NewRecorder()
	m := &Manager{
		Runner:       runner,
		HostnameFile: filepath.Join(dir, "hostname"),
		HostsFile:    filepath.Join(dir, "hosts"),
	}
	require.NoError(t, os.WriteFile(m.HostsFile, []byte(hostsContent), 0644))
	return m, runner
}

func TestReplaceHostname(t *testing.T) {
	in := "127.0.0.1 localhost\n127.0.1.1 web01 # provisioned\n10.0.0.5 other\n"
	want := "127.0.0.1 localhost\n127.0.1.1 web01.example.com # provisioned\n10.0.0.5 other\n"
	assert.Equal(t, want, ReplaceHostname(in, "web01", "web01.example.com"))
	assert.Equal(t, in, ReplaceHostname(in, "", "x"))
}

func TestSetHostname(t *testing.T) {
	m, runner := newTestManager(t, "127.0.0.1 localhost\n127.0.1.1 web01\n")
	rc := eos_io.NewTestContext(t)

	changed, err := m.Set(rc, "web01", "web01.example.com")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"hostname web01.example.com"}, runner.Calls)

	data, err := os.ReadFile(m.HostnameFile)
	require.NoError(t, err)
	assert.Equal(t, "web01.example.com\n", string(data))

	data, err = os.ReadFile(m.HostsFile)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n127.0.1.1 web01.example.com\n", string(data))
}

func TestSetHostnameNoop(t *testing.T) {
	m, runner := newTestManager(t, "127.0.0.1 localhost\n127.0.1.1 db.example.com db # local\n")
	require.NoError(t, os.WriteFile(m.HostnameFile, []byte("db.example.com\n"), 0644))

	changed, err := m.Set(eos_io.NewTestContext(t), "db.example.com", "db.example.com")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, runner.Calls)
}

func TestSetHostnameRepairsFilesAfterPartialRun(t *testing.T) {
	// kernel already renamed, files still carry the old name
	m, runner := newTestManager(t, "127.0.0.1 localhost\n127.0.1.1 web01\n")
	require.NoError(t, os.WriteFile(m.HostnameFile, []byte("web01\n"), 0644))

	changed, err := m.Set(eos_io.NewTestContext(t), "web01.example.com", "web01.example.com")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, runner.Calls, "kernel name is already right")

	data, err := os.ReadFile(m.HostnameFile)
	require.NoError(t, err)
	assert.Equal(t, "web01.example.com\n", string(data))
	data, err = os.ReadFile(m.HostsFile)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n127.0.1.1 web01.example.com\n", string(data))

	changed, err = m.Set(eos_io.NewTestContext(t), "web01.example.com", "web01.example.com")
	require.NoError(t, err)
	assert.False(t, changed, "second pass converges")
}

func TestSetHostnameWritesMissingHostnameFile(t *testing.T) {
	m, runner := newTestManager(t, "127.0.1.1 db.example.com\n")

	changed, err := m.Set(eos_io.NewTestContext(t), "db.example.com", "db.example.com")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, runner.Calls)
	data, err := os.ReadFile(m.HostnameFile)
	require.NoError(t, err)
	assert.Equal(t, "db.example.com\n", string(data))
	hostsData, err := os.ReadFile(m.HostsFile)
	require.NoError(t, err)
	assert.Equal(t, "127.0.1.1 db.example.com\n", string(hostsData))
}

func TestLists(t *testing.T) {
	content := "127.0.0.1 localhost\n# 10.0.0.1 old.example.com\n127.0.1.1 web01.example.com web01 # web01.test\n"
	assert.True(t, Lists(content, "web01"))
	assert.True(t, Lists(content, "web01.example.com"))
	assert.False(t, Lists(content, "old.example.com"))
	assert.False(t, Lists(content, "web01.test"))
	assert.False(t, Lists(content, "127.0.1.1"))
}

func TestSetHostnameCommandFails(t *testing.T) {
	m, runner := newTestManager(t, "")
	runner.On("hostname", execute.Response{ExitCode: 1, Output: "hostname: you must be root"})
	_, err := m.Set(eos_io.NewTestContext(t), "a", "b.example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be root")
}

func TestLoadEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "host_entries.jsonc")
	content := `[
  // puppet server
  {"ip": "192.168.56.10", "hostname": "puppet.example.com"},
  /* agent */
  {"ip": "192.168.56.11", "hostname": "agent01.example.com"},
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := LoadEntries(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{IP: "192.168.56.10", Hostname: "puppet.example.com"},
		{IP: "192.168.56.11", Hostname: "agent01.example.com"},
	}, entries)
}

func TestLoadEntriesInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.jsonc")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"ip": "10.0.0.1"}]`), 0644))
	_, err := LoadEntries(bad)
	assert.Error(t, err)

	badIP := filepath.Join(dir, "bad-ip.jsonc")
	require.NoError(t, os.WriteFile(badIP, []byte(`[{"ip": "10.0.0.300", "hostname": "db.example.com"}]`), 0644))
	_, err = LoadEntries(badIP)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.jsonc")
	require.NoError(t, os.WriteFile(empty, []byte(`// nothing
[]`), 0644))
	_, err = LoadEntries(empty)
	assert.Error(t, err)
}

func TestAddEntriesIdempotent(t *testing.T) {
	m, _ := newTestManager(t, "127.0.0.1 localhost\n# 10.0.0.9 commented.example.com\n192.168.56.10 puppet.example.com")
	rc := eos_io.NewTestContext(t)
	entries := []Entry{
		{IP: "192.168.56.10", Hostname: "puppet.example.com"},
		{IP: "192.168.56.11", Hostname: "agent01.example.com"},
		{IP: "10.0.0.9", Hostname: "commented.example.com"},
	}

	added, err := m.AddEntries(rc, entries)
	require.NoError(t, err)
	assert.Equal(t, entries[1:], added)

	data, err := os.ReadFile(m.HostsFile)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n# 10.0.0.9 commented.example.com\n192.168.56.10 puppet.example.com\n"+
		"192.168.56.11 agent01.example.com\n10.0.0.9 commented.example.com\n", string(data))

	added, err = m.AddEntries(rc, entries)
	require.NoError(t, err)
	assert.Empty(t, added)
}

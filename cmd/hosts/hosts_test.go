package hosts

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/hosts"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T, entries string) (*hosts.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	m := &hosts.Manager{
		Runner:       execute.NewRecorder(),
		HostnameFile: filepath.Join(dir, "hostname"),
		HostsFile:    filepath.Join(dir, "hosts"),
	}
	require.NoError(t, os.WriteFile(m.HostsFile, []byte("127.0.0.1 localhost\n10.0.0.5 puppet.example.com\n"), 0644))
	path := filepath.Join(dir, "host_entries.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(entries), 0644))
	return m, path
}

func TestAddEntries(t *testing.T) {
	m, path := setup(t, `[
  // already there
  {"ip": "10.0.0.5", "hostname": "puppet.example.com"},
  {"ip": "10.0.0.6", "hostname": "db.example.com"},
]`)
	var out bytes.Buffer

	require.NoError(t, addEntries(eos_io.NewTestContext(t), m, &interaction.Printer{Out: &out}, path))

	data, err := os.ReadFile(m.HostsFile)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n10.0.0.5 puppet.example.com\n10.0.0.6 db.example.com\n", string(data))
	assert.Contains(t, out.String(), "Added 10.0.0.6 db.example.com")
	assert.NotContains(t, out.String(), "puppet.example.com")
}

func TestAddEntriesNothingNew(t *testing.T) {
	m, path := setup(t, `[{"ip": "10.0.0.5", "hostname": "puppet.example.com"}]`)
	var out bytes.Buffer

	require.NoError(t, addEntries(eos_io.NewTestContext(t), m, &interaction.Printer{Out: &out}, path))
	assert.Contains(t, out.String(), "All 1 entries are already present")
}

func TestAddEntriesBadFile(t *testing.T) {
	m, path := setup(t, `[{"ip": "10.0.0.7"}]`)

	err := addEntries(eos_io.NewTestContext(t), m, &interaction.Printer{Out: &bytes.Buffer{}}, path)
	require.Error(t, err)
	cat, ok := eos_err.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, eos_err.CategoryValidation, cat)
}

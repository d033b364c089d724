// pkg/hosts/hostname.go
//
// Hostname management: the running hostname, the persisted hostname file
// and the names listed in the hosts file.

package hosts

import (
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Manager changes the host's name. Paths are fields so tests can use a
// temp directory.
type Manager struct {
	Runner       execute.Runner
	HostnameFile string
	HostsFile    string
}

// NewManager returns a Manager for the real host files.
func NewManager(runner execute.Runner) *Manager {
	return &Manager{
		Runner:       runner,
		HostnameFile: "/etc/hostname",
		HostsFile:    "/etc/hosts",
	}
}

// Current returns the kernel hostname.
func Current() (string, error) {
	name, err := os.Hostname()
	if err != nil {
		return "", cerr.Wrap(err, "read current hostname")
	}
	return name, nil
}

// Set brings the kernel hostname, the hostname file and the hosts file in
// line with desired. Each is checked on its own, so a run that stopped half
// way is completed by the next one. It reports whether anything changed.
func (m *Manager) Set(rc *eos_io.RuntimeContext, current, desired string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	persisted, err := m.persisted()
	if err != nil {
		return false, err
	}
	hostsData, err := os.ReadFile(m.HostsFile)
	if err != nil {
		return false, cerr.Wrapf(err, "read %s", m.HostsFile)
	}
	hostsContent := string(hostsData)

	// INTERVENE
	changed := false
	if current != desired {
		logger.Info("Changing hostname", zap.String("from", current), zap.String("to", desired))
		if _, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "hostname", Args: []string{desired}}); err != nil {
			return false, cerr.Wrapf(err, "set hostname to %s", desired)
		}
		changed = true
	}

	if persisted != desired {
		if err := eos_io.WriteFileAtomic(rc.Ctx, m.HostnameFile, []byte(desired+"\n"), 0644); err != nil {
			return changed, cerr.Wrapf(err, "persist hostname to %s", m.HostnameFile)
		}
		logger.Info("Persisted hostname", zap.String("path", m.HostnameFile), zap.String("previous", persisted))
		changed = true
	}

	if !Lists(hostsContent, desired) {
		updated := hostsContent
		for _, old := range []string{current, persisted} {
			if old != "" && old != desired {
				updated = ReplaceHostname(updated, old, desired)
			}
		}
		if updated != hostsContent {
			if err := eos_io.WriteFileAtomic(rc.Ctx, m.HostsFile, []byte(updated), 0644); err != nil {
				return changed, cerr.Wrapf(err, "update %s", m.HostsFile)
			}
			logger.Info("Updated hosts file", zap.String("path", m.HostsFile))
			changed = true
		}
	}

	// EVALUATE
	if !changed {
		logger.Info("Hostname already set", zap.String("hostname", desired))
	}
	return changed, nil
}

// persisted returns the name in the hostname file, empty when it is absent.
func (m *Manager) persisted() (string, error) {
	data, err := os.ReadFile(m.HostnameFile)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", cerr.Wrapf(err, "read %s", m.HostnameFile)
	}
	return strings.TrimSpace(string(data)), nil
}

// Lists reports whether name appears as a host name on any address line.
func Lists(content, name string) bool {
	for _, line := range strings.Split(content, "\n") {
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		for _, f := range fields[min(1, len(fields)):] {
			if f == name {
				return true
			}
		}
	}
	return false
}

// ReplaceHostname substitutes old with new on every line containing old.
// It is a substring replacement, so addresses and trailing comments on the
// line survive.
func ReplaceHostname(content, old, new string) string {
	if old == "" {
		return content
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.Contains(line, old) {
			lines[i] = strings.ReplaceAll(line, old, new)
		}
	}
	return strings.Join(lines, "\n")
}

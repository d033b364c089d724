// pkg/hosts/entries.go

package hosts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/tidwall/jsonc"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Entry is one static name mapping.
type Entry struct {
	IP       string `json:"ip" validate:"required,ip"`
	Hostname string `json:"hostname" validate:"required,hostname_rfc1123"`
}

var validate = validator.New()

// LoadEntries reads a JSON-with-comments array of entries.
func LoadEntries(path string) ([]Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, cerr.Wrapf(err, "read host entries from %s", path)
	}
	var entries []Entry
	if err := json.Unmarshal(jsonc.ToJSON(raw), &entries); err != nil {
		return nil, cerr.Wrapf(err, "parse host entries in %s", path)
	}
	if len(entries) == 0 {
		return nil, cerr.Newf("no host entries found in %s", path)
	}
	for _, e := range entries {
		if err := validate.Struct(e); err != nil {
			return nil, cerr.Wrapf(err, "invalid host entry %+v", e)
		}
	}
	return entries, nil
}

// AddEntries appends entries whose hostname is not already the primary
// name on some line of the hosts file. It returns the entries it added.
func (m *Manager) AddEntries(rc *eos_io.RuntimeContext, entries []Entry) ([]Entry, error) {
	logger := otelzap.Ctx(rc.Ctx)

	data, err := os.ReadFile(m.HostsFile)
	if err != nil {
		return nil, cerr.Wrapf(err, "read %s", m.HostsFile)
	}
	known := primaryNames(string(data))

	var added []Entry
	var b strings.Builder
	b.Write(data)
	if len(data) > 0 && !strings.HasSuffix(string(data), "\n") {
		b.WriteString("\n")
	}
	for _, e := range entries {
		if known[e.Hostname] {
			logger.Info("Host entry already exists", zap.String("hostname", e.Hostname))
			continue
		}
		fmt.Fprintf(&b, "%s %s\n", e.IP, e.Hostname)
		known[e.Hostname] = true
		added = append(added, e)
	}

	if len(added) == 0 {
		return nil, nil
	}
	if err := eos_io.WriteFileAtomic(rc.Ctx, m.HostsFile, []byte(b.String()), 0644); err != nil {
		return nil, cerr.Wrapf(err, "update %s", m.HostsFile)
	}
	logger.Info("Host entries added", zap.Int("count", len(added)))
	return added, nil
}

func primaryNames(content string) map[string]bool {
	names := map[string]bool{}
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if fields := strings.Fields(trimmed); len(fields) >= 2 {
			names[fields[1]] = true
		}
	}
	return names
}

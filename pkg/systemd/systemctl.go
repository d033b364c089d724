// pkg/systemd/systemctl.go

package systemd

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Manager runs systemctl through a Runner.
type Manager struct {
	Runner execute.Runner
}

// IsEnabled reports whether unit starts at boot.
func (m *Manager) IsEnabled(rc *eos_io.RuntimeContext, unit string) (bool, error) {
	out, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "systemctl", Args: []string{"is-enabled", unit}})
	state := strings.TrimSpace(out)
	switch code := execute.ExitCode(err); {
	case code == 0:
		return state == "enabled" || state == "enabled-runtime" || state == "", nil
	case code > 0:
		// is-enabled exits non-zero for disabled, masked and unknown units
		return false, nil
	default:
		return false, cerr.Wrapf(err, "query %s", unit)
	}
}

// Enable makes unit start at boot. It returns false when it already does.
func (m *Manager) Enable(rc *eos_io.RuntimeContext, unit string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	enabled, err := m.IsEnabled(rc, unit)
	if err != nil {
		return false, err
	}
	if enabled {
		logger.Info("Service already enabled", zap.String("unit", unit))
		return false, nil
	}

	// INTERVENE
	if _, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "systemctl", Args: []string{"enable", unit}}); err != nil {
		return false, cerr.Wrapf(err, "enable %s", unit)
	}

	// EVALUATE
	logger.Info("Service enabled", zap.String("unit", unit))
	return true, nil
}

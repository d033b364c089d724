// pkg/packages/manager.go

package packages

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Manager wraps the host package tooling.
type Manager interface {
	IsInstalled(rc *eos_io.RuntimeContext, name string) (bool, error)
	InstallArchive(rc *eos_io.RuntimeContext, path string) error
	Install(rc *eos_io.RuntimeContext, name, exactVersion string) error
}

// NewManager picks the implementation matching the detected package family.
func NewManager(facts *platform.Facts, runner execute.Runner) (Manager, error) {
	switch facts.PackageManager {
	case platform.Apt:
		return &AptManager{Runner: runner, Codename: facts.OSVersion}, nil
	case platform.Yum:
		return &YumManager{Runner: runner}, nil
	}
	return nil, cerr.Newf("unsupported package manager %q", facts.PackageManager)
}

// AptManager drives dpkg and apt-get.
type AptManager struct {
	Runner   execute.Runner
	Codename string
}

func (m *AptManager) IsInstalled(rc *eos_io.RuntimeContext, name string) (bool, error) {
	out, err := m.Runner.Run(rc.Ctx, execute.Options{
		Command: "dpkg-query",
		Args:    []string{"-W", "-f=${Status}", name},
	})
	if err != nil {
		if execute.ExitCode(err) > 0 {
			return false, nil
		}
		return false, cerr.Wrapf(err, "query package %s", name)
	}
	return strings.Contains(out, "install ok installed"), nil
}

func (m *AptManager) InstallArchive(rc *eos_io.RuntimeContext, path string) error {
	_, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "dpkg", Args: []string{"-i", path}})
	return cerr.Wrapf(err, "install %s", path)
}

// Install refreshes the package index and installs name, pinned to
// <version>-1<codename> when an exact version is requested.
func (m *AptManager) Install(rc *eos_io.RuntimeContext, name, exactVersion string) error {
	logger := otelzap.Ctx(rc.Ctx)

	if _, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "apt-get", Args: []string{"update"}}); err != nil {
		return cerr.Wrap(err, "apt-get update")
	}

	pkg := name
	if exactVersion != "" {
		pkg = name + "=" + exactVersion + "-1" + m.Codename
	}
	logger.Info("Installing package", zap.String("package", pkg))

	_, err := m.Runner.Run(rc.Ctx, execute.Options{
		Command: "apt-get",
		Args:    []string{"install", "-y", pkg},
	})
	return cerr.Wrapf(err, "install %s", pkg)
}

// YumManager drives rpm and yum.
type YumManager struct {
	Runner execute.Runner
}

func (m *YumManager) IsInstalled(rc *eos_io.RuntimeContext, name string) (bool, error) {
	_, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "rpm", Args: []string{"-q", name}})
	if err == nil {
		return true, nil
	}
	if execute.ExitCode(err) > 0 {
		return false, nil
	}
	return false, cerr.Wrapf(err, "query package %s", name)
}

func (m *YumManager) InstallArchive(rc *eos_io.RuntimeContext, path string) error {
	_, err := m.Runner.Run(rc.Ctx, execute.Options{Command: "rpm", Args: []string{"-i", path}})
	return cerr.Wrapf(err, "install %s", path)
}

// Install installs name, pinned to name-<version> when an exact version is requested.
func (m *YumManager) Install(rc *eos_io.RuntimeContext, name, exactVersion string) error {
	pkg := name
	if exactVersion != "" {
		pkg = name + "-" + exactVersion
	}
	otelzap.Ctx(rc.Ctx).Info("Installing package", zap.String("package", pkg))

	_, err := m.Runner.Run(rc.Ctx, execute.Options{
		Command: "yum",
		Args:    []string{"install", "-y", pkg},
	})
	return cerr.Wrapf(err, "install %s", pkg)
}

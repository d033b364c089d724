// pkg/packages/installer.go

package packages

import (
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Installer puts a Puppet application on the host: release archive first,
// then the application package from the newly enabled repository.
type Installer struct {
	Manager    Manager
	Downloader Downloader
	Facts      *platform.Facts
	StagingDir string
}

// Ensure installs app at version unless its package is already present. It
// reports whether anything changed.
func (i *Installer) Ensure(rc *eos_io.RuntimeContext, app App, v Version) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx).With(zap.String("app", string(app)), zap.String("version", v.String()))

	// ASSESS
	installed, err := i.Manager.IsInstalled(rc, app.PackageName())
	if err != nil {
		return false, err
	}
	if installed {
		logger.Info("Package already installed, nothing to do", zap.String("package", app.PackageName()))
		return false, nil
	}

	// INTERVENE
	if err := i.ensureRelease(rc, app, v.Major); err != nil {
		return false, err
	}
	if err := i.Manager.Install(rc, app.PackageName(), v.Exact); err != nil {
		return false, err
	}

	// EVALUATE
	installed, err = i.Manager.IsInstalled(rc, app.PackageName())
	if err != nil {
		return true, err
	}
	if !installed {
		return true, cerr.Newf("%s reported success but is not installed", app.PackageName())
	}
	logger.Info("Package installed", zap.String("package", app.PackageName()))
	return true, nil
}

func (i *Installer) ensureRelease(rc *eos_io.RuntimeContext, app App, major string) error {
	logger := otelzap.Ctx(rc.Ctx)
	release := ReleasePackage(app, major)

	present, err := i.Manager.IsInstalled(rc, release)
	if err != nil {
		return err
	}
	if present {
		logger.Debug("Release package already installed", zap.String("package", release))
		return nil
	}

	url, err := ReleaseURL(app, major, i.Facts)
	if err != nil {
		return err
	}
	dest := StagingPath(i.StagingDir, app, major, i.Facts.PackageManager)
	if err := i.Downloader.Download(rc.Ctx, url, dest); err != nil {
		return err
	}
	return i.Manager.InstallArchive(rc, dest)
}

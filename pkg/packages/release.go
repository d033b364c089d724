// pkg/packages/release.go

package packages

import (
	"fmt"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	cerr "github.com/cockroachdb/errors"
)

// App is one of the Puppet applications this tool can install.
type App string

const (
	Agent  App = "agent"
	Server App = "server"
	Bolt   App = "bolt"
)

// ParseApp accepts agent, server or bolt.
func ParseApp(s string) (App, error) {
	switch App(s) {
	case Agent, Server, Bolt:
		return App(s), nil
	}
	return "", cerr.Newf("unknown application %q (expected agent, server or bolt)", s)
}

// PackageName is the OS package that provides the application.
func (a App) PackageName() string {
	switch a {
	case Server:
		return "puppetserver"
	case Bolt:
		return "puppet-bolt"
	default:
		return "puppet-agent"
	}
}

// ReleasePackage is the name of the repository-release package that enables
// the vendor repository for app.
func ReleasePackage(app App, major string) string {
	if app == Bolt {
		return "puppet-tools-release"
	}
	return fmt.Sprintf("puppet%s-release", major)
}

// ReleaseURL returns the vendor URL of the repository-release archive.
func ReleaseURL(app App, major string, facts *platform.Facts) (string, error) {
	if app != Bolt && major == "" {
		return "", cerr.Newf("a major version is required to locate the %s release archive", app)
	}
	switch facts.PackageManager {
	case platform.Apt:
		if app == Bolt {
			return fmt.Sprintf("https://apt.puppet.com/puppet-tools-release-%s.deb", facts.OSVersion), nil
		}
		return fmt.Sprintf("https://apt.puppet.com/puppet%s-release-%s.deb", major, facts.OSVersion), nil
	case platform.Yum:
		if app == Bolt {
			return fmt.Sprintf("https://yum.puppet.com/puppet-tools-release-el-%s.noarch.rpm", facts.OSVersion), nil
		}
		return fmt.Sprintf("https://yum.puppetlabs.com/puppet%s-release-el-%s.noarch.rpm", major, facts.OSVersion), nil
	}
	return "", cerr.Newf("unsupported package manager %q", facts.PackageManager)
}

// StagingPath is where the release archive is downloaded. The extension
// follows the package family.
func StagingPath(dir string, app App, major string, pm platform.PackageManager) string {
	ext := "deb"
	if pm == platform.Yum {
		ext = "rpm"
	}
	if major == "" {
		major = "latest"
	}
	return filepath.Join(dir, fmt.Sprintf("puppet-%s-release-%s.%s", app, major, ext))
}

// pkg/platform/detector.go
//
// Environment probe: which distribution is this, which package manager does
// it use, and are we root. Everything downstream takes the resulting Facts
// as an explicit argument.

package platform

import (
	"os"
	"strings"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// PackageManager identifies the package family of the host.
type PackageManager string

const (
	Apt PackageManager = "apt"
	Yum PackageManager = "yum"
)

// Facts is immutable after detection.
type Facts struct {
	// OSID is the os-release ID: ubuntu, debian, centos or rhel.
	OSID string
	// OSVersion is the release codename for apt hosts (e.g. "jammy") and the
	// numeric major version for yum hosts (e.g. "8").
	OSVersion      string
	PackageManager PackageManager
}

var supportedIDs = map[string]bool{
	"ubuntu": true,
	"debian": true,
	"centos": true,
	"rhel":   true,
}

// Probe carries the host paths it inspects so tests can point it at fixtures.
type Probe struct {
	OSReleasePath string
	AptPath       string
	YumPath       string
	Geteuid       func() int
}

// NewProbe returns a Probe for the real host.
func NewProbe() *Probe {
	return &Probe{
		OSReleasePath: "/etc/os-release",
		AptPath:       "/usr/bin/apt",
		YumPath:       "/usr/bin/yum",
		Geteuid:       os.Geteuid,
	}
}

// Detect reads os-release and looks for a package manager binary.
func (p *Probe) Detect(rc *eos_io.RuntimeContext) (*Facts, error) {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS
	data, err := os.ReadFile(p.OSReleasePath)
	if err != nil {
		return nil, eos_err.NewEnvironmentError("cannot read "+p.OSReleasePath, err,
			"puppetstrap supports Ubuntu, Debian, CentOS and RHEL hosts")
	}
	info := ParseOSRelease(string(data))
	logger.Debug("Parsed os-release", zap.Any("fields", info))

	id := strings.ToLower(info["ID"])
	if !supportedIDs[id] {
		return nil, eos_err.NewEnvironmentError("unsupported operating system "+quoteOrUnknown(id), nil,
			"puppetstrap supports Ubuntu, Debian, CentOS and RHEL hosts")
	}

	// INTERVENE
	facts := &Facts{OSID: id}
	switch {
	case eos_io.FileExists(p.AptPath):
		facts.PackageManager = Apt
		facts.OSVersion = info["VERSION_CODENAME"]
		if facts.OSVersion == "" {
			facts.OSVersion = info["UBUNTU_CODENAME"]
		}
	case eos_io.FileExists(p.YumPath):
		facts.PackageManager = Yum
		facts.OSVersion = majorVersion(info["VERSION_ID"])
	default:
		return nil, eos_err.NewEnvironmentError("no supported package manager found", nil,
			"expected "+p.AptPath+" or "+p.YumPath+" to exist")
	}

	// EVALUATE
	if facts.OSVersion == "" {
		return nil, eos_err.NewEnvironmentError("cannot determine OS release for "+id, nil,
			"os-release must define VERSION_CODENAME (apt) or VERSION_ID (yum)")
	}

	logger.Info("Detected environment",
		zap.String("os_id", facts.OSID),
		zap.String("os_version", facts.OSVersion),
		zap.String("package_manager", string(facts.PackageManager)))
	return facts, nil
}

// RequireRoot fails unless the effective uid is 0.
func (p *Probe) RequireRoot() error {
	if p.Geteuid() != 0 {
		return eos_err.NewEnvironmentError("this command must be run as root", nil,
			"re-run with sudo")
	}
	return nil
}

// ParseOSRelease splits key=value lines, stripping surrounding quotes.
func ParseOSRelease(content string) map[string]string {
	info := make(map[string]string)
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		info[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return info
}

// majorVersion keeps the text before the first dot ("8.9" -> "8").
func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}

func quoteOrUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return `"` + s + `"`
}

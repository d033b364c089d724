// pkg/puppet/gems.go

package puppet

import (
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

const DefaultPuppetserverBin = "/opt/puppetlabs/bin/puppetserver"

// GemInstaller installs Ruby gems either into the system Ruby (Puppetserver
// empty) or into the JRuby bundled with puppetserver.
type GemInstaller struct {
	Runner execute.Runner
	// Puppetserver, when set, is the puppetserver binary whose "gem"
	// subcommand is used instead of the system gem.
	Puppetserver string
}

func (g *GemInstaller) command(sub ...string) execute.Options {
	if g.Puppetserver != "" {
		return execute.Options{Command: g.Puppetserver, Args: append([]string{"gem"}, sub...)}
	}
	return execute.Options{Command: "gem", Args: sub}
}

func (g *GemInstaller) scope() string {
	if g.Puppetserver != "" {
		return "puppetserver"
	}
	return "system"
}

// IsInstalled reports whether gem is present. "gem list -i" exits non-zero
// when it is not.
func (g *GemInstaller) IsInstalled(rc *eos_io.RuntimeContext, gem string) (bool, error) {
	_, err := g.Runner.Run(rc.Ctx, g.command("list", "-i", gem))
	switch code := execute.ExitCode(err); {
	case code == 0:
		return true, nil
	case code > 0:
		return false, nil
	default:
		return false, cerr.Wrapf(err, "check %s gem %s", g.scope(), gem)
	}
}

// Ensure installs gem (at version, when given) unless already present.
func (g *GemInstaller) Ensure(rc *eos_io.RuntimeContext, gem, version string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx).With(zap.String("gem", gem), zap.String("scope", g.scope()))

	installed, err := g.IsInstalled(rc, gem)
	if err != nil {
		return false, err
	}
	if installed {
		logger.Info("Gem already installed")
		return false, nil
	}

	args := []string{"install", gem}
	if version != "" {
		args = append(args, "-v", version)
	}
	logger.Info("Installing gem", zap.String("version", version))
	if _, err := g.Runner.Run(rc.Ctx, g.command(args...)); err != nil {
		return false, cerr.Wrapf(err, "install %s gem %s", g.scope(), gem)
	}
	return true, nil
}

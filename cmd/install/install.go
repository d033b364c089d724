// cmd/install/install.go

package install

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/bootstrap"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/packages"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// InstallCmd installs Puppet applications without configuring them.
var InstallCmd = &cobra.Command{
	Use:   "install agent|server|bolt...",
	Short: "Install Puppet applications",
	Long: `Install one or more Puppet applications from the Puppet package
repositories. Nothing is configured.

  puppetstrap install agent -a 7
  puppetstrap install agent server -a 8 -s 8.4.0
  puppetstrap install bolt -b 3`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{string(packages.Agent), string(packages.Server), string(packages.Bolt)},
	RunE: eos_cli.Wrap(func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		versions, err := readVersions(cmd)
		if err != nil {
			return err
		}
		requests, err := planInstalls(args, versions)
		if err != nil {
			return err
		}

		probe := platform.NewProbe()
		if err := probe.RequireRoot(); err != nil {
			return err
		}
		facts, err := probe.Detect(rc)
		if err != nil {
			return err
		}
		manager, err := packages.NewManager(facts, execute.System{})
		if err != nil {
			return err
		}
		installer := &packages.Installer{
			Manager:    manager,
			Downloader: packages.NewHTTPDownloader(),
			Facts:      facts,
			StagingDir: os.TempDir(),
		}
		return installAll(rc, installer, interaction.NewPrinter(), requests)
	}),
}

var versionFlags = map[packages.App]string{
	packages.Agent:  "agent-version",
	packages.Server: "server-version",
	packages.Bolt:   "bolt-version",
}

func init() {
	addVersionFlags(InstallCmd)
}

func addVersionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("agent-version", "a", "", "puppet-agent major or exact version")
	cmd.Flags().StringP("server-version", "s", "", "puppetserver major or exact version")
	cmd.Flags().StringP("bolt-version", "b", "", "puppet-bolt major or exact version")
}

// readVersions layers the version flags over PUPPETSTRAP_* and --config.
func readVersions(cmd *cobra.Command) (map[packages.App]string, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := cli.LoadSettings(cmd, configFile)
	if err != nil {
		return nil, eos_err.NewValidationError(err.Error())
	}
	versions := map[packages.App]string{}
	for app, flag := range versionFlags {
		versions[app] = v.GetString(flag)
	}
	return versions, nil
}

type request struct {
	App     packages.App
	Version packages.Version
}

// planInstalls validates the requested applications and orders them so the
// agent goes in before the server.
func planInstalls(names []string, versions map[packages.App]string) ([]request, error) {
	wanted := map[packages.App]bool{}
	for _, name := range names {
		app, err := packages.ParseApp(name)
		if err != nil {
			return nil, eos_err.NewValidationError(err.Error())
		}
		wanted[app] = true
	}

	var requests []request
	for _, app := range []packages.App{packages.Agent, packages.Server, packages.Bolt} {
		if !wanted[app] {
			continue
		}
		raw := versions[app]
		if raw == "" {
			// bolt ships from the unversioned tools repository
			if app == packages.Bolt {
				requests = append(requests, request{App: app})
				continue
			}
			return nil, eos_err.NewValidationErrorf("a version is required to install %s (--%s)", app, versionFlags[app])
		}
		value, err := bootstrap.Validate(bootstrap.FieldVersion, raw)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request{App: app, Version: packages.SplitVersion(value)})
	}

	if wanted[packages.Agent] && wanted[packages.Server] {
		same, err := packages.SameMajor(versions[packages.Agent], versions[packages.Server])
		if err != nil {
			return nil, eos_err.NewValidationError(err.Error())
		}
		if !same {
			return nil, eos_err.NewValidationErrorf(
				"agent version %s and server version %s must share a major version",
				versions[packages.Agent], versions[packages.Server])
		}
	}
	return requests, nil
}

func installAll(rc *eos_io.RuntimeContext, installer *packages.Installer, printer *interaction.Printer, requests []request) error {
	logger := otelzap.Ctx(rc.Ctx)
	for _, r := range requests {
		printer.Plain("Installing %s %s", r.App.PackageName(), r.Version)
		changed, err := installer.Ensure(rc, r.App, r.Version)
		if err != nil {
			return eos_err.NewStageError("package", err)
		}
		if changed {
			printer.Success("%s installed", r.App.PackageName())
		} else {
			printer.Plain("%s is already installed", r.App.PackageName())
		}
		logger.Info("Install request handled",
			zap.String("app", string(r.App)),
			zap.String("version", r.Version.String()),
			zap.Bool("changed", changed))
	}
	return nil
}

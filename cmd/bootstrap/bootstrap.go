// cmd/bootstrap/bootstrap.go

package bootstrap

import (
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/bootstrap"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/hosts"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// BootstrapCmd groups the per-role bootstrap commands.
var BootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Bootstrap this host as a Puppet agent or server",
	Long: `Install Puppet, configure it and run it for the first time.

Values missing from the command line are asked for interactively. With
--unattended nothing is asked and any missing required value is an error.`,
}

func init() {
	BootstrapCmd.AddCommand(agentCmd, serverCmd)
}

// addCommonFlags registers the flags both roles accept.
func addCommonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("version", "v", "", "Puppet major version (e.g. 7) or exact version (e.g. 7.28.0)")
	f.String("new-hostname", "", "Hostname to give this host")
	f.String("domain-name", "", "Domain appended to a hostname that is not fully qualified")
	f.String("certificate-name", "", "Certificate name to use instead of the hostname")
	f.StringP("csr-extensions", "c", "", `CSR extension attributes as JSON, e.g. '{"pp_role":"web"}'`)
	f.Bool("unattended", false, "Never prompt; fail if a required value is missing")
	f.Bool("skip-optional-prompts", false, "Only prompt for required values")
	f.Bool("skip-confirmation", false, "Do not ask for confirmation, wait briefly instead")
	f.Bool("enable-service", true, "Enable the puppet service when done")
	f.String("puppet-agent-path", puppet.DefaultPuppetBin, "Path to the puppet command")
}

// commonOptions reads the shared flags.
func commonOptions(v *viper.Viper, role bootstrap.Role) bootstrap.Options {
	return bootstrap.Options{
		Role:                role,
		Version:             v.GetString("version"),
		NewHostname:         v.GetString("new-hostname"),
		DomainName:          v.GetString("domain-name"),
		CertificateName:     v.GetString("certificate-name"),
		CSRExtensions:       v.GetString("csr-extensions"),
		Unattended:          v.GetBool("unattended"),
		SkipOptionalPrompts: v.GetBool("skip-optional-prompts"),
		SkipConfirmation:    v.GetBool("skip-confirmation"),
		EnableService:       v.GetBool("enable-service"),
		PuppetBin:           v.GetString("puppet-agent-path"),
	}
}

func loadSettings(cmd *cobra.Command) (*viper.Viper, error) {
	configFile, _ := cmd.Flags().GetString("config")
	v, err := cli.LoadSettings(cmd, configFile)
	if err != nil {
		return nil, eos_err.NewValidationError(err.Error())
	}
	return v, nil
}

// requireTerminal refuses an attended run when nobody can answer the prompts.
func requireTerminal(opts bootstrap.Options, isTerminal func() bool) error {
	if opts.Unattended || isTerminal() {
		return nil
	}
	return eos_err.NewValidationError(
		"stdin is not a terminal so questions cannot be answered",
		"Pass --unattended and supply every required value as a flag")
}

// run probes the host, resolves the plan, confirms it and executes it.
func run(rc *eos_io.RuntimeContext, opts bootstrap.Options) error {
	logger := otelzap.Ctx(rc.Ctx)
	printer := interaction.NewPrinter()

	if opts.Role == bootstrap.RoleServer {
		printer.Heading("Puppet server bootstrap")
	} else {
		printer.Heading("Puppet agent bootstrap")
	}

	if err := requireTerminal(opts, interaction.StdinIsTerminal); err != nil {
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

	current, err := hosts.Current()
	if err != nil {
		return eos_err.NewEnvironmentError("cannot read the current hostname", err)
	}

	runner := execute.System{}
	prompter := interaction.NewTerminalPrompter()
	resolver := &bootstrap.Resolver{
		Prompter:        prompter,
		Printer:         printer,
		Pinger:          &bootstrap.CommandPinger{Runner: runner},
		CurrentHostname: current,
	}
	plan, err := resolver.Resolve(rc, opts)
	if err != nil {
		return err
	}

	orch, err := bootstrap.NewOrchestrator(runner, facts, plan, printer, prompter)
	if err != nil {
		return err
	}
	gate := bootstrap.NewGate(prompter, printer)

	summary, err := bootstrap.Bootstrap(rc, gate, orch, plan)
	if summary != nil {
		summary.Render(printer)
	}
	if err != nil {
		return err
	}
	logger.Info("Bootstrap finished",
		zap.String("role", string(plan.Role)),
		zap.Int("recoverable_failures", len(summary.Recoverable())))
	return nil
}

// cmd/bootstrap/agent.go

package bootstrap

import (
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/bootstrap"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Bootstrap a Puppet agent",
	Long: `Install puppet-agent, point it at a Puppet server, submit a certificate
request and run Puppet for the first time.

  puppetstrap bootstrap agent -s puppet.example.com -v 7 --unattended
  puppetstrap bootstrap agent -s puppet.example.com -v 7 -c '{"pp_role":"web"}'`,
	Args: cobra.NoArgs,
	RunE: eos_cli.Wrap(func(rc *eos_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
		v, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		opts := commonOptions(v, bootstrap.RoleAgent)
		opts.Server = v.GetString("puppet-server")
		opts.Port = v.GetInt("puppet-server-port")
		opts.Environment = v.GetString("environment")
		opts.ExplicitEnvironment = cli.Explicit(cmd, v, "environment")
		opts.CSRRetryInterval = v.GetInt("csr-retry-interval")
		opts.SkipInitialRun = v.GetBool("skip-initial-run")
		opts.SkipServerCheck = v.GetBool("skip-puppet-server-check")
		return run(rc, opts)
	}),
}

func init() {
	addCommonFlags(agentCmd)
	f := agentCmd.Flags()
	f.StringP("puppet-server", "s", "", "Fully qualified name of the Puppet server")
	f.Int("puppet-server-port", bootstrap.DefaultPort, "Puppet server port")
	f.StringP("environment", "e", bootstrap.DefaultEnvironment, "Puppet environment for this agent")
	f.Int("csr-retry-interval", bootstrap.DefaultWaitForCert, "Seconds between certificate checks on the first run")
	f.Bool("skip-initial-run", false, "Do not run Puppet after bootstrapping")
	f.Bool("skip-puppet-server-check", false, "Do not ping the Puppet server before starting")
}

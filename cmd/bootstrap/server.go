// cmd/bootstrap/server.go

package bootstrap

import (
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/bootstrap"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/puppet"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/r10k"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Bootstrap a Puppet server",
	Long: `Install puppetserver, optionally deploy a control repository with r10k
and set up hiera-eyaml, then apply the Puppet server class.

  puppetstrap bootstrap server -v 8 \
    --r10k-repository git@github.com:example/control.git --r10k-generate-key \
    --puppetserver-class role::puppetserver --unattended`,
	Args: cobra.NoArgs,
	RunE: eos_cli.Wrap(func(rc *eos_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
		v, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		opts := commonOptions(v, bootstrap.RoleServer)
		opts.AgentVersion = v.GetString("agent-version")
		opts.BootstrapEnvironment = v.GetString("bootstrap-environment")
		opts.ExplicitBootstrapEnvironment = cli.Explicit(cmd, v, "bootstrap-environment")
		opts.BootstrapHiera = v.GetString("bootstrap-hiera")
		opts.ExplicitBootstrapHiera = cli.Explicit(cmd, v, "bootstrap-hiera")
		opts.PuppetserverClass = v.GetString("puppetserver-class")
		opts.R10kRepository = v.GetString("r10k-repository")
		opts.R10kKeyPath = v.GetString("r10k-repository-key")
		opts.R10kKeyData = v.GetString("r10k-repository-key-data")
		opts.R10kGenerateKey = v.GetBool("r10k-generate-key")
		opts.R10kKeyOwner = v.GetString("r10k-repository-key-owner")
		opts.ExplicitKeyOwner = cli.Explicit(cmd, v, "r10k-repository-key-owner")
		opts.R10kVersion = v.GetString("r10k-version")
		opts.R10kProvider = v.GetString("r10k-git-provider")
		opts.R10kPath = v.GetString("r10k-path")
		opts.EyamlPrivateKey = v.GetString("eyaml-privatekey")
		opts.EyamlPublicKey = v.GetString("eyaml-publickey")
		opts.HieraEyamlVersion = v.GetString("hiera-eyaml-version")
		opts.EyamlKeyPath = v.GetString("eyaml-key-path")
		opts.RemoveOriginalKeys = v.GetBool("remove-original-keys")
		opts.PuppetserverPath = v.GetString("puppetserver-path")
		return run(rc, opts)
	}),
}

func init() {
	addCommonFlags(serverCmd)
	f := serverCmd.Flags()
	f.String("agent-version", "", "puppet-agent version to install alongside puppetserver (same major)")
	f.String("bootstrap-environment", bootstrap.DefaultEnvironment, "Environment to deploy and apply from")
	f.String("bootstrap-hiera", bootstrap.DefaultHieraFile, "Hiera file in the bootstrap environment used for the first apply")
	f.String("puppetserver-class", "", "Class to apply to configure the Puppet server")
	f.String("r10k-repository", "", "URI of the control repository")
	f.String("r10k-repository-key", "", "Path to a deploy key for the control repository")
	f.String("r10k-repository-key-data", "", "Deploy key contents for the control repository")
	f.Bool("r10k-generate-key", false, "Generate a new deploy key for the control repository")
	f.String("r10k-repository-key-owner", bootstrap.DefaultKeyOwner, "Account that owns the deploy key")
	f.String("r10k-version", "", "r10k gem version (default latest)")
	f.String("r10k-git-provider", r10k.ProviderShellGit, "r10k git provider: shellgit or rugged")
	f.String("r10k-path", "r10k", "Path to the r10k command")
	f.String("eyaml-privatekey", "", "Path to the hiera-eyaml private key")
	f.String("eyaml-publickey", "", "Path to the hiera-eyaml public key")
	f.String("hiera-eyaml-version", "", "hiera-eyaml gem version (default latest)")
	f.String("eyaml-key-path", puppet.DefaultEyamlKeyDir, "Directory to install the eyaml keys into")
	f.Bool("remove-original-keys", true, "Delete supplied key files once they have been copied into place")
	f.String("puppetserver-path", puppet.DefaultPuppetserverBin, "Path to the puppetserver command")
}

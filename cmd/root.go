/* cmd/root.go */

package cmd

import (
	"fmt"
	"os"

	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// Subcommands
	"github.com/CodeMonkeyCybersecurity/puppetstrap/cmd/bootstrap"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/cmd/hosts"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/cmd/install"
)

var helpLogged bool

// RootCmd is the base command for puppetstrap.
var RootCmd = &cobra.Command{
	Use:   "puppetstrap",
	Short: "Bootstrap Puppet agents and servers",
	Long: `puppetstrap installs Puppet, configures it and performs the first run so
that a fresh host ends up under configuration management.

  puppetstrap bootstrap agent  --puppet-server puppet.example.com --version 7
  puppetstrap bootstrap server --version 8 --r10k-repository git@github.com:org/control.git
  puppetstrap install agent bolt -a 7
  puppetstrap hosts add --file host_entries.jsonc`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		name, _ := cmd.Flags().GetString("log-level")
		if name == "" {
			name = os.Getenv("LOG_LEVEL")
		}
		if err := logger.SetLevel(name); err != nil {
			return eos_err.NewExpectedError(cmd.Context(), err)
		}
		return nil
	},
	RunE: eos_cli.Wrap(func(rc *eos_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		fmt.Println("No subcommand provided. Try `puppetstrap help`.")
		return cmd.Help()
	}),
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "YAML file of flag values, keyed by long flag name")
	RootCmd.PersistentFlags().String("log-level", "", "Log verbosity: DEBUG, INFO, WARN or ERROR (default INFO, or $LOG_LEVEL)")
}

// RegisterCommands adds all subcommands to the root command.
func RegisterCommands() {
	log := logger.L()
	RootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if !helpLogged {
			log.Debug("Help requested", zap.String("command", cmd.Name()))
			helpLogged = true
		}
		if err := cmd.Usage(); err != nil {
			log.Warn("Failed to print usage", zap.Error(err))
		}
	})

	for _, subCmd := range []*cobra.Command{
		bootstrap.BootstrapCmd,
		install.InstallCmd,
		hosts.HostsCmd,
	} {
		RootCmd.AddCommand(subCmd)
	}
}

// Execute runs the root command and returns the process exit code. Declined
// confirmations exit 0; every other error exits 1.
func Execute() int {
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to flush logs: %v\n", err)
		}
	}()

	RegisterCommands()

	err := RootCmd.Execute()
	code := eos_err.GetExitCode(err)
	switch {
	case err == nil:
	case code == 0:
		logger.L().Info("Exiting without changes", zap.Error(err))
		fmt.Fprintln(os.Stderr, "Exiting without making any changes.")
	default:
		logger.L().Error("Command failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return code
}

// cmd/hosts/hosts.go

package hosts

import (
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_cli"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/hosts"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/puppetstrap/pkg/platform"
	"github.com/spf13/cobra"
)

// HostsCmd manages static entries in the hosts file.
var HostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Manage static host entries",
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add host entries from a JSON file",
	Long: `Append "ip hostname" lines to /etc/hosts for every entry in the file
whose hostname is not already listed. Comments are allowed in the file.

  [
    // the Puppet server
    {"ip": "10.0.0.5", "hostname": "puppet.example.com"}
  ]`,
	Args: cobra.NoArgs,
	RunE: eos_cli.Wrap(func(rc *eos_io.RuntimeContext, cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			return eos_err.NewValidationError("--file is required")
		}
		if err := platform.NewProbe().RequireRoot(); err != nil {
			return err
		}
		return addEntries(rc, hosts.NewManager(execute.System{}), interaction.NewPrinter(), path)
	}),
}

func init() {
	addCmd.Flags().StringP("file", "f", "host_entries.jsonc", "JSON file of {ip, hostname} entries")
	HostsCmd.AddCommand(addCmd)
}

func addEntries(rc *eos_io.RuntimeContext, m *hosts.Manager, printer *interaction.Printer, path string) error {
	entries, err := hosts.LoadEntries(path)
	if err != nil {
		return eos_err.NewValidationError(err.Error())
	}
	added, err := m.AddEntries(rc, entries)
	if err != nil {
		return eos_err.NewStageError("hosts", err)
	}
	if len(added) == 0 {
		printer.Plain("All %d entries are already present in %s", len(entries), m.HostsFile)
		return nil
	}
	for _, e := range added {
		printer.Success("Added %s %s", e.IP, e.Hostname)
	}
	return nil
}

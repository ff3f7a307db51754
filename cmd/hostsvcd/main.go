// Command hostsvcd is the UEFI Linux host provisioning/update agent's CLI
// entry point. Grounded on the teacher's cmd/os-image-composer and
// cmd/image-composer: one createXCommand() constructor per subcommand,
// composed onto a root cobra.Command in main, with --verbose wired
// straight into the shared logger.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/host-servicer/internal/utils/logger"
)

var verbose bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "hostsvcd",
		Short: "UEFI Linux host provisioning and update agent",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				return logger.SetLevel("debug")
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().StringVar(&statusPath, "status-path", "", "path to the persisted host status file (default /var/lib/hostsvc/status.yaml)")

	root.AddCommand(createProvisionCommand())
	root.AddCommand(createUpdateCommand())
	root.AddCommand(createValidateBootCommand())
	root.AddCommand(createRollbackStatusCommand())
	return root
}

func main() {
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hostsvcd:", err)
		os.Exit(1)
	}
}

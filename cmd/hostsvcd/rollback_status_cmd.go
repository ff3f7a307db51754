package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/open-edge-platform/host-servicer/internal/config"
)

var rollbackStatusOutput string

// createRollbackStatusCommand creates the rollback-status subcommand: a
// read-only report of the host's current servicing state, for operators
// and monitoring hooks to inspect without parsing the datastore file
// directly.
func createRollbackStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback-status",
		Short: "Report the host's current servicing and rollback state",
		Long: `rollback-status prints the persisted HostStatus: servicing state and
type, the active A/B volume, the install index, and the last recorded
error, if any. Intended for operators and health checks, not for driving
further servicing decisions.`,
		RunE: executeRollbackStatus,
	}
	cmd.Flags().StringVar(&rollbackStatusOutput, "output", "text", "output format: text or yaml")
	return cmd
}

func executeRollbackStatus(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	status, err := store.Load()
	if err != nil {
		return err
	}

	switch rollbackStatusOutput {
	case "yaml":
		return printRollbackStatusYAML(status)
	default:
		return printRollbackStatusText(status)
	}
}

func printRollbackStatusYAML(status *config.HostStatus) error {
	out, err := yaml.Marshal(status)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func printRollbackStatusText(status *config.HostStatus) error {
	fmt.Printf("servicing state:   %s\n", status.ServicingState)
	fmt.Printf("servicing type:    %s\n", status.ServicingType)
	fmt.Printf("active A/B volume: %s\n", status.AbActiveVolume)
	fmt.Printf("install index:     %d\n", status.InstallIndex)
	if status.LastError != nil {
		fmt.Printf("last error:        [%s] %s\n", status.LastError.Kind, status.LastError.Message)
	} else {
		fmt.Printf("last error:        none\n")
	}
	return nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ilexum-group/janus/internal/orchestrator"
	"github.com/ilexum-group/janus/pkg/models"
)

func newModifyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modify",
		Short: "Modify a machine-identifying attribute (backed up and confirmed first)",
	}
	cmd.AddCommand(newModifyMACCmd(app))
	cmd.AddCommand(newModifyGUIDCmd(app))
	cmd.AddCommand(newModifySerialCmd(app))
	return cmd
}

func newModifyMACCmd(app *App) *cobra.Command {
	var value string
	var random bool
	var vendorPrefix string

	cmd := &cobra.Command{
		Use:   "mac <adapter-id>",
		Short: "Change a network adapter's MAC address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if value != "" && random {
				return fmt.Errorf("--value and --random are mutually exclusive")
			}
			if value == "" && !random {
				return fmt.Errorf("one of --value or --random is required")
			}

			op := &models.Operation{
				Type:          models.OpModifyMAC,
				Target:        args[0],
				ProposedValue: value,
			}
			if vendorPrefix != "" {
				op.MergeInfo(map[string]string{"vendor_prefix": vendorPrefix})
			}
			return reportResult(app, app.orchestrator().Execute(op))
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "New MAC address (12 hex digits, separators optional)")
	cmd.Flags().BoolVar(&random, "random", false, "Generate a random locally administered MAC")
	cmd.Flags().StringVar(&vendorPrefix, "vendor-prefix", "", "Vendor prefix for generated MACs (e.g. 00:11:22)")
	return cmd
}

func newModifyGUIDCmd(app *App) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "guid",
		Short: "Change the machine GUID (a random UUID is generated when no value is given)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op := &models.Operation{
				Type:          models.OpModifyGUID,
				Target:        "machine_guid",
				ProposedValue: value,
			}
			return reportResult(app, app.orchestrator().Execute(op))
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "New GUID (RFC 4122); omit to generate one")
	return cmd
}

func newModifySerialCmd(app *App) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "serial <volume>",
		Short: "Change a volume serial number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op := &models.Operation{
				Type:          models.OpModifyVolumeSerial,
				Target:        args[0],
				ProposedValue: value,
			}
			return reportResult(app, app.orchestrator().Execute(op))
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "New volume serial (8 hex digits)")
	return cmd
}

// reportResult prints the operation outcome and maps it to the process exit
// status. A cancellation prints but does not fail the command.
func reportResult(app *App, result models.OperationResult) error {
	switch {
	case result.Success:
		fmt.Fprintln(app.Stdout, result.Message)
		if result.BackupID != "" {
			fmt.Fprintf(app.Stdout, "Backup: %s\n", result.BackupID)
		}
		return nil
	case result.ErrorKind == orchestrator.KindCancelled:
		fmt.Fprintln(app.Stdout, result.Message)
		return nil
	default:
		return fmt.Errorf("%s", result.Message)
	}
}

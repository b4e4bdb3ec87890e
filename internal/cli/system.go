package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newSystemCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "system",
		Short: "Show the host's identifying attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := app.Engine.ReadSystemInfo()
			if err != nil {
				return err
			}

			guid, guidErr := app.Engine.ReadMachineGUID()
			serials, _ := app.Engine.ReadVolumeSerials()

			if output == "json" {
				payload := map[string]any{
					"system":         info,
					"machine_guid":   guid,
					"volume_serials": serials,
				}
				if guidErr != nil {
					payload["machine_guid_error"] = guidErr.Error()
				}
				enc := json.NewEncoder(app.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(payload)
			}

			tw := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "OS\t%s %s (%s)\n", info.OS, info.OSVersion, info.Architecture)
			fmt.Fprintf(tw, "Hostname\t%s\n", info.Hostname)
			fmt.Fprintf(tw, "User\t%s\n", info.CurrentUser)
			if !info.BootTime.IsZero() {
				fmt.Fprintf(tw, "Boot time\t%s\n", info.BootTime.Format(time.RFC3339))
				fmt.Fprintf(tw, "Uptime\t%s\n", (time.Duration(info.Uptime) * time.Second).String())
			}
			fmt.Fprintf(tw, "CPU\t%s (%d cores)\n", info.CPU.Model, info.CPU.Cores)
			if guidErr != nil {
				fmt.Fprintf(tw, "Machine GUID\tunavailable: %v\n", guidErr)
			} else {
				fmt.Fprintf(tw, "Machine GUID\t%s\n", guid)
			}
			for volume, serial := range serials {
				fmt.Fprintf(tw, "Volume serial (%s)\t%s\n", volume, serial)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newAdaptersCmd(app *App) *cobra.Command {
	var output string
	var physicalOnly bool

	cmd := &cobra.Command{
		Use:   "adapters",
		Short: "List network adapters and their current MAC addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapters, err := app.Engine.EnumerateAdapters()
			if err != nil {
				return err
			}
			if physicalOnly {
				filtered := adapters[:0]
				for _, adapter := range adapters {
					if adapter.IsPhysical {
						filtered = append(filtered, adapter)
					}
				}
				adapters = filtered
			}

			switch output {
			case "json":
				enc := json.NewEncoder(app.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(adapters)
			case "table", "":
				tw := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tMAC\tTYPE\tSTATUS\tIP ADDRESSES")
				for _, a := range adapters {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						a.ID, a.Name, a.MACAddress, a.Type, a.Status, strings.Join(a.IPAddresses, ","))
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	cmd.Flags().BoolVar(&physicalOnly, "physical", false, "Show only physical adapters")
	return cmd
}

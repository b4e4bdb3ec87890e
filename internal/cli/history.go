package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCmd(app *App) *cobra.Command {
	var output string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the audit trail of past operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.Audits == nil {
				return fmt.Errorf("audit trail is not configured")
			}
			records, err := app.Audits.Recent(limit)
			if err != nil {
				return err
			}

			switch output {
			case "json":
				enc := json.NewEncoder(app.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			case "table", "":
				tw := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tOPERATION\tTARGET\tRESULT\tRISK\tBACKUP\tUSER")
				for _, r := range records {
					result := r.Result
					if r.ErrorKind != "" && r.Result != "cancelled" {
						result = fmt.Sprintf("%s (%s)", r.Result, r.ErrorKind)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.8s\t%s\n",
						r.Timestamp.Local().Format(time.RFC3339), r.OperationType, r.Target,
						result, r.RiskLevel, r.BackupID, r.User)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of entries (0 for all)")
	return cmd
}

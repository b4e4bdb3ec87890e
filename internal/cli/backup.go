package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ilexum-group/janus/pkg/models"
)

func newBackupCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage identifier backups",
	}
	cmd.AddCommand(newBackupListCmd(app))
	cmd.AddCommand(newBackupCreateCmd(app))
	cmd.AddCommand(newBackupVerifyCmd(app))
	cmd.AddCommand(newBackupRestoreCmd(app))
	cmd.AddCommand(newBackupDeleteCmd(app))
	cmd.AddCommand(newBackupExportCmd(app))
	return cmd
}

func newBackupListCmd(app *App) *cobra.Command {
	var output string
	var kind string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.Backups.List(models.BackupKind(kind))
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
				fmt.Fprintln(tw, "ID\tKIND\tCREATED\tSIZE\tCHECKSUM")
				for _, r := range records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.16s\n",
						r.ID, r.Kind, r.TimestampReadable, r.Size, r.Checksum)
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unsupported --output: %s", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table|json")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by kind: network_config|registry|full_system")
	return cmd
}

func newBackupCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [network_config|registry|full_system]",
		Short: "Snapshot the current identifiers without modifying anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := models.BackupFullSystem
			if len(args) == 1 {
				kind = models.BackupKind(args[0])
			}
			record, err := app.orchestrator().CreateSnapshot(kind)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Created %s backup %s\n", record.Kind, record.ID)
			return nil
		},
	}
	return cmd
}

func newBackupVerifyCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <backup-id>",
		Short: "Check a backup's integrity against its stored checksum",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Backups.Verify(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Backup %s verified\n", args[0])
			return nil
		},
	}
	return cmd
}

func newBackupRestoreCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup-id>",
		Short: "Apply a backup's identifiers back onto the system",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return reportResult(app, app.orchestrator().Restore(args[0]))
		},
	}
	return cmd
}

func newBackupDeleteCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete a backup (deleting an absent ID is not an error)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Backups.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Backup %s deleted\n", args[0])
			return nil
		},
	}
	return cmd
}

func newBackupExportCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <backup-id> <dest-path>",
		Short: "Copy a backup file elsewhere, verifying the copy",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Backups.Export(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(app.Stdout, "Backup %s exported to %s\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}

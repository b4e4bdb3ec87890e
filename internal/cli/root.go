// Package cli wires the Janus core to its command-line surface.
package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ilexum-group/janus/internal/audit"
	"github.com/ilexum-group/janus/internal/backup"
	"github.com/ilexum-group/janus/internal/config"
	"github.com/ilexum-group/janus/internal/confirm"
	"github.com/ilexum-group/janus/internal/engine"
	"github.com/ilexum-group/janus/internal/orchestrator"
	"github.com/ilexum-group/janus/internal/permission"
	"github.com/ilexum-group/janus/internal/utils"
	"github.com/ilexum-group/janus/pkg/models"
)

// App bundles the core components the commands operate on. Tests construct
// one around fakes; main wires the real thing.
type App struct {
	Config  *config.Config
	Engine  engine.Engine
	Backups *backup.Store
	Audits  *audit.Store
	Perms   *permission.Gate
	Logger  utils.Logger

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Yes auto-approves every confirmation stage. Set by the global flag.
	Yes bool
}

// orchestrator builds the operation pipeline with a prompter bound to the
// current stdio and auto-approve setting.
func (a *App) orchestrator() *orchestrator.Orchestrator {
	prompter := &stagePrompter{in: a.Stdin, out: a.Stdout, autoApprove: a.Yes}
	gate := confirm.NewGate(prompter, a.Config.ConfirmTimeout, a.Config.RequireThreeStage, a.Logger)

	var sink orchestrator.AuditSink
	if a.Audits != nil {
		sink = a.Audits
	}
	return orchestrator.New(a.Engine, a.Perms, a.Backups, gate, sink, a.Logger)
}

// NewRootCmd returns the root cobra command for the janus CLI.
func NewRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "janus",
		Short:         "Inspect and modify machine-identifying attributes with transactional backups",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetOut(app.Stdout)
	cmd.SetErr(app.Stderr)
	cmd.SetIn(app.Stdin)

	cmd.PersistentFlags().BoolVarP(&app.Yes, "yes", "y", false, "Approve all confirmation stages without prompting")

	cmd.AddCommand(newAdaptersCmd(app))
	cmd.AddCommand(newSystemCmd(app))
	cmd.AddCommand(newModifyCmd(app))
	cmd.AddCommand(newBackupCmd(app))
	cmd.AddCommand(newHistoryCmd(app))

	return cmd
}

// commandLogger bridges engine command executions into the structured log.
func commandLogger(logger utils.Logger) models.CommandLogger {
	return func(id, cmd string, args []string, start, end time.Time, exitCode int, cmdErr error, target string) {
		meta := map[string]string{
			"command_id": id,
			"command":    cmd,
			"args":       strings.Join(args, " "),
			"exit_code":  strconv.Itoa(exitCode),
			"duration":   end.Sub(start).String(),
			"target":     target,
		}
		if cmdErr != nil {
			meta["error"] = cmdErr.Error()
			logger.LogWarn("OS command failed", meta)
			return
		}
		logger.LogDebug("OS command executed", meta)
	}
}

// Execute runs the CLI with the process stdio and the live system.
func Execute() int {
	if err := utils.InitDefaultLogger(); err != nil {
		fmt.Fprintln(os.Stderr, "logger initialization failed:", err)
		return 1
	}

	cfg := config.Load()

	backups, err := backup.NewStore(cfg.BackupDir, cfg.MaxBackupCount, utils.DefaultLogger)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	audits, err := audit.NewStore(cfg.AuditDBPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer audits.Close()

	eng := engine.New()
	eng.SetLogger(commandLogger(utils.DefaultLogger))

	app := &App{
		Config:  cfg,
		Engine:  eng,
		Backups: backups,
		Audits:  audits,
		Perms:   permission.NewGate(eng),
		Logger:  utils.DefaultLogger,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
	}

	root := NewRootCmd(app)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

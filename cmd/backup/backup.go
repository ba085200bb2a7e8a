package backup

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/ZeljkoBenovic/cpaasctl/backup"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers/flagnames"
	"github.com/ZeljkoBenovic/cpaasctl/report"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var errVerbRequired = errors.New("one of create, restore or list is required")

var backupCmd = &cobra.Command{
	Use:   "backup <create|restore|list>",
	Short: "Create, list and restore backups of the deployment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_ = cmd.Help()

		return errVerbRequired
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Archive the database, redis, configuration and logs",
	Long: `Collects a PostgreSQL dump, a Redis snapshot, configuration and log
directories into a timestamped tar.gz archive, uploads it when a bucket is
configured and applies local and remote retention.`,
	Example: "cpaasctl backup create --stage-retries 2",
	Args:    cobra.NoArgs,
	Run:     createCommandHandler,
}

var restoreCmd = &cobra.Command{
	Use:     "restore <archive>",
	Short:   "Restore a backup archive (not implemented)",
	Example: "cpaasctl backup restore cpaas-backup-20261019-030000.tar.gz",
	Args:    cobra.ExactArgs(1),
	Run:     restoreCommandHandler,
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List local and remote archives and the backup history",
	Example: "cpaasctl backup list",
	Args:    cobra.NoArgs,
	Run:     listCommandHandler,
}

func GetCmd() *cobra.Command {
	createCmd.Flags().Int(flagnames.StageRetries, 0, "extra attempts for a failed backup stage")

	if err := viper.BindPFlag("backup.stage-retries", createCmd.Flag(flagnames.StageRetries)); err != nil {
		log.Fatalln("Could not bind backup.stage-retries err:", err.Error())
	}

	backupCmd.AddCommand(createCmd, restoreCmd, listCmd)

	return backupCmd
}

func createCommandHandler(cmd *cobra.Command, _ []string) {
	lg := helpers.NewLogger("backup")

	if err := create(cmd.Context(), lg); err != nil {
		helpers.Fatal(lg, "Backup failed", err)
	}
}

func create(ctx context.Context, lg hclog.Logger) error {
	rt, err := helpers.NewCheckedRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	mgr, err := rt.Backup(ctx, viper.GetInt("backup.stage-retries"))
	if err != nil {
		return err
	}

	run, err := mgr.Create(ctx)
	if err != nil {
		return err
	}

	lg.Info("Backup report written", "report", run.ReportPath)

	return nil
}

func restoreCommandHandler(cmd *cobra.Command, args []string) {
	lg := helpers.NewLogger("restore")

	err := restore(cmd.Context(), lg, args[0])
	if errors.Is(err, backup.ErrRestoreNotImplemented) {
		helpers.Fatal(lg, "Automatic restore is not available, extract the archive and restore it manually", err)
	}

	if err != nil {
		helpers.Fatal(lg, "Restore failed", err)
	}
}

// restore needs neither the configuration nor any client, it reports the same result for any input
func restore(ctx context.Context, lg hclog.Logger, name string) error {
	return backup.NewManager(backup.Config{}, nil, nil, nil, lg).Restore(ctx, name)
}

func listCommandHandler(cmd *cobra.Command, _ []string) {
	lg := helpers.NewLogger("list")

	if err := list(cmd.Context(), lg); err != nil {
		helpers.Fatal(lg, "Could not list backups", err)
	}
}

func list(ctx context.Context, lg hclog.Logger) error {
	rt, err := helpers.NewRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	mgr, err := rt.Backup(ctx, 0)
	if err != nil {
		return err
	}

	archives, err := mgr.List(ctx)
	if err != nil {
		lg.Error("Could not list all archives", "err", err)
	}

	report.Archives(os.Stdout, archives)

	history, err := mgr.History()
	if err != nil {
		return err
	}

	report.BackupHistory(os.Stdout, history)

	return nil
}

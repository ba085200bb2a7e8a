package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/backup"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/deploy"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers/flagnames"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/logs"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/restart"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/ssl"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/status"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/stop"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/update"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/validate"
	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/probe"
	"github.com/ZeljkoBenovic/cpaasctl/stack"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cpaasctl",
	Short: "cpaasctl deploys and operates a self hosted CPaaS stack",
	Long: `cpaasctl validates prerequisites, starts the CPaaS services one tier at a time
waiting for every service to become ready, reports their status and manages
backups and TLS certificates of the deployment.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(flagnames.EnvFile, ".env", "deployment environment file")
	rootCmd.PersistentFlags().String(flagnames.ManifestFile, "", "service manifest, the built in manifest is used when empty")
	rootCmd.PersistentFlags().String(flagnames.LogLevel, "info", "log output level")
	rootCmd.PersistentFlags().String(flagnames.DBFileLocation, "",
		fmt.Sprintf("sqlite file location, file name must end with .db (default: %s)", db.DefaultDBLocation()))
	// readiness flags
	rootCmd.PersistentFlags().Duration(flagnames.TierTimeout, stack.DefaultTierTimeout, "maximum time a tier may take to become ready")
	rootCmd.PersistentFlags().Duration(flagnames.PollInterval, probe.DefaultInterval, "time between readiness checks")
	rootCmd.PersistentFlags().Int(flagnames.MaxAttempts, probe.DefaultMaxAttempts, "readiness checks per service before giving up")

	// bind flags to viper, CPAASCTL_LOG_LEVEL and friends override the defaults
	viper.SetEnvPrefix("cpaasctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		log.Fatalln("Could not bind to flags err=", err.Error())
	}

	rootCmd.AddCommand(
		validate.GetCmd(),
		deploy.GetCmd(),
		stop.GetCmd(),
		restart.GetCmd(),
		logs.GetCmd(),
		status.GetCmd(),
		update.GetCmd(),
		backup.GetCmd(),
		ssl.GetCmd(),
	)
}

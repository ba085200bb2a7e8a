package logs

import (
	"context"
	"log"
	"os"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers/flagnames"
	"github.com/ZeljkoBenovic/cpaasctl/stack"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logsCmd = &cobra.Command{
	Use:     "logs <service>",
	Short:   "Print the container logs of a service",
	Example: "cpaasctl logs kamailio --follow --tail 100",
	Args:    cobra.ExactArgs(1),
	Run:     logsCommandHandler,
}

func GetCmd() *cobra.Command {
	logsCmd.Flags().BoolP(flagnames.LogsFollow, "f", false, "follow log output")
	logsCmd.Flags().String(flagnames.LogsTail, "all", "number of lines to show from the end of the logs")
	logsCmd.Flags().Bool(flagnames.LogsTimestamps, false, "show timestamps")

	// bind flags to viper
	for _, name := range []string{flagnames.LogsFollow, flagnames.LogsTail, flagnames.LogsTimestamps} {
		if err := viper.BindPFlag("logs."+name, logsCmd.Flag(name)); err != nil {
			log.Fatalln("Could not bind logs."+name+" err:", err.Error())
		}
	}

	return logsCmd
}

func logsCommandHandler(cmd *cobra.Command, args []string) {
	lg := helpers.NewLogger("logs")

	if err := logs(cmd.Context(), lg, args[0]); err != nil {
		helpers.Fatal(lg, "Could not get logs", err)
	}
}

func logs(ctx context.Context, lg hclog.Logger, service string) error {
	rt, err := helpers.NewRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	st, err := rt.Stack()
	if err != nil {
		return err
	}

	return st.Logs(ctx, service, stack.LogOptions{
		Follow:     viper.GetBool("logs." + flagnames.LogsFollow),
		Tail:       viper.GetString("logs." + flagnames.LogsTail),
		Timestamps: viper.GetBool("logs." + flagnames.LogsTimestamps),
	}, os.Stdout, os.Stderr)
}

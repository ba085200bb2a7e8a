package restart

import (
	"context"
	"os"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/report"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var restartCmd = &cobra.Command{
	Use:   "restart [service...]",
	Short: "Restart services tier by tier and wait until they are ready",
	Long: `Restarts the named services, or every service when none is given, through
the Docker API. Services are restarted in tier order and each tier must become
ready before the next one is restarted.`,
	Example: "cpaasctl restart kamailio freeswitch",
	Run:     restartCommandHandler,
}

func GetCmd() *cobra.Command {
	return restartCmd
}

func restartCommandHandler(cmd *cobra.Command, args []string) {
	lg := helpers.NewLogger("restart")

	if err := restart(cmd.Context(), lg, args); err != nil {
		helpers.Fatal(lg, "Could not restart services", err)
	}
}

func restart(ctx context.Context, lg hclog.Logger, services []string) error {
	rt, err := helpers.NewRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	st, err := rt.Stack()
	if err != nil {
		return err
	}

	res, err := st.Restart(ctx, services...)
	if res != nil {
		report.Services(os.Stdout, res)
	}

	return err
}

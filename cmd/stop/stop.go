package stop

import (
	"context"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:     "stop",
	Short:   "Stop all services, last tier first",
	Example: "cpaasctl stop",
	Args:    cobra.NoArgs,
	Run:     stopCommandHandler,
}

func GetCmd() *cobra.Command {
	return stopCmd
}

func stopCommandHandler(cmd *cobra.Command, _ []string) {
	lg := helpers.NewLogger("stop")

	if err := stop(cmd.Context(), lg); err != nil {
		helpers.Fatal(lg, "Could not stop services", err)
	}
}

func stop(ctx context.Context, lg hclog.Logger) error {
	rt, err := helpers.NewRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	st, err := rt.Stack()
	if err != nil {
		return err
	}

	return st.Stop(ctx)
}

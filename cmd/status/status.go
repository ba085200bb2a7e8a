package status

import (
	"context"
	"errors"
	"os"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/db"
	"github.com/ZeljkoBenovic/cpaasctl/report"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Check every service once and show the last recorded run",
	Example: "cpaasctl status",
	Args:    cobra.NoArgs,
	Run:     runStatusCommand,
}

func GetCmd() *cobra.Command {
	return statusCmd
}

func runStatusCommand(cmd *cobra.Command, _ []string) {
	lg := helpers.NewLogger("status")

	if err := status(cmd.Context(), lg); err != nil {
		helpers.Fatal(lg, "Not all services are ready", err)
	}
}

func status(ctx context.Context, lg hclog.Logger) error {
	rt, err := helpers.NewRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	last, err := rt.DB.GetLastDeployment()
	switch {
	case errors.Is(err, db.ErrNoDeployments):
		lg.Info("No deployments recorded yet")
	case err != nil:
		lg.Error("Could not get last deployment", "err", err)
	default:
		report.LastDeployment(os.Stdout, last)
	}

	st, err := rt.Stack()
	if err != nil {
		return err
	}

	res := st.Status(ctx)
	report.Services(os.Stdout, res)

	return res.Err
}

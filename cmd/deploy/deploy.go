package deploy

import (
	"context"
	"os"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/report"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Validate prerequisites and start every service tier in order",
	Long: `Checks the required environment keys and executables, then starts the
service tiers in rank order. A tier is started only after every service of the
previous tier passed its readiness probe. Nothing is rolled back on failure,
use the stop command to clean up.`,
	Example: "cpaasctl deploy --env-file /opt/cpaas/.env --tier-timeout 10m",
	Args:    cobra.NoArgs,
	Run:     runCommandHandler,
}

func GetCmd() *cobra.Command {
	return deployCmd
}

func runCommandHandler(cmd *cobra.Command, _ []string) {
	lg := helpers.NewLogger("deploy")

	if err := deploy(cmd.Context(), lg); err != nil {
		helpers.Fatal(lg, "Deployment failed", err)
	}
}

func deploy(ctx context.Context, lg hclog.Logger) error {
	rt, err := helpers.NewCheckedRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	st, err := rt.Stack()
	if err != nil {
		return err
	}

	res, err := st.Deploy(ctx)
	if res != nil {
		report.Services(os.Stdout, res)
	}

	return err
}

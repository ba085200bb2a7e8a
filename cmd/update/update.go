package update

import (
	"context"
	"os"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/report"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Short:   "Pull and build newer images, then redeploy tier by tier",
	Example: "cpaasctl update",
	Args:    cobra.NoArgs,
	Run:     updateCommandHandler,
}

func GetCmd() *cobra.Command {
	return updateCmd
}

func updateCommandHandler(cmd *cobra.Command, _ []string) {
	lg := helpers.NewLogger("update")

	if err := update(cmd.Context(), lg); err != nil {
		helpers.Fatal(lg, "Update failed", err)
	}
}

func update(ctx context.Context, lg hclog.Logger) error {
	rt, err := helpers.NewCheckedRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	st, err := rt.Stack()
	if err != nil {
		return err
	}

	res, err := st.Update(ctx)
	if res != nil {
		report.Services(os.Stdout, res)
	}

	return err
}

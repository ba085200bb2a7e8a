package validate

import (
	"fmt"
	"log"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers/flagnames"
	"github.com/ZeljkoBenovic/cpaasctl/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var validateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Check environment keys and required executables without changing anything",
	Example: "cpaasctl validate --env-file /opt/cpaas/.env",
	Args:    cobra.NoArgs,
	Run:     validateCommandHandler,
}

func GetCmd() *cobra.Command {
	validateCmd.Flags().Bool(flagnames.Describe, false, "print the supported environment keys and exit")

	if err := viper.BindPFlag("validate.describe", validateCmd.Flag(flagnames.Describe)); err != nil {
		log.Fatalln("Could not bind validate.describe err:", err.Error())
	}

	return validateCmd
}

func validateCommandHandler(_ *cobra.Command, _ []string) {
	lg := helpers.NewLogger("validate")

	if viper.GetBool("validate.describe") {
		desc, err := config.Describe()
		if err != nil {
			helpers.Fatal(lg, "Could not describe configuration", err)
		}

		fmt.Println(desc)

		return
	}

	env, err := config.Load(viper.GetString(flagnames.EnvFile))
	if err != nil {
		helpers.Fatal(lg, "Could not load configuration", err)
	}

	if err = helpers.Validate(env); err != nil {
		helpers.Fatal(lg, "Prerequisite check failed", err)
	}

	lg.Info("All prerequisites met", "domain", env.DomainName, "public_ip", env.PublicIP)
}

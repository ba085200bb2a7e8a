package ssl

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/cmd/helpers"
	"github.com/ZeljkoBenovic/cpaasctl/report"
	"github.com/ZeljkoBenovic/cpaasctl/ssl"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

var errVerbRequired = errors.New("one of letsencrypt, self-signed, verify, info, renew or install-renewal is required")

var sslCmd = &cobra.Command{
	Use:   "ssl <letsencrypt|self-signed|verify|info|renew|install-renewal>",
	Short: "Provision, inspect and renew TLS certificates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_ = cmd.Help()

		return errVerbRequired
	},
}

// action is a single certificate operation
type action func(ctx context.Context, m *ssl.Manager) error

func GetCmd() *cobra.Command {
	sslCmd.AddCommand(
		newCmd("letsencrypt", "Obtain a LetsEncrypt certificate and schedule its renewal",
			func(ctx context.Context, m *ssl.Manager) error { return m.LetsEncrypt(ctx) }),
		newCmd("self-signed", "Generate a self signed certificate for DOMAIN_NAME and PUBLIC_IP",
			func(ctx context.Context, m *ssl.Manager) error { return m.SelfSigned(ctx) }),
		newCmd("verify", "Check that key and certificate match, are valid now and cover DOMAIN_NAME",
			func(_ context.Context, m *ssl.Manager) error {
				info, err := m.Verify()
				if err == nil {
					report.Certificate(os.Stdout, info, time.Now())
				}

				return err
			}),
		newCmd("info", "Show the installed certificate",
			func(_ context.Context, m *ssl.Manager) error {
				info, err := m.Info()
				if err != nil {
					return err
				}

				report.Certificate(os.Stdout, info, time.Now())

				return nil
			}),
		newCmd("renew", "Renew LetsEncrypt certificates and copy them into SSL_DIR",
			func(ctx context.Context, m *ssl.Manager) error { return m.Renew(ctx) }),
		newCmd("install-renewal", "Install the renewal helper script and its crontab entry",
			func(ctx context.Context, m *ssl.Manager) error { return m.InstallRenewal(ctx) }),
	)

	return sslCmd
}

func newCmd(use, short string, run action) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Short:   short,
		Example: "cpaasctl ssl " + use,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			lg := helpers.NewLogger("ssl")

			if err := execute(cmd.Context(), lg, run); err != nil {
				helpers.Fatal(lg, "Certificate operation failed", err)
			}
		},
	}
}

func execute(ctx context.Context, lg hclog.Logger, run action) error {
	rt, err := helpers.NewRuntime(lg)
	if err != nil {
		return err
	}

	defer rt.Close()

	return run(ctx, rt.SSL())
}

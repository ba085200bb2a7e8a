package ssl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/ZeljkoBenovic/cpaasctl/executor"
)

// renewal runs twice a day, certbot only renews certificates close to expiry
const cronSchedule = "17 3,15 * * *"

var renewScript = template.Must(template.New("renew").Parse(`#!/bin/sh
# renews LetsEncrypt certificates for {{ .Domain }} and reloads the edge services
set -e
{{ .Binary }} ssl renew --env-file {{ .EnvFile }}
{{ .Binary }} restart kamailio api --env-file {{ .EnvFile }}
`))

type renewData struct {
	Domain  string
	Binary  string
	EnvFile string
}

// InstallRenewal writes the renewal helper and registers it in the user crontab.
// Running it again leaves a single crontab entry.
func (m *Manager) InstallRenewal(ctx context.Context) error {
	script := m.env.SSL.RenewScript

	var buf bytes.Buffer
	if err := renewScript.Execute(&buf, renewData{
		Domain:  m.env.DomainName,
		Binary:  m.Binary,
		EnvFile: m.envFile(),
	}); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(script), 0o755); err != nil {
		return fmt.Errorf("could not create renewal script directory: %w", err)
	}

	if err := os.WriteFile(script, buf.Bytes(), 0o755); err != nil {
		return fmt.Errorf("could not write renewal script: %w", err)
	}

	current, err := m.crontab(ctx)
	if err != nil {
		return err
	}

	entry := cronSchedule + " " + script

	for _, line := range strings.Split(current, "\n") {
		if strings.TrimSpace(line) == entry {
			m.logger.Info("Renewal already scheduled", "script", script)

			return nil
		}
	}

	updated := current
	if updated != "" && !strings.HasSuffix(updated, "\n") {
		updated += "\n"
	}

	updated += entry + "\n"

	if _, err = m.exec.Execute(ctx, executor.Command{Name: "crontab", Args: []string{"-"}, Stdin: strings.NewReader(updated)}); err != nil {
		return fmt.Errorf("could not install crontab: %w", err)
	}

	m.logger.Info("Renewal scheduled", "script", script, "schedule", cronSchedule)

	return nil
}

// crontab returns the current user crontab, empty when the user has none
func (m *Manager) crontab(ctx context.Context) (string, error) {
	res, err := m.exec.Execute(ctx, executor.Command{Name: "crontab", Args: []string{"-l"}})

	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) && strings.Contains(exitErr.Stderr, "no crontab") {
		return "", nil
	}

	if err != nil {
		return "", fmt.Errorf("could not read crontab: %w", err)
	}

	return res.Stdout, nil
}

func (m *Manager) envFile() string {
	if m.EnvFile == "" {
		return ".env"
	}

	if abs, err := filepath.Abs(m.EnvFile); err == nil {
		return abs
	}

	return m.EnvFile
}

// Package ssl provisions, inspects and renews the TLS material used by the SIP and web edge
package ssl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ZeljkoBenovic/cpaasctl/config"
	"github.com/ZeljkoBenovic/cpaasctl/executor"
	"github.com/hashicorp/go-hclog"
)

const (
	KeyFile      = "key.pem"
	CertFile     = "cert.pem"
	DHParamsFile = "dhparam.pem"

	DefaultLiveDir     = "/etc/letsencrypt/live"
	DefaultDHBits      = 2048
	DefaultValidity    = 365 * 24 * time.Hour
	selfSignedKeyBits  = 2048
	letsEncryptKeyName = "privkey.pem"
	letsEncryptChain   = "fullchain.pem"
)

var ErrEmailRequired = errors.New("SSL_EMAIL is required for LetsEncrypt certificates")

type Manager struct {
	env     config.Config
	exec    executor.Executor
	logger  hclog.Logger
	now     func() time.Time
	liveDir string
	dhBits  int

	// Binary is the command line invoked by the renewal helper
	Binary string
	// EnvFile is passed to the renewal helper
	EnvFile string
}

func NewManager(env config.Config, exec executor.Executor, logger hclog.Logger) *Manager {
	binary, err := os.Executable()
	if err != nil {
		binary = "cpaasctl"
	}

	return &Manager{
		env:     env,
		exec:    exec,
		logger:  logger.Named("ssl"),
		now:     time.Now,
		liveDir: DefaultLiveDir,
		dhBits:  DefaultDHBits,
		Binary:  binary,
	}
}

func (m *Manager) KeyPath() string      { return filepath.Join(m.env.SSL.Dir, KeyFile) }
func (m *Manager) CertPath() string     { return filepath.Join(m.env.SSL.Dir, CertFile) }
func (m *Manager) DHParamsPath() string { return filepath.Join(m.env.SSL.Dir, DHParamsFile) }

// SelfSigned generates a key and a self signed certificate for the domain and the public IP
func (m *Manager) SelfSigned(ctx context.Context) error {
	if err := os.MkdirAll(m.env.SSL.Dir, 0o750); err != nil {
		return fmt.Errorf("could not create ssl directory: %w", err)
	}

	keyPEM, certPEM, err := generateSelfSigned(m.env.DomainName, m.env.PublicIP, m.now(), DefaultValidity)
	if err != nil {
		return err
	}

	if err = os.WriteFile(m.KeyPath(), keyPEM, 0o600); err != nil {
		return fmt.Errorf("could not write key: %w", err)
	}

	if err = os.WriteFile(m.CertPath(), certPEM, 0o644); err != nil {
		return fmt.Errorf("could not write certificate: %w", err)
	}

	m.logger.Info("Self signed certificate created", "domain", m.env.DomainName, "ip", m.env.PublicIP, "cert", m.CertPath())

	return m.ensureDHParams(ctx)
}

// LetsEncrypt obtains a certificate with certbot in standalone mode and installs the renewal helper
func (m *Manager) LetsEncrypt(ctx context.Context) error {
	if m.env.SSL.Email == "" {
		return ErrEmailRequired
	}

	args := []string{
		"certonly", "--standalone", "--non-interactive", "--agree-tos",
		"-m", m.env.SSL.Email,
		"-d", m.env.DomainName,
	}

	if m.env.SSL.Staging {
		args = append(args, "--staging")
	}

	m.logger.Info("Requesting LetsEncrypt certificate", "domain", m.env.DomainName, "staging", m.env.SSL.Staging)

	if _, err := m.exec.Execute(ctx, executor.Command{Name: "certbot", Args: args}); err != nil {
		return fmt.Errorf("certbot failed: %w", err)
	}

	if err := m.copyLive(); err != nil {
		return err
	}

	if err := m.ensureDHParams(ctx); err != nil {
		return err
	}

	return m.InstallRenewal(ctx)
}

// Renew renews certificates with certbot and copies the current ones into the ssl directory
func (m *Manager) Renew(ctx context.Context) error {
	if _, err := m.exec.Execute(ctx, executor.Command{Name: "certbot", Args: []string{"renew", "--quiet"}}); err != nil {
		return fmt.Errorf("certbot renew failed: %w", err)
	}

	if err := m.copyLive(); err != nil {
		return err
	}

	m.logger.Info("Certificates renewed", "cert", m.CertPath())

	return nil
}

func (m *Manager) copyLive() error {
	live := filepath.Join(m.liveDir, m.env.DomainName)

	if err := os.MkdirAll(m.env.SSL.Dir, 0o750); err != nil {
		return fmt.Errorf("could not create ssl directory: %w", err)
	}

	copies := []struct {
		src, dst string
		mode     os.FileMode
	}{
		{filepath.Join(live, letsEncryptChain), m.CertPath(), 0o644},
		{filepath.Join(live, letsEncryptKeyName), m.KeyPath(), 0o600},
	}

	for _, c := range copies {
		data, err := os.ReadFile(c.src)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", c.src, err)
		}

		if err = os.WriteFile(c.dst, data, c.mode); err != nil {
			return fmt.Errorf("could not write %s: %w", c.dst, err)
		}
	}

	m.logger.Debug("Copied live certificates", "from", live, "to", m.env.SSL.Dir)

	return nil
}

func (m *Manager) ensureDHParams(ctx context.Context) error {
	if _, err := os.Stat(m.DHParamsPath()); err == nil {
		m.logger.Debug("DH params already present", "path", m.DHParamsPath())

		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	m.logger.Info("Generating DH params, this can take a while", "bits", m.dhBits)

	_, err := m.exec.Execute(ctx, executor.Command{
		Name: "openssl",
		Args: []string{"dhparam", "-out", m.DHParamsPath(), fmt.Sprint(m.dhBits)},
	})
	if err != nil {
		return fmt.Errorf("could not generate dh params: %w", err)
	}

	return nil
}

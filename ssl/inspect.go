package ssl

import (
	"fmt"
	"os"
)

// Info reads the installed certificate
func (m *Manager) Info() (CertInfo, error) {
	data, err := os.ReadFile(m.CertPath())
	if err != nil {
		return CertInfo{}, fmt.Errorf("could not read certificate: %w", err)
	}

	cert, err := parseCertificate(data)
	if err != nil {
		return CertInfo{}, err
	}

	return certInfo(cert), nil
}

// Verify checks the installed key and certificate against each other, the clock and DOMAIN_NAME
func (m *Manager) Verify() (CertInfo, error) {
	certPEM, err := os.ReadFile(m.CertPath())
	if err != nil {
		return CertInfo{}, fmt.Errorf("could not read certificate: %w", err)
	}

	keyPEM, err := os.ReadFile(m.KeyPath())
	if err != nil {
		return CertInfo{}, fmt.Errorf("could not read key: %w", err)
	}

	info, err := verifyPair(certPEM, keyPEM, m.env.DomainName, m.now())
	if err != nil {
		return info, err
	}

	m.logger.Info("Certificate is valid", "subject", info.Subject, "expires", info.NotAfter, "days_left", info.DaysLeft(m.now()))

	return info, nil
}

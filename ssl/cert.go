package ssl

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"time"
)

var (
	ErrNoCertificate       = errors.New("no certificate found in file")
	ErrKeyMismatch         = errors.New("private key does not match certificate")
	ErrCertificateExpired  = errors.New("certificate has expired")
	ErrCertificateNotValid = errors.New("certificate is not valid yet")
)

// CertInfo describes an installed certificate
type CertInfo struct {
	Subject    string
	Issuer     string
	DNSNames   []string
	IPs        []string
	NotBefore  time.Time
	NotAfter   time.Time
	SelfSigned bool
}

// DaysLeft until expiry, negative once expired
func (c CertInfo) DaysLeft(now time.Time) int {
	return int(c.NotAfter.Sub(now).Hours() / 24)
}

func generateSelfSigned(domain, ip string, now time.Time, validity time.Duration) ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, selfSignedKeyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("could not generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: domain},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}

	if domain != "" {
		tmpl.DNSNames = []string{domain}
	}

	if parsed := net.ParseIP(ip); parsed != nil {
		tmpl.IPAddresses = []net.IP{parsed}
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create certificate: %w", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	return keyPEM, certPEM, nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	block, rest := pem.Decode(data)
	for block != nil && block.Type != "CERTIFICATE" {
		block, rest = pem.Decode(rest)
	}

	if block == nil {
		return nil, ErrNoCertificate
	}

	return x509.ParseCertificate(block.Bytes)
}

func certInfo(cert *x509.Certificate) CertInfo {
	info := CertInfo{
		Subject:    cert.Subject.String(),
		Issuer:     cert.Issuer.String(),
		DNSNames:   cert.DNSNames,
		NotBefore:  cert.NotBefore,
		NotAfter:   cert.NotAfter,
		SelfSigned: bytes.Equal(cert.RawIssuer, cert.RawSubject),
	}

	for _, ip := range cert.IPAddresses {
		info.IPs = append(info.IPs, ip.String())
	}

	return info
}

// verifyPair checks that key and certificate belong together, the validity window and the hostname
func verifyPair(certPEM, keyPEM []byte, host string, now time.Time) (CertInfo, error) {
	cert, err := parseCertificate(certPEM)
	if err != nil {
		return CertInfo{}, err
	}

	info := certInfo(cert)

	if _, err = tls.X509KeyPair(certPEM, keyPEM); err != nil {
		return info, fmt.Errorf("%w: %v", ErrKeyMismatch, err)
	}

	if now.Before(cert.NotBefore) {
		return info, fmt.Errorf("%w: valid from %s", ErrCertificateNotValid, cert.NotBefore.Format(time.RFC3339))
	}

	if now.After(cert.NotAfter) {
		return info, fmt.Errorf("%w: expired at %s", ErrCertificateExpired, cert.NotAfter.Format(time.RFC3339))
	}

	if host != "" {
		if err = cert.VerifyHostname(host); err != nil {
			return info, err
		}
	}

	return info, nil
}

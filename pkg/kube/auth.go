package kube

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// Credentials locate the API server client credentials on disk. The managed
// distribution writes them next to its own data directory; paths are
// configurable for tests and non-standard layouts.
type Credentials struct {
	// CAFile is the PEM-encoded cluster CA certificate.
	CAFile string

	// CertFile and KeyFile are the PEM-encoded client certificate pair.
	// Both empty means token-only authentication.
	CertFile string
	KeyFile  string

	// TokenFile holds a bearer token. Optional.
	TokenFile string
}

// LoadTLS builds a TLS config from the credential files.
func (c Credentials) LoadTLS() (*tls.Config, error) {
	caPEM, err := os.ReadFile(c.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("failed to parse CA certificate from %s", c.CAFile)
	}

	cfg := &tls.Config{RootCAs: pool}
	if c.CertFile != "" || c.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

// LoadToken reads the bearer token, if a token file was configured.
func (c Credentials) LoadToken() (string, error) {
	if c.TokenFile == "" {
		return "", nil
	}
	raw, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read token file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// NewClientFromCredentials loads the credential files and creates a client.
func NewClientFromCredentials(server string, creds Credentials) (*Client, error) {
	tlsCfg, err := creds.LoadTLS()
	if err != nil {
		return nil, err
	}
	token, err := creds.LoadToken()
	if err != nil {
		return nil, err
	}
	return NewClient(Config{Server: server, Token: token, TLS: tlsCfg})
}

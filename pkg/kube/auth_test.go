package kube

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestCert writes a self-signed certificate and its key as PEM files and
// returns their paths.
func writeTestCert(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "ca.crt")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	require.NoError(t, os.WriteFile(certPath, certPEM, 0o644))

	keyPath = filepath.Join(dir, "ca.key")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	require.NoError(t, os.WriteFile(keyPath, keyPEM, 0o600))

	return certPath, keyPath
}

func TestLoadTLSWithClientCert(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := writeTestCert(t, dir)

	creds := Credentials{CAFile: certPath, CertFile: certPath, KeyFile: keyPath}
	cfg, err := creds.LoadTLS()
	require.NoError(t, err)

	assert.NotNil(t, cfg.RootCAs)
	assert.Len(t, cfg.Certificates, 1)
}

func TestLoadTLSTokenOnly(t *testing.T) {
	dir := t.TempDir()
	certPath, _ := writeTestCert(t, dir)

	cfg, err := Credentials{CAFile: certPath}.LoadTLS()
	require.NoError(t, err)
	assert.Empty(t, cfg.Certificates)
}

func TestLoadTLSMissingCA(t *testing.T) {
	_, err := Credentials{CAFile: filepath.Join(t.TempDir(), "missing.crt")}.LoadTLS()
	assert.ErrorContains(t, err, "failed to read CA certificate")
}

func TestLoadTLSGarbageCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.crt")
	require.NoError(t, os.WriteFile(path, []byte("not pem"), 0o644))

	_, err := Credentials{CAFile: path}.LoadTLS()
	assert.ErrorContains(t, err, "failed to parse CA certificate")
}

func TestLoadToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("tok3n\n"), 0o600))

	token, err := Credentials{TokenFile: path}.LoadToken()
	require.NoError(t, err)
	assert.Equal(t, "tok3n", token)

	token, err = Credentials{}.LoadToken()
	require.NoError(t, err)
	assert.Empty(t, token)
}

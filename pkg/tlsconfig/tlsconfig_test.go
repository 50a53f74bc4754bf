package tlsconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeSelfSigned writes a self-signed cert/key pair that doubles as its own CA
func writeSelfSigned(t *testing.T) Files {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "portguard-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("failed to create certificate: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	dir := t.TempDir()
	f := Files{
		Cert: filepath.Join(dir, "cert.pem"),
		Key:  filepath.Join(dir, "key.pem"),
		CA:   filepath.Join(dir, "cert.pem"),
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(f.Cert, certPEM, 0o600); err != nil {
		t.Fatalf("failed to write cert: %v", err)
	}
	if err := os.WriteFile(f.Key, keyPEM, 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	return f
}

func TestLoadServerTLS(t *testing.T) {
	f := writeSelfSigned(t)

	cfg, err := LoadServerTLS(f)
	if err != nil {
		t.Fatalf("LoadServerTLS failed: %v", err)
	}
	if cfg.ClientAuth != tls.RequireAndVerifyClientCert {
		t.Errorf("expected client certs to be required, got %v", cfg.ClientAuth)
	}
	if cfg.ClientCAs == nil || len(cfg.Certificates) != 1 {
		t.Error("expected client CA pool and one certificate")
	}
	if cfg.MinVersion != tls.VersionTLS12 {
		t.Errorf("expected TLS 1.2 minimum, got %x", cfg.MinVersion)
	}
}

func TestLoadClientTLS(t *testing.T) {
	f := writeSelfSigned(t)

	cfg, err := LoadClientTLS(f)
	if err != nil {
		t.Fatalf("LoadClientTLS failed: %v", err)
	}
	if cfg.RootCAs == nil || len(cfg.Certificates) != 1 {
		t.Error("expected root CA pool and one certificate")
	}
}

func TestLoad_Errors(t *testing.T) {
	f := writeSelfSigned(t)

	missing := f
	missing.Key = filepath.Join(t.TempDir(), "nope.pem")
	if _, err := LoadServerTLS(missing); err == nil {
		t.Error("expected error for missing key")
	}

	// A key file is not a CA bundle
	badCA := f
	badCA.CA = f.Key
	if _, err := LoadClientTLS(badCA); !errors.Is(err, ErrNoCertificates) {
		t.Errorf("expected ErrNoCertificates, got %v", err)
	}
}

func TestFiles_Enabled(t *testing.T) {
	if (Files{}).Enabled() {
		t.Error("expected empty Files to be disabled")
	}
	if !(Files{Cert: "cert.pem"}).Enabled() {
		t.Error("expected Files with a cert to be enabled")
	}
}

// Package tlsconfig builds mutual-TLS configs for the port service and its clients.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// ErrNoCertificates is returned when a CA bundle holds no usable PEM block
var ErrNoCertificates = errors.New("no certificates found in CA bundle")

// Files names the PEM files of one peer
type Files struct {
	Cert string // this peer's certificate
	Key  string // this peer's private key
	CA   string // CA that signed the other side
}

// Enabled reports whether a certificate was configured
func (f Files) Enabled() bool {
	return f.Cert != ""
}

// LoadServerTLS creates a tls.Config for a gRPC server requiring client certs (mTLS).
func LoadServerTLS(f Files) (*tls.Config, error) {
	cert, pool, err := load(f)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
	}, nil
}

// LoadClientTLS creates a tls.Config for a gRPC client that presents a cert (mTLS).
func LoadClientTLS(f Files) (*tls.Config, error) {
	cert, pool, err := load(f)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
	}, nil
}

func load(f Files) (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.LoadX509KeyPair(f.Cert, f.Key)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	pool, err := loadPool(f.CA)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	return cert, pool, nil
}

func loadPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%s: %w", caFile, ErrNoCertificates)
	}
	return pool, nil
}

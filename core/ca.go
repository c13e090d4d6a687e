package core

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/elazarl/goproxy"
)

// LoadCA reads the PEM certificate and key used to sign intercepted hosts.
// With both paths empty it returns goproxy's built-in CA.
func LoadCA(certPath, keyPath string) (tls.Certificate, error) {
	if certPath == "" && keyPath == "" {
		return DefaultCA()
	}
	if certPath == "" || keyPath == "" {
		return tls.Certificate{}, fmt.Errorf("both proxy.ca_cert_path and proxy.ca_key_path must be set (got cert=%q key=%q)", certPath, keyPath)
	}
	certPEM, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read CA certificate file %s: %w", certPath, err)
	}
	keyPEM, err := os.ReadFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to read CA key file %s: %w", keyPath, err)
	}
	ca, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse CA key pair from %s and %s: %w", certPath, keyPath, err)
	}
	if err := ensureLeaf(&ca); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse CA certificate from %s: %w", certPath, err)
	}
	if !ca.Leaf.IsCA {
		return tls.Certificate{}, fmt.Errorf("certificate %s is not a CA certificate", certPath)
	}
	return ca, nil
}

// DefaultCA returns a copy of goproxy's bundled CA with its leaf parsed.
func DefaultCA() (tls.Certificate, error) {
	ca := goproxy.GoproxyCa
	if err := ensureLeaf(&ca); err != nil {
		return tls.Certificate{}, fmt.Errorf("failed to parse built-in CA: %w", err)
	}
	return ca, nil
}

func ensureLeaf(ca *tls.Certificate) error {
	if ca.Leaf != nil {
		return nil
	}
	if len(ca.Certificate) == 0 {
		return fmt.Errorf("empty certificate chain")
	}
	leaf, err := x509.ParseCertificate(ca.Certificate[0])
	if err != nil {
		return err
	}
	ca.Leaf = leaf
	return nil
}

// mitmConnect builds a per-instance CONNECT action so runs never touch goproxy's globals.
func mitmConnect(ca *tls.Certificate) *goproxy.ConnectAction {
	return &goproxy.ConnectAction{Action: goproxy.ConnectMitm, TLSConfig: goproxy.TLSConfigFromCA(ca)}
}

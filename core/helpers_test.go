package core

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"net/http"
	"net/url"
	"strings"
	"streamline/logger"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Lines() []string {
	s := strings.TrimSpace(b.String())
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// linesContaining returns every log line containing substr.
func (b *syncBuffer) linesContaining(substr string) []string {
	var out []string
	for _, l := range b.Lines() {
		if strings.Contains(l, substr) {
			out = append(out, l)
		}
	}
	return out
}

func newTestLogger() (*zerolog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	l := logger.NewLineLogger(buf, zerolog.DebugLevel)
	return &l, buf
}

var (
	testCAOnce sync.Once
	testCA     tls.Certificate
	testCAErr  error
)

// newTestCA returns a self-signed RSA CA shared by the package's tests.
func newTestCA(t *testing.T) *tls.Certificate {
	t.Helper()
	testCAOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			testCAErr = err
			return
		}
		tmpl := &x509.Certificate{
			SerialNumber:          big.NewInt(time.Now().UnixNano()),
			Subject:               pkix.Name{CommonName: "streamline test CA", Organization: []string{"streamline"}},
			NotBefore:             time.Now().Add(-time.Hour),
			NotAfter:              time.Now().Add(24 * time.Hour),
			KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
			BasicConstraintsValid: true,
			IsCA:                  true,
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
		if err != nil {
			testCAErr = err
			return
		}
		leaf, err := x509.ParseCertificate(der)
		if err != nil {
			testCAErr = err
			return
		}
		testCA = tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}
	})
	require.NoError(t, testCAErr)
	ca := testCA
	return &ca
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func newTestController(t *testing.T, opts ControllerOptions) (*Controller, *syncBuffer) {
	t.Helper()
	log, buf := newTestLogger()
	if opts.Logger == nil {
		opts.Logger = log
	}
	if opts.CA == nil {
		opts.CA = newTestCA(t)
	}
	opts.ListenHost = "127.0.0.1"
	opts.SkipUpstreamVerify = true
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 2 * time.Second
	}
	return NewController(NewEventBus(), opts), buf
}

// proxyClient sends requests through run and trusts ca for intercepted HTTPS.
func proxyClient(t *testing.T, run *Run, ca *tls.Certificate) *http.Client {
	t.Helper()
	proxyURL, err := url.Parse("http://" + run.Addr().String())
	require.NoError(t, err)
	pool := x509.NewCertPool()
	pool.AddCert(ca.Leaf)
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyURL),
			TLSClientConfig:   &tls.Config{RootCAs: pool},
			DisableKeepAlives: true,
		},
	}
}

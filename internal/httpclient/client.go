package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"
)

// NewClient creates an http.Client trusting the system CAs plus the PEM
// certificates in caFile. With no caFile and no timeout it returns
// http.DefaultClient.
func NewClient(caFile string, timeout time.Duration) (*http.Client, error) {
	if caFile == "" {
		if timeout <= 0 {
			return http.DefaultClient, nil
		}
		return &http.Client{Timeout: timeout}, nil
	}

	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	// Load system cert pool
	rootCAs, err := x509.SystemCertPool()
	if err != nil || rootCAs == nil {
		rootCAs = x509.NewCertPool()
	}
	if !rootCAs.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{RootCAs: rootCAs}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

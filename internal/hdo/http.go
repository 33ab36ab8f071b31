package hdo

import (
	"crypto/tls"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client with optional TLS configuration.
// Set skipTLSVerify to true for servers with misconfigured certificate chains
// (e.g., servers that don't send intermediate certificates).
func NewHTTPClient(timeout time.Duration, skipTLSVerify bool) *http.Client {
	transport := &http.Transport{}

	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DefaultHTTPClient returns a standard HTTP client with the fetch timeout
// used for the ZSE page.
func DefaultHTTPClient() *http.Client {
	return NewHTTPClient(RequestTimeout, false)
}

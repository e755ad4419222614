package httpclient

import (
	"crypto/tls"
	"fmt"
	"net/http"
)

// ErrorKind is the closed error taxonomy from spec.md §7 that applies to the
// HTTP client specifically.
type ErrorKind string

const (
	ErrInvalidURL     ErrorKind = "INVALID_URL"
	ErrRobotsDisallow ErrorKind = "ROBOTS_DISALLOW"
	ErrHTTP4xx        ErrorKind = "HTTP_4XX"
	ErrHTTP5xx        ErrorKind = "HTTP_5XX_TIMEOUT"
	ErrSSL            ErrorKind = "SSL_ERROR"
	ErrNetwork        ErrorKind = "NETWORK"
)

// Error is the typed result every transport failure is converted to before
// it leaves this package — callers (discovery adapters, extraction) never
// see a bare net/http or TLS error, per spec.md §7's propagation policy.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.URL, e.Cause)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.URL, e.StatusCode)
}

func (e *Error) Unwrap() error { return e.Cause }

// insecureHTTPClient builds the verify=false fallback transport used only
// when a host is in the SSL insecure allowlist and a prior attempt on that
// URL already failed with a TLS error (spec.md §4.5).
func insecureHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	return &http.Client{
		Timeout:   connectTimeout + readTimeout,
		Transport: transport,
	}
}

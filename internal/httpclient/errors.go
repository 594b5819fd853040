package httpclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// StatusError is returned when the server answers with an unexpected HTTP status
type StatusError struct {
	Method string
	URL    string
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, e.Reason)
}

func newStatusError(method, url string, resp *http.Response) *StatusError {
	reason := http.StatusText(resp.StatusCode)
	if _, text, ok := strings.Cut(resp.Status, " "); ok && text != "" {
		reason = text
	}
	return &StatusError{Method: method, URL: url, Code: resp.StatusCode, Reason: reason}
}

// IsUnauthorized reports whether err carries an HTTP 401
func IsUnauthorized(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized
}

// CertificateFlags describe why the server certificate was not trusted
type CertificateFlags uint8

const (
	CertificateUnknownCA CertificateFlags = 1 << iota
	CertificateBadIdentity
	CertificateNotActivated
	CertificateExpired
	CertificateGenericError
)

var certificateFlagNames = []struct {
	flag CertificateFlags
	name string
}{
	{CertificateUnknownCA, "unknown-ca"},
	{CertificateBadIdentity, "bad-identity"},
	{CertificateNotActivated, "not-activated"},
	{CertificateExpired, "expired"},
	{CertificateGenericError, "generic-error"},
}

func (f CertificateFlags) String() string {
	var names []string
	for _, n := range certificateFlagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// CertificateError is a TLS trust failure. PEM holds the server's leaf
// certificate so a caller can offer to trust it.
type CertificateError struct {
	PEM   []byte
	Flags CertificateFlags
	Err   error
}

func (e *CertificateError) Error() string {
	return fmt.Sprintf("untrusted server certificate (%s): %v", e.Flags, e.Err)
}

func (e *CertificateError) Unwrap() error {
	return e.Err
}

func wrapTransportError(err error) error {
	var verifyErr *tls.CertificateVerificationError
	if !errors.As(err, &verifyErr) {
		return err
	}

	certErr := &CertificateError{Flags: certificateFlags(verifyErr.Err), Err: err}
	if len(verifyErr.UnverifiedCertificates) > 0 {
		leaf := verifyErr.UnverifiedCertificates[0]
		certErr.PEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw})
		if certErr.Flags&CertificateExpired != 0 && time.Now().Before(leaf.NotBefore) {
			certErr.Flags = certErr.Flags&^CertificateExpired | CertificateNotActivated
		}
	}
	return certErr
}

func certificateFlags(err error) CertificateFlags {
	var (
		unknownAuthority x509.UnknownAuthorityError
		hostname         x509.HostnameError
		invalid          x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &unknownAuthority):
		return CertificateUnknownCA
	case errors.As(err, &hostname):
		return CertificateBadIdentity
	case errors.As(err, &invalid) && invalid.Reason == x509.Expired:
		return CertificateExpired
	}
	return CertificateGenericError
}

// IsFatal reports whether err means the server cannot be talked to at all,
// so that trying further URIs on it is pointless.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

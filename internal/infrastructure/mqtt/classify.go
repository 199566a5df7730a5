package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"

	"github.com/eclipse/paho.mqtt.golang/packets"
)

// Class separates errors the Manager retries from errors that stop it.
type Class int

const (
	// Transient errors are retried after a backoff.
	Transient Class = iota
	// Fatal errors stop the event loop until the configuration changes or
	// a restart is requested.
	Fatal
)

// String implements fmt.Stringer.
func (c Class) String() string {
	if c == Fatal {
		return "fatal"
	}
	return "transient"
}

// Classification is the result of Classify. Reason is persisted as the
// broker's state text.
type Classification struct {
	Class  Class
	Reason string
}

// Status reasons persisted for well-known failures.
const (
	ReasonTimeout         = "Timeout"
	ReasonAuthFailed      = "Authentication failed: bad username or password"
	ReasonNotAuthorised   = "Not authorised"
	ReasonIDRejected      = "Client ID rejected"
	ReasonBadProtocol     = "Unsupported protocol version"
	ReasonTLSRequired     = "Needs SSL/TLS enabled"
	reasonDNSPrefix       = "DNS resolution failed: "
	reasonCertificateFail = "TLS error: "
)

// Classify decides whether err should be retried.
//
// Parameters:
//   - err: Error from a connect attempt or a dropped connection
//   - tlsEnabled: Whether the failing connection used TLS
//
// Returns:
//   - Classification: Fatal for certificate, DNS, auth and TLS-required
//     failures; Transient for everything else
func Classify(err error, tlsEnabled bool) Classification {
	if err == nil {
		return Classification{Class: Transient}
	}

	if isCertificateError(err) {
		return Classification{Class: Fatal, Reason: reasonCertificateFail + err.Error()}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout && !dnsErr.IsTemporary {
		return Classification{Class: Fatal, Reason: reasonDNSPrefix + dnsErr.Error()}
	}

	switch {
	case errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword):
		return Classification{Class: Fatal, Reason: ReasonAuthFailed}
	case errors.Is(err, packets.ErrorRefusedNotAuthorised):
		return Classification{Class: Fatal, Reason: ReasonNotAuthorised}
	case errors.Is(err, packets.ErrorRefusedIDRejected):
		return Classification{Class: Fatal, Reason: ReasonIDRejected}
	case errors.Is(err, packets.ErrorRefusedBadProtocolVersion):
		return Classification{Class: Fatal, Reason: ReasonBadProtocol}
	case errors.Is(err, packets.ErrorProtocolViolation) && !tlsEnabled:
		// A TLS-only listener answers a plaintext CONNECT with garbage.
		return Classification{Class: Fatal, Reason: ReasonTLSRequired}
	}

	if isTimeout(err) {
		return Classification{Class: Transient, Reason: ReasonTimeout}
	}
	return Classification{Class: Transient, Reason: err.Error()}
}

func isCertificateError(err error) bool {
	var (
		unknownAuthority x509.UnknownAuthorityError
		invalid          x509.CertificateInvalidError
		hostname         x509.HostnameError
		verification     *tls.CertificateVerificationError
		recordHeader     tls.RecordHeaderError
	)
	return errors.As(err, &unknownAuthority) ||
		errors.As(err, &invalid) ||
		errors.As(err, &hostname) ||
		errors.As(err, &verification) ||
		errors.As(err, &recordHeader)
}

func isTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

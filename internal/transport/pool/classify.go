package pool

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"

	"github.com/kailas-cloud/catalog/internal/domain"
)

// classify maps a transport error to a stable kind. ctx is the per-call
// context, so an expired deadline is reported as a timeout even when the
// transport wraps it in something generic.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindTimeout, op, "request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindTransport, op, "request canceled", err)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.NewError(domain.KindDNS, op, "cannot resolve host "+dnsErr.Name, err)
	}

	if isTLS(err) {
		return domain.NewError(domain.KindTLS, op, "tls handshake failed", err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return domain.NewError(domain.KindConnect, op, "connection failed", err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return domain.NewError(domain.KindConnect, op, "connection failed", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewError(domain.KindTimeout, op, "request timed out", err)
	}

	return domain.NewError(domain.KindTransport, op, "request failed", err)
}

func isTLS(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		authorityEr x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &authorityEr) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

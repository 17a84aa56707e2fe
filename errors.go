package catalog

import (
	"github.com/kailas-cloud/catalog/internal/domain"
	"github.com/kailas-cloud/catalog/internal/domain/product"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput = domain.ErrInvalidInput
	ErrCapacity     = domain.ErrCapacity
	ErrDNS          = domain.ErrDNS
	ErrConnect      = domain.ErrConnect
	ErrTLS          = domain.ErrTLS
	ErrTimeout      = domain.ErrTimeout
	ErrTransport    = domain.ErrTransport
	ErrHTTPStatus   = domain.ErrHTTPStatus
	ErrDecode       = domain.ErrDecode
	ErrStructure    = domain.ErrStructure
	ErrNoModel      = domain.ErrNoModel
	ErrIntegrity    = domain.ErrIntegrity
	ErrStorage      = domain.ErrStorage
	ErrFormat       = product.ErrFormat
)

// Error is a classified failure. Use errors.As to read its kind, HTTP status
// or product identifier.
type Error = domain.Error

// ErrorKind classifies an Error.
type ErrorKind = domain.Kind

// IsRetryable reports whether retrying the same call later may succeed:
// capacity, network and HTTP status failures.
func IsRetryable(err error) bool { return domain.IsRetryable(err) }

// IsNoModel reports whether err means the product has no 3D model, so the
// caller should pick another item rather than retry.
func IsNoModel(err error) bool { return domain.IsNoModel(err) }

// IsInputError reports whether err was caused by caller input.
func IsInputError(err error) bool { return domain.IsInputError(err) }

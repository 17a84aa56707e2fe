package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure by the layer that produced it.
type Kind string

// Error kinds, in the order a request can fail.
const (
	KindInvalidInput Kind = "invalid_input"
	KindCapacity     Kind = "capacity"
	KindDNS          Kind = "dns"
	KindConnect      Kind = "connect"
	KindTLS          Kind = "tls"
	KindTimeout      Kind = "timeout"
	KindTransport    Kind = "transport"
	KindHTTPStatus   Kind = "http_status"
	KindDecode       Kind = "decode"
	KindStructure    Kind = "structure"
	KindNoModel      Kind = "no_model"
	KindIntegrity    Kind = "integrity"
	KindStorage      Kind = "storage"
)

var (
	// ErrInvalidInput signals a malformed identifier or a missing argument.
	ErrInvalidInput = errors.New("invalid input")
	// ErrCapacity signals that every transport slot is busy.
	ErrCapacity = errors.New("no free transport slot")
	// ErrDNS signals that the host could not be resolved.
	ErrDNS = errors.New("cannot resolve host")
	// ErrConnect signals a refused or failed connection.
	ErrConnect = errors.New("cannot connect")
	// ErrTLS signals a TLS handshake or certificate failure.
	ErrTLS = errors.New("tls failure")
	// ErrTimeout signals that a request exceeded its time bound.
	ErrTimeout = errors.New("request timed out")
	// ErrTransport signals any other transport failure.
	ErrTransport = errors.New("transport failure")
	// ErrHTTPStatus signals a response status outside [200,300).
	ErrHTTPStatus = errors.New("unexpected http status")
	// ErrDecode signals an undecodable response or cached payload.
	ErrDecode = errors.New("cannot decode response")
	// ErrStructure signals a decoded document missing an expected field.
	ErrStructure = errors.New("invalid response structure")
	// ErrNoModel signals that the product has no 3D model.
	ErrNoModel = errors.New("no model available for this item")
	// ErrIntegrity signals a downloaded file that failed validation.
	ErrIntegrity = errors.New("invalid or corrupted file")
	// ErrStorage signals a cache I/O failure.
	ErrStorage = errors.New("storage failure")
)

var kindSentinels = map[Kind]error{
	KindInvalidInput: ErrInvalidInput,
	KindCapacity:     ErrCapacity,
	KindDNS:          ErrDNS,
	KindConnect:      ErrConnect,
	KindTLS:          ErrTLS,
	KindTimeout:      ErrTimeout,
	KindTransport:    ErrTransport,
	KindHTTPStatus:   ErrHTTPStatus,
	KindDecode:       ErrDecode,
	KindStructure:    ErrStructure,
	KindNoModel:      ErrNoModel,
	KindIntegrity:    ErrIntegrity,
	KindStorage:      ErrStorage,
}

// Error is a classified failure of a flow or one of its stages.
// errors.Is matches both the kind sentinel and the wrapped cause.
type Error struct {
	Kind Kind
	// Op names the flow or stage, e.g. "metadata" or "model.download".
	Op string
	// ID is the compact product identifier, if the flow has one.
	ID string
	// Status is the HTTP status code for KindHTTPStatus.
	Status int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.ID != "" {
		b.WriteString(e.ID)
		b.WriteString(": ")
	}
	msg := e.Msg
	if msg == "" {
		if s, ok := kindSentinels[e.Kind]; ok {
			msg = s.Error()
		} else {
			msg = string(e.Kind)
		}
	}
	b.WriteString(msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewError creates a classified error.
func NewError(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: cause}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// WithID returns err annotated with a product identifier.
// A bare *Error is copied with ID set. When the *Error sits under other
// wrapping, the result keeps the whole chain and exposes the annotated copy
// to errors.As. Errors without a classification get the identifier as a prefix.
func WithID(err error, id string) error {
	if err == nil {
		return nil
	}
	var de *Error
	if !errors.As(err, &de) {
		return fmt.Errorf("%s: %w", id, err)
	}
	if de.ID != "" {
		return err
	}
	cp := *de
	cp.ID = id
	if err == error(de) {
		return &cp
	}
	return &idError{id: id, annotated: &cp, cause: err}
}

// idError carries an identifier-annotated copy of a classified error
// alongside the original wrapped chain.
type idError struct {
	id        string
	annotated *Error
	cause     error
}

func (e *idError) Error() string { return e.id + ": " + e.cause.Error() }

func (e *idError) Unwrap() []error { return []error{e.annotated, e.cause} }

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	for k, s := range kindSentinels {
		if errors.Is(err, s) {
			return k, true
		}
	}
	return "", false
}

// IsRetryable reports whether a failure is "not your fault, try later".
func IsRetryable(err error) bool {
	k, ok := KindOf(err)
	if !ok {
		return false
	}
	switch k {
	case KindCapacity, KindDNS, KindConnect, KindTLS, KindTimeout, KindTransport, KindHTTPStatus:
		return true
	default:
		return false
	}
}

// IsInputError reports whether a failure was caused by bad caller input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsNoModel reports whether a failure means the item simply has no model.
func IsNoModel(err error) bool {
	return errors.Is(err, ErrNoModel)
}

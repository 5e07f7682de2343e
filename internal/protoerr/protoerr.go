// Package protoerr defines the shared error taxonomy used across the
// crypto, protocol, transport, reliability, and node packages.
package protoerr

import "fmt"

// Kind identifies a category of failure from the error taxonomy.
type Kind string

const (
	TransportUnavailable Kind = "transport.unavailable"
	TransportRejected    Kind = "transport.rejected"
	CodecMalformed       Kind = "codec.malformed"
	CodecUnknownEnvelope Kind = "codec.unknown_envelope"
	CodecInvariant       Kind = "codec.invariant"
	CryptoAuth           Kind = "crypto.auth"
	CryptoKey            Kind = "crypto.key"
	ReliabilityUndelivered Kind = "reliability.undelivered"
	InvariantState       Kind = "invariant.state"
)

// Error wraps an underlying error with a taxonomy Kind so callers can
// branch with errors.Is / errors.As without importing per-package
// sentinel sets.
type Error struct {
	Kind Kind
	Err  error
}

func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf("%s", msg)}
}

func Wrap(kind Kind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e == nil || e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error carrying the same Kind, so
// errors.Is(err, &Error{Kind: protoerr.CryptoAuth}) style checks work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Of constructs a zero-payload *Error for use with errors.Is, e.g.
// errors.Is(err, protoerr.Of(protoerr.CryptoAuth)).
func Of(kind Kind) *Error {
	return &Error{Kind: kind}
}

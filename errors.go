package libssh

import "fmt"

// IoError covers socket operations and EOF during handshake.
type IoError struct{ Msg string }

func (e *IoError) Error() string { return "io error: " + e.Msg }

// NewIoError builds an IoError.
func NewIoError(format string, args ...interface{}) *IoError {
	return &IoError{Msg: fmt.Sprintf(format, args...)}
}

// ProtocolError covers malformed packets, wrong packet type for state,
// oversized banners, and empty algorithm intersections.
type ProtocolError struct{ Msg string }

func (e *ProtocolError) Error() string { return "protocol error: " + e.Msg }

// NewProtocolError builds a ProtocolError.
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Msg: fmt.Sprintf(format, args...)}
}

// CryptoError covers DH arithmetic failure, signature failure, and
// key-derivation failure.
type CryptoError struct{ Msg string }

func (e *CryptoError) Error() string { return "crypto error: " + e.Msg }

// NewCryptoError builds a CryptoError.
func NewCryptoError(format string, args ...interface{}) *CryptoError {
	return &CryptoError{Msg: fmt.Sprintf(format, args...)}
}

// ConfigError covers missing host keys and unbindable addresses.
type ConfigError struct{ Msg string }

func (e *ConfigError) Error() string { return "config error: " + e.Msg }

// NewConfigError builds a ConfigError.
func NewConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// AllocError covers resource-allocation failure.
type AllocError struct{ Msg string }

func (e *AllocError) Error() string { return "alloc error: " + e.Msg }

// NewAllocError builds an AllocError.
func NewAllocError(format string, args ...interface{}) *AllocError {
	return &AllocError{Msg: fmt.Sprintf(format, args...)}
}

// ErrRekeyUnsupported is returned if the driver is asked to re-enter DH
// after AUTHENTICATING. Re-keying is a documented limitation here
// (DESIGN.md "Open Questions resolved").
var ErrRekeyUnsupported = NewProtocolError("re-keying is not supported")

package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type ErrCode)
// and an error message. All connection, discovery and protocol failures in
// this module surface as *Error so callers can branch on the code instead
// of parsing message strings.
type Error struct {
	Code ErrCode // The error code
	Msg  string  // The error message
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("cachelink: %s: %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// NewErrorf creates a new Error with the given code and a formatted message.
func NewErrorf(code ErrCode, format string, args ...interface{}) *Error {
	return &Error{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code ErrCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// --------------------------------------------------------------------------
// Error Codes
// --------------------------------------------------------------------------

type ErrCode uint64

const (
	ErrCInternal          ErrCode = iota // 0: Internal error.
	ErrCNoAddresses                      // 1: The directory has no candidate addresses.
	ErrCBadAddress                       // 2: An endpoint address could not be parsed.
	ErrCHandshakeFailed                  // 3: Transport or TLS handshake failed.
	ErrCAuthRejected                     // 4: The server rejected the credential.
	ErrCProtocolViolation                // 5: The peer sent an unexpected message kind.
	ErrCIOFailure                        // 6: Read or write on an established connection failed.
	ErrCTimeout                          // 7: A call exceeded its deadline.
	ErrCDiscovery                        // 8: The discovery endpoint returned an unusable response.
	ErrCStreamLimit                      // 9: The subscription admission cap is reached.
)

// String returns the string representation of an ErrCode.
func (c ErrCode) String() string {
	switch c {
	case ErrCInternal:
		return "internal"
	case ErrCNoAddresses:
		return "no addresses available"
	case ErrCBadAddress:
		return "bad address"
	case ErrCHandshakeFailed:
		return "handshake failed"
	case ErrCAuthRejected:
		return "authentication rejected"
	case ErrCProtocolViolation:
		return "protocol violation"
	case ErrCIOFailure:
		return "i/o failure"
	case ErrCTimeout:
		return "timeout"
	case ErrCDiscovery:
		return "discovery failure"
	case ErrCStreamLimit:
		return "stream limit reached"
	default:
		return "unknown"
	}
}

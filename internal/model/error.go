package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for programming-visible conditions.
var (
	// ErrMissingAuthContext means sync or signing was invoked before the
	// authentication flow completed.
	ErrMissingAuthContext = errors.New("auth context not available: authenticate first")

	// ErrNoSessionID means authentication was attempted without an open
	// device session.
	ErrNoSessionID = errors.New("no device session id available")

	// ErrNotConnected means an operation that needs a device was invoked
	// with none connected.
	ErrNotConnected = errors.New("no device connected")

	// ErrConnectionBusy means a connect attempt was rejected because one
	// is already in progress.
	ErrConnectionBusy = errors.New("a device connection is already in progress")

	// ErrSigningBusy means a sign request was rejected because a signing
	// flow is already in progress.
	ErrSigningBusy = errors.New("a signing flow is already in progress")

	// ErrUserRejected means the user declined the operation on the device.
	ErrUserRejected = errors.New("user rejected on device")
)

// ConnectionError wraps a transport-level failure, carrying the operation
// and the attempted transport type.
type ConnectionError struct {
	Op        string // "connect", "disconnect", "discover"
	Transport ConnectionType
	Err       error
}

func (e *ConnectionError) Error() string {
	if e.Transport != "" {
		return fmt.Sprintf("device %s over %s failed: %v", e.Op, e.Transport, e.Err)
	}
	return fmt.Sprintf("device %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsConnectionError checks if err is a ConnectionError.
func IsConnectionError(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

// AuthError wraps a trustchain authentication failure. None of these are
// retried internally.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error { return e.Err }

// AccountsFetchError wraps a cloud sync fetch or decode failure.
type AccountsFetchError struct {
	Err error
}

func (e *AccountsFetchError) Error() string {
	return fmt.Sprintf("failed to fetch accounts: %v", e.Err)
}

func (e *AccountsFetchError) Unwrap() error { return e.Err }

// SignFlowError is the error variant of a signing flow status.
type SignFlowError struct {
	Type SignType
	Err  error
}

func (e *SignFlowError) Error() string {
	return fmt.Sprintf("%s signing failed: %v", e.Type, e.Err)
}

func (e *SignFlowError) Unwrap() error { return e.Err }

// BroadcastTransactionError means a transaction was signed but the
// broadcast step failed. The signed payload remains available to the
// caller; a valid signature is never lost to a broadcast failure.
type BroadcastTransactionError struct {
	Err error
}

func (e *BroadcastTransactionError) Error() string {
	return fmt.Sprintf("failed to broadcast signed transaction: %v", e.Err)
}

func (e *BroadcastTransactionError) Unwrap() error { return e.Err }

// IsBroadcastError checks if err is a BroadcastTransactionError.
func IsBroadcastError(err error) bool {
	var be *BroadcastTransactionError
	return errors.As(err, &be)
}

// ResponseValidationError means a collaborator returned a payload that
// does not match the expected schema.
type ResponseValidationError struct {
	What string
	Err  error
}

func (e *ResponseValidationError) Error() string {
	return fmt.Sprintf("invalid %s response: %v", e.What, e.Err)
}

func (e *ResponseValidationError) Unwrap() error { return e.Err }

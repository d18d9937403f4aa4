package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// ErrorKind classifies the failure of a single attempt
type ErrorKind uint8

const (
	ErrKindNone              ErrorKind = iota
	ErrKindConnect                     // TCP, TLS or auth could not be established
	ErrKindWrite                       // the stream rejected or truncated a write
	ErrKindRead                        // the stream closed or yielded less than the frame declared
	ErrKindProtocolViolation           // unexpected message code, the stream is out of sync
	ErrKindServer                      // explicit error frame sent by the node
	ErrKindPoolExhausted               // no connection available on the node
	ErrKindInvalidRequest              // the command could not build its request
)

// String returns the string representation of an ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrKindNone:
		return "none"
	case ErrKindConnect:
		return "connect"
	case ErrKindWrite:
		return "write"
	case ErrKindRead:
		return "read"
	case ErrKindProtocolViolation:
		return "protocol violation"
	case ErrKindServer:
		return "server"
	case ErrKindPoolExhausted:
		return "pool exhausted"
	case ErrKindInvalidRequest:
		return "invalid request"
	default:
		return "unknown"
	}
}

// Retryable reports whether another attempt (possibly on another node) may succeed
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrKindConnect, ErrKindWrite, ErrKindRead, ErrKindPoolExhausted:
		return true
	default:
		return false
	}
}

// BreaksConnection reports whether a connection that produced this kind of
// error must be discarded instead of returned to its pool
func (k ErrorKind) BreaksConnection() bool {
	switch k {
	case ErrKindConnect, ErrKindWrite, ErrKindRead, ErrKindProtocolViolation:
		return true
	default:
		return false
	}
}

// --------------------------------------------------------------------------
// Sentinel Errors
// --------------------------------------------------------------------------

var (
	// ErrPoolExhausted is returned by a checkout when all slots of a pool are in use
	ErrPoolExhausted = errors.New("connection pool exhausted")
	// ErrPoolClosed is returned by a checkout after the pool was closed
	ErrPoolClosed = errors.New("connection pool closed")
	// ErrConnectionClosed is returned when using a connection that is not ready
	ErrConnectionClosed = errors.New("connection is not ready")
	// ErrExpensiveListOperation is returned by listing commands unless list exceptions are disabled
	ErrExpensiveListOperation = errors.New("list operations are expensive and disabled, set DisableListExceptions to allow them")
)

// --------------------------------------------------------------------------
// Error Types
// --------------------------------------------------------------------------

// TransportError is a failure of the client side of the transport
type TransportError struct {
	Kind     ErrorKind
	Op       string
	Endpoint string
	Err      error
}

// NewTransportError creates a new TransportError
func NewTransportError(kind ErrorKind, op, endpoint string, err error) *TransportError {
	return &TransportError{Kind: kind, Op: op, Endpoint: endpoint, Err: err}
}

func (e *TransportError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("%s error during %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s error during %s on %s: %v", e.Kind, e.Op, e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServerError is an error frame reported by the node. The message is kept verbatim.
type ServerError struct {
	Code    uint32
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// KindOf classifies an error. Errors not produced by the transport are
// treated as protocol violations since the stream state is unknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrKindNone
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return ErrKindServer
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return transportErr.Kind
	}

	if errors.Is(err, ErrPoolExhausted) || errors.Is(err, ErrPoolClosed) {
		return ErrKindPoolExhausted
	}

	return ErrKindProtocolViolation
}

// ErrorMessage returns the message shown to callers, server errors keep
// the text of the node unchanged
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Message
	}
	return err.Error()
}

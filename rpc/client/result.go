package client

import (
	"fmt"

	"github.com/ValentinKolb/rKV/rpc/common"
)

// Result is the outcome of one controller invocation. Expected failures are
// reported here and never as panics.
type Result struct {
	// Responses holds the decoded responses in the order the node sent them
	Responses []any

	// Kind is ErrKindNone on success, otherwise the kind of the last error
	Kind common.ErrorKind

	// Message is the text of the last error, server errors keep the text of the node
	Message string

	// Attempts counts the attempts made, including the successful one
	Attempts int

	// Node is the name of the node the last attempt ran on
	Node string

	exhausted bool
	err       error
}

// IsSuccess reports whether the invocation succeeded
func (r Result) IsSuccess() bool {
	return r.Kind == common.ErrKindNone
}

// Exhausted reports whether the invocation failed because every attempt
// ended with a retryable failure
func (r Result) Exhausted() bool {
	return r.exhausted
}

// Err returns the last error, nil on success. The classified error is kept in
// the chain, errors.As works for *common.TransportError and *common.ServerError.
func (r Result) Err() error {
	if r.IsSuccess() {
		return nil
	}
	if r.exhausted {
		return fmt.Errorf("failed after %d attempts: %w", r.Attempts, r.err)
	}
	return r.err
}

// First returns the first response or nil
func (r Result) First() any {
	if len(r.Responses) == 0 {
		return nil
	}
	return r.Responses[0]
}

func successResult(responses []any, attempts int, node string) Result {
	return Result{
		Responses: responses,
		Kind:      common.ErrKindNone,
		Attempts:  attempts,
		Node:      node,
	}
}

func failureResult(err error, attempts int, node string, exhausted bool) Result {
	return Result{
		Kind:      common.KindOf(err),
		Message:   common.ErrorMessage(err),
		Attempts:  attempts,
		Node:      node,
		exhausted: exhausted,
		err:       err,
	}
}

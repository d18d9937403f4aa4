package transport

import (
	"github.com/ValentinKolb/rKV/rpc/common"
)

// --------------------------------------------------------------------------
// Command Boundary
// --------------------------------------------------------------------------

// ICommand is the contract a command has to fulfill to be sent over a connection.
// The transport does not interpret the payloads, it only moves them.
// A command must be immutable once built, it may be sent several times
// (to different nodes) when an attempt is retried.
type ICommand interface {
	// ConstructRequest builds the request for a node
	// useCompact is the compact encoding flag of the node the request is sent to
	ConstructRequest(useCompact bool) (common.Request, error)

	// ExpectedCode is the message code of a successful response
	ExpectedCode() common.MessageCode

	// DecodeResponse decodes the payload of a response frame
	// body is nil for frames without payload
	DecodeResponse(body []byte, useCompact bool) (any, error)

	// OnSuccess is called once for every successfully decoded response frame
	OnSuccess(resp any)
}

// IStreamingCommand is implemented by commands whose response consists of
// several frames. The transport keeps reading frames until IsDone returns true.
type IStreamingCommand interface {
	ICommand

	// IsDone reports whether the decoded response is the last of the sequence
	IsDone(resp any) bool
}

// IsDone reports whether resp is the last response the command expects
func IsDone(cmd ICommand, resp any) bool {
	if streaming, ok := cmd.(IStreamingCommand); ok {
		return streaming.IsDone(resp)
	}
	return true
}

package common

import (
	"fmt"
	"sort"
)

// --------------------------------------------------------------------------
// Message Code Definition
// --------------------------------------------------------------------------

// MessageCode is the one byte tag following the length prefix of every frame.
type MessageCode uint8

const (
	// General message codes

	MsgErrorResp         MessageCode = 0 // Error frame: [u32 code][utf-8 message]
	MsgPingReq           MessageCode = 1
	MsgPingResp          MessageCode = 2
	MsgGetServerInfoReq  MessageCode = 7
	MsgGetServerInfoResp MessageCode = 8

	// Key-value operations

	MsgGetReq  MessageCode = 9
	MsgGetResp MessageCode = 10
	MsgPutReq  MessageCode = 11
	MsgPutResp MessageCode = 12
	MsgDelReq  MessageCode = 13
	MsgDelResp MessageCode = 14

	// Listing operations (streaming)

	MsgListBucketsReq  MessageCode = 15
	MsgListBucketsResp MessageCode = 16
	MsgListKeysReq     MessageCode = 17
	MsgListKeysResp    MessageCode = 18

	// Bucket properties

	MsgGetBucketReq  MessageCode = 19
	MsgGetBucketResp MessageCode = 20
	MsgSetBucketReq  MessageCode = 21
	MsgSetBucketResp MessageCode = 22

	// CRDT operations

	MsgDtFetchReq   MessageCode = 80
	MsgDtFetchResp  MessageCode = 81
	MsgDtUpdateReq  MessageCode = 82
	MsgDtUpdateResp MessageCode = 83

	// Compact encoding envelope

	MsgTtbMsg MessageCode = 104

	// Security handshake

	MsgAuthReq  MessageCode = 253
	MsgAuthResp MessageCode = 254
	MsgStartTls MessageCode = 255
)

// String returns the string representation of a MessageCode.
func (c MessageCode) String() string {
	switch c {
	case MsgErrorResp:
		return "ErrorResp"
	case MsgPingReq:
		return "PingReq"
	case MsgPingResp:
		return "PingResp"
	case MsgGetServerInfoReq:
		return "GetServerInfoReq"
	case MsgGetServerInfoResp:
		return "GetServerInfoResp"
	case MsgGetReq:
		return "GetReq"
	case MsgGetResp:
		return "GetResp"
	case MsgPutReq:
		return "PutReq"
	case MsgPutResp:
		return "PutResp"
	case MsgDelReq:
		return "DelReq"
	case MsgDelResp:
		return "DelResp"
	case MsgListBucketsReq:
		return "ListBucketsReq"
	case MsgListBucketsResp:
		return "ListBucketsResp"
	case MsgListKeysReq:
		return "ListKeysReq"
	case MsgListKeysResp:
		return "ListKeysResp"
	case MsgGetBucketReq:
		return "GetBucketReq"
	case MsgGetBucketResp:
		return "GetBucketResp"
	case MsgSetBucketReq:
		return "SetBucketReq"
	case MsgSetBucketResp:
		return "SetBucketResp"
	case MsgDtFetchReq:
		return "DtFetchReq"
	case MsgDtFetchResp:
		return "DtFetchResp"
	case MsgDtUpdateReq:
		return "DtUpdateReq"
	case MsgDtUpdateResp:
		return "DtUpdateResp"
	case MsgTtbMsg:
		return "TtbMsg"
	case MsgAuthReq:
		return "AuthReq"
	case MsgAuthResp:
		return "AuthResp"
	case MsgStartTls:
		return "StartTls"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// --------------------------------------------------------------------------
// Code Map
// --------------------------------------------------------------------------

// CodeMap is an immutable set of the message codes a connection accepts.
// It is built once at startup and handed to every connection, a frame
// tagged with a code outside of the map means the stream is out of sync.
type CodeMap struct {
	known map[MessageCode]struct{}
}

// NewCodeMap creates a CodeMap containing exactly the given codes
func NewCodeMap(codes ...MessageCode) CodeMap {
	known := make(map[MessageCode]struct{}, len(codes))
	for _, c := range codes {
		known[c] = struct{}{}
	}
	return CodeMap{known: known}
}

// DefaultCodeMap returns a CodeMap with all codes defined in this package
func DefaultCodeMap() CodeMap {
	return NewCodeMap(
		MsgErrorResp, MsgPingReq, MsgPingResp, MsgGetServerInfoReq, MsgGetServerInfoResp,
		MsgGetReq, MsgGetResp, MsgPutReq, MsgPutResp, MsgDelReq, MsgDelResp,
		MsgListBucketsReq, MsgListBucketsResp, MsgListKeysReq, MsgListKeysResp,
		MsgGetBucketReq, MsgGetBucketResp, MsgSetBucketReq, MsgSetBucketResp,
		MsgDtFetchReq, MsgDtFetchResp, MsgDtUpdateReq, MsgDtUpdateResp,
		MsgTtbMsg, MsgAuthReq, MsgAuthResp, MsgStartTls,
	)
}

// Contains reports whether the code is part of the map
func (m CodeMap) Contains(code MessageCode) bool {
	_, ok := m.known[code]
	return ok
}

// Len returns the number of known codes
func (m CodeMap) Len() int {
	return len(m.known)
}

// Codes returns the known codes in ascending order
func (m CodeMap) Codes() []MessageCode {
	codes := make([]MessageCode, 0, len(m.known))
	for c := range m.known {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// --------------------------------------------------------------------------
// Request
// --------------------------------------------------------------------------

// Request is the message a command wants to put on the wire
type Request struct {
	Code    MessageCode
	Payload []byte
}

// IsCodeOnly reports whether the request consists of the message code only
func (r Request) IsCodeOnly() bool {
	return len(r.Payload) == 0
}

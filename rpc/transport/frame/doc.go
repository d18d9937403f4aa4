// Package frame implements the codec of the length prefixed wire protocol.
//
// Every frame has the layout
//
//	[4 bytes: length = len(payload)+1][1 byte: message code][payload bytes]
//
// in network byte order. The length counts the code byte but not the four
// byte prefix, so a frame without payload is exactly HeaderSize (5) bytes.
//
// The codec performs no I/O. Reading and writing frames from a stream is done
// by the transport connection (see the base package), which is also the layer
// that turns error frames (MsgErrorResp) into common.ServerError values using
// DecodeErrorBody.
package frame

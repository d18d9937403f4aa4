// Package transport defines the boundary between the transport core of rKV
// and the commands it carries.
//
// The transport is organized into several subpackages:
//
//   - frame: the pure codec of the length prefixed wire format
//   - base: connections (socket, TLS/auth handshake, framed send/receive) and the
//     bounded per-node connection pool
//   - tcp: the TCP connector used to open sockets
//
// A command implements ICommand (and IStreamingCommand for multi frame responses).
// The transport uses it to build the request, to check the response code and to
// decode every response frame, without knowing anything about the payloads.
package transport

// Package rpc provides the client side of the rKV protocol. It opens framed
// connections to the nodes of a cluster, pools them per node and sends
// commands with automatic failover between the nodes.
//
// The package is organized into several subpackages:
//
//   - common: Protocol codes, configuration structures, the error taxonomy and logging.
//
//   - transport: The wire codec (frame), connections and pools (base) and the
//     TCP connector (tcp), together with the command interfaces.
//
//   - cluster: The node registry with one connection pool per node and round robin
//     node selection.
//
//   - client: The Endpoint retrying commands over the cluster, in an eager mode and a
//     delayed streaming mode.
//
//   - serializer: Payload serialization (JSON and the compact msgpack format).
//
//   - commands: Ready to use commands (ping, server info, get, put, delete, list keys).
package rpc

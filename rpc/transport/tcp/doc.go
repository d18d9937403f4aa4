// Package tcp implements TCP socket-based connectors for the rKV transport.
// It provides the concrete implementation of the base package's IClientConnector
// used by connection pools to open sockets to the nodes.
//
// Sockets are opened with the connect timeout of the node and have
// TCP_NODELAY enabled. Read and write timeouts are applied per operation by
// the base.Connection using deadlines.
package tcp

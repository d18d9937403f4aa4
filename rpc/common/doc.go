// Package common provides core data structures and utilities shared across
// the rKV client. It defines the protocol constants, configuration structures
// and the error taxonomy used by the transport core and the command layer.
//
// The package focuses on:
//   - Message codes of the length prefixed wire protocol
//   - Configuration structures for nodes and the cluster, with named defaults
//   - Error kinds deciding whether an attempt is retried and whether a connection survives it
//   - Custom logging implementation integrated with Dragonboat's logger package
//
// Key Components:
//
//   - MessageCode / CodeMap: the one byte tag of every frame and the immutable set of
//     codes a connection accepts. A CodeMap is built once (DefaultCodeMap) and passed
//     to every connection.
//
//   - NodeConfig / ClusterConfig / AuthConfig: configuration consumed by the transport.
//     ClusterConfig.WithDefaults fills every unset option exactly once, Validate reports
//     all problems together.
//
//   - ErrorKind / TransportError / ServerError: classification of failures.
//     Connect, write, read and pool exhaustion errors are retryable. Server errors and
//     protocol violations end the call, only protocol violations (and network errors)
//     break the connection.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system while providing consistent formatting across the application.
package common

// Package cluster holds the node registry of rKV: the immutable list of
// configured nodes, each paired with its own connection pool.
//
// NewRegistry applies the configuration defaults, validates the result and
// creates the pools without opening any connection. Next hands out the nodes
// round robin so every configured node is eligible for every attempt of the
// failover controller. Nodes can also be looked up by their unique name.
//
// The registry is read only after construction and safe for concurrent use.
package cluster

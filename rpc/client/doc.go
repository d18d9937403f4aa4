// Package client implements the retry and failover controller of rKV. An
// Endpoint executes one unit of work (usually a command) against a connection
// obtained from the node registry and turns transient network failures into a
// bounded, observable Result.
//
// The package focuses on:
//   - Selecting a node per attempt (round robin over all configured nodes)
//   - Classifying failures: connect, write and read errors as well as pool
//     exhaustion are retried, server errors and protocol violations are not
//   - Handing every connection back to its pool exactly once, discarding it
//     whenever its stream can no longer be trusted
//
// Key Components:
//
//   - Endpoint: holds a cluster.Registry and an immutable common.RetryPolicy.
//     Execute collects all responses of a command, UseConnection runs an
//     arbitrary function on a pooled connection and UseDelayedConnection returns
//     the responses of a streaming command lazily.
//
//   - Result: success or the classified last error together with the number of
//     attempts made. Expected failures are never raised as panics.
//
//   - Stream: a single pass sequence bound to the checked out connection. The
//     connection goes back to the pool when the stream reaches its last frame
//     or is closed.
//
// Usage Example:
//
//	registry, _ := cluster.NewRegistry(common.ClusterConfig{
//	  Nodes: []common.NodeConfig{{Host: "10.0.0.1"}, {Host: "10.0.0.2"}},
//	}, tcp.NewTCPConnector(), common.DefaultCodeMap())
//	endpoint := client.NewEndpoint(registry)
//	defer endpoint.Close()
//
//	result := endpoint.Execute(commands.NewPing())
//	if !result.IsSuccess() {
//	  log.Printf("ping failed after %d attempts: %v", result.Attempts, result.Err())
//	}
//
//	stream, result := endpoint.UseDelayedConnection(commands.NewListKeys("bucket", true))
//	if result.IsSuccess() {
//	  for keys := range stream.All() {
//	    fmt.Println(keys)
//	  }
//	}
//
// Thread Safety:
//
//	An Endpoint is safe for concurrent use, every invocation checks out its own
//	connection. A Stream belongs to the goroutine that requested it.
package client

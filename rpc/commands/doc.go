// Package commands contains the basic key/value commands of rKV. Every command
// implements transport.ICommand (ListKeys implements transport.IStreamingCommand)
// and is executed through a client.Endpoint.
//
// Request and response payloads are encoded with the serializer selected by
// the compact encoding flag of the node (json by default, msgpack if compact).
// Ping, Put and Delete carry no response payload.
//
// Usage:
//
//	result := endpoint.Execute(commands.NewPut("users", "alice", []byte("admin"), "text/plain"))
//	result = endpoint.Execute(commands.NewGet("users", "alice"))
//	if result.IsSuccess() {
//	  resp := result.First().(*commands.GetResponse)
//	}
//
// ListKeys is refused with common.ErrExpensiveListOperation (before anything is
// sent) unless the caller allows it, usually via ClusterConfig.DisableListExceptions.
package commands

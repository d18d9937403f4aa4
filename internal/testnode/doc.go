// Package testnode runs an in-process node speaking the rKV frame protocol on
// a loopback port. It is used by the tests of the transport, the cluster, the
// failover controller and the command layer.
//
// The node answers StartTls (if started WithTLS), AuthReq (WithCredentials)
// and every request code a Handler was registered for. Unknown codes are
// answered with an error frame. Every received frame is recorded so tests can
// assert on what the client actually put on the wire.
package testnode

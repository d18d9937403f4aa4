// Package base provides the transport core of rKV: connections speaking the
// length prefixed frame protocol to a single node, and the bounded pool those
// connections live in. It is independent of the socket type, which is provided
// by an IClientConnector (see the tcp package).
//
// The package focuses on:
//   - Connect with timeout, optional STARTTLS upgrade and authentication
//   - Synchronous framed send/receive including multi frame (streaming) responses
//   - Classification of every failure into a common.ErrorKind
//   - A per-node pool with strict checkout/checkin discipline
//
// Key Components:
//
//   - Connection: owns one socket. Its lifecycle is an explicit state value
//     (unconnected -> connecting -> [tls-negotiating -> authenticating] -> ready -> closed),
//     invalid transitions panic. Error frames are decoded to common.ServerError and keep
//     the connection usable, an unexpected or unknown message code marks the stream as
//     out of sync and the connection as broken.
//
//   - Pool: lazily creates connections up to the configured pool size. Checkout never
//     waits, it fails with common.ErrPoolExhausted if all slots are taken. Checkin with
//     healthy=false (or of a broken connection) disconnects it and frees the slot.
//
// Thread Safety:
//
//	Pool methods are safe for concurrent use. A Connection is owned by the goroutine
//	that checked it out until it is checked in and must not be shared.
package base

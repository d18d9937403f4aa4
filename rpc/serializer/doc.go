// Package serializer provides the payload encodings of rKV commands. The
// transport core treats payloads as opaque bytes, the command layer encodes
// them with the serializer selected by the compact encoding flag of the node
// the request is sent to.
//
// Key Components:
//
//   - IPayloadSerializer: Core interface that all serializer implementations must satisfy.
//
//   - jsonSerializerImpl: JSON encoding (goccy/go-json), the default. Human readable
//     payloads, useful for debugging.
//
//   - msgpackSerializerImpl: msgpack encoding, used when UseCompactEncoding is set on
//     a node. Smaller payloads and faster to decode. It reads the json struct tags, so
//     payload types declare their field names once.
//
//   - For: returns the serializer for a compact encoding flag.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package serializer

package serializer

// IPayloadSerializer is the interface for all payload serializers.
// Payloads are the bodies of request and response frames, the transport
// moves them as opaque bytes.
type IPayloadSerializer interface {
	// Serialize serializes a payload value into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into a payload value
	// It takes a byte array and a pointer to the value as parameters
	// It returns an error if any
	Deserialize(b []byte, v any) error
	// Name returns the name of the encoding (e.g. "json")
	Name() string
}

var (
	jsonSerializer    = NewJSONSerializer()
	msgpackSerializer = NewMsgpackSerializer()
)

// For returns the serializer matching the compact encoding flag of a node:
// msgpack if compact, json otherwise
func For(compact bool) IPayloadSerializer {
	if compact {
		return msgpackSerializer
	}
	return jsonSerializer
}

package serializer

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// NewMsgpackSerializer creates a new serializer using the compact msgpack encoding
func NewMsgpackSerializer() IPayloadSerializer {
	return &msgpackSerializerImpl{}
}

// msgpackSerializerImpl implements the IPayloadSerializer interface using msgpack encoding
type msgpackSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IPayloadSerializer)
// --------------------------------------------------------------------------

func (m msgpackSerializerImpl) Serialize(v any) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := msgpack.NewEncoder(&buffer)
	// Field names are taken from the json tags, so both encodings share one set of tags
	encoder.SetCustomStructTag("json")
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

func (m msgpackSerializerImpl) Deserialize(b []byte, v any) error {
	decoder := msgpack.NewDecoder(bytes.NewReader(b))
	decoder.SetCustomStructTag("json")
	return decoder.Decode(v)
}

func (m msgpackSerializerImpl) Name() string {
	return "msgpack"
}

package frame

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeDecodeRoundTrip tests that the header of an encoded frame decodes to the original code and length
func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		code    common.MessageCode
		payload []byte
	}{
		{name: "empty payload", code: common.MsgPingReq, payload: nil},
		{name: "single byte", code: common.MsgGetReq, payload: []byte{0x01}},
		{name: "text payload", code: common.MsgPutReq, payload: []byte("some value")},
		{name: "max code", code: common.MsgStartTls, payload: bytes.Repeat([]byte{0xAB}, 300)},
		{name: "large payload", code: common.MsgListKeysResp, payload: bytes.Repeat([]byte{0x7F}, 70000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.code, tt.payload)
			require.Len(t, encoded, HeaderSize+len(tt.payload))

			code, size, err := DecodeHeader(encoded[:HeaderSize])
			require.NoError(t, err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, len(tt.payload), size)
			assert.Equal(t, tt.payload, nilIfEmpty(encoded[HeaderSize:]))
		})
	}
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

// TestZeroPayloadFrame tests that a code only frame is exactly five bytes
func TestZeroPayloadFrame(t *testing.T) {
	encoded := Encode(common.MsgStartTls, nil)
	assert.Equal(t, []byte{0, 0, 0, 1, 255}, encoded)

	code, size, err := DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, common.MsgStartTls, code)
	assert.Equal(t, 0, size)

	assert.Equal(t, encoded, EncodeRequest(common.Request{Code: common.MsgStartTls}))
}

// TestLengthIncludesCodeByte tests the value of the length prefix
func TestLengthIncludesCodeByte(t *testing.T) {
	encoded := Encode(common.MsgPutReq, []byte("abc"))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(encoded[:4]))
	assert.Equal(t, byte(common.MsgPutReq), encoded[4])
}

// TestDecodeHeaderInvalid tests the rejected headers
func TestDecodeHeaderInvalid(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
	}{
		{name: "too short", header: []byte{0, 0, 0, 1}},
		{name: "zero length", header: []byte{0, 0, 0, 0, 2}},
		{name: "oversized", header: []byte{0xFF, 0xFF, 0xFF, 0xFF, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeHeader(tt.header)
			assert.Error(t, err)
		})
	}
}

// TestErrorBody tests encoding and decoding of error payloads
func TestErrorBody(t *testing.T) {
	body := EncodeErrorBody(42, "no such bucket: ö")
	serverErr := DecodeErrorBody(body)
	assert.Equal(t, uint32(42), serverErr.Code)
	assert.Equal(t, "no such bucket: ö", serverErr.Message)

	short := DecodeErrorBody([]byte("ab"))
	assert.Equal(t, uint32(0), short.Code)
	assert.Equal(t, "ab", short.Message)

	invalid := DecodeErrorBody([]byte{0, 0, 0, 1, 0xff})
	assert.Equal(t, "�", invalid.Message)
}

// TestAuthRequest tests encoding and decoding of credentials
func TestAuthRequest(t *testing.T) {
	body := EncodeAuthRequest("riakuser", "secret")
	user, password, err := DecodeAuthRequest(body)
	require.NoError(t, err)
	assert.Equal(t, "riakuser", user)
	assert.Equal(t, "secret", password)

	user, password, err = DecodeAuthRequest(EncodeAuthRequest("certuser", ""))
	require.NoError(t, err)
	assert.Equal(t, "certuser", user)
	assert.Empty(t, password)

	_, _, err = DecodeAuthRequest(body[:len(body)-1])
	assert.Error(t, err)
}

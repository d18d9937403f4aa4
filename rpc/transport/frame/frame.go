package frame

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/ValentinKolb/rKV/rpc/common"
)

const (
	// LengthSize is the size of the big endian length prefix
	LengthSize = 4
	// HeaderSize is the length prefix plus the message code
	HeaderSize = LengthSize + 1
	// MaxFrameSize bounds the declared length of a frame (code byte included)
	MaxFrameSize = 256 * 1024 * 1024
)

// Encode builds a frame with the format:
// - 4 bytes: length = len(payload) + 1 (uint32, big endian)
// - 1 byte: message code
// - N bytes: payload
func Encode(code common.MessageCode, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthSize], uint32(len(payload)+1))
	buf[LengthSize] = byte(code)
	copy(buf[HeaderSize:], payload)
	return buf
}

// EncodeRequest builds the frame of a request
func EncodeRequest(req common.Request) []byte {
	return Encode(req.Code, req.Payload)
}

// DecodeHeader reads the message code and the length of the pure payload
// from a frame header. The header must be at least HeaderSize bytes long.
func DecodeHeader(header []byte) (common.MessageCode, int, error) {
	if len(header) < HeaderSize {
		return 0, 0, fmt.Errorf("frame header too short: %d bytes", len(header))
	}

	// NB: the length includes the code byte
	length := binary.BigEndian.Uint32(header[:LengthSize])
	if length == 0 {
		return 0, 0, fmt.Errorf("frame declares length 0, the code byte is missing")
	}
	if length > MaxFrameSize {
		return 0, 0, fmt.Errorf("frame declares length %d, maximum is %d", length, MaxFrameSize)
	}

	return common.MessageCode(header[LengthSize]), int(length - 1), nil
}

// --------------------------------------------------------------------------
// Error body
// --------------------------------------------------------------------------

// EncodeErrorBody builds the payload of an error frame:
// - 4 bytes: numeric error code (uint32, big endian)
// - N bytes: utf-8 message
func EncodeErrorBody(code uint32, message string) []byte {
	buf := make([]byte, 4+len(message))
	binary.BigEndian.PutUint32(buf[:4], code)
	copy(buf[4:], message)
	return buf
}

// DecodeErrorBody parses the payload of an error frame. A body shorter than
// the numeric code yields code 0 and the raw bytes as message.
func DecodeErrorBody(body []byte) *common.ServerError {
	if len(body) < 4 {
		return &common.ServerError{Message: toUTF8(body)}
	}
	return &common.ServerError{
		Code:    binary.BigEndian.Uint32(body[:4]),
		Message: toUTF8(body[4:]),
	}
}

func toUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return string([]rune(string(b)))
}

// --------------------------------------------------------------------------
// Auth request body
// --------------------------------------------------------------------------

// EncodeAuthRequest builds the payload of an auth request:
// - 4 bytes: username length (uint32, big endian)
// - N bytes: username
// - 4 bytes: password length (uint32, big endian)
// - M bytes: password
func EncodeAuthRequest(username, password string) []byte {
	buf := make([]byte, 8+len(username)+len(password))
	pos := 0
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(username)))
	pos += 4
	pos += copy(buf[pos:], username)
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(password)))
	pos += 4
	copy(buf[pos:], password)
	return buf
}

// DecodeAuthRequest parses the payload built by EncodeAuthRequest
func DecodeAuthRequest(body []byte) (username, password string, err error) {
	readField := func(pos int) (string, int, error) {
		if len(body) < pos+4 {
			return "", 0, fmt.Errorf("auth request truncated at offset %d", pos)
		}
		n := int(binary.BigEndian.Uint32(body[pos : pos+4]))
		pos += 4
		if len(body) < pos+n {
			return "", 0, fmt.Errorf("auth request field of %d bytes truncated", n)
		}
		return string(body[pos : pos+n]), pos + n, nil
	}

	username, pos, err := readField(0)
	if err != nil {
		return "", "", err
	}
	password, _, err = readField(pos)
	if err != nil {
		return "", "", err
	}
	return username, password, nil
}

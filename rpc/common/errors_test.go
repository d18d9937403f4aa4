package common

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestKindOf tests the classification of transport, server and foreign errors
func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrKindNone},
		{"read", NewTransportError(ErrKindRead, "receive", "a:1", io.EOF), ErrKindRead},
		{"wrapped connect", fmt.Errorf("node down: %w", NewTransportError(ErrKindConnect, "dial", "a:1", io.EOF)), ErrKindConnect},
		{"server", &ServerError{Code: 1, Message: "boom"}, ErrKindServer},
		{"wrapped server", fmt.Errorf("auth: %w", &ServerError{Message: "denied"}), ErrKindServer},
		{"exhausted", ErrPoolExhausted, ErrKindPoolExhausted},
		{"closed", fmt.Errorf("checkout: %w", ErrPoolClosed), ErrKindPoolExhausted},
		{"foreign", errors.New("decode failed"), ErrKindProtocolViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

// TestErrorKindPredicates tests which kinds are retried and which discard the connection
func TestErrorKindPredicates(t *testing.T) {
	tests := []struct {
		kind      ErrorKind
		retryable bool
		breaks    bool
	}{
		{ErrKindNone, false, false},
		{ErrKindConnect, true, true},
		{ErrKindWrite, true, true},
		{ErrKindRead, true, true},
		{ErrKindProtocolViolation, false, true},
		{ErrKindServer, false, false},
		{ErrKindPoolExhausted, true, false},
		{ErrKindInvalidRequest, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.kind.Retryable())
			assert.Equal(t, tt.breaks, tt.kind.BreaksConnection())
		})
	}
}

// TestErrorMessage tests that server messages are passed through unchanged
func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "bucket not found", ErrorMessage(fmt.Errorf("get: %w", &ServerError{Code: 7, Message: "bucket not found"})))

	err := NewTransportError(ErrKindWrite, "send", "", io.ErrShortWrite)
	assert.Equal(t, "write error during send: short write", ErrorMessage(err))
	assert.ErrorIs(t, err, io.ErrShortWrite)

	err = NewTransportError(ErrKindRead, "receive", "a:1", io.EOF)
	assert.Equal(t, "read error during receive on a:1: EOF", err.Error())
}

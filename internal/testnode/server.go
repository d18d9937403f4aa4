package testnode

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/frame"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("testnode")

// AuthFailedCode is the error code sent when the credentials do not match
const AuthFailedCode uint32 = 401

// UnknownCode is the error code sent for requests without handler
const UnknownCode uint32 = 400

// Frame is a frame received or sent by the node
type Frame struct {
	Code    common.MessageCode
	Payload []byte

	// Raw is written verbatim instead of encoding Code and Payload
	Raw []byte
	// Close stops the connection after this frame has been written
	Close bool
}

// Handler answers a request frame. Returning nil drops the connection without an answer.
type Handler func(req Frame) []Frame

// Option configures a Server
type Option func(*Server)

// WithTLS enables the STARTTLS upgrade using the given certificate
func WithTLS(cert tls.Certificate) Option {
	return func(s *Server) {
		s.tlsConfig = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	}
}

// WithCredentials sets the credentials accepted by auth requests
func WithCredentials(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// WithStartTlsReply makes the node answer StartTls with another code
func WithStartTlsReply(code common.MessageCode) Option {
	return func(s *Server) {
		s.startTlsReply = code
	}
}

// Server is a loopback node speaking the frame protocol. It records every
// frame it receives and answers them with the registered handlers.
type Server struct {
	listener      net.Listener
	tlsConfig     *tls.Config
	username      string
	password      string
	startTlsReply common.MessageCode

	mu       sync.Mutex
	handlers map[common.MessageCode]Handler
	received []Frame
	conns    map[net.Conn]struct{}

	accepted atomic.Int32
	closed   atomic.Bool
	wg       sync.WaitGroup
}

// Start starts a node on a random loopback port, it is stopped when the test ends
func Start(t testing.TB, opts ...Option) *Server {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &Server{
		listener:      listener,
		startTlsReply: common.MsgStartTls,
		handlers:      make(map[common.MessageCode]Handler),
		conns:         make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.acceptLoop()
	t.Cleanup(s.Close)
	return s
}

// Host returns the host the node listens on
func (s *Server) Host() string {
	return s.listener.Addr().(*net.TCPAddr).IP.String()
}

// Port returns the port the node listens on
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Endpoint returns host:port of the node
func (s *Server) Endpoint() string {
	return net.JoinHostPort(s.Host(), strconv.Itoa(s.Port()))
}

// Node returns a node configuration pointing to this server
func (s *Server) Node(name string, poolSize int) common.NodeConfig {
	return common.NodeConfig{
		Name:           name,
		Host:           s.Host(),
		Port:           s.Port(),
		PoolSize:       poolSize,
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
		WriteTimeout:   2 * time.Second,
	}
}

// Handle registers the handler for a request code
func (s *Server) Handle(code common.MessageCode, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[code] = h
}

// Received returns all frames received so far
func (s *Server) Received() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Frame, len(s.received))
	copy(out, s.received)
	return out
}

// ReceivedCodes returns the codes of all frames received so far
func (s *Server) ReceivedCodes() []common.MessageCode {
	frames := s.Received()
	codes := make([]common.MessageCode, len(frames))
	for i, f := range frames {
		codes[i] = f.Code
	}
	return codes
}

// CountReceived returns how often a request code was received
func (s *Server) CountReceived(code common.MessageCode) int {
	n := 0
	for _, c := range s.ReceivedCodes() {
		if c == code {
			n++
		}
	}
	return n
}

// Accepted returns the number of accepted connections
func (s *Server) Accepted() int {
	return int(s.accepted.Load())
}

// Close stops the node and closes all open connections
func (s *Server) Close() {
	if s.closed.Swap(true) {
		return
	}
	_ = s.listener.Close()

	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.closed.Load() {
				Logger.Errorf("Accept error: %v", err)
			}
			return
		}
		s.accepted.Add(1)

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection handles the requests of one connection, one at a time
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	var stream net.Conn = conn
	for {
		req, err := readFrame(stream)
		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed.Load() {
				Logger.Debugf("Connection closed: %v", err)
			}
			return
		}

		s.mu.Lock()
		s.received = append(s.received, req)
		handler := s.handlers[req.Code]
		s.mu.Unlock()

		switch {
		case req.Code == common.MsgStartTls:
			if s.tlsConfig == nil {
				if writeFrame(stream, errorFrame(UnknownCode, "security is not enabled")) != nil {
					return
				}
				continue
			}
			if writeFrame(stream, Frame{Code: s.startTlsReply}) != nil || s.startTlsReply != common.MsgStartTls {
				return
			}
			tlsConn := tls.Server(stream, s.tlsConfig)
			if err := tlsConn.Handshake(); err != nil {
				Logger.Debugf("TLS handshake failed: %v", err)
				return
			}
			stream = tlsConn

		case req.Code == common.MsgAuthReq:
			user, password, err := frame.DecodeAuthRequest(req.Payload)
			reply := Frame{Code: common.MsgAuthResp}
			if err != nil || user != s.username || password != s.password {
				reply = errorFrame(AuthFailedCode, "Authentication failed")
			}
			if writeFrame(stream, reply) != nil {
				return
			}

		case handler == nil:
			if writeFrame(stream, errorFrame(UnknownCode, fmt.Sprintf("unknown message code: %d", uint8(req.Code)))) != nil {
				return
			}

		default:
			replies := handler(req)
			if replies == nil {
				return
			}
			for _, reply := range replies {
				if writeFrame(stream, reply) != nil || reply.Close {
					return
				}
			}
		}
	}
}

// errorFrame builds an error response
func errorFrame(code uint32, message string) Frame {
	return Frame{Code: common.MsgErrorResp, Payload: frame.EncodeErrorBody(code, message)}
}

func readFrame(r io.Reader) (Frame, error) {
	header := make([]byte, frame.HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return Frame{}, err
	}
	code, size, err := frame.DecodeHeader(header)
	if err != nil {
		return Frame{}, err
	}
	var payload []byte
	if size > 0 {
		payload = make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			return Frame{}, err
		}
	}
	return Frame{Code: code, Payload: payload}, nil
}

func writeFrame(w io.Writer, f Frame) error {
	data := f.Raw
	if data == nil {
		data = frame.Encode(f.Code, f.Payload)
	}
	_, err := w.Write(data)
	return err
}

// --------------------------------------------------------------------------
// Handler Factories
// --------------------------------------------------------------------------

// Reply returns a handler answering every request with the given frames
func Reply(frames ...Frame) Handler {
	return func(Frame) []Frame {
		return frames
	}
}

// ReplyError returns a handler answering every request with an error frame
func ReplyError(code uint32, message string) Handler {
	return Reply(errorFrame(code, message))
}

// Drop returns a handler closing the connection without an answer
func Drop() Handler {
	return func(Frame) []Frame {
		return nil
	}
}

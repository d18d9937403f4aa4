package base

import (
	"fmt"
	"net"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/frame"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect opens a single socket to the endpoint, giving up after timeout
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g. "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, node common.NodeConfig) error
}

// -----------------------------------------------------------
// Connection State
// -----------------------------------------------------------

// ConnState is the lifecycle state of a Connection
type ConnState uint8

const (
	StateUnconnected ConnState = iota
	StateConnecting
	StateTLSNegotiating
	StateAuthenticating
	StateReady
	StateClosed
)

// String returns the string representation of a ConnState.
func (s ConnState) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateTLSNegotiating:
		return "tls-negotiating"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// canTransition reports whether a connection may move from one state to another.
// Every state except closed may fall back to closed, everything else only moves forward.
func canTransition(from, to ConnState) bool {
	switch from {
	case StateUnconnected:
		return to == StateConnecting || to == StateClosed
	case StateConnecting:
		return to == StateTLSNegotiating || to == StateReady || to == StateClosed
	case StateTLSNegotiating:
		return to == StateAuthenticating || to == StateClosed
	case StateAuthenticating:
		return to == StateReady || to == StateClosed
	case StateReady:
		return to == StateClosed
	default:
		return false
	}
}

// -----------------------------------------------------------
// Connection
// -----------------------------------------------------------

// Connection owns exactly one socket to one node and exchanges frames over it.
// It is not safe for concurrent use, a connection is used by the goroutine that
// checked it out of its pool until it is checked in again.
type Connection struct {
	id        string
	node      common.NodeConfig
	connector IClientConnector
	codes     common.CodeMap

	stream net.Conn // raw socket or the tls stream wrapping it
	state  ConnState
	broken bool // set after any error that leaves the stream unusable

	header [frame.HeaderSize]byte
}

// NewConnection creates an unconnected connection to the node
func NewConnection(node common.NodeConfig, connector IClientConnector, codes common.CodeMap) *Connection {
	return &Connection{
		id:        uuid.NewString(),
		node:      node,
		connector: connector,
		codes:     codes,
		state:     StateUnconnected,
	}
}

// ID returns the unique id of the connection
func (c *Connection) ID() string {
	return c.id
}

// Node returns the configuration of the node the connection belongs to
func (c *Connection) Node() common.NodeConfig {
	return c.node
}

// State returns the current lifecycle state
func (c *Connection) State() ConnState {
	return c.state
}

// IsUsable reports whether the connection is ready and no error broke its stream
func (c *Connection) IsUsable() bool {
	return c.state == StateReady && !c.broken
}

// transition moves the connection to a new state, invalid transitions are defects
func (c *Connection) transition(to ConnState) {
	if !canTransition(c.state, to) {
		panic(fmt.Sprintf("connection %s: invalid state transition %s -> %s", c.id, c.state, to))
	}
	c.state = to
}

// Connect opens the socket and, if security is configured for the node,
// upgrades it to TLS and authenticates. On any error the connection is closed.
func (c *Connection) Connect() error {
	c.transition(StateConnecting)
	endpoint := c.node.Endpoint()

	conn, err := c.connector.Connect(endpoint, c.node.ConnectTimeout)
	if err != nil {
		c.transition(StateClosed)
		return common.NewTransportError(common.ErrKindConnect, "connect", endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := c.connector.UpgradeConnection(conn, c.node); err != nil {
		_ = conn.Close()
		c.transition(StateClosed)
		return common.NewTransportError(common.ErrKindConnect, "upgrade connection", endpoint, err)
	}
	c.stream = conn

	if c.node.IsSecurityEnabled() {
		if err := c.setUpSecurity(); err != nil {
			c.Disconnect()
			return err
		}
	}

	c.transition(StateReady)
	Logger.Debugf("Connection %s to %s ready (%s, tls=%t)", c.id, endpoint, c.connector.GetName(), c.node.IsSecurityEnabled())
	return nil
}

// Send encodes the request of the command and writes the whole frame
func (c *Connection) Send(cmd transport.ICommand) error {
	if c.state != StateReady {
		return common.NewTransportError(common.ErrKindWrite, "send", c.node.Endpoint(), common.ErrConnectionClosed)
	}

	req, err := cmd.ConstructRequest(c.node.UseCompactEncoding)
	if err != nil {
		return common.NewTransportError(common.ErrKindInvalidRequest, "construct request", c.node.Endpoint(), err)
	}

	return c.writeFrame(req.Code, req.Payload)
}

// ReceiveOne reads and decodes a single response frame of the command and
// calls its success hook. done reports whether the command expects no further frames.
func (c *Connection) ReceiveOne(cmd transport.ICommand) (resp any, done bool, err error) {
	if c.state != StateReady {
		return nil, true, common.NewTransportError(common.ErrKindRead, "receive", c.node.Endpoint(), common.ErrConnectionClosed)
	}

	body, err := c.readExpected(cmd.ExpectedCode())
	if err != nil {
		return nil, true, err
	}

	resp, err = cmd.DecodeResponse(body, c.node.UseCompactEncoding)
	if err != nil {
		return nil, true, c.fail(common.NewTransportError(common.ErrKindProtocolViolation, "decode "+cmd.ExpectedCode().String(), c.node.Endpoint(), err))
	}

	cmd.OnSuccess(resp)
	return resp, transport.IsDone(cmd, resp), nil
}

// Receive reads response frames until the command reports the last one
func (c *Connection) Receive(cmd transport.ICommand) ([]any, error) {
	var responses []any
	for {
		resp, done, err := c.ReceiveOne(cmd)
		if err != nil {
			return responses, err
		}
		responses = append(responses, resp)
		if done {
			return responses, nil
		}
	}
}

// Execute sends the command and receives all of its responses
func (c *Connection) Execute(cmd transport.ICommand) ([]any, error) {
	if err := c.Send(cmd); err != nil {
		return nil, err
	}
	return c.Receive(cmd)
}

// Disconnect closes the stream. It is idempotent and never fails.
func (c *Connection) Disconnect() {
	if c.state == StateClosed {
		return
	}
	if c.stream != nil {
		// NB: closing the tls stream closes the socket as well
		_ = c.stream.Close()
		c.stream = nil
	}
	c.transition(StateClosed)
	Logger.Debugf("Connection %s to %s closed", c.id, c.node.Endpoint())
}

// --------------------------------------------------------------------------
// Frame I/O
// --------------------------------------------------------------------------

// fail records errors that leave the stream unusable
func (c *Connection) fail(err error) error {
	if common.KindOf(err).BreaksConnection() {
		c.broken = true
	}
	return err
}

// writeFrame encodes and writes a frame within the write timeout
func (c *Connection) writeFrame(code common.MessageCode, payload []byte) error {
	if c.node.WriteTimeout > 0 {
		if err := c.stream.SetWriteDeadline(time.Now().Add(c.node.WriteTimeout)); err != nil {
			return c.fail(common.NewTransportError(common.ErrKindWrite, "set write deadline", c.node.Endpoint(), err))
		}
	}

	if err := writeAll(c.stream, frame.Encode(code, payload)); err != nil {
		return c.fail(common.NewTransportError(common.ErrKindWrite, "write "+code.String(), c.node.Endpoint(), err))
	}
	return nil
}

// armRead sets the read deadline for the next read
func (c *Connection) armRead() error {
	if c.node.ReadTimeout > 0 {
		if err := c.stream.SetReadDeadline(time.Now().Add(c.node.ReadTimeout)); err != nil {
			return c.fail(common.NewTransportError(common.ErrKindRead, "set read deadline", c.node.Endpoint(), err))
		}
	}
	return nil
}

// readHeader reads the next frame header. Error frames are consumed completely
// and returned as *common.ServerError, the stream stays in sync in that case.
func (c *Connection) readHeader() (common.MessageCode, int, error) {
	if err := c.armRead(); err != nil {
		return 0, 0, err
	}
	if err := readAll(c.stream, c.header[:]); err != nil {
		return 0, 0, c.fail(common.NewTransportError(common.ErrKindRead, "read header", c.node.Endpoint(), err))
	}

	code, size, err := frame.DecodeHeader(c.header[:])
	if err != nil {
		return 0, 0, c.fail(common.NewTransportError(common.ErrKindProtocolViolation, "decode header", c.node.Endpoint(), err))
	}

	if code == common.MsgErrorResp {
		body, err := c.readBody(size)
		if err != nil {
			return 0, 0, err
		}
		return code, 0, frame.DecodeErrorBody(body)
	}

	if !c.codes.Contains(code) {
		Logger.Errorf("Connection %s to %s received unknown message code %d", c.id, c.node.Endpoint(), uint8(code))
		return 0, 0, c.fail(common.NewTransportError(common.ErrKindProtocolViolation, "decode header", c.node.Endpoint(),
			fmt.Errorf("unknown message code %d", uint8(code))))
	}

	return code, size, nil
}

// readBody reads exactly size payload bytes, nil for empty payloads
func (c *Connection) readBody(size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	if err := c.armRead(); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if err := readAll(c.stream, buf); err != nil {
		return nil, c.fail(common.NewTransportError(common.ErrKindRead, "read body", c.node.Endpoint(), err))
	}
	return buf, nil
}

// readExpected reads the next frame and checks that it carries the expected code
func (c *Connection) readExpected(expected common.MessageCode) ([]byte, error) {
	code, size, err := c.readHeader()
	if err != nil {
		return nil, err
	}

	if code != expected {
		Logger.Errorf("Connection %s to %s expected return code %s received %s", c.id, c.node.Endpoint(), expected, code)
		return nil, c.fail(common.NewTransportError(common.ErrKindProtocolViolation, "read", c.node.Endpoint(),
			fmt.Errorf("expected return code %s received %s", expected, code)))
	}

	return c.readBody(size)
}

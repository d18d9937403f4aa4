package base

import (
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
)

// dialConnector is a plain TCP connector counting its dials
type dialConnector struct {
	dials atomic.Int32
}

func (c *dialConnector) GetName() string {
	return "test"
}

func (c *dialConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	c.dials.Add(1)
	return net.DialTimeout("tcp", endpoint, timeout)
}

func (c *dialConnector) UpgradeConnection(net.Conn, common.NodeConfig) error {
	return nil
}

// textCommand sends a fixed request and decodes every response body as string
type textCommand struct {
	code     common.MessageCode
	expected common.MessageCode
	payload  []byte

	constructErr error
	decodeErr    error

	successes []any
}

func (c *textCommand) ConstructRequest(bool) (common.Request, error) {
	if c.constructErr != nil {
		return common.Request{}, c.constructErr
	}
	return common.Request{Code: c.code, Payload: c.payload}, nil
}

func (c *textCommand) ExpectedCode() common.MessageCode {
	return c.expected
}

func (c *textCommand) DecodeResponse(body []byte, _ bool) (any, error) {
	if c.decodeErr != nil {
		return nil, c.decodeErr
	}
	return string(body), nil
}

func (c *textCommand) OnSuccess(resp any) {
	c.successes = append(c.successes, resp)
}

// streamCommand is done after the response "last"
type streamCommand struct {
	textCommand
}

func (c *streamCommand) IsDone(resp any) bool {
	return resp == "last"
}

func pingCommand() *textCommand {
	return &textCommand{code: common.MsgPingReq, expected: common.MsgPingResp}
}

// closedPort returns a loopback endpoint nobody listens on
func closedPort(t *testing.T) (string, int) {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	_ = l.Close()
	return "127.0.0.1", addr.Port
}

var errBroken = errors.New("broken")

const testTimeout = 2 * time.Second

package tcp

import (
	"net"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
)

// clientConnector implements the IClientConnector interface for TCP sockets
type clientConnector struct {
	keepAlive time.Duration
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "tcp"
}

func (c *clientConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout:   timeout,
		KeepAlive: c.keepAlive,
	}
	return dialer.Dial("tcp", endpoint)
}

// UpgradeConnection disables Nagle's algorithm, every request is a single
// frame and waits for its response, so coalescing only adds latency
func (c *clientConnector) UpgradeConnection(conn net.Conn, _ common.NodeConfig) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil // Not a TCP connection, nothing to upgrade
	}
	return tcpConn.SetNoDelay(true)
}

// --------------------------------------------------------------------------
// Connector Factory Methods
// --------------------------------------------------------------------------

// NewTCPConnector creates a new TCP connector with the default keep-alive of the net package
func NewTCPConnector() base.IClientConnector {
	return &clientConnector{}
}

// NewTCPConnectorWithKeepAlive creates a new TCP connector with a custom
// keep-alive period, a negative value disables keep-alive probes
func NewTCPConnectorWithKeepAlive(keepAlive time.Duration) base.IClientConnector {
	return &clientConnector{keepAlive: keepAlive}
}

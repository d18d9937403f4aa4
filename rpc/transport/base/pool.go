package base

import (
	"fmt"
	"sync"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
)

// PoolStats is a snapshot of the pool accounting
type PoolStats struct {
	Idle  int
	InUse int
	Size  int
}

// Pool is the bounded set of connections to a single node.
// Connections are created lazily, idle + checked out never exceeds the
// configured pool size and a checkout never waits for a free slot.
type Pool struct {
	node      common.NodeConfig
	connector IClientConnector
	codes     common.CodeMap

	mu         sync.Mutex
	idle       []*Connection          // most recently used last
	checkedOut map[string]*Connection // includes connections still connecting
	closed     bool

	checkouts *metrics.Counter
	connects  *metrics.Counter
	exhausted *metrics.Counter
	discarded *metrics.Counter
}

// NewPool creates an empty pool for the node
func NewPool(node common.NodeConfig, connector IClientConnector, codes common.CodeMap) *Pool {
	return &Pool{
		node:       node,
		connector:  connector,
		codes:      codes,
		idle:       make([]*Connection, 0, node.PoolSize),
		checkedOut: make(map[string]*Connection, node.PoolSize),
		checkouts:  metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_pool_checkouts_total{node=%q}`, node.Name)),
		connects:   metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_pool_connects_total{node=%q}`, node.Name)),
		exhausted:  metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_pool_exhausted_total{node=%q}`, node.Name)),
		discarded:  metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_pool_discarded_total{node=%q}`, node.Name)),
	}
}

// Node returns the configuration of the node served by the pool
func (p *Pool) Node() common.NodeConfig {
	return p.node
}

// Checkout returns an idle connection or connects a new one if the bound
// allows it. If every slot is taken it fails immediately with ErrPoolExhausted.
// The caller must hand the connection back with Checkin on every path.
func (p *Pool) Checkout() (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, common.NewTransportError(common.ErrKindPoolExhausted, "checkout", p.node.Endpoint(), common.ErrPoolClosed)
	}

	// Reuse the most recently returned connection, stale ones are closed outside the lock
	var stale []*Connection
	for len(p.idle) > 0 {
		conn := p.idle[len(p.idle)-1]
		p.idle = p.idle[:len(p.idle)-1]
		if !conn.IsUsable() {
			stale = append(stale, conn)
			continue
		}
		p.checkedOut[conn.ID()] = conn
		p.mu.Unlock()
		p.disconnectStale(stale)
		p.checkouts.Inc()
		return conn, nil
	}

	if len(p.checkedOut) >= p.node.PoolSize {
		p.mu.Unlock()
		p.disconnectStale(stale)
		p.exhausted.Inc()
		return nil, common.NewTransportError(common.ErrKindPoolExhausted, "checkout", p.node.Endpoint(), common.ErrPoolExhausted)
	}

	// Reserve the slot before connecting so the bound holds while the lock is released
	conn := NewConnection(p.node, p.connector, p.codes)
	p.checkedOut[conn.ID()] = conn
	p.mu.Unlock()
	p.disconnectStale(stale)

	p.connects.Inc()
	if err := conn.Connect(); err != nil {
		p.mu.Lock()
		delete(p.checkedOut, conn.ID())
		p.mu.Unlock()
		return nil, err
	}

	p.checkouts.Inc()
	return conn, nil
}

// Checkin returns a checked out connection. Healthy connections are kept for
// reuse, all others are disconnected. Either way the slot is released.
// Checking in a connection that is not checked out from this pool is a defect.
func (p *Pool) Checkin(conn *Connection, healthy bool) {
	p.mu.Lock()
	if _, ok := p.checkedOut[conn.ID()]; !ok {
		p.mu.Unlock()
		panic(fmt.Sprintf("connection %s is not checked out from the pool of %s", conn.ID(), p.node.Name))
	}
	delete(p.checkedOut, conn.ID())

	if healthy && !p.closed && conn.IsUsable() {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	p.discarded.Inc()
	Logger.Debugf("Discarding connection %s to %s (healthy=%t, state=%s)", conn.ID(), p.node.Endpoint(), healthy, conn.State())
	conn.Disconnect()
}

// Stats returns the current accounting of the pool
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{
		Idle:  len(p.idle),
		InUse: len(p.checkedOut),
		Size:  p.node.PoolSize,
	}
}

// Close disconnects all idle connections. Connections still checked out are
// disconnected when they are checked in, later checkouts fail.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("pool of %s: %w", p.node.Name, common.ErrPoolClosed)
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	for _, conn := range idle {
		conn.Disconnect()
	}
	return nil
}

// disconnectStale closes idle connections that became unusable, the pool lock must not be held
func (p *Pool) disconnectStale(stale []*Connection) {
	for _, conn := range stale {
		p.discarded.Inc()
		Logger.Debugf("Discarding stale connection %s to %s", conn.ID(), p.node.Endpoint())
		conn.Disconnect()
	}
}

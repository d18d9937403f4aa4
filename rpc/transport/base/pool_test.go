package base

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/internal/testnode"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, srv *testnode.Server, size int) (*Pool, *dialConnector) {
	t.Helper()
	connector := &dialConnector{}
	pool := NewPool(srv.Node(t.Name(), size), connector, common.DefaultCodeMap())
	t.Cleanup(func() { _ = pool.Close() })
	return pool, connector
}

// TestPoolLazyCreation tests that connections are only opened on demand
func TestPoolLazyCreation(t *testing.T) {
	srv := testnode.Start(t)
	pool, connector := newTestPool(t, srv, 3)

	assert.Equal(t, PoolStats{Idle: 0, InUse: 0, Size: 3}, pool.Stats())
	assert.Equal(t, int32(0), connector.dials.Load())

	conn, err := pool.Checkout()
	require.NoError(t, err)
	assert.Equal(t, int32(1), connector.dials.Load())
	assert.Equal(t, PoolStats{Idle: 0, InUse: 1, Size: 3}, pool.Stats())

	pool.Checkin(conn, true)
	assert.Equal(t, PoolStats{Idle: 1, InUse: 0, Size: 3}, pool.Stats())
}

// TestPoolReuse tests that a healthy connection is handed out again instead of dialing
func TestPoolReuse(t *testing.T) {
	srv := testnode.Start(t)
	pool, connector := newTestPool(t, srv, 2)

	first, err := pool.Checkout()
	require.NoError(t, err)
	pool.Checkin(first, true)

	second, err := pool.Checkout()
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), connector.dials.Load())
	pool.Checkin(second, true)
}

// TestPoolLIFO tests that the most recently returned connection is reused first
func TestPoolLIFO(t *testing.T) {
	srv := testnode.Start(t)
	pool, _ := newTestPool(t, srv, 2)

	a, err := pool.Checkout()
	require.NoError(t, err)
	b, err := pool.Checkout()
	require.NoError(t, err)

	pool.Checkin(a, true)
	pool.Checkin(b, true)

	next, err := pool.Checkout()
	require.NoError(t, err)
	assert.Same(t, b, next)
	pool.Checkin(next, true)
}

// TestPoolUnhealthyNotReused tests that connections checked in as unhealthy are disconnected
func TestPoolUnhealthyNotReused(t *testing.T) {
	srv := testnode.Start(t)
	pool, connector := newTestPool(t, srv, 1)

	first, err := pool.Checkout()
	require.NoError(t, err)
	pool.Checkin(first, false)
	assert.Equal(t, StateClosed, first.State())
	assert.Equal(t, PoolStats{Idle: 0, InUse: 0, Size: 1}, pool.Stats())

	second, err := pool.Checkout()
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, int32(2), connector.dials.Load())
	pool.Checkin(second, true)
}

// TestPoolBrokenNotReused tests that a connection broken by an I/O error is discarded even if reported healthy
func TestPoolBrokenNotReused(t *testing.T) {
	srv := testnode.Start(t)
	srv.Handle(common.MsgPingReq, testnode.Drop())
	pool, _ := newTestPool(t, srv, 1)

	conn, err := pool.Checkout()
	require.NoError(t, err)
	_, err = conn.Execute(pingCommand())
	require.Error(t, err)

	pool.Checkin(conn, true)
	assert.Equal(t, 0, pool.Stats().Idle)

	next, err := pool.Checkout()
	require.NoError(t, err)
	assert.NotSame(t, conn, next)
	pool.Checkin(next, true)
}

// TestPoolExhaustion tests that a full pool fails fast without dialing
func TestPoolExhaustion(t *testing.T) {
	srv := testnode.Start(t)
	pool, connector := newTestPool(t, srv, 1)

	conn, err := pool.Checkout()
	require.NoError(t, err)

	_, err = pool.Checkout()
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrPoolExhausted))
	assert.Equal(t, common.ErrKindPoolExhausted, common.KindOf(err))
	assert.Equal(t, int32(1), connector.dials.Load())

	pool.Checkin(conn, true)
	conn, err = pool.Checkout()
	require.NoError(t, err)
	pool.Checkin(conn, true)
}

// TestPoolConnectFailureReleasesSlot tests that a failed dial does not leak its reserved slot
func TestPoolConnectFailureReleasesSlot(t *testing.T) {
	host, port := closedPort(t)
	node := common.NodeConfig{Name: "down", Host: host, Port: port, PoolSize: 1, ConnectTimeout: testTimeout, ReadTimeout: testTimeout, WriteTimeout: testTimeout}
	pool := NewPool(node, &dialConnector{}, common.DefaultCodeMap())

	for i := 0; i < 3; i++ {
		_, err := pool.Checkout()
		require.Error(t, err)
		assert.Equal(t, common.ErrKindConnect, common.KindOf(err))
		assert.Equal(t, 0, pool.Stats().InUse)
	}
}

// TestPoolCheckinUnknown tests that checking in a foreign connection panics
func TestPoolCheckinUnknown(t *testing.T) {
	srv := testnode.Start(t)
	pool, _ := newTestPool(t, srv, 1)

	foreign := NewConnection(srv.Node("other", 1), &dialConnector{}, common.DefaultCodeMap())
	assert.Panics(t, func() { pool.Checkin(foreign, true) })

	conn, err := pool.Checkout()
	require.NoError(t, err)
	pool.Checkin(conn, true)
	assert.Panics(t, func() { pool.Checkin(conn, true) })
}

// TestPoolClose tests that a closed pool refuses checkouts and discards returned connections
func TestPoolClose(t *testing.T) {
	srv := testnode.Start(t)
	connector := &dialConnector{}
	pool := NewPool(srv.Node("closing", 2), connector, common.DefaultCodeMap())

	idle, err := pool.Checkout()
	require.NoError(t, err)
	busy, err := pool.Checkout()
	require.NoError(t, err)
	pool.Checkin(idle, true)

	require.NoError(t, pool.Close())
	assert.Equal(t, StateClosed, idle.State())

	_, err = pool.Checkout()
	assert.ErrorIs(t, err, common.ErrPoolClosed)

	pool.Checkin(busy, true)
	assert.Equal(t, StateClosed, busy.State())
	assert.Equal(t, PoolStats{Idle: 0, InUse: 0, Size: 2}, pool.Stats())

	assert.ErrorIs(t, pool.Close(), common.ErrPoolClosed)
}

// TestPoolConcurrentBound tests that concurrent checkouts never exceed the pool size
func TestPoolConcurrentBound(t *testing.T) {
	srv := testnode.Start(t)
	srv.Handle(common.MsgPingReq, testnode.Reply(testnode.Frame{Code: common.MsgPingResp}))
	const size = 4
	pool, connector := newTestPool(t, srv, size)

	var wg sync.WaitGroup
	var mu sync.Mutex
	exhausted := 0

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				conn, err := pool.Checkout()
				if err != nil {
					if errors.Is(err, common.ErrPoolExhausted) {
						mu.Lock()
						exhausted++
						mu.Unlock()
						continue
					}
					t.Errorf("unexpected checkout error: %v", err)
					return
				}

				stats := pool.Stats()
				if stats.Idle+stats.InUse > size {
					t.Errorf("pool bound violated: %+v", stats)
				}

				_, err = conn.Execute(pingCommand())
				pool.Checkin(conn, err == nil)
			}
		}()
	}
	wg.Wait()

	stats := pool.Stats()
	assert.LessOrEqual(t, stats.Idle, size)
	assert.Equal(t, 0, stats.InUse)
	assert.LessOrEqual(t, int(connector.dials.Load()), size)
	t.Logf("%d checkouts failed fast", exhausted)
}

// slowCloseConnector hands out connections whose Close blocks until release is closed
type slowCloseConnector struct {
	dialConnector
	closing chan struct{}
	release chan struct{}
}

type slowCloseConn struct {
	net.Conn
	connector *slowCloseConnector
	once      sync.Once
}

func (c *slowCloseConn) Close() error {
	c.once.Do(func() {
		close(c.connector.closing)
		<-c.connector.release
	})
	return c.Conn.Close()
}

func (c *slowCloseConnector) Connect(endpoint string, timeout time.Duration) (net.Conn, error) {
	conn, err := c.dialConnector.Connect(endpoint, timeout)
	if err != nil || c.dials.Load() > 1 {
		return conn, err
	}
	return &slowCloseConn{Conn: conn, connector: c}, nil
}

// TestPoolStaleIdleClosedOutsideLock tests that closing a stale idle connection does not block the pool
func TestPoolStaleIdleClosedOutsideLock(t *testing.T) {
	srv := testnode.Start(t)
	connector := &slowCloseConnector{closing: make(chan struct{}), release: make(chan struct{})}
	pool := NewPool(srv.Node(t.Name(), 2), connector, common.DefaultCodeMap())
	t.Cleanup(func() { _ = pool.Close() })

	stale, err := pool.Checkout()
	require.NoError(t, err)
	pool.Checkin(stale, true)
	require.Equal(t, 1, pool.Stats().Idle)

	// the stream broke while the connection was idle
	stale.broken = true

	type checkout struct {
		conn *Connection
		err  error
	}
	result := make(chan checkout, 1)
	go func() {
		conn, err := pool.Checkout()
		result <- checkout{conn, err}
	}()

	select {
	case <-connector.closing:
	case <-time.After(testTimeout):
		t.Fatal("stale connection was not closed")
	}

	stats := make(chan PoolStats, 1)
	go func() { stats <- pool.Stats() }()
	select {
	case s := <-stats:
		assert.Equal(t, PoolStats{Idle: 0, InUse: 1, Size: 2}, s)
	case <-time.After(testTimeout):
		close(connector.release)
		t.Fatal("pool lock held while closing a stale connection")
	}

	close(connector.release)
	r := <-result
	require.NoError(t, r.err)
	assert.NotSame(t, stale, r.conn)
	assert.Equal(t, StateClosed, stale.State())
	assert.Equal(t, int32(2), connector.dials.Load())
	pool.Checkin(r.conn, true)
}

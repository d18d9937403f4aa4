package cluster

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeNodes() common.ClusterConfig {
	return common.ClusterConfig{
		Nodes: []common.NodeConfig{
			{Name: "a", Host: "10.0.0.1"},
			{Name: "b", Host: "10.0.0.2"},
			{Name: "c", Host: "10.0.0.3", Port: 9000, PoolSize: 2},
		},
	}
}

// TestNewRegistryDefaults tests that the registry uses the defaulted configuration
func TestNewRegistryDefaults(t *testing.T) {
	r, err := NewRegistry(threeNodes(), tcp.NewTCPConnector(), common.DefaultCodeMap())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.Equal(t, 3, r.Len())
	a, ok := r.Node("a")
	require.True(t, ok)
	assert.Equal(t, common.DefaultPort, a.Config().Port)
	assert.Equal(t, common.DefaultPoolSize, a.Pool().Stats().Size)
	assert.Equal(t, common.DefaultTimeout, a.Config().ReadTimeout)

	c, ok := r.Node("c")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.3:9000", c.Config().Endpoint())
	assert.Equal(t, 2, c.Pool().Stats().Size)

	_, ok = r.Node("missing")
	assert.False(t, ok)

	assert.Equal(t, common.DefaultRetryCount, r.Config().RetryCount)
	assert.Equal(t, common.DefaultRetryWaitTime, r.Config().RetryWaitTime)
}

// TestNewRegistryInvalid tests that invalid configurations are rejected
func TestNewRegistryInvalid(t *testing.T) {
	tests := []struct {
		name   string
		config common.ClusterConfig
	}{
		{name: "no nodes", config: common.ClusterConfig{}},
		{name: "missing host", config: common.ClusterConfig{Nodes: []common.NodeConfig{{Name: "a"}}}},
		{name: "duplicate name", config: common.ClusterConfig{Nodes: []common.NodeConfig{
			{Name: "a", Host: "h1"}, {Name: "a", Host: "h2"},
		}}},
		{name: "duplicate endpoint", config: common.ClusterConfig{Nodes: []common.NodeConfig{
			{Host: "h1"}, {Host: "h1"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.config, tcp.NewTCPConnector(), common.DefaultCodeMap())
			assert.Error(t, err)
		})
	}
}

// TestNextRoundRobin tests that every node is selected equally often
func TestNextRoundRobin(t *testing.T) {
	r, err := NewRegistry(threeNodes(), tcp.NewTCPConnector(), common.DefaultCodeMap())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	counts := map[string]int{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				node := r.Next()
				mu.Lock()
				counts[node.Name()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, map[string]int{"a": 100, "b": 100, "c": 100}, counts)
}

// TestNextSingleNode tests the single node shortcut
func TestNextSingleNode(t *testing.T) {
	r, err := NewRegistry(common.ClusterConfig{Nodes: []common.NodeConfig{{Host: "127.0.0.1"}}}, tcp.NewTCPConnector(), common.DefaultCodeMap())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	node := r.Next()
	assert.Same(t, node, r.Next())
	assert.Equal(t, net.JoinHostPort("127.0.0.1", "8087"), node.Name())
}

// TestNodesIsCopy tests that callers cannot modify the node list
func TestNodesIsCopy(t *testing.T) {
	r, err := NewRegistry(threeNodes(), tcp.NewTCPConnector(), common.DefaultCodeMap())
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	nodes := r.Nodes()
	nodes[0] = nil
	assert.NotNil(t, r.Nodes()[0])
}

// TestRegistryClose tests that closing twice reports the already closed pools
func TestRegistryClose(t *testing.T) {
	config := threeNodes()
	config.Nodes[0].ConnectTimeout = time.Second
	r, err := NewRegistry(config, tcp.NewTCPConnector(), common.DefaultCodeMap())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	err = r.Close()
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrPoolClosed)
}

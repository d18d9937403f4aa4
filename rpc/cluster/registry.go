package cluster

import (
	"fmt"
	"sync/atomic"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("cluster")

// Node is a configured node together with its connection pool
type Node struct {
	config common.NodeConfig
	pool   *base.Pool
}

// Name returns the unique name of the node
func (n *Node) Name() string {
	return n.config.Name
}

// Config returns the (defaulted) configuration of the node
func (n *Node) Config() common.NodeConfig {
	return n.config
}

// Pool returns the connection pool of the node
func (n *Node) Pool() *base.Pool {
	return n.pool
}

// Registry is the fixed set of nodes of a cluster. The node list is built
// once and never changes, so reads need no locking.
type Registry struct {
	config common.ClusterConfig
	nodes  []*Node
	byName *xsync.MapOf[string, *Node]
	next   atomic.Uint64
}

// NewRegistry applies the defaults to the configuration, validates it and
// creates one (empty) pool per node. No connection is opened here.
func NewRegistry(config common.ClusterConfig, connector base.IClientConnector, codes common.CodeMap) (*Registry, error) {
	config, err := config.WithDefaults()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cluster configuration: %w", err)
	}

	r := &Registry{
		config: config,
		nodes:  make([]*Node, 0, len(config.Nodes)),
		byName: xsync.NewMapOf[string, *Node](),
	}
	for _, nodeConfig := range config.Nodes {
		node := &Node{
			config: nodeConfig,
			pool:   base.NewPool(nodeConfig, connector, codes),
		}
		r.nodes = append(r.nodes, node)
		r.byName.Store(node.Name(), node)
		Logger.Debugf("Registered node %s at %s (pool size %d, %s)", node.Name(), nodeConfig.Endpoint(), nodeConfig.PoolSize, connector.GetName())
	}

	Logger.Infof("Cluster registry created with %d nodes", len(r.nodes))
	return r, nil
}

// Config returns the defaulted cluster configuration
func (r *Registry) Config() common.ClusterConfig {
	return r.config
}

// Nodes returns all nodes in configuration order
func (r *Registry) Nodes() []*Node {
	out := make([]*Node, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len returns the number of nodes
func (r *Registry) Len() int {
	return len(r.nodes)
}

// Node looks up a node by its name
func (r *Registry) Node(name string) (*Node, bool) {
	return r.byName.Load(name)
}

// Next selects the next node via Round Robin, every node is returned once
// every Len() calls. It returns nil if the registry has no nodes.
func (r *Registry) Next() *Node {
	switch len(r.nodes) {
	case 0:
		return nil
	case 1:
		// optimize for single node
		return r.nodes[0]
	default:
		index := (r.next.Add(1) - 1) % uint64(len(r.nodes))
		return r.nodes[index]
	}
}

// Close closes the pools of all nodes and reports every failure
func (r *Registry) Close() error {
	var result *multierror.Error
	for _, node := range r.nodes {
		if err := node.pool.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

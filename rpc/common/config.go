package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/hashicorp/go-multierror"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultPort          = 8087
	DefaultPoolSize      = 30
	DefaultTimeout       = 4 * time.Second
	DefaultRetryCount    = 3
	DefaultRetryWaitTime = 200 * time.Millisecond
)

// defaultNode holds the values applied to every unset node field
var defaultNode = NodeConfig{
	Port:           DefaultPort,
	PoolSize:       DefaultPoolSize,
	ConnectTimeout: DefaultTimeout,
	ReadTimeout:    DefaultTimeout,
	WriteTimeout:   DefaultTimeout,
}

// --------------------------------------------------------------------------
// Security configuration
// --------------------------------------------------------------------------

// AuthConfig holds the TLS and authentication settings of a node
type AuthConfig struct {
	Username string
	Password string

	// PEM encoded client certificate and key, used for certificate based auth
	ClientCertificateFile string
	ClientKeyFile         string

	// PEM encoded CA bundle used to verify the node certificate; system roots if empty
	CertificateAuthorityFile string

	// ServerName overrides the name verified in the node certificate (defaults to the host)
	ServerName string

	// CheckCertificateRevocation requires a stapled, non revoked OCSP response
	CheckCertificateRevocation bool
}

// IsSecurityEnabled reports whether connections have to be upgraded to TLS and authenticated
func (a *AuthConfig) IsSecurityEnabled() bool {
	return a != nil && a.Username != ""
}

// ClientCertificatesConfigured reports whether a client certificate is presented during the handshake
func (a *AuthConfig) ClientCertificatesConfigured() bool {
	return a != nil && a.ClientCertificateFile != "" && a.ClientKeyFile != ""
}

// --------------------------------------------------------------------------
// Node configuration
// --------------------------------------------------------------------------

// NodeConfig describes a single node. It is never mutated after the cluster is built.
type NodeConfig struct {
	Name               string
	Host               string
	Port               int
	PoolSize           int
	UseCompactEncoding bool

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	Auth *AuthConfig
}

// Endpoint returns the host:port address of the node
func (n NodeConfig) Endpoint() string {
	return net.JoinHostPort(n.Host, strconv.Itoa(n.Port))
}

// IsSecurityEnabled reports whether the node requires TLS and authentication
func (n NodeConfig) IsSecurityEnabled() bool {
	return n.Auth.IsSecurityEnabled()
}

// validate checks a single (already defaulted) node
func (n NodeConfig) validate() error {
	var result *multierror.Error
	if n.Host == "" {
		result = multierror.Append(result, fmt.Errorf("node %q: host must not be empty", n.Name))
	}
	if n.Port <= 0 || n.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("node %q: invalid port %d", n.Name, n.Port))
	}
	if n.PoolSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("node %q: pool size must be positive, got %d", n.Name, n.PoolSize))
	}
	if n.ConnectTimeout <= 0 || n.ReadTimeout <= 0 || n.WriteTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("node %q: timeouts must be positive", n.Name))
	}
	if n.Auth != nil && (n.Auth.ClientCertificateFile == "") != (n.Auth.ClientKeyFile == "") {
		result = multierror.Append(result, fmt.Errorf("node %q: client certificate and key must be set together", n.Name))
	}
	return result.ErrorOrNil()
}

// --------------------------------------------------------------------------
// Cluster configuration
// --------------------------------------------------------------------------

// ClusterConfig is the configuration surface consumed by the transport core
type ClusterConfig struct {
	Nodes []NodeConfig

	// RetryCount is the total number of attempts per command, 1 disables retries.
	// Zero or negative values are replaced by DefaultRetryCount.
	RetryCount int

	// RetryWaitTime is the pause between attempts, zero or negative values are
	// replaced by DefaultRetryWaitTime
	RetryWaitTime time.Duration

	// DisableListExceptions allows expensive listing commands, consumed by the command layer
	DisableListExceptions bool

	// Auth is used for every node without its own security configuration
	Auth *AuthConfig
}

// RetryPolicy bounds the attempts of the failover controller
type RetryPolicy struct {
	MaxAttempts int
	WaitTime    time.Duration
}

// WithDefaults returns a copy of the configuration with every unset option
// replaced by its default. The receiver is left untouched.
func (c ClusterConfig) WithDefaults() (ClusterConfig, error) {
	out := c
	if out.RetryCount <= 0 {
		out.RetryCount = DefaultRetryCount
	}
	if out.RetryWaitTime <= 0 {
		out.RetryWaitTime = DefaultRetryWaitTime
	}

	out.Nodes = make([]NodeConfig, len(c.Nodes))
	for i, node := range c.Nodes {
		if err := mergo.Merge(&node, defaultNode); err != nil {
			return ClusterConfig{}, fmt.Errorf("failed to apply defaults to node %d: %w", i, err)
		}
		if node.Auth == nil {
			node.Auth = c.Auth
		}
		if node.Name == "" {
			node.Name = node.Endpoint()
		}
		out.Nodes[i] = node
	}
	return out, nil
}

// Validate checks the configuration and reports all problems at once
func (c ClusterConfig) Validate() error {
	var result *multierror.Error
	if len(c.Nodes) == 0 {
		result = multierror.Append(result, fmt.Errorf("at least one node must be configured"))
	}
	if c.RetryCount <= 0 {
		result = multierror.Append(result, fmt.Errorf("retry count must be positive, got %d", c.RetryCount))
	}
	if c.RetryWaitTime < 0 {
		result = multierror.Append(result, fmt.Errorf("retry wait time must not be negative"))
	}

	names := make(map[string]struct{}, len(c.Nodes))
	for _, node := range c.Nodes {
		if err := node.validate(); err != nil {
			result = multierror.Append(result, err)
		}
		if _, dup := names[node.Name]; dup {
			result = multierror.Append(result, fmt.Errorf("duplicate node name %q", node.Name))
		}
		names[node.Name] = struct{}{}
	}
	return result.ErrorOrNil()
}

// RetryPolicy returns the retry policy described by the configuration
func (c ClusterConfig) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: c.RetryCount,
		WaitTime:    c.RetryWaitTime,
	}
}

// String returns a formatted string representation of the cluster configuration
func (c *ClusterConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Cluster Configuration")
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Retry Wait Time", c.RetryWaitTime.String())
	addField("List Exceptions", fmt.Sprintf("%t", !c.DisableListExceptions))

	// Nodes
	for _, node := range c.Nodes {
		addSection("Node " + node.Name)
		addField("Endpoint", node.Endpoint())
		addField("Pool Size", strconv.Itoa(node.PoolSize))
		addField("Compact Encoding", fmt.Sprintf("%t", node.UseCompactEncoding))
		addField("Connect Timeout", node.ConnectTimeout.String())
		addField("Read Timeout", node.ReadTimeout.String())
		addField("Write Timeout", node.WriteTimeout.String())
		addField("Security", fmt.Sprintf("%t", node.IsSecurityEnabled()))
		if node.IsSecurityEnabled() {
			addField("Username", node.Auth.Username)
			addField("Client Certificate", fmt.Sprintf("%t", node.Auth.ClientCertificatesConfigured()))
			addField("Check Revocation", fmt.Sprintf("%t", node.Auth.CheckCertificateRevocation))
		}
	}

	return sb.String()
}

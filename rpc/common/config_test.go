package common

import (
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWithDefaults tests that unset options get their defaults and set ones are kept
func TestWithDefaults(t *testing.T) {
	clusterAuth := &AuthConfig{Username: "riakuser", Password: "secret"}
	nodeAuth := &AuthConfig{Username: "other"}

	in := ClusterConfig{
		Nodes: []NodeConfig{
			{Host: "10.0.0.1"},
			{Name: "second", Host: "10.0.0.2", Port: 9000, PoolSize: 2, ReadTimeout: time.Second, Auth: nodeAuth},
		},
		Auth: clusterAuth,
	}

	out, err := in.WithDefaults()
	require.NoError(t, err)
	require.NoError(t, out.Validate())

	assert.Equal(t, DefaultRetryCount, out.RetryCount)
	assert.Equal(t, DefaultRetryWaitTime, out.RetryWaitTime)

	first := out.Nodes[0]
	assert.Equal(t, "10.0.0.1:8087", first.Name)
	assert.Equal(t, DefaultPoolSize, first.PoolSize)
	assert.Equal(t, DefaultTimeout, first.ConnectTimeout)
	assert.Equal(t, DefaultTimeout, first.ReadTimeout)
	assert.Equal(t, DefaultTimeout, first.WriteTimeout)
	assert.Same(t, clusterAuth, first.Auth)
	assert.True(t, first.IsSecurityEnabled())

	second := out.Nodes[1]
	assert.Equal(t, "second", second.Name)
	assert.Equal(t, "10.0.0.2:9000", second.Endpoint())
	assert.Equal(t, 2, second.PoolSize)
	assert.Equal(t, time.Second, second.ReadTimeout)
	assert.Equal(t, DefaultTimeout, second.WriteTimeout)
	assert.Same(t, nodeAuth, second.Auth)

	// the input is left untouched
	assert.Equal(t, "", in.Nodes[0].Name)
	assert.Equal(t, 0, in.Nodes[0].Port)
	assert.Equal(t, 0, in.RetryCount)

	assert.Equal(t, RetryPolicy{MaxAttempts: DefaultRetryCount, WaitTime: DefaultRetryWaitTime}, out.RetryPolicy())
}

// TestSingleAttemptPolicy tests that a retry count of one is kept as a single attempt
func TestSingleAttemptPolicy(t *testing.T) {
	config, err := ClusterConfig{
		Nodes:         []NodeConfig{{Host: "10.0.0.1"}},
		RetryCount:    1,
		RetryWaitTime: time.Millisecond,
	}.WithDefaults()
	require.NoError(t, err)
	assert.Equal(t, RetryPolicy{MaxAttempts: 1, WaitTime: time.Millisecond}, config.RetryPolicy())

	config, err = ClusterConfig{Nodes: []NodeConfig{{Host: "10.0.0.1"}}, RetryCount: -1}.WithDefaults()
	require.NoError(t, err)
	assert.Equal(t, DefaultRetryCount, config.RetryPolicy().MaxAttempts)
}

// TestValidate tests that all problems are reported together
func TestValidate(t *testing.T) {
	config := ClusterConfig{
		RetryCount: 1,
		Nodes: []NodeConfig{
			{Name: "a", Host: "", Port: 0, PoolSize: 0},
			{Name: "a", Host: "h", Port: 1, PoolSize: 1, ConnectTimeout: 1, ReadTimeout: 1, WriteTimeout: 1,
				Auth: &AuthConfig{Username: "x", ClientCertificateFile: "cert.pem"}},
		},
	}

	err := config.Validate()
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	// node a: host, port, pool size, timeouts; node a (2): cert/key; duplicate name
	assert.Len(t, merr.Errors, 6)
	assert.Contains(t, err.Error(), `duplicate node name "a"`)
	assert.Contains(t, err.Error(), "client certificate and key must be set together")

	assert.Error(t, ClusterConfig{RetryCount: 1}.Validate())
}

// TestParseLogLevel tests the accepted log level names
func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG,
		"INFO":  logger.INFO,
		"warn":  logger.WARNING,
		"error": logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("loud"))
}

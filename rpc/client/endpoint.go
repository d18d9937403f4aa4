package client

import (
	"time"

	"github.com/ValentinKolb/rKV/rpc/cluster"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/base"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

var (
	attemptsTotal  = metrics.GetOrCreateCounter(`rkv_endpoint_attempts_total`)
	successTotal   = metrics.GetOrCreateCounter(`rkv_endpoint_results_total{result="success"}`)
	fatalTotal     = metrics.GetOrCreateCounter(`rkv_endpoint_results_total{result="fatal"}`)
	exhaustedTotal = metrics.GetOrCreateCounter(`rkv_endpoint_results_total{result="exhausted"}`)
	duration       = metrics.GetOrCreateHistogram(`rkv_endpoint_duration_seconds`)
)

// attemptFunc runs one attempt on a checked out connection. If keep is true
// the attempt took over the connection and is responsible for its checkin.
type attemptFunc func(node *cluster.Node, conn *base.Connection) (responses []any, keep bool, err error)

// Endpoint is the retry and failover controller. Every invocation picks a
// node from the registry per attempt, checks out a connection of that node,
// runs the unit of work and classifies the outcome. Retryable failures are
// retried up to the policy bound, fatal failures end the invocation at once.
type Endpoint struct {
	registry *cluster.Registry
	policy   common.RetryPolicy
	sleep    func(time.Duration)
}

// NewEndpoint creates a controller using the retry policy of the cluster configuration
func NewEndpoint(registry *cluster.Registry) *Endpoint {
	return NewEndpointWithPolicy(registry, registry.Config().RetryPolicy())
}

// NewEndpointWithPolicy creates a controller with an explicit retry policy.
// A policy with less than one attempt still makes a single attempt.
func NewEndpointWithPolicy(registry *cluster.Registry, policy common.RetryPolicy) *Endpoint {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Endpoint{
		registry: registry,
		policy:   policy,
		sleep:    time.Sleep,
	}
}

// Registry returns the node registry of the controller
func (e *Endpoint) Registry() *cluster.Registry {
	return e.registry
}

// Policy returns the retry policy of the controller
func (e *Endpoint) Policy() common.RetryPolicy {
	return e.policy
}

// Close closes the pools of all nodes
func (e *Endpoint) Close() error {
	return e.registry.Close()
}

// UseConnection runs fn on a pooled connection. The error returned by fn is
// classified with common.KindOf, errors that are not produced by the transport
// count as fatal and discard the connection.
func (e *Endpoint) UseConnection(fn func(conn *base.Connection) error) Result {
	return e.invoke("use connection", func(_ *cluster.Node, conn *base.Connection) ([]any, bool, error) {
		return nil, false, fn(conn)
	})
}

// Execute sends the command and collects all of its decoded responses
func (e *Endpoint) Execute(cmd transport.ICommand) Result {
	return e.invoke(cmd.ExpectedCode().String(), func(_ *cluster.Node, conn *base.Connection) ([]any, bool, error) {
		responses, err := conn.Execute(cmd)
		return responses, false, err
	})
}

// UseDelayedConnection sends a streaming command and returns its responses as
// a lazy Stream. The first response frame is read inside the retry loop, so a
// node failing before anything was delivered is retried like any other
// attempt. Once the Stream is returned it owns the connection, the caller
// must consume it completely or Close it.
func (e *Endpoint) UseDelayedConnection(cmd transport.IStreamingCommand) (*Stream, Result) {
	var stream *Stream
	result := e.invoke(cmd.ExpectedCode().String()+" (delayed)", func(node *cluster.Node, conn *base.Connection) ([]any, bool, error) {
		if err := conn.Send(cmd); err != nil {
			return nil, false, err
		}
		first, done, err := conn.ReceiveOne(cmd)
		if err != nil {
			return nil, false, err
		}
		stream = newStream(cmd, node, conn, first, done)
		return nil, true, nil
	})
	return stream, result
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// invoke is the attempt loop shared by all invocation modes
func (e *Endpoint) invoke(op string, attempt attemptFunc) Result {
	if e.registry == nil || e.registry.Len() == 0 {
		panic("rpc endpoint invoked without configured nodes")
	}

	start := time.Now()
	defer duration.UpdateDuration(start)

	var lastErr error
	var lastNode string
	for n := 1; n <= e.policy.MaxAttempts; n++ {
		attemptsTotal.Inc()
		node := e.registry.Next()
		lastNode = node.Name()

		responses, err := e.attemptOn(node, attempt)
		if err == nil {
			successTotal.Inc()
			if n > 1 {
				Logger.Debugf("%s succeeded on %s after %d attempts", op, node.Name(), n)
			}
			return successResult(responses, n, node.Name())
		}

		lastErr = err
		kind := common.KindOf(err)
		if !kind.Retryable() {
			fatalTotal.Inc()
			if kind == common.ErrKindProtocolViolation {
				Logger.Errorf("%s failed on %s: %v", op, node.Name(), err)
			} else {
				Logger.Debugf("%s failed on %s: %v", op, node.Name(), err)
			}
			return failureResult(err, n, node.Name(), false)
		}

		Logger.Debugf("%s attempt %d/%d on %s failed: %v", op, n, e.policy.MaxAttempts, node.Name(), err)
		if n < e.policy.MaxAttempts && e.policy.WaitTime > 0 {
			e.sleep(e.policy.WaitTime)
		}
	}

	exhaustedTotal.Inc()
	Logger.Warningf("%s failed after %d attempts: %v", op, e.policy.MaxAttempts, lastErr)
	return failureResult(lastErr, e.policy.MaxAttempts, lastNode, true)
}

// attemptOn runs a single attempt on the node and hands the connection back to
// its pool unless the attempt kept it. A panicking attempt discards the connection.
func (e *Endpoint) attemptOn(node *cluster.Node, attempt attemptFunc) ([]any, error) {
	pool := node.Pool()
	conn, err := pool.Checkout()
	if err != nil {
		return nil, err
	}

	done := false
	defer func() {
		if !done {
			pool.Checkin(conn, false)
		}
	}()

	responses, keep, err := attempt(node, conn)
	done = true
	if !keep {
		pool.Checkin(conn, err == nil || !common.KindOf(err).BreaksConnection())
	}
	return responses, err
}

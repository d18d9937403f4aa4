package base

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport/frame"
	"golang.org/x/crypto/ocsp"
)

// setUpSecurity upgrades the raw socket to TLS and authenticates:
//  1. send a code only StartTls frame and expect the node to echo it
//  2. run the TLS handshake on top of the socket
//  3. send the credentials and expect an AuthResp frame
//
// An unexpected code in any step is a protocol violation, the node refused
// the credentials if it answered with an error frame.
func (c *Connection) setUpSecurity() error {
	endpoint := c.node.Endpoint()
	auth := c.node.Auth

	c.transition(StateTLSNegotiating)
	if err := c.writeFrame(common.MsgStartTls, nil); err != nil {
		return asConnectError("start tls", err)
	}
	if _, err := c.readExpected(common.MsgStartTls); err != nil {
		return asConnectError("start tls", err)
	}

	tlsConfig, err := buildTLSConfig(c.node)
	if err != nil {
		return common.NewTransportError(common.ErrKindConnect, "tls config", endpoint, err)
	}

	tlsConn := tls.Client(c.stream, tlsConfig)
	if c.node.ConnectTimeout > 0 {
		_ = tlsConn.SetDeadline(time.Now().Add(c.node.ConnectTimeout))
	}
	if err := tlsConn.Handshake(); err != nil {
		return common.NewTransportError(common.ErrKindConnect, "tls handshake", endpoint, err)
	}
	_ = tlsConn.SetDeadline(time.Time{})

	// From here on all I/O goes through the tls stream
	c.stream = tlsConn

	c.transition(StateAuthenticating)
	if err := c.writeFrame(common.MsgAuthReq, frame.EncodeAuthRequest(auth.Username, auth.Password)); err != nil {
		return asConnectError("authenticate", err)
	}
	if _, err := c.readExpected(common.MsgAuthResp); err != nil {
		return asConnectError("authenticate", err)
	}

	Logger.Debugf("Connection %s authenticated as %s on %s", c.id, auth.Username, endpoint)
	return nil
}

// asConnectError turns network failures during the handshake into connect errors.
// Protocol violations and server errors keep their kind.
func asConnectError(op string, err error) error {
	var transportErr *common.TransportError
	if errors.As(err, &transportErr) && (transportErr.Kind == common.ErrKindWrite || transportErr.Kind == common.ErrKindRead) {
		return common.NewTransportError(common.ErrKindConnect, op, transportErr.Endpoint, transportErr.Err)
	}
	return err
}

// buildTLSConfig creates the client side TLS configuration of a node
func buildTLSConfig(node common.NodeConfig) (*tls.Config, error) {
	auth := node.Auth

	config := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: auth.ServerName,
	}
	if config.ServerName == "" {
		config.ServerName = node.Host
	}

	if auth.CertificateAuthorityFile != "" {
		pem, err := os.ReadFile(auth.CertificateAuthorityFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate authority file: %w", err)
		}
		roots := x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", auth.CertificateAuthorityFile)
		}
		config.RootCAs = roots
	}

	if auth.ClientCertificatesConfigured() {
		cert, err := tls.LoadX509KeyPair(auth.ClientCertificateFile, auth.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		config.Certificates = []tls.Certificate{cert}
	}

	if auth.CheckCertificateRevocation {
		config.VerifyConnection = verifyNotRevoked
	}

	return config, nil
}

// verifyNotRevoked requires a stapled OCSP response for the node certificate
// that does not report it as revoked
func verifyNotRevoked(cs tls.ConnectionState) error {
	if len(cs.PeerCertificates) == 0 {
		return fmt.Errorf("node presented no certificate")
	}
	leaf := cs.PeerCertificates[0]

	if len(cs.OCSPResponse) == 0 {
		return fmt.Errorf("node did not staple an OCSP response for %s", leaf.Subject)
	}

	var issuer *x509.Certificate
	if len(cs.VerifiedChains) > 0 && len(cs.VerifiedChains[0]) > 1 {
		issuer = cs.VerifiedChains[0][1]
	} else if len(cs.PeerCertificates) > 1 {
		issuer = cs.PeerCertificates[1]
	}

	resp, err := ocsp.ParseResponseForCert(cs.OCSPResponse, leaf, issuer)
	if err != nil {
		return fmt.Errorf("invalid OCSP response: %w", err)
	}
	if resp.Status == ocsp.Revoked {
		return fmt.Errorf("certificate %s was revoked at %s", leaf.SerialNumber, resp.RevokedAt)
	}
	return nil
}

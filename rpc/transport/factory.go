package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// connectionFactory opens one authenticated connection per call. The
// security mode is dispatched exactly once here; everything above works on
// the resulting Connection without knowing how it was built.
type connectionFactory struct {
	config common.ClientConfig
}

// NewConnectionFactory creates the factory for the configured security mode
// and TCP tuning.
func NewConnectionFactory(config common.ClientConfig) IConnectionFactory {
	return &connectionFactory{config: config}
}

// Connect implements IConnectionFactory. Every failure mode (bad address,
// dial, TLS handshake, auth rejection, unexpected response kind) surfaces
// as one typed error and never leaks a partially authenticated connection.
func (f *connectionFactory) Connect(ctx context.Context, address string) (*Connection, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" || port == "" {
		common.ConnectionsFailed.Inc()
		return nil, common.NewErrorf(common.ErrCBadAddress, "unparsable address %q", address)
	}

	conn, err := f.open(ctx, address)
	if err != nil {
		common.ConnectionsFailed.Inc()
		return nil, err
	}

	// The handshake must complete before the connection is handed out
	connection := newConnection(conn, address)
	if err := connection.authenticate(ctx, f.config.Credential); err != nil {
		_ = connection.Close()
		common.ConnectionsFailed.Inc()
		return nil, err
	}

	common.ConnectionsOpened.Inc()
	Logger.Debugf("connected to %s (%s)", address, f.config.Transport.SecurityMode)
	return connection, nil
}

// open dials the raw transport and upgrades it according to the security
// mode.
func (f *connectionFactory) open(ctx context.Context, address string) (net.Conn, error) {
	dialer := net.Dialer{
		Timeout: time.Duration(f.config.TimeoutSecond) * time.Second,
	}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, common.NewErrorf(common.ErrCIOFailure, "dialing %s: %v", address, err)
	}

	if err := f.tuneTCP(conn); err != nil {
		_ = conn.Close()
		return nil, common.NewErrorf(common.ErrCIOFailure, "tuning connection to %s: %v", address, err)
	}

	switch f.config.Transport.SecurityMode {
	case common.SecurityInsecure:
		return conn, nil

	case common.SecurityTLS, common.SecurityTLSUnverified:
		tlsConfig := &tls.Config{
			ServerName:         f.config.TLSHostname(),
			InsecureSkipVerify: f.config.Transport.SecurityMode == common.SecurityTLSUnverified,
		}

		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, common.NewErrorf(common.ErrCHandshakeFailed, "TLS handshake with %s: %v", address, err)
		}
		return tlsConn, nil

	default:
		_ = conn.Close()
		return nil, common.NewErrorf(common.ErrCInternal, "unknown security mode %d", f.config.Transport.SecurityMode)
	}
}

// tuneTCP applies the configured socket optimizations to a TCP connection.
func (f *connectionFactory) tuneTCP(conn net.Conn) error {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}

	cfg := f.config.Transport

	// Disable Nagle's algorithm if configured
	if err := tcpConn.SetNoDelay(cfg.TCPNoDelay); err != nil {
		return err
	}

	// Set socket write buffer size if configured
	if cfg.WriteBufferSize > 0 {
		if err := tcpConn.SetWriteBuffer(cfg.WriteBufferSize); err != nil {
			return err
		}
	}

	// Set socket read buffer size if configured
	if cfg.ReadBufferSize > 0 {
		if err := tcpConn.SetReadBuffer(cfg.ReadBufferSize); err != nil {
			return err
		}
	}

	// Enable keep-alive if configured
	if cfg.TCPKeepAliveSec > 0 {
		if err := tcpConn.SetKeepAlive(true); err != nil {
			return err
		}
		if err := tcpConn.SetKeepAlivePeriod(time.Duration(cfg.TCPKeepAliveSec) * time.Second); err != nil {
			return err
		}
	}

	// Set linger if configured
	if cfg.TCPLingerSec >= 0 {
		if err := tcpConn.SetLinger(cfg.TCPLingerSec); err != nil {
			return err
		}
	}

	return nil
}

package transport

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// Pool manages a fixed number of authenticated connections. A checked-out
// connection is exclusively owned by the caller until it is put back, so at
// most one unary call is in flight per connection.
//
// Connections are created lazily through the connector. Establishing one is
// retried with exponential backoff; a connection that died while parked is
// dropped and its capacity reused.
type Pool struct {
	connector  IPoolConnector
	retryCount int

	// tokens holds one capacity token per connection the pool may own,
	// idle holds parked connections. Every open connection holds exactly
	// one token until it is closed.
	tokens chan struct{}
	idle   chan *Connection

	stopCh chan struct{}
	closed atomic.Bool
}

// NewConnectionPool creates a pool of Transport.PoolSize connections
// supplied by the given connector.
func NewConnectionPool(connector IPoolConnector, config common.ClientConfig) *Pool {
	size := config.Transport.PoolSize
	if size < 1 {
		size = 1
	}
	retryCount := config.Transport.RetryCount
	if retryCount < 1 {
		retryCount = 1
	}

	p := &Pool{
		connector:  connector,
		retryCount: retryCount,
		tokens:     make(chan struct{}, size),
		idle:       make(chan *Connection, size),
		stopCh:     make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		p.tokens <- struct{}{}
	}

	return p
}

// Get checks out a connection for exclusive use. It prefers a parked
// connection, dials a new one while capacity is free, and otherwise blocks
// until a connection is put back or the context ends.
func (p *Pool) Get(ctx context.Context) (*Connection, error) {
	if p.closed.Load() {
		return nil, common.NewError(common.ErrCInternal, "pool is closed")
	}

	for {
		// Fast path: reuse a parked connection
		select {
		case conn := <-p.idle:
			if conn.IsAlive() {
				return conn, nil
			}
			_ = conn.Close()
			p.releaseToken()
			continue
		default:
		}

		select {
		case conn := <-p.idle:
			if conn.IsAlive() {
				return conn, nil
			}
			_ = conn.Close()
			p.releaseToken()

		case <-p.tokens:
			conn, err := p.connectWithRetry(ctx)
			if err != nil {
				p.releaseToken()
				return nil, err
			}
			return conn, nil

		case <-ctx.Done():
			return nil, common.NewErrorf(common.ErrCTimeout, "waiting for pooled connection: %v", ctx.Err())

		case <-p.stopCh:
			return nil, common.NewError(common.ErrCInternal, "pool is closed")
		}
	}
}

// Put returns a checked-out connection to the pool. Dead connections are
// dropped so the next Get dials a fresh one. A connection must be put back
// at most once.
func (p *Pool) Put(conn *Connection) {
	if conn == nil {
		return
	}

	if p.closed.Load() || !conn.IsAlive() {
		_ = conn.Close()
		p.releaseToken()
		return
	}

	select {
	case p.idle <- conn:
	default:
		// More puts than gets, do not pool beyond capacity
		_ = conn.Close()
		p.releaseToken()
	}
}

// Close tears down all parked connections and fails all waiting and future
// Gets. Checked-out connections are closed as they are put back.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(p.stopCh)

	for {
		select {
		case conn := <-p.idle:
			_ = conn.Close()
		default:
			return nil
		}
	}
}

// connectWithRetry asks the connector for a connection up to retryCount
// times with exponential backoff and jitter between attempts. The last
// error is returned unchanged so callers can branch on its code.
func (p *Pool) connectWithRetry(ctx context.Context) (*Connection, error) {
	var lastErr error
	backoffMs := 50

	for attempt := 1; attempt <= p.retryCount; attempt++ {
		conn, err := p.connector.Connect(ctx)
		if err == nil {
			return conn, nil
		}

		lastErr = err
		Logger.Debugf("connect attempt %d/%d failed: %v", attempt, p.retryCount, err)

		if attempt < p.retryCount {
			// Exponential backoff with a small random jitter (+-10%)
			jitter := float64(backoffMs) * (0.9 + 0.2*rand.Float64())

			select {
			case <-time.After(time.Duration(jitter) * time.Millisecond):
			case <-ctx.Done():
				return nil, common.NewErrorf(common.ErrCTimeout, "connecting: %v", ctx.Err())
			case <-p.stopCh:
				return nil, common.NewError(common.ErrCInternal, "pool is closed")
			}
			backoffMs *= 2
		}
	}

	return nil, lastErr
}

// releaseToken returns one capacity token. Never blocks, so a bookkeeping
// slip from a misused Put cannot wedge the pool.
func (p *Pool) releaseToken() {
	select {
	case p.tokens <- struct{}{}:
	default:
	}
}

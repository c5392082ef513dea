package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/cachelink/cachelink-go/rpc/common"
)

var (
	Logger = common.GetLogger("transport")
)

// invokeResult carries one correlated response from the reader goroutine to
// the waiting caller.
type invokeResult struct {
	ctrl common.ControlCode
	data []byte
	err  error
}

// Connection is a live authenticated channel to one cache server. A reader
// goroutine correlates incoming frames to waiting callers by message ID, so
// a caller that gives up on a deadline does not poison the connection: the
// late response simply drains to an abandoned channel.
type Connection struct {
	conn    net.Conn
	address string

	writeMu       sync.Mutex // serializes frame writes
	nextMessageID atomic.Uint64
	pending       *xsync.MapOf[uint64, chan invokeResult]

	stopCh    chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

// newConnection wraps an established transport and starts the reader
// goroutine. The connection is not authenticated yet; the factory performs
// the handshake before handing it out.
func newConnection(conn net.Conn, address string) *Connection {
	c := &Connection{
		conn:    conn,
		address: address,
		pending: xsync.NewMapOf[uint64, chan invokeResult](),
		stopCh:  make(chan struct{}),
	}

	go c.readResponses()

	return c
}

// Address returns the remote "host:port" this connection is bound to.
func (c *Connection) Address() string {
	return c.address
}

// IsAlive reports whether the connection can still carry calls.
func (c *Connection) IsAlive() bool {
	return !c.closed.Load()
}

// Close tears the connection down and unblocks all waiting callers.
// Safe to call multiple times.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stopCh)
		_ = c.conn.Close()
	})
	return nil
}

// --------------------------------------------------------------------------
// Invocation
// --------------------------------------------------------------------------

// invoke sends one frame and blocks for the correlated response frame. The
// context deadline bounds both the write and the wait.
func (c *Connection) invoke(ctx context.Context, ctrl common.ControlCode, payload []byte) (common.ControlCode, []byte, error) {
	if c.closed.Load() {
		return common.CtrlUnknown, nil, common.NewErrorf(common.ErrCIOFailure, "connection to %s is closed", c.address)
	}

	// Message IDs are per-connection and strictly increasing
	messageID := c.nextMessageID.Add(1)

	// Register the call before writing so the reader can always deliver
	respCh := make(chan invokeResult, 1)
	c.pending.Store(messageID, respCh)
	defer c.pending.Delete(messageID)

	// The write deadline follows the caller's deadline (zero clears it)
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetWriteDeadline(deadline)

	c.writeMu.Lock()
	err := writeFrame(c.conn, ctrl, messageID, payload)
	c.writeMu.Unlock()

	if err != nil {
		return common.CtrlUnknown, nil, common.NewErrorf(common.ErrCIOFailure, "writing to %s: %v", c.address, err)
	}

	select {
	case result := <-respCh:
		if result.err != nil {
			return common.CtrlUnknown, nil, result.err
		}
		return result.ctrl, result.data, nil
	case <-ctx.Done():
		return common.CtrlUnknown, nil, common.NewErrorf(common.ErrCTimeout, "request %d to %s: %v", messageID, c.address, ctx.Err())
	case <-c.stopCh:
		return common.CtrlUnknown, nil, common.NewErrorf(common.ErrCIOFailure, "connection to %s closed while waiting", c.address)
	}
}

// InvokeOp sends one operation payload and returns the response payload.
// A CtrlError response surfaces as an error, any other unexpected response
// kind as a protocol violation.
func (c *Connection) InvokeOp(ctx context.Context, payload []byte) ([]byte, error) {
	ctrl, data, err := c.invoke(ctx, common.CtrlOp, payload)
	if err != nil {
		return nil, err
	}

	switch ctrl {
	case common.CtrlOpOK:
		return data, nil
	case common.CtrlError:
		return nil, common.NewErrorf(common.ErrCInternal, "server error: %s", string(data))
	default:
		return nil, common.NewErrorf(common.ErrCProtocolViolation, "unexpected response kind %s to op request", ctrl)
	}
}

// Ping checks liveness over the authenticated connection.
func (c *Connection) Ping(ctx context.Context) error {
	ctrl, _, err := c.invoke(ctx, common.CtrlPing, nil)
	if err != nil {
		return err
	}
	if ctrl != common.CtrlPong {
		return common.NewErrorf(common.ErrCProtocolViolation, "unexpected response kind %s to ping", ctrl)
	}
	return nil
}

// authenticate performs the mandatory first exchange on a new connection.
// Anything but an AuthOK response fails the handshake.
func (c *Connection) authenticate(ctx context.Context, credential string) error {
	ctrl, data, err := c.invoke(ctx, common.CtrlAuthenticate, []byte(credential))
	if err != nil {
		return err
	}

	switch ctrl {
	case common.CtrlAuthOK:
		return nil
	case common.CtrlError:
		return common.NewErrorf(common.ErrCAuthRejected, "server rejected credential: %s", string(data))
	default:
		return common.NewErrorf(common.ErrCProtocolViolation, "unexpected response kind %s to authenticate", ctrl)
	}
}

// --------------------------------------------------------------------------
// Reader goroutine
// --------------------------------------------------------------------------

// readResponses reads frames in a loop and distributes them to waiting
// callers. It exits when the connection dies or Close is called; on an
// unexpected death all pending callers are unblocked with an error.
func (c *Connection) readResponses() {
	for {
		ctrl, messageID, data, err := readFrame(c.conn, nil)
		if err != nil {
			select {
			case <-c.stopCh:
				// Closed locally, callers are already unblocked
				return
			default:
			}

			Logger.Debugf("connection to %s died: %v", c.address, err)
			_ = c.Close()
			c.failPending(err)
			return
		}

		respCh, found := c.pending.Load(messageID)
		if !found {
			// The caller gave up on its deadline, drop the late response
			Logger.Warnf("response for unknown message ID %d from %s (%s)", messageID, c.address, ctrl)
			continue
		}

		// readFrame with a nil buffer allocates per frame, so handing the
		// payload off is safe. The send never blocks: the channel holds one
		// result, a duplicate response for the same ID is dropped.
		select {
		case respCh <- invokeResult{ctrl: ctrl, data: data}:
		default:
			Logger.Warnf("duplicate response for message ID %d from %s", messageID, c.address)
		}
	}
}

// failPending unblocks every registered caller with the given error.
func (c *Connection) failPending(cause error) {
	c.pending.Range(func(messageID uint64, respCh chan invokeResult) bool {
		select {
		case respCh <- invokeResult{err: common.NewErrorf(common.ErrCIOFailure, "connection to %s died: %v", c.address, cause)}:
		default:
		}
		return true
	})
}

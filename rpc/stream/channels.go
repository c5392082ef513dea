package stream

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/discovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

var (
	// Logger is the logger for the stream package
	Logger = common.GetLogger("stream")
)

// Full method name of the topics subscribe RPC.
const subscribeMethod = "/cachelink.topics.Topics/Subscribe"

// subscribeStreamDesc describes the server-streaming subscribe RPC.
var subscribeStreamDesc = grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

const (
	keepaliveTime    = 30 * time.Second
	keepaliveTimeout = 10 * time.Second
)

// ----------------------------------------------------------------------------
// Admission error
// ----------------------------------------------------------------------------

// AdmissionError is returned when a new subscription would push the number
// of active subscriptions over the configured cap. It unwraps to the
// stream-limit error code so common.IsCode matching keeps working.
type AdmissionError struct {
	// Active is the number of active subscriptions observed at rejection.
	Active int64
	// Limit is the configured cap.
	Limit int64
}

// Error implements the error interface.
func (e *AdmissionError) Error() string {
	return fmt.Sprintf("cachelink: %s: %d active subscriptions of %d allowed",
		common.ErrCStreamLimit, e.Active, e.Limit)
}

// Unwrap exposes the typed error code for errors.As matching.
func (e *AdmissionError) Unwrap() error {
	return common.NewErrorf(common.ErrCStreamLimit,
		"%d active subscriptions of %d allowed", e.Active, e.Limit)
}

// ----------------------------------------------------------------------------
// Channel slot
// ----------------------------------------------------------------------------

// channelSlot is one pre-established streaming channel together with its
// active subscription counter.
type channelSlot struct {
	conn   *grpc.ClientConn
	active atomic.Int64
}

// Open implements IStreamOpener on top of the slot's channel. Opening the
// stream, sending the request and closing the send direction together form
// one subscribe attempt.
func (s *channelSlot) Open(ctx context.Context, req *SubscribeRequest) (ISubscriptionStream, error) {
	stream, err := s.conn.NewStream(ctx, &subscribeStreamDesc, subscribeMethod)
	if err != nil {
		return nil, common.NewErrorf(common.ErrCIOFailure, "opening subscription stream: %v", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, common.NewErrorf(common.ErrCIOFailure, "sending subscribe request: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, common.NewErrorf(common.ErrCIOFailure, "closing send direction: %v", err)
	}
	return &grpcSubscriptionStream{stream: stream}, nil
}

// grpcSubscriptionStream adapts a grpc.ClientStream to ISubscriptionStream.
type grpcSubscriptionStream struct {
	stream grpc.ClientStream
}

func (g *grpcSubscriptionStream) Recv() ([]byte, error) {
	var frame rawFrame
	if err := g.stream.RecvMsg(&frame); err != nil {
		return nil, err
	}
	return frame.data, nil
}

// ----------------------------------------------------------------------------
// Manager
// ----------------------------------------------------------------------------

// Manager owns the pre-established streaming channels of one client and
// admits new subscriptions against the shared concurrency cap.
type Manager struct {
	config common.ClientConfig
	slots  []*channelSlot
	next   atomic.Uint64
}

// NewManager resolves endpoint addresses through the directory and creates
// the configured number of streaming channels, spread round robin over the
// resolved addresses. The channels connect lazily on first use.
func NewManager(ctx context.Context, config common.ClientConfig, directory discovery.IDirectory) (*Manager, error) {
	addresses := directory.GetAddresses(config.Discovery.Zone)
	if len(addresses) == 0 {
		// One out-of-band refresh before giving up, mirroring the unary
		// connector.
		if err := directory.Refresh(ctx); err != nil {
			Logger.Warnf("directory refresh failed: %v", err)
		}
		addresses = directory.GetAddresses(config.Discovery.Zone)
	}
	if len(addresses) == 0 {
		return nil, common.NewErrorf(common.ErrCNoAddresses,
			"no addresses available for zone %q", config.Discovery.Zone)
	}

	channels := config.Stream.Channels
	if channels < 1 {
		channels = 1
	}

	opts := dialOptions(&config)
	slots := make([]*channelSlot, 0, channels)
	for i := 0; i < channels; i++ {
		target := addresses[i%len(addresses)].SocketAddress
		conn, err := grpc.NewClient(target, opts...)
		if err != nil {
			for _, slot := range slots {
				_ = slot.conn.Close()
			}
			return nil, common.NewErrorf(common.ErrCInternal,
				"creating streaming channel for %s: %v", target, err)
		}
		slots = append(slots, &channelSlot{conn: conn})
	}

	Logger.Debugf("created %d streaming channels over %d addresses", len(slots), len(addresses))

	return &Manager{
		config: config,
		slots:  slots,
	}, nil
}

// Subscribe admits a new subscription and starts a session on the chosen
// channel. The returned session is live; callers must Close it to free its
// admission slot.
func (m *Manager) Subscribe(ctx context.Context, namespace, topic string) (*Session, error) {
	slot, err := m.getNextStreamingClient()
	if err != nil {
		return nil, err
	}

	session := newSession(slot, namespace, topic,
		time.Duration(m.config.Stream.ResubscribeDelayMs)*time.Millisecond,
		func() { slot.active.Add(-1) })

	if err := session.start(ctx); err != nil {
		session.Close()
		return nil, err
	}
	return session, nil
}

// ActiveSubscriptions returns the number of currently admitted subscriptions
// across all channels.
func (m *Manager) ActiveSubscriptions() int64 {
	return m.totalActive()
}

// Close tears down all streaming channels. Sessions still open keep cycling
// through resubscribe attempts until their owners close them.
func (m *Manager) Close() {
	for _, slot := range m.slots {
		if err := slot.conn.Close(); err != nil {
			Logger.Debugf("closing streaming channel: %v", err)
		}
	}
}

// totalActive sums the active subscription counters across all slots.
func (m *Manager) totalActive() int64 {
	var total int64
	for _, slot := range m.slots {
		total += slot.active.Load()
	}
	return total
}

// getNextStreamingClient reserves capacity for one subscription and picks its
// channel. The increment is optimistic: concurrent admissions race for the
// remaining capacity and losers roll their increment back. Each slot gets at
// most one try per call.
func (m *Manager) getNextStreamingClient() (*channelSlot, error) {
	limit := int64(m.config.Stream.MaxConcurrentStreams)

	if active := m.totalActive(); active >= limit {
		common.StreamAdmissionRejected.Inc()
		return nil, &AdmissionError{Active: active, Limit: limit}
	}

	for i := 0; i < len(m.slots); i++ {
		slot := m.slots[int((m.next.Add(1)-1)%uint64(len(m.slots)))]
		slot.active.Add(1)
		if m.totalActive() <= limit {
			return slot, nil
		}
		slot.active.Add(-1)
	}

	active := m.totalActive()
	common.StreamAdmissionRejected.Inc()
	return nil, &AdmissionError{Active: active, Limit: limit}
}

// ----------------------------------------------------------------------------
// Dial options
// ----------------------------------------------------------------------------

// credentialAuth injects the data-plane credential as the authorization
// header of every RPC, the same header discovery requests carry.
type credentialAuth struct {
	credential string
}

func (c credentialAuth) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": c.credential}, nil
}

func (c credentialAuth) RequireTransportSecurity() bool {
	return false
}

// dialOptions builds the channel options for one client configuration. The
// security mode is dispatched here exactly once, like the unary factory does.
func dialOptions(config *common.ClientConfig) []grpc.DialOption {
	var creds credentials.TransportCredentials
	switch config.Transport.SecurityMode {
	case common.SecurityInsecure:
		creds = insecure.NewCredentials()
	case common.SecurityTLSUnverified:
		creds = credentials.NewTLS(&tls.Config{
			ServerName:         config.TLSHostname(),
			InsecureSkipVerify: true,
		})
	default:
		creds = credentials.NewTLS(&tls.Config{
			ServerName: config.TLSHostname(),
		})
	}

	return []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(credentialAuth{credential: config.Credential}),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                keepaliveTime,
			Timeout:             keepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(subscriptionCodec{})),
	}
}

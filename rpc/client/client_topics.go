package client

import (
	"context"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/stream"
)

// ----------------------------------------------------------------------------
// Topic Operations
// ----------------------------------------------------------------------------

// Publish sends a value to a topic and returns the sequence number the
// server assigned to it. Sequence numbers are contiguous per topic while the
// serving node does not change.
func (c *Client) Publish(ctx context.Context, namespace, topic string, value []byte) (sequenceNumber uint64, err error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	req := common.NewPublishRequest(namespace, topic, value)
	resp, err := invokeRPCRequest(ctx, req, c.pool, c.serializer)
	if err != nil {
		return 0, err
	}
	return resp.SequenceNumber, nil
}

// Subscribe opens a subscription to a topic and returns the session that
// delivers its items. The session outlives ctx, which only bounds the initial
// subscribe; close the session to end the subscription.
//
// Subscriptions count against Stream.MaxConcurrentStreams. When the cap is
// reached Subscribe fails with a stream limit error.
func (c *Client) Subscribe(ctx context.Context, namespace, topic string) (*stream.Session, error) {
	return c.streams.Subscribe(ctx, namespace, topic)
}

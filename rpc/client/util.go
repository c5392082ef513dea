package client

import (
	"context"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
	"github.com/cachelink/cachelink-go/rpc/serializer"
	"github.com/cachelink/cachelink-go/rpc/transport"
)

var (
	Logger = common.GetLogger("client")
)

// invokeRPCRequest is a helper function used by all client operations to send
// a single request over a pooled connection.
// It serializes the request, checks out a connection, invokes the operation
// and deserializes the response. The connection is returned to the pool in
// every case; the pool discards it if the invocation left it dead.
// This method also checks if the response is an error response and if the type
// of the response is the expected type.
func invokeRPCRequest(ctx context.Context, req *common.Message, pool *transport.Pool, ser serializer.IRPCSerializer) (*common.Message, error) {
	start := time.Now()
	defer common.UnaryRequests.UpdateDuration(start)

	// Serialize the request
	reqBytes, err := ser.Serialize(*req)
	if err != nil {
		return nil, common.NewErrorf(common.ErrCInternal, "serializing %s request: %v", req.MsgType, err)
	}

	// Check out a connection and send the request
	conn, err := pool.Get(ctx)
	if err != nil {
		return nil, err
	}
	respBytes, err := conn.InvokeOp(ctx, reqBytes)
	pool.Put(conn)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := ser.Deserialize(respBytes, resp); err != nil {
		return nil, common.NewErrorf(common.ErrCProtocolViolation, "decoding %s response: %v", req.MsgType, err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, common.NewErrorf(common.ErrCInternal, "%s rejected by server: %s", req.MsgType, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, common.NewErrorf(common.ErrCProtocolViolation, "unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, nil
}

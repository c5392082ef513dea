package client

import (
	"context"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// ----------------------------------------------------------------------------
// Cache Operations
// ----------------------------------------------------------------------------

// Set stores a value under a key. An existing value is overwritten.
func (c *Client) Set(ctx context.Context, namespace, key string, value []byte) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	req := common.NewSetRequest(namespace, key, value)
	_, err := invokeRPCRequest(ctx, req, c.pool, c.serializer)
	return err
}

// SetE stores a value under a key with a time to live. The value expires
// expireIn seconds after the server applied the write.
func (c *Client) SetE(ctx context.Context, namespace, key string, value []byte, expireIn uint64) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	req := common.NewSetERequest(namespace, key, value, expireIn)
	_, err := invokeRPCRequest(ctx, req, c.pool, c.serializer)
	return err
}

// Get returns the value stored under a key. loaded reports whether the key
// was present; a missing key is not an error.
func (c *Client) Get(ctx context.Context, namespace, key string) (value []byte, loaded bool, err error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	req := common.NewGetRequest(namespace, key)
	resp, err := invokeRPCRequest(ctx, req, c.pool, c.serializer)
	if err != nil {
		return nil, false, err
	}
	return resp.Value, resp.Ok, nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (c *Client) Delete(ctx context.Context, namespace, key string) error {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	req := common.NewDeleteRequest(namespace, key)
	_, err := invokeRPCRequest(ctx, req, c.pool, c.serializer)
	return err
}

// Has reports whether a key is present without transferring its value.
func (c *Client) Has(ctx context.Context, namespace, key string) (loaded bool, err error) {
	ctx, cancel := c.opContext(ctx)
	defer cancel()

	req := common.NewHasRequest(namespace, key)
	resp, err := invokeRPCRequest(ctx, req, c.pool, c.serializer)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

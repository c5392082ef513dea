// Package client implements the user-facing handle of the cache service.
// It bundles endpoint discovery, the unary connection pool and the streaming
// channel manager behind a single Client with one method per operation.
//
// The package focuses on:
//   - Cache operations (Set, SetE, Get, Delete, Has) over pooled connections
//   - Topic operations (Publish, Subscribe) with resumable subscriptions
//   - Integration with the discovery, transport and stream layers
//
// Key Components:
//
//   - New: Factory function that wires a Client from a ClientConfig. It
//     resolves the endpoint directory, prepares the connection pool and the
//     streaming channels; connections are only dialed on first use.
//
//   - NewWithSerializer: Variant of New for callers that need a payload
//     encoding other than the default binary serializer.
//
//   - GetNextUnaryClient / PutUnaryClient: Direct access to pooled
//     connections for callers that batch several operations over one
//     connection.
//
// Usage Example:
//
//	// Configure the client
//	config := common.DefaultClientConfig()
//	config.Credential = os.Getenv("CACHELINK_CREDENTIAL")
//	config.Discovery.BaseURL = "https://cell-1.cachelink.example"
//
//	// Create the client
//	c, _ := client.New(config)
//	defer c.Close()
//
//	// Use the cache
//	c.Set(ctx, "sessions", "user-42", []byte("payload"))
//	value, loaded, _ := c.Get(ctx, "sessions", "user-42")
//
//	// Publish and subscribe
//	seqNo, _ := c.Publish(ctx, "sessions", "events", []byte("login"))
//	session, _ := c.Subscribe(ctx, "sessions", "events")
//	defer session.Close()
//	for {
//	    event, err := session.Event(ctx)
//	    if err != nil {
//	        break
//	    }
//	    handle(event)
//	}
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing
//     Transport.PoolSize can improve throughput by allowing parallel
//     requests.
//
//   - The choice of serializer significantly affects performance. The binary
//     serializer provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	The Client is thread-safe and can be used concurrently from multiple
//	goroutines without additional synchronization. Sessions returned by
//	Subscribe expect a single consumer.
package client

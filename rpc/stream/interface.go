package stream

import (
	"context"
)

// ----------------------------------------------------------------------------
// Interface for subscription streams
// ----------------------------------------------------------------------------

// ISubscriptionStream is one live server-stream of subscription frames.
type ISubscriptionStream interface {
	// Recv blocks until the next raw frame arrives or the stream fails.
	Recv() ([]byte, error)
}

// ----------------------------------------------------------------------------
// Interface for opening subscription streams
// ----------------------------------------------------------------------------

// IStreamOpener opens subscription streams. The production implementation
// runs over one of the manager's pre-established channels; tests substitute
// scripted openers.
type IStreamOpener interface {
	// Open starts a new subscription stream for the given request. The
	// request is sent and the send direction is closed before Open returns.
	Open(ctx context.Context, req *SubscribeRequest) (ISubscriptionStream, error)
}

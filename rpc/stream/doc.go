// Package stream implements the topic subscription side of the Cachelink
// client. Subscriptions are long-lived server-streams multiplexed over a
// small, fixed set of pre-established gRPC channels, with a shared cap on
// the number of concurrently active subscriptions.
//
// The package focuses on:
//   - Hand-written protowire encoding of the subscribe protocol
//   - Channel pre-establishment and round-robin subscription placement
//   - Admission control against the configured concurrency cap
//   - Transparent resubscription that resumes at the last observed topic
//     sequence number
//
// Key Components:
//
//   - Manager: owns the gRPC channels and their per-channel active
//     subscription counters. Subscribe admits a new subscription against
//     the cap, picks a channel round robin and hands out a Session.
//
//   - Session: one pull-based subscription. Event and Item block until the
//     next event; heartbeats are absorbed, malformed frames are dropped
//     and a broken stream is reopened with the resume position carried
//     forward. Stream failures never surface as caller errors. At most one
//     receive is in flight per stream; a receive abandoned by an expired
//     context stays parked for the next call.
//
//   - subscriptionCodec: a grpc codec for the hand-written wire types.
//     Received frames stay raw until the session decodes them, so one bad
//     frame cannot fail the stream.
//
// Thread Safety:
//
//	The manager is safe for concurrent use. A session serves one consuming
//	goroutine; only Close may be called concurrently.
package stream

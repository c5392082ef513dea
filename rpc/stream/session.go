package stream

import (
	"context"
	"sync"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// ----------------------------------------------------------------------------
// Events
// ----------------------------------------------------------------------------

// EventKind discriminates the events a session delivers to its caller.
type EventKind uint8

const (
	// EventValue is a published item.
	EventValue EventKind = iota
	// EventDiscontinuity signals possible message loss between two sequence
	// numbers.
	EventDiscontinuity
)

// Event is one delivered subscription event. For EventValue the payload
// fields are set, for EventDiscontinuity the sequence range fields are.
type Event struct {
	Kind EventKind

	// SequenceNumber is the topic sequence number of a value event.
	SequenceNumber uint64
	// Value is the payload of a value event. For text payloads it holds the
	// UTF-8 bytes and IsText is set.
	Value  []byte
	IsText bool

	// LastSequenceNumber is the last sequence number known before a
	// discontinuity. Only meaningful when HasLastSequenceNumber is set.
	HasLastSequenceNumber bool
	LastSequenceNumber    uint64
	// NewSequenceNumber is where the stream continues after a discontinuity.
	NewSequenceNumber uint64
}

// itemClass is the classification of one decoded frame, including the kinds
// the session absorbs without delivering.
type itemClass uint8

const (
	classValue itemClass = iota
	classDiscontinuity
	classHeartbeat
	classViolation
)

// classifyItem maps one decoded frame onto the event model. Frames without
// a recognized kind and items without a payload are violations.
func classifyItem(item *SubscriptionItem) (itemClass, *Event) {
	switch {
	case item.Item != nil:
		if item.Item.Value == nil {
			return classViolation, nil
		}
		event := &Event{
			Kind:           EventValue,
			SequenceNumber: item.Item.SequenceNumber,
			IsText:         item.Item.Value.IsText,
		}
		if item.Item.Value.IsText {
			event.Value = []byte(item.Item.Value.Text)
		} else {
			event.Value = item.Item.Value.Binary
		}
		return classValue, event
	case item.Discontinuity != nil:
		return classDiscontinuity, &Event{
			Kind:                  EventDiscontinuity,
			HasLastSequenceNumber: item.Discontinuity.HasLast,
			LastSequenceNumber:    item.Discontinuity.LastSequenceNumber,
			NewSequenceNumber:     item.Discontinuity.NewSequenceNumber,
		}
	case item.Heartbeat:
		return classHeartbeat, nil
	default:
		return classViolation, nil
	}
}

// ----------------------------------------------------------------------------
// Session
// ----------------------------------------------------------------------------

// recvResult is one terminated receive attempt.
type recvResult struct {
	data []byte
	err  error
}

// Session is one topic subscription. It is pull based: events are delivered
// only through Event and Item, there is no consumer running behind the
// caller's back. A session serves a single consuming goroutine; Close may
// be called from anywhere.
type Session struct {
	namespace string
	topic     string

	opener           IStreamOpener
	resubscribeDelay time.Duration

	// ctx spans the session's lifetime. Streams derive from it, so a
	// short-lived Subscribe or Event context cannot tear down a live stream.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	release   func()

	// Consumer state, only touched by the consuming goroutine.
	stream                ISubscriptionStream
	recvCh                chan recvResult
	currentSequenceNumber uint64
	subscribed            bool
}

func newSession(opener IStreamOpener, namespace, topic string, resubscribeDelay time.Duration, release func()) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		namespace:        namespace,
		topic:            topic,
		opener:           opener,
		resubscribeDelay: resubscribeDelay,
		ctx:              ctx,
		cancel:           cancel,
		release:          release,
	}
}

// start performs the initial subscribe. Unlike later resubscribes its
// failure surfaces to the caller.
func (s *Session) start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return common.NewErrorf(common.ErrCTimeout, "subscribe aborted: %v", err)
	}

	stream, err := s.open()
	if err != nil {
		return err
	}
	s.stream = stream
	s.subscribed = true
	return nil
}

// open starts one subscription stream resuming at the last observed
// sequence number.
func (s *Session) open() (ISubscriptionStream, error) {
	return s.opener.Open(s.ctx, &SubscribeRequest{
		CacheName: s.namespace,
		Topic:     s.topic,
		ResumeAt:  s.currentSequenceNumber,
	})
}

// Namespace returns the cache namespace the session subscribes in.
func (s *Session) Namespace() string {
	return s.namespace
}

// Topic returns the subscribed topic name.
func (s *Session) Topic() string {
	return s.topic
}

// CurrentSequenceNumber returns the sequence number of the last observed
// item or discontinuity. It is what a resubscribe would resume at.
func (s *Session) CurrentSequenceNumber() uint64 {
	return s.currentSequenceNumber
}

// Event blocks until the next value or discontinuity event. Heartbeats are
// absorbed, malformed frames are dropped and a failed stream is reopened
// transparently with resume_at_topic_sequence_number carrying the last
// observed sequence number. The error is non-nil only when ctx ends or the
// session is closed.
func (s *Session) Event(ctx context.Context) (*Event, error) {
	for {
		select {
		case <-s.ctx.Done():
			return nil, common.NewError(common.ErrCInternal, "session is closed")
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if !s.subscribed {
			if err := s.resubscribe(ctx); err != nil {
				return nil, err
			}
		}

		res, err := s.recv(ctx)
		if err != nil {
			return nil, err
		}
		if res.err != nil {
			if s.ctx.Err() != nil {
				return nil, common.NewError(common.ErrCInternal, "session is closed")
			}
			Logger.Debugf("subscription stream for topic %q failed: %v", s.topic, res.err)
			s.subscribed = false
			continue
		}

		item := &SubscriptionItem{}
		if err := item.unmarshal(res.data); err != nil {
			common.StreamMalformedItems.Inc()
			Logger.Warnf("dropping malformed frame on topic %q: %v", s.topic, err)
			continue
		}

		class, event := classifyItem(item)
		switch class {
		case classValue:
			// The resume position advances before the caller sees the event
			s.currentSequenceNumber = event.SequenceNumber
			return event, nil
		case classDiscontinuity:
			s.currentSequenceNumber = event.NewSequenceNumber
			return event, nil
		case classHeartbeat:
			continue
		default:
			common.StreamMalformedItems.Inc()
			Logger.Warnf("dropping frame without a recognized kind on topic %q", s.topic)
			continue
		}
	}
}

// recv waits for the pending receive, starting one if none is in flight. A
// receive abandoned by an expired ctx stays parked and the next call picks
// it up, so the stream never has more than one reader.
func (s *Session) recv(ctx context.Context) (recvResult, error) {
	if s.recvCh == nil {
		ch := make(chan recvResult, 1)
		stream := s.stream
		go func() {
			data, err := stream.Recv()
			ch <- recvResult{data: data, err: err}
		}()
		s.recvCh = ch
	}

	select {
	case res := <-s.recvCh:
		s.recvCh = nil
		return res, nil
	case <-ctx.Done():
		return recvResult{}, ctx.Err()
	case <-s.ctx.Done():
		return recvResult{}, common.NewError(common.ErrCInternal, "session is closed")
	}
}

// Item blocks until the next value event, skipping discontinuities.
func (s *Session) Item(ctx context.Context) (*Event, error) {
	for {
		event, err := s.Event(ctx)
		if err != nil {
			return nil, err
		}
		if event.Kind == EventValue {
			return event, nil
		}
	}
}

// resubscribe reopens the stream until it succeeds, ctx ends or the session
// is closed. Failed attempts retry immediately unless a delay is configured.
func (s *Session) resubscribe(ctx context.Context) error {
	for {
		select {
		case <-s.ctx.Done():
			return common.NewError(common.ErrCInternal, "session is closed")
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		stream, err := s.open()
		if err == nil {
			common.StreamResubscribes.Inc()
			s.stream = stream
			s.subscribed = true
			Logger.Debugf("resubscribed to topic %q at sequence number %d", s.topic, s.currentSequenceNumber)
			return nil
		}
		Logger.Warnf("resubscribe to topic %q failed: %v", s.topic, err)

		if s.resubscribeDelay > 0 {
			timer := time.NewTimer(s.resubscribeDelay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-s.ctx.Done():
				timer.Stop()
				return common.NewError(common.ErrCInternal, "session is closed")
			}
		}
	}
}

// Close ends the subscription and frees its admission slot. It is
// idempotent and may be called concurrently with Event.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.release()
	})
}

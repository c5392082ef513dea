package stream

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The subscription protocol is small enough that the messages are encoded
// by hand over protowire instead of generated stubs. Field numbers are part
// of the wire contract and must never change.

// SubscribeRequest field numbers
const (
	fieldRequestCacheName = 1
	fieldRequestTopic     = 2
	fieldRequestResumeAt  = 3 // resume_at_topic_sequence_number
)

// SubscriptionItem field numbers (the kind union)
const (
	fieldKindItem          = 1
	fieldKindDiscontinuity = 2
	fieldKindHeartbeat     = 3
)

// Item field numbers
const (
	fieldItemSequenceNumber = 1
	fieldItemValue          = 2
)

// Value field numbers (text/binary union)
const (
	fieldValueText   = 1
	fieldValueBinary = 2
)

// Discontinuity field numbers
const (
	fieldDiscontinuityLast = 1
	fieldDiscontinuityNew  = 2
)

// ----------------------------------------------------------------------------
// Request
// ----------------------------------------------------------------------------

// SubscribeRequest asks the topics service for a server-stream of items,
// resuming at the given topic sequence number (0 = from now).
type SubscribeRequest struct {
	CacheName string
	Topic     string
	ResumeAt  uint64
}

func (r *SubscribeRequest) marshal() []byte {
	var b []byte
	if r.CacheName != "" {
		b = protowire.AppendTag(b, fieldRequestCacheName, protowire.BytesType)
		b = protowire.AppendString(b, r.CacheName)
	}
	if r.Topic != "" {
		b = protowire.AppendTag(b, fieldRequestTopic, protowire.BytesType)
		b = protowire.AppendString(b, r.Topic)
	}
	if r.ResumeAt != 0 {
		b = protowire.AppendTag(b, fieldRequestResumeAt, protowire.VarintType)
		b = protowire.AppendVarint(b, r.ResumeAt)
	}
	return b
}

func (r *SubscribeRequest) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldRequestCacheName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.CacheName = v
			data = data[n:]
		case num == fieldRequestTopic && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.Topic = v
			data = data[n:]
		case num == fieldRequestResumeAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.ResumeAt = v
			data = data[n:]
		default:
			// Unknown fields are skipped
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Stream items
// ----------------------------------------------------------------------------

// SubscriptionItem is one decoded frame of the subscription stream. Exactly
// one of the kind fields is set on a well-formed frame; a frame with no
// recognized kind is classified as a protocol violation downstream.
type SubscriptionItem struct {
	Item          *TopicItem
	Discontinuity *Discontinuity
	Heartbeat     bool
}

// TopicItem is one published value with its topic sequence number.
type TopicItem struct {
	SequenceNumber uint64
	Value          *TopicValue
}

// TopicValue is the published payload, either text or binary.
type TopicValue struct {
	IsText bool
	Text   string
	Binary []byte
}

// Discontinuity signals possible upstream message loss. LastSequenceNumber
// is only meaningful when HasLast is set.
type Discontinuity struct {
	HasLast            bool
	LastSequenceNumber uint64
	NewSequenceNumber  uint64
}

func (m *SubscriptionItem) marshal() []byte {
	var b []byte
	switch {
	case m.Item != nil:
		b = protowire.AppendTag(b, fieldKindItem, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Item.marshal())
	case m.Discontinuity != nil:
		b = protowire.AppendTag(b, fieldKindDiscontinuity, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Discontinuity.marshal())
	case m.Heartbeat:
		b = protowire.AppendTag(b, fieldKindHeartbeat, protowire.BytesType)
		b = protowire.AppendBytes(b, nil)
	}
	return b
}

func (m *SubscriptionItem) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldKindItem && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			item := &TopicItem{}
			if err := item.unmarshal(v); err != nil {
				return err
			}
			m.Item = item
			data = data[n:]
		case num == fieldKindDiscontinuity && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			disc := &Discontinuity{}
			if err := disc.unmarshal(v); err != nil {
				return err
			}
			m.Discontinuity = disc
			data = data[n:]
		case num == fieldKindHeartbeat && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			_ = v // heartbeats carry no fields
			m.Heartbeat = true
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

func (m *TopicItem) marshal() []byte {
	var b []byte
	if m.SequenceNumber != 0 {
		b = protowire.AppendTag(b, fieldItemSequenceNumber, protowire.VarintType)
		b = protowire.AppendVarint(b, m.SequenceNumber)
	}
	if m.Value != nil {
		b = protowire.AppendTag(b, fieldItemValue, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Value.marshal())
	}
	return b
}

func (m *TopicItem) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldItemSequenceNumber && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.SequenceNumber = v
			data = data[n:]
		case num == fieldItemValue && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			value := &TopicValue{}
			if err := value.unmarshal(v); err != nil {
				return err
			}
			m.Value = value
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

func (m *TopicValue) marshal() []byte {
	var b []byte
	if m.IsText {
		b = protowire.AppendTag(b, fieldValueText, protowire.BytesType)
		b = protowire.AppendString(b, m.Text)
	} else {
		b = protowire.AppendTag(b, fieldValueBinary, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Binary)
	}
	return b
}

func (m *TopicValue) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldValueText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.IsText = true
			m.Text = v
			m.Binary = nil
			data = data[n:]
		case num == fieldValueBinary && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.IsText = false
			m.Text = ""
			m.Binary = append([]byte(nil), v...)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

func (m *Discontinuity) marshal() []byte {
	var b []byte
	if m.HasLast {
		b = protowire.AppendTag(b, fieldDiscontinuityLast, protowire.VarintType)
		b = protowire.AppendVarint(b, m.LastSequenceNumber)
	}
	if m.NewSequenceNumber != 0 {
		b = protowire.AppendTag(b, fieldDiscontinuityNew, protowire.VarintType)
		b = protowire.AppendVarint(b, m.NewSequenceNumber)
	}
	return b
}

func (m *Discontinuity) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		switch {
		case num == fieldDiscontinuityLast && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.HasLast = true
			m.LastSequenceNumber = v
			data = data[n:]
		case num == fieldDiscontinuityNew && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.NewSequenceNumber = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// gRPC codec
// ----------------------------------------------------------------------------

// rawFrame captures the raw bytes of one received stream message. The
// session decodes them itself so a malformed frame can be dropped without
// failing the stream.
type rawFrame struct {
	data []byte
}

// subscriptionCodec is the grpc codec for the hand-written wire types. It
// is forced on every call of the subscription channels.
type subscriptionCodec struct{}

func (subscriptionCodec) Marshal(v interface{}) ([]byte, error) {
	switch m := v.(type) {
	case *SubscribeRequest:
		return m.marshal(), nil
	case *SubscriptionItem:
		return m.marshal(), nil
	default:
		return nil, fmt.Errorf("subscription codec cannot marshal %T", v)
	}
}

func (subscriptionCodec) Unmarshal(data []byte, v interface{}) error {
	switch m := v.(type) {
	case *rawFrame:
		// The transport may reuse the buffer after we return
		m.data = append([]byte(nil), data...)
		return nil
	case *SubscribeRequest:
		return m.unmarshal(data)
	case *SubscriptionItem:
		return m.unmarshal(data)
	default:
		return fmt.Errorf("subscription codec cannot unmarshal %T", v)
	}
}

func (subscriptionCodec) Name() string {
	return "cachelink.topics"
}

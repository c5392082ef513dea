package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Control Codes
// --------------------------------------------------------------------------

// ControlCode is the frame-level message kind. Every frame on a connection
// carries one. The first frame on a new connection must be CtrlAuthenticate
// and must be answered with CtrlAuthOK before any other frame is sent.
type ControlCode uint8

const (
	CtrlUnknown ControlCode = iota
	CtrlAuthenticate
	CtrlAuthOK
	CtrlOp
	CtrlOpOK
	CtrlError
	CtrlPing
	CtrlPong
)

// String returns the string representation of a ControlCode.
func (c ControlCode) String() string {
	switch c {
	case CtrlAuthenticate:
		return "authenticate"
	case CtrlAuthOK:
		return "auth-ok"
	case CtrlOp:
		return "op"
	case CtrlOpOK:
		return "op-ok"
	case CtrlError:
		return "error"
	case CtrlPing:
		return "ping"
	case CtrlPong:
		return "pong"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single operation payload used for both requests and
// responses. Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	Namespace string `json:"namespace,omitempty"` // Cache namespace, used by all operations
	Key       string `json:"key,omitempty"`       // Used for: Set, SetE, Get, Has, Delete
	Topic     string `json:"topic,omitempty"`     // Used for: Publish
	ExpireIn  uint64 `json:"expireIn,omitempty"`  // TTL in seconds, used for: SetE
	Value     []byte `json:"value,omitempty"`     // Used for: Set/SetE/Publish (request), Get (response)

	// Response only fields
	SequenceNumber uint64 `json:"seqNo,omitempty"` // Used for: Publish responses (assigned topic sequence)
	Ok             bool   `json:"ok,omitempty"`    // Used for: Get, Has responses
	Err            string `json:"err,omitempty"`   // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, reserved for additional adapters
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewSetRequest creates a new Set request
func NewSetRequest(namespace, key string, value []byte) *Message {
	return &Message{
		MsgType:   MsgTCacheSet,
		Namespace: namespace,
		Key:       key,
		Value:     value,
	}
}

// NewSetResponse creates a new Set response
func NewSetResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheSet,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewSetERequest creates a new SetE request
func NewSetERequest(namespace, key string, value []byte, expireIn uint64) *Message {
	return &Message{
		MsgType:   MsgTCacheSetE,
		Namespace: namespace,
		Key:       key,
		Value:     value,
		ExpireIn:  expireIn,
	}
}

// NewSetEResponse creates a new SetE response
func NewSetEResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheSetE,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewGetRequest creates a new Get request
func NewGetRequest(namespace, key string) *Message {
	return &Message{
		MsgType:   MsgTCacheGet,
		Namespace: namespace,
		Key:       key,
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheGet,
		Ok:      ok,
		Value:   value,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(namespace, key string) *Message {
	return &Message{
		MsgType:   MsgTCacheDelete,
		Namespace: namespace,
		Key:       key,
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheDelete,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewHasRequest creates a new Has request
func NewHasRequest(namespace, key string) *Message {
	return &Message{
		MsgType:   MsgTCacheHas,
		Namespace: namespace,
		Key:       key,
	}
}

// NewHasResponse creates a new Has response
func NewHasResponse(ok bool, err error) *Message {
	msg := &Message{
		MsgType: MsgTCacheHas,
		Ok:      ok,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewPublishRequest creates a new Publish request
func NewPublishRequest(namespace, topic string, value []byte) *Message {
	return &Message{
		MsgType:   MsgTTopicPublish,
		Namespace: namespace,
		Topic:     topic,
		Value:     value,
	}
}

// NewPublishResponse creates a new Publish response carrying the sequence
// number the broker assigned to the published value
func NewPublishResponse(sequenceNumber uint64, err error) *Message {
	msg := &Message{
		MsgType:        MsgTTopicPublish,
		SequenceNumber: sequenceNumber,
	}
	if err != nil {
		msg.Err = err.Error()
	}
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Err:     err,
	}
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of operation carried inside an Op frame.
type MessageType uint8

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	switch t {
	case MsgTCacheSet:
		return "set"
	case MsgTCacheSetE:
		return "setE"
	case MsgTCacheGet:
		return "get"
	case MsgTCacheDelete:
		return "delete"
	case MsgTCacheHas:
		return "has"
	case MsgTTopicPublish:
		return "publish"
	case MsgTError:
		return "error"
	case MsgTSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	switch s {
	case "set":
		*t = MsgTCacheSet
	case "setE":
		*t = MsgTCacheSetE
	case "get":
		*t = MsgTCacheGet
	case "delete":
		*t = MsgTCacheDelete
	case "has":
		*t = MsgTCacheHas
	case "publish":
		*t = MsgTTopicPublish
	case "error":
		*t = MsgTError
	case "success":
		*t = MsgTSuccess
	default:
		return fmt.Errorf("unknown message type: %s", s)
	}

	return nil
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Cache operations

	MsgTCacheSet    // Set a key-value pair
	MsgTCacheSetE   // Set a key-value pair with expiration
	MsgTCacheGet    // Get a value by key
	MsgTCacheDelete // Delete a key-value pair
	MsgTCacheHas    // Check if a key exists

	// Topic operations

	MsgTTopicPublish // Publish a value to a topic
)

package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasNamespace uint16 = 1 << 0
	hasKey       uint16 = 1 << 1
	hasTopic     uint16 = 1 << 2
	hasExpireIn  uint16 = 1 << 3
	hasValue     uint16 = 1 << 4
	hasSeqNo     uint16 = 1 << 5
	hasOk        uint16 = 1 << 6
	hasErr       uint16 = 1 << 7
	hasMeta      uint16 = 1 << 8
)

// header layout: 1 byte MsgType + 2 bytes flags (big endian)
const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	// Calculate total size needed
	totalSize := b.sizeBytes(msg)
	result := make([]byte, totalSize)

	// Write message type
	result[0] = byte(msg.MsgType)

	// Initialize flags
	var flags uint16 = 0

	// Set position for writing
	pos := headerSize // Start after MsgType and flags

	// Handle Namespace
	if msg.Namespace != "" {
		flags |= hasNamespace
		pos = writeString(result, pos, msg.Namespace)
	}

	// Handle Key
	if msg.Key != "" {
		flags |= hasKey
		pos = writeString(result, pos, msg.Key)
	}

	// Handle Topic
	if msg.Topic != "" {
		flags |= hasTopic
		pos = writeString(result, pos, msg.Topic)
	}

	// Handle ExpireIn
	if msg.ExpireIn > 0 {
		flags |= hasExpireIn
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.ExpireIn)
		pos += 8
	}

	// Handle Value
	if msg.Value != nil {
		flags |= hasValue
		pos = writeBytes(result, pos, msg.Value)
	}

	// Handle SequenceNumber
	if msg.SequenceNumber > 0 {
		flags |= hasSeqNo
		binary.BigEndian.PutUint64(result[pos:pos+8], msg.SequenceNumber)
		pos += 8
	}

	// Handle Ok
	if msg.Ok {
		flags |= hasOk
		result[pos] = 1
		pos += 1
	}

	// Handle Err
	if msg.Err != "" {
		flags |= hasErr
		pos = writeString(result, pos, msg.Err)
	}

	// Handle Meta
	if msg.Meta != nil {
		flags |= hasMeta
		pos = writeBytes(result, pos, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	// Read message type
	msg.MsgType = common.MessageType(data[0])

	// Read flags
	flags := binary.BigEndian.Uint16(data[1:3])

	// Initialize read position
	pos := headerSize

	var err error

	// Read Namespace if present
	if flags&hasNamespace != 0 {
		if msg.Namespace, pos, err = readString(data, pos, "namespace"); err != nil {
			return err
		}
	} else {
		msg.Namespace = ""
	}

	// Read Key if present
	if flags&hasKey != 0 {
		if msg.Key, pos, err = readString(data, pos, "key"); err != nil {
			return err
		}
	} else {
		msg.Key = ""
	}

	// Read Topic if present
	if flags&hasTopic != 0 {
		if msg.Topic, pos, err = readString(data, pos, "topic"); err != nil {
			return err
		}
	} else {
		msg.Topic = ""
	}

	// Read ExpireIn if present
	if flags&hasExpireIn != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for ExpireIn")
		}

		msg.ExpireIn = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.ExpireIn = 0
	}

	// Read Value if present
	if flags&hasValue != 0 {
		if msg.Value, pos, err = readBytes(data, pos, msg.Value, "value"); err != nil {
			return err
		}
	} else {
		msg.Value = nil
	}

	// Read SequenceNumber if present
	if flags&hasSeqNo != 0 {
		if pos+8 > len(data) {
			return fmt.Errorf("data too short for SequenceNumber")
		}

		msg.SequenceNumber = binary.BigEndian.Uint64(data[pos : pos+8])
		pos += 8
	} else {
		msg.SequenceNumber = 0
	}

	// Read Ok if present
	if flags&hasOk != 0 {
		if pos+1 > len(data) {
			return fmt.Errorf("data too short for Ok flag")
		}

		msg.Ok = data[pos] != 0
		pos += 1
	} else {
		msg.Ok = false
	}

	// Read Err if present
	if flags&hasErr != 0 {
		if msg.Err, pos, err = readString(data, pos, "err"); err != nil {
			return err
		}
	} else {
		msg.Err = ""
	}

	// Read Meta if present
	if flags&hasMeta != 0 {
		if msg.Meta, _, err = readBytes(data, pos, msg.Meta, "meta"); err != nil {
			return err
		}
	} else {
		msg.Meta = nil
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// writeString writes a length-prefixed string and returns the new position
func writeString(dst []byte, pos int, s string) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(s)))
	pos += 4
	copy(dst[pos:pos+len(s)], s)
	return pos + len(s)
}

// writeBytes writes a length-prefixed byte slice and returns the new position
func writeBytes(dst []byte, pos int, b []byte) int {
	binary.BigEndian.PutUint32(dst[pos:pos+4], uint32(len(b)))
	pos += 4
	copy(dst[pos:pos+len(b)], b)
	return pos + len(b)
}

// readString reads a length-prefixed string starting at pos
func readString(data []byte, pos int, field string) (string, int, error) {
	if pos+4 > len(data) {
		return "", pos, fmt.Errorf("data too short for %s length", field)
	}

	length := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	if pos+int(length) > len(data) {
		return "", pos, fmt.Errorf("data too short for %s data", field)
	}

	s := string(data[pos : pos+int(length)])
	return s, pos + int(length), nil
}

// readBytes reads a length-prefixed byte slice starting at pos, reusing dst
// when it is large enough. Returns an empty (not nil) slice for zero length.
func readBytes(data []byte, pos int, dst []byte, field string) ([]byte, int, error) {
	if pos+4 > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s length", field)
	}

	length := binary.BigEndian.Uint32(data[pos : pos+4])
	pos += 4

	if pos+int(length) > len(data) {
		return nil, pos, fmt.Errorf("data too short for %s data", field)
	}

	// Allocate only if needed
	if dst == nil || cap(dst) < int(length) {
		dst = make([]byte, length)
	} else {
		dst = dst[:length]
	}

	if length > 0 {
		copy(dst, data[pos:pos+int(length)])
	}

	return dst, pos + int(length), nil
}

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	// 1 byte for MsgType + 2 bytes for flags
	size := headerSize

	// Add sizes for fields that require length encoding
	if msg.Namespace != "" {
		size += 4 + len(msg.Namespace)
	}
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Topic != "" {
		size += 4 + len(msg.Topic)
	}
	if msg.ExpireIn > 0 {
		size += 8 // uint64
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.SequenceNumber > 0 {
		size += 8 // uint64
	}
	if msg.Ok {
		size += 1 // 1 byte for boolean
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

package transport

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// frameHeaderSize is the fixed frame header length:
// 1 byte control code + 8 bytes message ID + 4 bytes payload length.
const frameHeaderSize = 13

// writeFrame writes a frame to the connection with the format:
// - 1 byte:  control code
// - 8 bytes: messageID (uint64, big endian)
// - 4 bytes: payload length (uint32, big endian)
// - N bytes: payload
func writeFrame(w io.Writer, ctrl common.ControlCode, messageID uint64, payload []byte) error {
	header := make([]byte, frameHeaderSize)
	header[0] = byte(ctrl)
	binary.BigEndian.PutUint64(header[1:9], messageID)
	binary.BigEndian.PutUint32(header[9:13], uint32(len(payload)))

	b := net.Buffers{header, payload}
	_, err := b.WriteTo(w)
	return err
}

// readFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, a new temporary buffer is allocated for the
// payload. The returned payload aliases the buffer and is only valid until
// the next call with the same buffer.
func readFrame(r io.Reader, buf []byte) (common.ControlCode, uint64, []byte, error) {
	if len(buf) < frameHeaderSize {
		buf = make([]byte, frameHeaderSize)
	}

	// Read header
	if _, err := io.ReadFull(r, buf[:frameHeaderSize]); err != nil {
		return common.CtrlUnknown, 0, nil, err
	}

	// Parse header
	ctrl := common.ControlCode(buf[0])
	messageID := binary.BigEndian.Uint64(buf[1:9])
	payloadLength := binary.BigEndian.Uint32(buf[9:13])

	if payloadLength == 0 {
		return ctrl, messageID, []byte{}, nil
	}

	if len(buf) < int(payloadLength) {
		buf = make([]byte, payloadLength)
	}

	// Read payload
	if _, err := io.ReadFull(r, buf[:payloadLength]); err != nil {
		return common.CtrlUnknown, 0, nil, err
	}

	return ctrl, messageID, buf[:payloadLength], nil
}

package transport

import (
	"bytes"
	"io"
	"reflect"
	"testing"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// TestFrameRoundTrip verifies frames survive a write/read cycle
func TestFrameRoundTrip(t *testing.T) {
	testCases := []struct {
		name      string
		ctrl      common.ControlCode
		messageID uint64
		payload   []byte
	}{
		{name: "Empty payload", ctrl: common.CtrlPing, messageID: 1, payload: nil},
		{name: "Small payload", ctrl: common.CtrlOp, messageID: 42, payload: []byte("hello")},
		{name: "Auth frame", ctrl: common.CtrlAuthenticate, messageID: 1, payload: []byte("credential-token")},
		{name: "Large payload", ctrl: common.CtrlOpOK, messageID: 1 << 40, payload: bytes.Repeat([]byte{0xab}, 64*1024)},
		{name: "Max message ID", ctrl: common.CtrlError, messageID: ^uint64(0), payload: []byte("boom")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := writeFrame(&buf, tc.ctrl, tc.messageID, tc.payload); err != nil {
				t.Fatalf("Failed to write frame: %v", err)
			}

			if got := buf.Len(); got != frameHeaderSize+len(tc.payload) {
				t.Errorf("Frame length = %d, want %d", got, frameHeaderSize+len(tc.payload))
			}

			ctrl, messageID, payload, err := readFrame(&buf, nil)
			if err != nil {
				t.Fatalf("Failed to read frame: %v", err)
			}

			if ctrl != tc.ctrl {
				t.Errorf("Control code = %s, want %s", ctrl, tc.ctrl)
			}
			if messageID != tc.messageID {
				t.Errorf("Message ID = %d, want %d", messageID, tc.messageID)
			}

			want := tc.payload
			if want == nil {
				want = []byte{}
			}
			if !reflect.DeepEqual(payload, want) {
				t.Errorf("Payload mismatch: got %d bytes, want %d bytes", len(payload), len(want))
			}
		})
	}
}

// TestFrameBufferReuse verifies a caller-provided buffer is reused when
// large enough
func TestFrameBufferReuse(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("reuse me")
	if err := writeFrame(&buf, common.CtrlOp, 7, payload); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}

	readBuf := make([]byte, 1024)
	_, _, got, err := readFrame(&buf, readBuf)
	if err != nil {
		t.Fatalf("Failed to read frame: %v", err)
	}

	if !bytes.Equal(got, payload) {
		t.Errorf("Payload = %q, want %q", got, payload)
	}

	// The returned slice must alias the provided buffer
	if &got[0] != &readBuf[0] {
		t.Error("Expected payload to alias the provided buffer")
	}
}

// TestFrameShortReads verifies truncated frames surface read errors
func TestFrameShortReads(t *testing.T) {
	var full bytes.Buffer
	if err := writeFrame(&full, common.CtrlOp, 3, []byte("payload")); err != nil {
		t.Fatalf("Failed to write frame: %v", err)
	}
	frame := full.Bytes()

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Empty", data: nil},
		{name: "Partial header", data: frame[:5]},
		{name: "Header only", data: frame[:frameHeaderSize]},
		{name: "Partial payload", data: frame[:frameHeaderSize+3]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, _, err := readFrame(bytes.NewReader(tc.data), nil)
			if err == nil {
				t.Fatal("Expected error for truncated frame, got none")
			}
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				t.Errorf("Expected EOF error, got %v", err)
			}
		})
	}
}

// TestFrameSequence verifies multiple frames on one stream read back in
// order
func TestFrameSequence(t *testing.T) {
	var buf bytes.Buffer
	for i := uint64(1); i <= 5; i++ {
		if err := writeFrame(&buf, common.CtrlOp, i, []byte{byte(i)}); err != nil {
			t.Fatalf("Failed to write frame %d: %v", i, err)
		}
	}

	// One shared buffer across reads, forcing reuse
	shared := make([]byte, 64)
	for i := uint64(1); i <= 5; i++ {
		_, messageID, payload, err := readFrame(&buf, shared)
		if err != nil {
			t.Fatalf("Failed to read frame %d: %v", i, err)
		}
		if messageID != i {
			t.Errorf("Message ID = %d, want %d", messageID, i)
		}
		if len(payload) != 1 || payload[0] != byte(i) {
			t.Errorf("Payload = %v, want [%d]", payload, i)
		}
	}
}

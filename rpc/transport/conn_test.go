package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/cachelink/cachelink-go/rpc/common"
)

// peerFunc scripts the remote side of a connection: it receives each
// incoming frame and returns the response frame, or ok=false for silence
type peerFunc func(ctrl common.ControlCode, messageID uint64, payload []byte) (common.ControlCode, []byte, bool)

// newScriptedConnection builds a Connection whose peer answers according to
// the given script
func newScriptedConnection(t *testing.T, script peerFunc) (*Connection, net.Conn) {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()

	go func() {
		for {
			ctrl, messageID, payload, err := readFrame(serverEnd, nil)
			if err != nil {
				return
			}
			respCtrl, respPayload, ok := script(ctrl, messageID, payload)
			if !ok {
				continue
			}
			if err := writeFrame(serverEnd, respCtrl, messageID, respPayload); err != nil {
				return
			}
		}
	}()

	conn := newConnection(clientEnd, "scripted:0")
	t.Cleanup(func() {
		_ = conn.Close()
		_ = serverEnd.Close()
	})
	return conn, serverEnd
}

// echoScript answers every op with its own payload
func echoScript(ctrl common.ControlCode, _ uint64, payload []byte) (common.ControlCode, []byte, bool) {
	switch ctrl {
	case common.CtrlOp:
		return common.CtrlOpOK, payload, true
	case common.CtrlPing:
		return common.CtrlPong, nil, true
	default:
		return common.CtrlError, []byte("unexpected frame"), true
	}
}

// TestConnectionInvokeOp verifies basic request/response correlation
func TestConnectionInvokeOp(t *testing.T) {
	conn, _ := newScriptedConnection(t, echoScript)

	for i := 0; i < 5; i++ {
		payload := []byte(fmt.Sprintf("request-%d", i))
		resp, err := conn.InvokeOp(context.Background(), payload)
		if err != nil {
			t.Fatalf("InvokeOp failed: %v", err)
		}
		if string(resp) != string(payload) {
			t.Errorf("Response = %q, want %q", resp, payload)
		}
	}

	if !conn.IsAlive() {
		t.Error("Connection reported dead after successful calls")
	}
}

// TestConnectionOutOfOrderResponses verifies responses are matched by
// message ID, not arrival order
func TestConnectionOutOfOrderResponses(t *testing.T) {
	var mu sync.Mutex
	type held struct {
		messageID uint64
		payload   []byte
	}
	var first *held

	clientEnd, serverEnd := net.Pipe()
	defer serverEnd.Close()

	// Hold the first request back and answer it after the second
	go func() {
		for {
			ctrl, messageID, payload, err := readFrame(serverEnd, nil)
			if err != nil {
				return
			}
			if ctrl != common.CtrlOp {
				continue
			}

			mu.Lock()
			if first == nil {
				first = &held{messageID: messageID, payload: append([]byte(nil), payload...)}
				mu.Unlock()
				continue
			}
			heldReq := first
			mu.Unlock()

			_ = writeFrame(serverEnd, common.CtrlOpOK, messageID, payload)
			_ = writeFrame(serverEnd, common.CtrlOpOK, heldReq.messageID, heldReq.payload)
			return
		}
	}()

	conn := newConnection(clientEnd, "scripted:0")
	defer conn.Close()

	results := make(chan error, 2)
	invoke := func(payload string) {
		resp, err := conn.InvokeOp(context.Background(), []byte(payload))
		if err != nil {
			results <- err
			return
		}
		if string(resp) != payload {
			results <- fmt.Errorf("response %q for request %q", resp, payload)
			return
		}
		results <- nil
	}

	go invoke("first-request")
	time.Sleep(50 * time.Millisecond) // make the arrival order deterministic
	go invoke("second-request")

	for i := 0; i < 2; i++ {
		if err := <-results; err != nil {
			t.Errorf("Correlation failure: %v", err)
		}
	}
}

// TestConnectionTimeoutDoesNotPoison verifies a caller deadline neither
// closes the connection nor corrupts later calls
func TestConnectionTimeoutDoesNotPoison(t *testing.T) {
	var calls int
	var mu sync.Mutex

	conn, _ := newScriptedConnection(t, func(ctrl common.ControlCode, messageID uint64, payload []byte) (common.ControlCode, []byte, bool) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			// Never answer the first call, the caller must hit its deadline
			return common.CtrlUnknown, nil, false
		}
		return common.CtrlOpOK, payload, true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := conn.InvokeOp(ctx, []byte("slow"))
	if err == nil {
		t.Fatal("Expected timeout error, got none")
	}
	if !common.IsCode(err, common.ErrCTimeout) {
		t.Fatalf("Expected timeout code, got %v", err)
	}

	if !conn.IsAlive() {
		t.Fatal("Connection closed by caller timeout")
	}

	// The connection must still carry calls
	resp, err := conn.InvokeOp(context.Background(), []byte("fast"))
	if err != nil {
		t.Fatalf("InvokeOp after timeout failed: %v", err)
	}
	if string(resp) != "fast" {
		t.Errorf("Response = %q, want %q", resp, "fast")
	}
}

// TestConnectionLateResponseDrains verifies a response arriving after the
// caller's deadline is dropped without breaking the next call
func TestConnectionLateResponseDrains(t *testing.T) {
	release := make(chan struct{})

	conn, _ := newScriptedConnection(t, func(ctrl common.ControlCode, messageID uint64, payload []byte) (common.ControlCode, []byte, bool) {
		if string(payload) == "slow" {
			<-release
			return common.CtrlOpOK, payload, true
		}
		return common.CtrlOpOK, payload, true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := conn.InvokeOp(ctx, []byte("slow")); !common.IsCode(err, common.ErrCTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}

	// Let the late response hit the wire, then verify the connection works
	close(release)
	time.Sleep(50 * time.Millisecond)

	resp, err := conn.InvokeOp(context.Background(), []byte("after"))
	if err != nil {
		t.Fatalf("InvokeOp after late response failed: %v", err)
	}
	if string(resp) != "after" {
		t.Errorf("Response = %q, want %q", resp, "after")
	}
}

// TestConnectionPeerDeathFailsPending verifies a dying connection unblocks
// waiting callers with an error and marks itself dead
func TestConnectionPeerDeathFailsPending(t *testing.T) {
	clientEnd, serverEnd := net.Pipe()

	// Read one frame, then kill the connection
	go func() {
		_, _, _, _ = readFrame(serverEnd, nil)
		_ = serverEnd.Close()
	}()

	conn := newConnection(clientEnd, "scripted:0")
	defer conn.Close()

	_, err := conn.InvokeOp(context.Background(), []byte("doomed"))
	if err == nil {
		t.Fatal("Expected error from dying connection, got none")
	}
	if !common.IsCode(err, common.ErrCIOFailure) {
		t.Errorf("Expected I/O failure code, got %v", err)
	}

	// The reader marks the connection dead
	deadline := time.Now().Add(time.Second)
	for conn.IsAlive() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.IsAlive() {
		t.Error("Connection still alive after peer death")
	}

	// Later calls fail fast
	if _, err := conn.InvokeOp(context.Background(), []byte("x")); !common.IsCode(err, common.ErrCIOFailure) {
		t.Errorf("Expected fast I/O failure on dead connection, got %v", err)
	}
}

// TestConnectionAuthenticate verifies handshake response classification
func TestConnectionAuthenticate(t *testing.T) {
	testCases := []struct {
		name     string
		respCtrl common.ControlCode
		respData []byte
		wantCode common.ErrCode
		wantOK   bool
	}{
		{name: "Accepted", respCtrl: common.CtrlAuthOK, wantOK: true},
		{name: "Rejected", respCtrl: common.CtrlError, respData: []byte("bad credential"), wantCode: common.ErrCAuthRejected},
		{name: "Violation", respCtrl: common.CtrlPong, wantCode: common.ErrCProtocolViolation},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, _ := newScriptedConnection(t, func(ctrl common.ControlCode, _ uint64, payload []byte) (common.ControlCode, []byte, bool) {
				if ctrl != common.CtrlAuthenticate {
					return common.CtrlError, []byte("not authenticated"), true
				}
				return tc.respCtrl, tc.respData, true
			})

			err := conn.authenticate(context.Background(), "secret")
			if tc.wantOK {
				if err != nil {
					t.Fatalf("Expected successful handshake, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected handshake error, got none")
			}
			if !common.IsCode(err, tc.wantCode) {
				t.Errorf("Expected code %s, got %v", tc.wantCode, err)
			}
		})
	}
}

// TestConnectionPing verifies ping response classification
func TestConnectionPing(t *testing.T) {
	t.Run("Pong", func(t *testing.T) {
		conn, _ := newScriptedConnection(t, echoScript)
		if err := conn.Ping(context.Background()); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("Wrong kind", func(t *testing.T) {
		conn, _ := newScriptedConnection(t, func(common.ControlCode, uint64, []byte) (common.ControlCode, []byte, bool) {
			return common.CtrlOpOK, nil, true
		})
		if err := conn.Ping(context.Background()); !common.IsCode(err, common.ErrCProtocolViolation) {
			t.Errorf("Expected protocol violation, got %v", err)
		}
	})
}

// TestConnectionClose verifies Close is idempotent and fails later calls
func TestConnectionClose(t *testing.T) {
	conn, _ := newScriptedConnection(t, echoScript)

	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	if conn.IsAlive() {
		t.Error("Connection alive after close")
	}
	if _, err := conn.InvokeOp(context.Background(), []byte("x")); !common.IsCode(err, common.ErrCIOFailure) {
		t.Errorf("Expected I/O failure after close, got %v", err)
	}
}

// TestConnectionMessageIDsIncrease verifies IDs are per-connection and
// strictly increasing
func TestConnectionMessageIDsIncrease(t *testing.T) {
	var mu sync.Mutex
	var seen []uint64

	conn, _ := newScriptedConnection(t, func(ctrl common.ControlCode, messageID uint64, payload []byte) (common.ControlCode, []byte, bool) {
		mu.Lock()
		seen = append(seen, messageID)
		mu.Unlock()
		return common.CtrlOpOK, payload, true
	})

	for i := 0; i < 4; i++ {
		if _, err := conn.InvokeOp(context.Background(), nil); err != nil {
			t.Fatalf("InvokeOp failed: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("Message IDs not strictly increasing: %v", seen)
		}
	}
}

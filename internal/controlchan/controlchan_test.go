package controlchan

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/cryptoutil"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	gcm, err := cryptoutil.NewGCMContext([16]byte{1, 2, 3})
	if err != nil {
		t.Fatalf("NewGCMContext: %v", err)
	}
	report, _ := moonerr.NewReporter(zap.NewNop(), "", "test")
	return &Channel{
		log:    zap.NewNop(),
		report: report,
		gcm:    gcm,
		iv:     [8]byte{4, 5, 6, 7, 8, 9, 10, 11},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestChannel(t)
	wire := c.encode(protocol.MsgTypePing, []byte{0x01, 0x02, 0x03})

	msg, ok := c.decode(wire)
	if !ok {
		t.Fatal("decode failed")
	}
	if msg.Type != protocol.MsgTypePing {
		t.Errorf("got type %#x, want %#x", msg.Type, protocol.MsgTypePing)
	}
	if len(msg.Payload) != 3 || msg.Payload[0] != 1 {
		t.Errorf("payload mismatch: %v", msg.Payload)
	}
}

func TestDecodeRejectsTamperedWire(t *testing.T) {
	c := newTestChannel(t)
	wire := c.encode(protocol.MsgTypePing, []byte{0xAA})
	wire[len(wire)-1] ^= 0xFF

	if _, ok := c.decode(wire); ok {
		t.Error("expected decode to fail on tampered wire")
	}
}

func TestDecodeSequenceAdvancesIndependently(t *testing.T) {
	c := newTestChannel(t)
	w1 := c.encode(protocol.MsgTypePing, nil)
	w2 := c.encode(protocol.MsgTypePing, nil)

	_, ok1 := c.decode(w1)
	_, ok2 := c.decode(w2)
	if !ok1 || !ok2 {
		t.Fatal("expected both decodes to succeed with distinct sequence numbers")
	}
}

func TestEscalateGCMFailureThresholdInWindow(t *testing.T) {
	c := newTestChannel(t)
	for i := 0; i < gcmFailureLimit; i++ {
		if c.escalateGCMFailure() {
			t.Fatalf("escalated too early at failure %d", i+1)
		}
	}
	if !c.escalateGCMFailure() {
		t.Error("expected escalation after exceeding gcmFailureLimit within window")
	}
}

func TestEscalateGCMFailureResetsOutsideWindow(t *testing.T) {
	c := newTestChannel(t)
	old := gcmFailureWindow
	_ = old
	// Simulate an old failure by injecting a stale timestamp directly.
	c.gcmFailures = append(c.gcmFailures, time.Now().Add(-2*time.Second))
	if c.escalateGCMFailure() {
		t.Error("a single recent failure plus one stale failure should not escalate")
	}
	if len(c.gcmFailures) != 1 {
		t.Errorf("stale failure should have been pruned, got %d entries", len(c.gcmFailures))
	}
}

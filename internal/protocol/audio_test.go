package protocol

import "testing"

func TestAudioNonceMonotonic(t *testing.T) {
	iv := [8]byte{9, 9, 9, 9, 9, 9, 9, 9}
	a := AudioNonce(iv, 1)
	b := AudioNonce(iv, 2)
	if a == b {
		t.Error("distinct sequences must yield distinct nonces")
	}
}

func TestControlHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, ControlHeaderSize)
	MarshalControlHeader(buf, 123, 456)
	length, seq, ok := UnmarshalControlHeader(buf)
	if !ok || length != 123 || seq != 456 {
		t.Errorf("round trip mismatch: length=%d seq=%d ok=%v", length, seq, ok)
	}
}

func TestUnmarshalControlHeaderTooShort(t *testing.T) {
	if _, _, ok := UnmarshalControlHeader(make([]byte, ControlHeaderSize-1)); ok {
		t.Error("expected failure on short buffer")
	}
}

package protocol

import "testing"

func TestVideoNonceScenarioA(t *testing.T) {
	ivPrefix := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	got := VideoNonce(ivPrefix, 0, 0)
	var want [12]byte
	copy(want[0:8], ivPrefix[:])
	if got != want {
		t.Errorf("frame 0 shard 0 nonce = %x, want %x (iv_prefix unchanged)", got, want)
	}
}

func TestVideoNonceDistinctPerShard(t *testing.T) {
	ivPrefix := [8]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22}
	seen := make(map[[12]byte]bool)
	for frame := uint32(0); frame < 4; frame++ {
		for shard := uint8(0); shard < 32; shard++ {
			n := VideoNonce(ivPrefix, frame, shard)
			if seen[n] {
				t.Fatalf("duplicate nonce for frame=%d shard=%d", frame, shard)
			}
			seen[n] = true
		}
	}
}

func TestVideoShardHeaderRoundTrip(t *testing.T) {
	h := VideoShardHeader{FrameIndex: 42, ShardIndex: 3, Flags: VideoFlagSOF | VideoFlagIDR, N: 10, P: 2}
	buf := make([]byte, VideoHeaderSize)
	h.Marshal(buf)

	got, ok := UnmarshalVideoShardHeader(buf)
	if !ok {
		t.Fatal("unmarshal failed")
	}
	if got != h {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestUnmarshalVideoShardHeaderTooShort(t *testing.T) {
	if _, ok := UnmarshalVideoShardHeader(make([]byte, VideoHeaderSize-1)); ok {
		t.Error("expected failure on short buffer")
	}
}

package fec

import (
	"bytes"
	"testing"
)

func TestParityCount(t *testing.T) {
	cases := []struct {
		n, pct, want int
	}{
		{10, 20, 2},
		{10, 5, 1},
		{1, 0, 1},
		{7, 15, 2},
		{100, 10, 10},
	}
	for _, c := range cases {
		if got := ParityCount(c.n, c.pct); got != c.want {
			t.Errorf("ParityCount(%d, %d) = %d, want %d", c.n, c.pct, got, c.want)
		}
	}
}

func TestDataShardCount(t *testing.T) {
	if got := DataShardCount(0, 1024); got != 0 {
		t.Errorf("empty payload should yield 0 shards, got %d", got)
	}
	if got := DataShardCount(1, 1024); got != 1 {
		t.Errorf("single-byte payload should yield 1 shard, got %d", got)
	}
	if got := DataShardCount(2048, 1024); got != 2 {
		t.Errorf("exact multiple should yield exact shard count, got %d", got)
	}
	if got := DataShardCount(2049, 1024); got != 3 {
		t.Errorf("remainder should round up, got %d", got)
	}
}

func TestEncodeReconstructRoundTrip(t *testing.T) {
	const n, p = 6, 2
	coder, err := New(n, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	shards := make([][]byte, n+p)
	for i := 0; i < n; i++ {
		shards[i] = bytes.Repeat([]byte{byte(i + 1)}, 128)
	}
	for i := n; i < n+p; i++ {
		shards[i] = make([]byte, 128)
	}
	if err := coder.Encode(shards); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	original := make([][]byte, n+p)
	for i, s := range shards {
		original[i] = append([]byte(nil), s...)
	}

	// Erase up to p shards (the coder's erasure limit) and reconstruct.
	lost := []int{0, n}
	damaged := make([][]byte, n+p)
	copy(damaged, shards)
	for _, idx := range lost {
		damaged[idx] = nil
	}

	if err := coder.Reconstruct(damaged); err != nil {
		t.Fatalf("Reconstruct: %v", err)
	}
	for i := 0; i < n; i++ {
		if !bytes.Equal(damaged[i], original[i]) {
			t.Errorf("data shard %d not recovered correctly", i)
		}
	}
}

func TestNewRejectsTooManyShards(t *testing.T) {
	if _, err := New(200, 100); err != ErrTooManyShards {
		t.Errorf("expected ErrTooManyShards, got %v", err)
	}
	if _, err := New(0, 1); err != ErrTooManyShards {
		t.Errorf("expected ErrTooManyShards for zero data shards, got %v", err)
	}
}

// Package fec wraps github.com/klauspost/reedsolomon to provide
// SIMD-accelerated systematic Reed-Solomon coding (AVX2 with a portable
// fallback) for video shard protection.
package fec

import (
	"errors"

	"github.com/klauspost/reedsolomon"
)

// ErrTooManyShards is returned when a requested shard shape exceeds the
// codec's limit.
var ErrTooManyShards = errors.New("fec: too many shards")

// Coder produces and reconstructs shards for a fixed (data, parity) shape.
// A Moonshine session builds one Coder per (N, P) pair it encounters; N
// varies per encoded frame so callers should cache by shape rather than
// holding a single Coder for a whole session.
type Coder struct {
	enc          reedsolomon.Encoder
	dataShards   int
	parityShards int
}

// New builds a Coder for dataShards data shards and parityShards parity
// shards. Returns ErrTooManyShards if the combined shard count exceeds the
// codec's limit of 255.
func New(dataShards, parityShards int) (*Coder, error) {
	if dataShards <= 0 || parityShards <= 0 || dataShards+parityShards > 255 {
		return nil, ErrTooManyShards
	}
	enc, err := reedsolomon.New(dataShards, parityShards)
	if err != nil {
		return nil, err
	}
	return &Coder{enc: enc, dataShards: dataShards, parityShards: parityShards}, nil
}

// DataShards returns N.
func (c *Coder) DataShards() int { return c.dataShards }

// ParityShards returns P.
func (c *Coder) ParityShards() int { return c.parityShards }

// Encode fills the parity shards (indices [dataShards:]) in place from the
// data shards. All shards must already be allocated to the same length;
// callers zero-pad the final data shard to match.
func (c *Coder) Encode(shards [][]byte) error {
	return c.enc.Encode(shards)
}

// Reconstruct recovers any missing shards (nil entries) from whatever
// combination of data and parity shards is present, up to the codec's
// erasure limit of parityShards.
func (c *Coder) Reconstruct(shards [][]byte) error {
	return c.enc.Reconstruct(shards)
}

// ParityCount computes P = max(1, ceil(N * fecPct / 100)).
func ParityCount(dataShards, fecPercent int) int {
	p := (dataShards*fecPercent + 99) / 100
	if p < 1 {
		p = 1
	}
	return p
}

// DataShardCount computes N = ceil(len(payload) / shardSize). A single-byte
// packet yields one data shard; a zero-length payload yields 0 (callers drop
// a zero-length encoded packet before packetizing it).
func DataShardCount(payloadLen, shardSize int) int {
	if payloadLen <= 0 {
		return 0
	}
	n := (payloadLen + shardSize - 1) / shardSize
	if n < 1 {
		n = 1
	}
	return n
}

// Package protocol defines the on-the-wire layouts the streaming session
// emits and parses for video, audio, and control traffic.
package protocol

import "encoding/binary"

// VideoHeaderSize is the fixed header preceding the encrypted payload of
// every video datagram:
//
//	frame_index u32 LE | shard_index u8 | flags u8 | N u16 LE | P u16 LE | reserved u16
const VideoHeaderSize = 12

// Video shard flag bits.
const (
	VideoFlagSOF = 1 << 0
	VideoFlagEOF = 1 << 1
	VideoFlagIDR = 1 << 2
)

// VideoShardHeader is the per-shard header carried in cleartext ahead of
// the AES-GCM-encrypted shard payload.
type VideoShardHeader struct {
	FrameIndex uint32
	ShardIndex uint8
	Flags      uint8
	N          uint16
	P          uint16
}

// Marshal encodes the header into buf, which must be at least
// VideoHeaderSize bytes.
func (h VideoShardHeader) Marshal(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.FrameIndex)
	buf[4] = h.ShardIndex
	buf[5] = h.Flags
	binary.LittleEndian.PutUint16(buf[6:8], h.N)
	binary.LittleEndian.PutUint16(buf[8:10], h.P)
	binary.LittleEndian.PutUint16(buf[10:12], 0) // reserved
}

// UnmarshalVideoShardHeader parses a VideoShardHeader from buf.
func UnmarshalVideoShardHeader(buf []byte) (VideoShardHeader, bool) {
	if len(buf) < VideoHeaderSize {
		return VideoShardHeader{}, false
	}
	return VideoShardHeader{
		FrameIndex: binary.LittleEndian.Uint32(buf[0:4]),
		ShardIndex: buf[4],
		Flags:      buf[5],
		N:          binary.LittleEndian.Uint16(buf[6:8]),
		P:          binary.LittleEndian.Uint16(buf[8:10]),
	}, true
}

// VideoNonce builds the 12-byte AES-GCM nonce for a video shard: the
// session's 8-byte IV prefix followed by the little-endian frame_index,
// with shard_index XORed into the counter's high byte so every
// (frame_index, shard_index) pair still maps to a distinct 12-byte nonce.
func VideoNonce(ivPrefix [8]byte, frameIndex uint32, shardIndex uint8) [12]byte {
	var n [12]byte
	copy(n[0:8], ivPrefix[:])
	binary.LittleEndian.PutUint32(n[8:12], frameIndex)
	n[11] ^= shardIndex
	return n
}

// AESGCMTagSize is the GCM authentication tag length appended to every
// encrypted payload.
const AESGCMTagSize = 16

package protocol

import (
	"encoding/binary"
	"math"
)

// NetfloatToFloat converts the little-endian 4-byte float encoding used by
// Sunshine touch/pen/motion packets, ported from
// moonlight-common-go/protocol.NetfloatToFloat.
func NetfloatToFloat(b [4]byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[:]))
}

// FloatToNetfloat is the inverse conversion, used by tests constructing
// synthetic input wire packets.
func FloatToNetfloat(f float32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], math.Float32bits(f))
	return b
}

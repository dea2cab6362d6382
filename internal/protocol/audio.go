package protocol

import "encoding/binary"

// RTPHeaderSize is the standard RTP header size used for audio datagrams.
const RTPHeaderSize = 12

// AudioPayloadType is the dynamic RTP payload type Moonlight uses for
// Opus audio.
const AudioPayloadType = 97

// AudioFECBlockSize and AudioFECParityCount fix the audio FEC shape: every
// 4 data packets are followed by 1 XOR parity packet.
const (
	AudioFECBlockSize   = 4
	AudioFECParityCount = 1
)

// AudioNonce builds the 12-byte AES-GCM nonce for an audio packet: the
// session's 8-byte IV prefix followed by the 32-bit big-endian sequence
// number.
func AudioNonce(ivPrefix [8]byte, sequence uint32) [12]byte {
	var n [12]byte
	copy(n[0:8], ivPrefix[:])
	binary.BigEndian.PutUint32(n[8:12], sequence)
	return n
}

// ControlNonce builds the 12-byte AES-GCM nonce for a control datagram:
// the control IV prefix followed by the 32-bit big-endian sequence number
// that is also carried in the cleartext control header.
func ControlNonce(ivPrefix [8]byte, sequence uint32) [12]byte {
	var n [12]byte
	copy(n[0:8], ivPrefix[:])
	binary.BigEndian.PutUint32(n[8:12], sequence)
	return n
}

// ControlHeaderSize is the cleartext header preceding every encrypted
// control datagram: ciphertext_length (u16 LE) + sequence (u32 BE).
const ControlHeaderSize = 6

// MarshalControlHeader writes the cleartext control datagram header into
// buf (must be at least ControlHeaderSize bytes).
func MarshalControlHeader(buf []byte, ciphertextLength uint16, sequence uint32) {
	binary.LittleEndian.PutUint16(buf[0:2], ciphertextLength)
	binary.BigEndian.PutUint32(buf[2:6], sequence)
}

// UnmarshalControlHeader parses the cleartext control datagram header.
func UnmarshalControlHeader(buf []byte) (ciphertextLength uint16, sequence uint32, ok bool) {
	if len(buf) < ControlHeaderSize {
		return 0, 0, false
	}
	return binary.LittleEndian.Uint16(buf[0:2]), binary.BigEndian.Uint32(buf[2:6]), true
}

// Package audiopkt implements the audio packetizer: wraps each Opus packet
// in an RTP header, AES-128-GCM-encrypts it, and maintains a 4+1 XOR FEC
// block alongside the data stream.
package audiopkt

import (
	"go.uber.org/zap"

	"github.com/pion/rtp"

	"github.com/moonshine-stream/moonshine/internal/audiocap"
	"github.com/moonshine-stream/moonshine/internal/cryptoutil"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
)

// Datagram is one on-wire audio UDP payload, RTP header + AES-GCM
// ciphertext + tag.
type Datagram struct {
	Sequence uint32
	Wire     []byte
}

// Packetizer turns Opus packets into encrypted RTP datagrams and emits a
// trailing XOR parity datagram every AudioFECBlockSize packets.
type Packetizer struct {
	log      *zap.Logger
	gcm      *cryptoutil.GCMContext
	ivPrefix [8]byte
	ssrc     uint32
	report   *moonerr.Reporter

	block      [][]byte
	blockStart uint32
}

// New builds a Packetizer bound to one audio SSRC.
func New(log *zap.Logger, gcm *cryptoutil.GCMContext, ivPrefix [8]byte, ssrc uint32, report *moonerr.Reporter) *Packetizer {
	return &Packetizer{
		log:      log.Named("audiopkt"),
		gcm:      gcm,
		ivPrefix: ivPrefix,
		ssrc:     ssrc,
		report:   report,
	}
}

// Packetize encrypts and RTP-wraps one Opus packet, returning it plus a
// parity datagram whenever a full FEC block (4 data + 1 XOR parity) has
// been accumulated.
func (p *Packetizer) Packetize(pkt audiocap.Packet) ([]Datagram, error) {
	wire, err := p.seal(pkt.Sequence, pkt.Data)
	if err != nil {
		e := moonerr.Classify(moonerr.KindPipelineFailure, "audiopkt", err)
		p.report.Report(e)
		return nil, e
	}

	out := []Datagram{{Sequence: pkt.Sequence, Wire: wire}}

	if len(p.block) == 0 {
		p.blockStart = pkt.Sequence
	}
	p.block = append(p.block, pkt.Data)

	if len(p.block) == protocol.AudioFECBlockSize {
		parity := xorParity(p.block)
		parityWire, err := p.seal(p.blockStart+protocol.AudioFECBlockSize, parity)
		if err != nil {
			e := moonerr.Classify(moonerr.KindPipelineFailure, "audiopkt", err)
			p.report.Report(e)
			return out, e
		}
		out = append(out, Datagram{Sequence: p.blockStart + protocol.AudioFECBlockSize, Wire: parityWire})
		p.block = p.block[:0]
	}

	return out, nil
}

func (p *Packetizer) seal(sequence uint32, payload []byte) ([]byte, error) {
	header := rtp.Header{
		Version:        2,
		PayloadType:    protocol.AudioPayloadType,
		SequenceNumber: uint16(sequence),
		Timestamp:      sequence * uint32(audiocap.SampleRate*audiocap.FrameDurationMs/1000),
		SSRC:           p.ssrc,
	}
	headerBytes, err := header.Marshal()
	if err != nil {
		return nil, err
	}

	nonce := protocol.AudioNonce(p.ivPrefix, sequence)
	ciphertext, tag := p.gcm.Seal(nonce, payload)

	wire := make([]byte, len(headerBytes)+len(ciphertext)+len(tag))
	copy(wire, headerBytes)
	copy(wire[len(headerBytes):], ciphertext)
	copy(wire[len(headerBytes)+len(ciphertext):], tag)
	return wire, nil
}

// xorParity XORs equal-length-padded copies of block into a single parity
// payload.
func xorParity(block [][]byte) []byte {
	max := 0
	for _, b := range block {
		if len(b) > max {
			max = len(b)
		}
	}
	parity := make([]byte, max)
	for _, b := range block {
		for i, v := range b {
			parity[i] ^= v
		}
	}
	return parity
}

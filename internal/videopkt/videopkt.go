// Package videopkt implements the video packetizer: splits an encoded
// access unit into fixed-size data shards, computes Reed-Solomon parity
// shards, and AES-128-GCM-encrypts every shard before it goes to the UDP
// transport.
package videopkt

import (
	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/cryptoutil"
	"github.com/moonshine-stream/moonshine/internal/fec"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
	"github.com/moonshine-stream/moonshine/internal/videnc"
)

// Shard is one on-wire video datagram payload: cleartext header followed by
// AES-GCM ciphertext and tag, ready to hand to the transport as-is.
type Shard struct {
	FrameIndex uint32
	ShardIndex uint8
	Wire       []byte
}

// Packetizer turns access units into encrypted, FEC-protected shards.
type Packetizer struct {
	log        *zap.Logger
	gcm        *cryptoutil.GCMContext
	ivPrefix   [8]byte
	shardSize  int
	fecPercent int
	report     *moonerr.Reporter

	coders map[[2]int]*fec.Coder
}

// New builds a Packetizer. shardSize is the negotiated packet payload size
// and fecPercent is the negotiated FEC percentage, from which the parity
// shard count is derived as P = max(1, ceil(N*fecPercent/100)).
func New(log *zap.Logger, gcm *cryptoutil.GCMContext, ivPrefix [8]byte, shardSize, fecPercent int, report *moonerr.Reporter) *Packetizer {
	return &Packetizer{
		log:        log.Named("videopkt"),
		gcm:        gcm,
		ivPrefix:   ivPrefix,
		shardSize:  shardSize,
		fecPercent: fecPercent,
		report:     report,
		coders:     make(map[[2]int]*fec.Coder),
	}
}

// Packetize shards, FEC-encodes, and encrypts one access unit. Returns the
// shards in transmission order: all data shards (SOF on the first, EOF on
// the last) followed by parity shards.
func (p *Packetizer) Packetize(au videnc.AccessUnit) ([]Shard, error) {
	if len(au.Data) == 0 {
		return nil, nil
	}

	n := fec.DataShardCount(len(au.Data), p.shardSize)
	parity := fec.ParityCount(n, p.fecPercent)

	shards := make([][]byte, n+parity)
	for i := 0; i < n; i++ {
		start := i * p.shardSize
		end := start + p.shardSize
		buf := make([]byte, p.shardSize)
		if end > len(au.Data) {
			end = len(au.Data)
		}
		copy(buf, au.Data[start:end])
		shards[i] = buf
	}
	for i := n; i < n+parity; i++ {
		shards[i] = make([]byte, p.shardSize)
	}

	coder, err := p.coderFor(n, parity)
	if err != nil {
		e := moonerr.Classify(moonerr.KindPipelineFailure, "videopkt", err)
		p.report.Report(e)
		return nil, e
	}
	if err := coder.Encode(shards); err != nil {
		e := moonerr.Classify(moonerr.KindPipelineFailure, "videopkt", err)
		p.report.Report(e)
		return nil, e
	}

	out := make([]Shard, n+parity)
	for i, payload := range shards {
		var flags uint8
		if au.IsIDR {
			flags |= protocol.VideoFlagIDR
		}
		if i == 0 {
			flags |= protocol.VideoFlagSOF
		}
		if i == n-1 {
			flags |= protocol.VideoFlagEOF
		}

		hdr := protocol.VideoShardHeader{
			FrameIndex: au.FrameIndex,
			ShardIndex: uint8(i),
			Flags:      flags,
			N:          uint16(n),
			P:          uint16(parity),
		}

		nonce := protocol.VideoNonce(p.ivPrefix, au.FrameIndex, uint8(i))
		ciphertext, tag := p.gcm.Seal(nonce, payload)

		wire := make([]byte, protocol.VideoHeaderSize+len(ciphertext)+len(tag))
		hdr.Marshal(wire[:protocol.VideoHeaderSize])
		copy(wire[protocol.VideoHeaderSize:], ciphertext)
		copy(wire[protocol.VideoHeaderSize+len(ciphertext):], tag)

		out[i] = Shard{FrameIndex: au.FrameIndex, ShardIndex: uint8(i), Wire: wire}
	}
	return out, nil
}

func (p *Packetizer) coderFor(n, parity int) (*fec.Coder, error) {
	key := [2]int{n, parity}
	if c, ok := p.coders[key]; ok {
		return c, nil
	}
	c, err := fec.New(n, parity)
	if err != nil {
		return nil, err
	}
	p.coders[key] = c
	return c, nil
}

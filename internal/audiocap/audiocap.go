// Package audiocap implements audio capture and Opus encoding: each
// portaudio read fills exactly one FrameDurationMs frame of float32 samples
// at 48kHz, which is passed straight to an Opus encoder.
package audiocap

import (
	"context"

	"github.com/gordonklaus/portaudio"
	opus "gopkg.in/hraban/opus.v2"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/moonerr"
)

const (
	SampleRate     = 48000
	FrameDurationMs = 5
	samplesPerFrame = SampleRate * FrameDurationMs / 1000
)

// Packet is one Opus-encoded audio frame.
type Packet struct {
	Sequence uint32
	Data     []byte
}

// Capturer owns a portaudio input stream and an Opus encoder: 48kHz
// float32 capture, encoded to Opus at the negotiated bitrate.
type Capturer struct {
	log     *zap.Logger
	report  *moonerr.Reporter
	channels int

	stream *portaudio.Stream
	enc    *opus.Encoder
	inBuf  []float32

	sequence uint32
}

// New opens the default portaudio input device and an Opus encoder at
// bitrateBps for the given channel count (mono or stereo).
func New(log *zap.Logger, channels, bitrateBps int, report *moonerr.Reporter) (*Capturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}

	enc, err := opus.NewEncoder(SampleRate, channels, opus.AppRestrictedLowdelay)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	if err := enc.SetBitrate(bitrateBps); err != nil {
		portaudio.Terminate()
		return nil, err
	}

	c := &Capturer{
		log:      log.Named("audiocap"),
		report:   report,
		channels: channels,
		enc:      enc,
		inBuf:    make([]float32, samplesPerFrame*channels),
	}

	stream, err := portaudio.OpenDefaultStream(channels, 0, float64(SampleRate), samplesPerFrame, c.inBuf)
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}
	c.stream = stream
	return c, nil
}

// Run drives the capture+encode loop until ctx is done. emit receives every
// encoded packet in capture order, with a monotonically increasing
// Sequence starting at zero.
func (c *Capturer) Run(ctx context.Context, emit func(Packet), fail func(err error)) {
	if err := c.stream.Start(); err != nil {
		e := moonerr.Classify(moonerr.KindPipelineFailure, "audiocap", err)
		c.report.Report(e)
		fail(e)
		return
	}
	defer c.shutdown()

	outBuf := make([]byte, 4000)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.stream.Read(); err != nil {
			if ctx.Err() != nil {
				return
			}
			e := moonerr.Classify(moonerr.KindPipelineFailure, "audiocap", err)
			c.report.Report(e)
			fail(e)
			return
		}

		n, err := c.enc.EncodeFloat32(c.inBuf, outBuf)
		if err != nil {
			e := moonerr.Classify(moonerr.KindPipelineFailure, "audiocap", err)
			c.report.Report(e)
			fail(e)
			return
		}

		pkt := Packet{Sequence: c.sequence, Data: append([]byte(nil), outBuf[:n]...)}
		c.sequence++
		emit(pkt)
	}
}

func (c *Capturer) shutdown() {
	if err := c.stream.Stop(); err != nil {
		c.log.Warn("stream stop failed", zap.Error(err))
	}
	if err := c.stream.Close(); err != nil {
		c.log.Warn("stream close failed", zap.Error(err))
	}
	portaudio.Terminate()
}

// Package videnc implements the video encoder: a ticker-paced loop that
// pulls the latest captured frame at 1/fps and hands encoded access units to
// the packetizer. The encoder backend is modeled as an interface so a real
// NVENC/VAAPI/VideoToolbox binding can be plugged in without touching this
// package.
package videnc

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/capture"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
)

// AccessUnit is one encoded frame, ready for FEC shard splitting.
type AccessUnit struct {
	FrameIndex uint32
	Data       []byte
	IsIDR      bool
}

// Encoder is the platform encoder backend (NVENC-shaped: push raw frames,
// pull encoded access units, request an IDR out of band).
type Encoder interface {
	// Configure (re)configures the encoder for the given GOP length and
	// B-frame count. The pipeline calls this once at startup with
	// GOP = fps*2 and bFrames = 0 for zero-latency encoding.
	Configure(gop int, bFrames int) error
	// Encode submits a raw frame and returns the resulting access unit.
	// forceIDR requests an IDR frame regardless of GOP position.
	Encode(f capture.Frame, forceIDR bool) ([]byte, bool, error)
	Close() error
}

// State tracks the encoder pipeline's Idle -> Encoding lifecycle.
type State int

const (
	StateIdle State = iota
	StateEncoding
)

// Pipeline drives Encoder at a fixed cadence from a Capturer.
type Pipeline struct {
	log  *zap.Logger
	cap  *capture.Capturer
	enc  Encoder
	fps  int

	report *moonerr.Reporter

	state      State
	frameIndex uint32

	idrRequested chan struct{}
}

// New builds a Pipeline. fps must match the negotiated SessionParameters.FPS.
func New(log *zap.Logger, cap *capture.Capturer, enc Encoder, fps int, report *moonerr.Reporter) *Pipeline {
	return &Pipeline{
		log:          log.Named("videnc"),
		cap:          cap,
		enc:          enc,
		fps:          fps,
		report:       report,
		idrRequested: make(chan struct{}, 1),
	}
}

// RequestIDR asks the next encoded frame to be a full IDR frame, typically
// triggered by a client RequestIDR or InvalidateReferenceFrames message.
func (p *Pipeline) RequestIDR() {
	select {
	case p.idrRequested <- struct{}{}:
	default:
	}
}

// Run drives the encode loop until ctx is done. emit receives every
// successfully encoded access unit; fail is called once on a pipeline
// failure, after which Run returns.
func (p *Pipeline) Run(ctx context.Context, emit func(AccessUnit), fail func(err error)) {
	if err := p.enc.Configure(p.fps*2, 0); err != nil {
		e := moonerr.Classify(moonerr.KindPipelineFailure, "videnc", err)
		p.report.Report(e)
		fail(e)
		return
	}
	p.state = StateEncoding

	interval := time.Second / time.Duration(p.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer p.enc.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f, ok := p.cap.Latest(ctx)
			if !ok {
				continue
			}

			forceIDR := false
			select {
			case <-p.idrRequested:
				forceIDR = true
			default:
			}

			data, isIDR, err := p.enc.Encode(f, forceIDR)
			if err != nil {
				e := moonerr.Classify(moonerr.KindPipelineFailure, "videnc", err)
				p.report.Report(e)
				fail(e)
				return
			}

			au := AccessUnit{FrameIndex: p.frameIndex, Data: data, IsIDR: isIDR}
			p.frameIndex++
			emit(au)
		}
	}
}

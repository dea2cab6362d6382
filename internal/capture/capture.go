// Package capture implements the frame capturer: a single-slot "latest
// wins" buffer between whatever produces raw frames (a platform GPU grab,
// OBS-style source, or a test generator) and the video encoder, so a slow
// encoder never backs up capture.
package capture

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/moonerr"
)

// Frame is one raw captured frame, in whatever pixel format the Source
// produces (the video encoder is responsible for any conversion it needs).
type Frame struct {
	Width, Height int
	Data          []byte
	PTS           int64 // capture timestamp, encoder-defined units
}

// Source is the platform capture backend. Grab blocks until a frame is
// available or ctx is done, and should be cheap to call back to back — the
// capturer calls it in a tight loop bounded only by the source itself.
type Source interface {
	Grab(ctx context.Context) (Frame, error)
	Close() error
}

// Capturer owns one Source and exposes its output as a single-slot
// latest-wins buffer: the capturer never blocks on a slow consumer, and an
// unread frame is silently replaced.
type Capturer struct {
	log    *zap.Logger
	src    Source
	report *moonerr.Reporter

	mu      sync.Mutex
	cond    *sync.Cond
	latest  *Frame
	closed  bool
}

// New builds a Capturer around src.
func New(log *zap.Logger, src Source, report *moonerr.Reporter) *Capturer {
	c := &Capturer{log: log.Named("capture"), src: src, report: report}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Run drives the capture loop until ctx is done or the source fails. A
// source failure is classified as a pipeline failure and reported through
// fail before Run returns.
func (c *Capturer) Run(ctx context.Context, fail func(err error)) {
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		default:
		}

		f, err := c.src.Grab(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.shutdown()
				return
			}
			e := moonerr.Classify(moonerr.KindPipelineFailure, "capture", err)
			c.report.Report(e)
			fail(e)
			c.shutdown()
			return
		}

		c.mu.Lock()
		c.latest = &f
		c.cond.Signal()
		c.mu.Unlock()
	}
}

// Latest returns the most recently captured frame, blocking only until the
// very first frame has arrived. Once a frame exists it is returned
// immediately and is safe to call again before the next capture completes:
// the encoder ticker paces the wire, not the capture rate, so repeat reads
// of the same frame across consecutive ticks are expected, not a bug.
func (c *Capturer) Latest(ctx context.Context) (Frame, bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.latest == nil && !c.closed && ctx.Err() == nil {
		c.cond.Wait()
	}
	if c.latest == nil {
		return Frame{}, false
	}
	return *c.latest, true
}

func (c *Capturer) shutdown() {
	c.mu.Lock()
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()
	if err := c.src.Close(); err != nil {
		c.log.Warn("source close failed", zap.Error(err))
	}
}

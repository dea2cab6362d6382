package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/capture"
	"github.com/moonshine-stream/moonshine/internal/inject"
	"github.com/moonshine-stream/moonshine/internal/protocol"
	"github.com/moonshine-stream/moonshine/internal/videnc"
)

// demoGamepad is a log-only stand-in for a real joystick/uinput backend:
// no gamepad device exists in the virtual-input library this binary
// otherwise uses for keyboard and mouse, so a real deployment supplies its
// own Gamepad implementation here (e.g. a /dev/uinput binding) instead.
type demoGamepad struct {
	log  *zap.Logger
	slot int
	kind protocol.ControllerKind
}

func newDemoGamepadFactory(log *zap.Logger) inject.GamepadFactory {
	slot := 0
	return func(kind protocol.ControllerKind) (inject.Gamepad, error) {
		slot++
		log.Info("demo gamepad created", zap.Int("slot", slot), zap.Uint8("kind", uint8(kind)))
		return &demoGamepad{log: log, slot: slot, kind: kind}, nil
	}
}

func (g *demoGamepad) SetState(inject.GamepadState) error              { return nil }
func (g *demoGamepad) SetTouch(uint32, float32, float32) error         { return nil }
func (g *demoGamepad) SetMotion(uint8, float32, float32, float32) error { return nil }
func (g *demoGamepad) SetBattery(byte, byte) error                     { return nil }
func (g *demoGamepad) Close() error {
	g.log.Info("demo gamepad closed", zap.Int("slot", g.slot))
	return nil
}

// demoVideoSource is a synthetic capture.Source that yields blank frames at
// a fixed cadence. A real deployment supplies a GPU screen-grab backend
// here instead; this stands in so the binary is runnable end to end
// without platform-specific capture bindings.
type demoVideoSource struct {
	width, height int
	interval      time.Duration
	pts           int64
}

func newDemoVideoSource(width, height, fps int) *demoVideoSource {
	return &demoVideoSource{width: width, height: height, interval: time.Second / time.Duration(fps)}
}

func (d *demoVideoSource) Grab(ctx context.Context) (capture.Frame, error) {
	select {
	case <-time.After(d.interval):
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
	d.pts++
	return capture.Frame{
		Width:  d.width,
		Height: d.height,
		Data:   make([]byte, d.width*d.height*3/2), // I420
		PTS:    d.pts,
	}, nil
}

func (d *demoVideoSource) Close() error { return nil }

// passthroughEncoder stands in for a real NVENC/VAAPI binding: it treats
// raw frame bytes as already-encoded, inserting an IDR flag on the first
// frame and whenever forceIDR is requested.
type passthroughEncoder struct {
	gop, bFrames int
	sawFirst     bool
}

func newPassthroughEncoder() *passthroughEncoder { return &passthroughEncoder{} }

func (e *passthroughEncoder) Configure(gop, bFrames int) error {
	e.gop, e.bFrames = gop, bFrames
	return nil
}

func (e *passthroughEncoder) Encode(f capture.Frame, forceIDR bool) ([]byte, bool, error) {
	isIDR := forceIDR || !e.sawFirst
	e.sawFirst = true
	return f.Data, isIDR, nil
}

func (e *passthroughEncoder) Close() error { return nil }

var _ videnc.Encoder = (*passthroughEncoder)(nil)

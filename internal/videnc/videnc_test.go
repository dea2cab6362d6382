package videnc

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/capture"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
)

type fakeSource struct{ n int }

func (f *fakeSource) Grab(ctx context.Context) (capture.Frame, error) {
	select {
	case <-time.After(time.Millisecond):
	case <-ctx.Done():
		return capture.Frame{}, ctx.Err()
	}
	f.n++
	return capture.Frame{Width: 1, Height: 1, Data: []byte{byte(f.n)}}, nil
}
func (f *fakeSource) Close() error { return nil }

type fakeEncoder struct {
	gop, bFrames int
	failEncode   bool
}

func (e *fakeEncoder) Configure(gop, bFrames int) error {
	e.gop, e.bFrames = gop, bFrames
	return nil
}
func (e *fakeEncoder) Encode(f capture.Frame, forceIDR bool) ([]byte, bool, error) {
	if e.failEncode {
		return nil, false, errors.New("encode failed")
	}
	return f.Data, forceIDR, nil
}
func (e *fakeEncoder) Close() error { return nil }

func newTestReporter() *moonerr.Reporter {
	r, _ := moonerr.NewReporter(zap.NewNop(), "", "test")
	return r
}

func TestConfiguresGOPFromFPS(t *testing.T) {
	cap := capture.New(zap.NewNop(), &fakeSource{}, newTestReporter())
	enc := &fakeEncoder{}
	p := New(zap.NewNop(), cap, enc, 30, newTestReporter())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	go cap.Run(ctx, func(error) {})
	p.Run(ctx, func(AccessUnit) {}, func(error) {})

	if enc.gop != 60 {
		t.Errorf("expected GOP=fps*2=60, got %d", enc.gop)
	}
	if enc.bFrames != 0 {
		t.Errorf("expected zero B-frames, got %d", enc.bFrames)
	}
}

func TestFrameIndexMonotonicallyIncreases(t *testing.T) {
	cap := capture.New(zap.NewNop(), &fakeSource{}, newTestReporter())
	enc := &fakeEncoder{}
	p := New(zap.NewNop(), cap, enc, 200, newTestReporter())

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	var indices []uint32
	go cap.Run(ctx, func(error) {})
	p.Run(ctx, func(au AccessUnit) { indices = append(indices, au.FrameIndex) }, func(error) {})

	for i := 1; i < len(indices); i++ {
		if indices[i] != indices[i-1]+1 {
			t.Fatalf("frame indices not monotonic: %v", indices)
		}
	}
}

func TestRequestIDRForcesNextFrame(t *testing.T) {
	cap := capture.New(zap.NewNop(), &fakeSource{}, newTestReporter())
	enc := &fakeEncoder{}
	p := New(zap.NewNop(), cap, enc, 200, newTestReporter())
	p.RequestIDR()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var first *AccessUnit
	go cap.Run(ctx, func(error) {})
	p.Run(ctx, func(au AccessUnit) {
		if first == nil {
			cp := au
			first = &cp
		}
	}, func(error) {})

	if first == nil {
		t.Fatal("no access unit produced")
	}
	if !first.IsIDR {
		t.Error("expected first access unit to be IDR after RequestIDR")
	}
}

func TestEncodeFailureInvokesFail(t *testing.T) {
	cap := capture.New(zap.NewNop(), &fakeSource{}, newTestReporter())
	enc := &fakeEncoder{failEncode: true}
	p := New(zap.NewNop(), cap, enc, 200, newTestReporter())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	go cap.Run(ctx, func(error) {})

	failed := make(chan error, 1)
	p.Run(ctx, func(AccessUnit) {}, func(err error) { failed <- err })

	select {
	case err := <-failed:
		if err == nil {
			t.Fatal("expected non-nil error")
		}
	default:
		t.Fatal("expected fail to be invoked")
	}
}

package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/moonerr"
)

type fakeSource struct {
	n      int64
	failAt int64
	failErr error
}

func (f *fakeSource) Grab(ctx context.Context) (Frame, error) {
	n := atomic.AddInt64(&f.n, 1)
	if f.failAt > 0 && n >= f.failAt {
		return Frame{}, f.failErr
	}
	return Frame{Width: 1, Height: 1, Data: []byte{byte(n)}, PTS: n}, nil
}

func (f *fakeSource) Close() error { return nil }

func newTestReporter() *moonerr.Reporter {
	r, _ := moonerr.NewReporter(zap.NewNop(), "", "test")
	return r
}

func TestLatestWinsSkipsIntermediateFrames(t *testing.T) {
	src := &fakeSource{}
	c := New(zap.NewNop(), src, newTestReporter())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go c.Run(ctx, func(error) {})

	time.Sleep(20 * time.Millisecond) // let several frames accumulate
	f, ok := c.Latest(ctx)
	if !ok {
		t.Fatal("expected a frame")
	}
	if f.PTS < 2 {
		t.Errorf("expected to observe a later frame after backlog, got PTS=%d", f.PTS)
	}
}

func TestCapturerReportsPipelineFailure(t *testing.T) {
	src := &fakeSource{failAt: 1, failErr: errors.New("device lost")}
	c := New(zap.NewNop(), src, newTestReporter())

	failed := make(chan error, 1)
	c.Run(context.Background(), func(err error) { failed <- err })

	select {
	case err := <-failed:
		if err == nil {
			t.Fatal("expected non-nil error")
		}
	case <-time.After(time.Second):
		t.Fatal("fail callback not invoked")
	}
}

func TestLatestUnblocksOnContextCancel(t *testing.T) {
	src := &fakeSource{failAt: 1, failErr: errors.New("never called")}
	_ = src
	c := New(zap.NewNop(), &blockingSource{}, newTestReporter())
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx, func(error) {})

	latestCtx, latestCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer latestCancel()
	_, ok := c.Latest(latestCtx)
	if ok {
		t.Fatal("expected Latest to return false when no frame ever arrives before its own context expires")
	}
	cancel()
}

type blockingSource struct{}

func (b *blockingSource) Grab(ctx context.Context) (Frame, error) {
	<-ctx.Done()
	return Frame{}, ctx.Err()
}
func (b *blockingSource) Close() error { return nil }

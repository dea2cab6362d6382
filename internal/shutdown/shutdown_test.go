package shutdown

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestFirstWriterWins(t *testing.T) {
	m := New(context.Background(), zap.NewNop())
	m.SetReason(Reason{Kind: ClientRequested, Detail: "first"})
	m.SetReason(Reason{Kind: HostRequested, Detail: "second"})

	r := m.Reason()
	if r == nil || r.Kind != ClientRequested || r.Detail != "first" {
		t.Errorf("expected first reason to win, got %+v", r)
	}
}

func TestDoneClosesOnSetReason(t *testing.T) {
	m := New(context.Background(), zap.NewNop())
	select {
	case <-m.Done():
		t.Fatal("Done should not be closed before SetReason")
	default:
	}
	m.SetReason(Reason{Kind: HostRequested})
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Done did not close after SetReason")
	}
}

func TestWaitQuiescentWithNoSubscribers(t *testing.T) {
	m := New(context.Background(), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if !m.WaitQuiescent(ctx) {
		t.Fatal("expected immediate quiescence with zero subscribers")
	}
}

func TestWaitQuiescentAfterAllReleased(t *testing.T) {
	m := New(context.Background(), zap.NewNop())
	release1 := m.Subscribe()
	release2 := m.Subscribe()

	done := make(chan bool, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		done <- m.WaitQuiescent(ctx)
	}()

	time.Sleep(10 * time.Millisecond)
	release1()
	release1() // idempotent release should not double-decrement
	release2()

	if !<-done {
		t.Fatal("expected quiescence after all subscribers released")
	}
}

func TestParentContextCancelTriggersHostRequested(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	m := New(parent, zap.NewNop())
	cancel()

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("Done did not close after parent cancellation")
	}
	r := m.Reason()
	if r == nil || r.Kind != HostRequested {
		t.Errorf("expected HostRequested reason, got %+v", r)
	}
}

func TestIsClean(t *testing.T) {
	clean := []ReasonKind{ClientRequested, ClientTimeout, HostRequested}
	dirty := []ReasonKind{VideoPipelineFailed, AudioPipelineFailed, ControlPipelineFailed, InputPipelineFailed}
	for _, k := range clean {
		if !(Reason{Kind: k}).IsClean() {
			t.Errorf("%v should be clean", k)
		}
	}
	for _, k := range dirty {
		if (Reason{Kind: k}).IsClean() {
			t.Errorf("%v should not be clean", k)
		}
	}
}

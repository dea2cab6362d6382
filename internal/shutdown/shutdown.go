// Package shutdown implements the session-wide shutdown broadcast primitive:
// a first-writer-wins reason cell, a broadcast signal every worker
// subscribes to, and a quiescence barrier the session manager waits on
// during stop.
package shutdown

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Reason is the tagged variant describing why a session stopped. Once set
// on a Manager it is immutable.
type Reason struct {
	Kind    ReasonKind
	Detail  string
	ErrorCode int
}

type ReasonKind int

const (
	ClientRequested ReasonKind = iota
	ClientTimeout
	VideoPipelineFailed
	AudioPipelineFailed
	ControlPipelineFailed
	InputPipelineFailed
	HostRequested
)

func (k ReasonKind) String() string {
	switch k {
	case ClientRequested:
		return "client_requested"
	case ClientTimeout:
		return "client_timeout"
	case VideoPipelineFailed:
		return "video_pipeline_failed"
	case AudioPipelineFailed:
		return "audio_pipeline_failed"
	case ControlPipelineFailed:
		return "control_pipeline_failed"
	case InputPipelineFailed:
		return "input_pipeline_failed"
	case HostRequested:
		return "host_requested"
	default:
		return "unknown"
	}
}

// IsClean reports whether the reason represents a clean, expected shutdown
// as opposed to a pipeline failure.
func (r Reason) IsClean() bool {
	switch r.Kind {
	case ClientRequested, ClientTimeout, HostRequested:
		return true
	default:
		return false
	}
}

// Manager is the process-local shutdown broadcast primitive: components
// subscribe to Done(), and any one of them (or the outer program) can set
// the terminal reason exactly once.
type Manager struct {
	log *zap.Logger

	mu     sync.Mutex
	reason *Reason
	ctx    context.Context
	cancel context.CancelFunc

	live int64 // live worker subscription count

	quiescent     chan struct{}
	quiescentOnce sync.Once
}

// New creates a Manager parented on ctx. Cancelling ctx (e.g. the outer
// program shutting down the process) is equivalent to a HostRequested
// SetReason.
func New(ctx context.Context, log *zap.Logger) *Manager {
	cctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		log:       log.Named("shutdown"),
		ctx:       cctx,
		cancel:    cancel,
		quiescent: make(chan struct{}),
	}
	go func() {
		<-ctx.Done()
		m.SetReason(Reason{Kind: HostRequested, Detail: "parent context cancelled"})
	}()
	return m
}

// SetReason sets the shutdown reason if none has been set yet (first-writer
// wins) and broadcasts cancellation to every subscriber. Subsequent calls
// are silently ignored but logged.
func (m *Manager) SetReason(r Reason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reason != nil {
		m.log.Debug("shutdown reason already set, ignoring",
			zap.String("existing", m.reason.Kind.String()),
			zap.String("attempted", r.Kind.String()))
		return
	}

	m.reason = &r
	m.log.Info("shutdown reason set", zap.String("reason", r.Kind.String()), zap.String("detail", r.Detail))
	m.cancel()
}

// Reason returns the shutdown reason once set, or nil if the session is
// still running.
func (m *Manager) Reason() *Reason {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reason == nil {
		return nil
	}
	cp := *m.reason
	return &cp
}

// Done returns the broadcast signal every worker subscribes to. Workers are
// expected to observe a closed Done() within about 100ms of SetReason under
// normal scheduling (the signal itself is delivered synchronously by context
// cancellation; the 100ms budget covers a worker's select loop wake-up
// latency, not this primitive).
func (m *Manager) Done() <-chan struct{} {
	return m.ctx.Done()
}

// Context returns the cancellation context workers should pass down into
// any call that accepts a context.Context (so ctx.Err() observes the same
// shutdown signal as Done()).
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Subscribe registers a live worker and returns a release function the
// worker must call exactly once when it has fully stopped. WaitQuiescent
// resolves once every subscription has been released.
func (m *Manager) Subscribe() (release func()) {
	atomic.AddInt64(&m.live, 1)
	var released int32
	return func() {
		if !atomic.CompareAndSwapInt32(&released, 0, 1) {
			return
		}
		if atomic.AddInt64(&m.live, -1) == 0 {
			m.quiescentOnce.Do(func() { close(m.quiescent) })
		}
	}
}

// WaitQuiescent blocks until the live subscription count reaches zero or
// ctx is done, whichever comes first.
func (m *Manager) WaitQuiescent(ctx context.Context) bool {
	if atomic.LoadInt64(&m.live) == 0 {
		m.quiescentOnce.Do(func() { close(m.quiescent) })
	}
	select {
	case <-m.quiescent:
		return true
	case <-ctx.Done():
		return false
	}
}

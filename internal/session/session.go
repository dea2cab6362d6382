// Package session implements the session manager: builds and supervises
// one streaming session's capture, encode, packetize, transport, control,
// and input components plus the shutdown broadcast primitive, enforces the
// start deadline, and guarantees every component tears down on any single
// pipeline failure.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/codecat/go-enet"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/audiocap"
	"github.com/moonshine-stream/moonshine/internal/audiopkt"
	"github.com/moonshine-stream/moonshine/internal/capture"
	"github.com/moonshine-stream/moonshine/internal/config"
	"github.com/moonshine-stream/moonshine/internal/controlchan"
	"github.com/moonshine-stream/moonshine/internal/cryptoutil"
	"github.com/moonshine-stream/moonshine/internal/inject"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
	"github.com/moonshine-stream/moonshine/internal/shutdown"
	"github.com/moonshine-stream/moonshine/internal/transport"
	"github.com/moonshine-stream/moonshine/internal/videnc"
	"github.com/moonshine-stream/moonshine/internal/videopkt"
)

// ErrStartTimeout is returned by Start when a component fails to come up
// within the configured start deadline.
var ErrStartTimeout = errors.New("session: start deadline exceeded")

// Handle is the opaque reference a caller uses to control a running session.
type Handle struct {
	ID string

	params  config.SessionParameters
	timeout config.Timeouts
	log     *zap.Logger
	report  *moonerr.Reporter

	shut *shutdown.Manager
	wg   sync.WaitGroup

	videoEnc *videnc.Pipeline

	stopOnce sync.Once
	reason   shutdown.Reason
}

// Sources bundles the platform-specific backends a session is built from,
// so Start stays free of any concrete capture/encode/device implementation:
// those are supplied by the outer program, and the session manager owns
// orchestration, not device bindings.
type Sources struct {
	VideoSource capture.Source
	VideoEnc    videnc.Encoder
	Injector    *inject.Injector
	ControlBind enet.Address
}

// Start builds every pipeline component for one session and launches its
// worker goroutine. It returns as soon as every worker has been launched; it
// does not wait for the workers to report that they are running. If
// construction itself has outlasted the start deadline (default 3000ms),
// everything already started is torn down and ErrStartTimeout is returned.
func Start(parent context.Context, log *zap.Logger, params config.SessionParameters, timeouts config.Timeouts, report *moonerr.Reporter, src Sources) (*Handle, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sessUUID := uuid.New()
	id := sessUUID.String()
	sessLog := log.Named("session").With(zap.String("session_id", id))

	startCtx, cancelStart := context.WithTimeout(parent, time.Duration(timeouts.StartDeadlineMs)*time.Millisecond)
	defer cancelStart()

	h := &Handle{
		ID:      id,
		params:  params,
		timeout: timeouts,
		log:     sessLog,
		report:  report,
		shut:    shutdown.New(parent, sessLog),
	}
	ctx := h.shut.Context()

	videoGCM, err := cryptoutil.NewGCMContext(params.VideoAESKey)
	if err != nil {
		return nil, err
	}
	controlGCM, err := cryptoutil.NewGCMContext(params.ControlAESKey)
	if err != nil {
		return nil, err
	}

	videoPkt := videopkt.New(sessLog, videoGCM, params.VideoIVPrefix, params.PacketSize, params.FECPercent, report)
	videoTransport, err := transport.Dial(sessLog, transport.KindVideo, &net.UDPAddr{IP: params.ClientAddr, Port: params.ClientVideoPort}, report)
	if err != nil {
		return nil, fmt.Errorf("video transport: %w", err)
	}

	capturer := capture.New(sessLog, src.VideoSource, report)
	h.videoEnc = videnc.New(sessLog, capturer, src.VideoEnc, params.FPS, report)

	h.runWorker("capture", func(fail func(error)) { capturer.Run(ctx, fail) })
	h.runWorker("videnc", func(fail func(error)) {
		h.videoEnc.Run(ctx, func(au videnc.AccessUnit) {
			shards, err := videoPkt.Packetize(au)
			if err != nil {
				return
			}
			batch := make([][]byte, len(shards))
			for i, s := range shards {
				batch[i] = s.Wire
			}
			videoTransport.Enqueue(batch)
		}, fail)
	})
	h.runWorker("video-send", func(fail func(error)) {
		videoTransport.Run(ctx, time.Duration(timeouts.UDPDrainMs)*time.Millisecond)
	})

	if params.AudioEnabled {
		audioGCM, err := cryptoutil.NewGCMContext(params.AudioAESKey)
		if err != nil {
			return nil, err
		}
		audioTransport, err := transport.Dial(sessLog, transport.KindAudio, &net.UDPAddr{IP: params.ClientAddr, Port: params.ClientAudioPort}, report)
		if err != nil {
			return nil, fmt.Errorf("audio transport: %w", err)
		}
		ssrc := binary.LittleEndian.Uint32(sessUUID[:4])
		audioPkt := audiopkt.New(sessLog, audioGCM, params.AudioIVPrefix, ssrc, report)
		audioCapturer, err := audiocap.New(sessLog, params.ChannelCount, params.OpusBitrate, report)
		if err != nil {
			return nil, fmt.Errorf("audio capture: %w", err)
		}
		h.runWorker("audiocap", func(fail func(error)) {
			audioCapturer.Run(ctx, func(pkt audiocap.Packet) {
				dgrams, err := audioPkt.Packetize(pkt)
				if err != nil {
					return
				}
				batch := make([][]byte, len(dgrams))
				for i, d := range dgrams {
					batch[i] = d.Wire
				}
				audioTransport.Enqueue(batch)
			}, fail)
		})
		h.runWorker("audio-send", func(fail func(error)) {
			audioTransport.Run(ctx, time.Duration(timeouts.UDPDrainMs)*time.Millisecond)
		})
	}

	clientTimeout := time.Duration(params.ClientTimeout) * time.Second
	drainGrace := time.Duration(timeouts.ControlGraceMs) * time.Millisecond
	control, err := controlchan.New(sessLog, src.ControlBind, controlGCM, params.ControlIV, clientTimeout, drainGrace, report)
	if err != nil {
		return nil, fmt.Errorf("control channel: %w", err)
	}
	h.runWorker("controlchan", func(fail func(error)) {
		control.Run(ctx, func(msg controlchan.Message) {
			h.dispatchControlMessage(msg, src.Injector)
		}, fail)
	})

	select {
	case <-startCtx.Done():
		if parent.Err() == nil {
			h.shut.SetReason(shutdown.Reason{Kind: shutdown.HostRequested, Detail: "start deadline exceeded"})
			h.Stop(context.Background())
			return nil, ErrStartTimeout
		}
	default:
	}

	return h, nil
}

func (h *Handle) dispatchControlMessage(msg controlchan.Message, injector *inject.Injector) {
	switch msg.Type {
	case protocol.MsgTypeInputData:
		if injector != nil {
			injector.Dispatch(msg.Payload)
		}
	case protocol.MsgTypeRequestIDR, protocol.MsgTypeInvalidateRefFrames:
		h.videoEnc.RequestIDR()
	}
}

// RequestIDR asks the video pipeline to emit a full IDR frame on its next
// encode.
func (h *Handle) RequestIDR() {
	if h.videoEnc != nil {
		h.videoEnc.RequestIDR()
	}
}

// componentFailureKind maps a component name to the shutdown reason its
// pipeline failures should be reported under.
func componentFailureKind(component string) shutdown.ReasonKind {
	switch component {
	case "audiocap", "audiopkt":
		return shutdown.AudioPipelineFailed
	case "controlchan":
		return shutdown.ControlPipelineFailed
	case "inject":
		return shutdown.InputPipelineFailed
	default:
		return shutdown.VideoPipelineFailed
	}
}

func (h *Handle) runWorker(component string, fn func(fail func(error))) {
	release := h.shut.Subscribe()
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer release()
		fn(func(err error) {
			h.shut.SetReason(shutdownReasonFor(component, err))
		})
	}()
}

// shutdownReasonFor maps a worker failure to the shutdown reason it should
// carry. A client-originated termination or liveness timeout and a host-
// requested teardown are both clean shutdowns, independent of which
// component happened to observe them; anything else is a pipeline failure
// attributed to the component that raised it.
func shutdownReasonFor(component string, err error) shutdown.Reason {
	var e *moonerr.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case moonerr.KindClientTermination:
			if controlchan.IsClientTimeout(e.Err) {
				return shutdown.Reason{Kind: shutdown.ClientTimeout, Detail: e.Error()}
			}
			return shutdown.Reason{Kind: shutdown.ClientRequested, Detail: e.Error()}
		case moonerr.KindHostTermination:
			return shutdown.Reason{Kind: shutdown.HostRequested, Detail: e.Error()}
		default:
			return shutdown.Reason{Kind: componentFailureKind(e.Component), Detail: e.Error()}
		}
	}
	return shutdown.Reason{Kind: componentFailureKind(component), Detail: err.Error()}
}

// Stop requests a clean shutdown and blocks until every component has
// confirmed it stopped or the stop bound (default 5000ms) elapses, whichever
// is first. Stop is idempotent: repeated calls after the first are no-ops.
func (h *Handle) Stop(ctx context.Context) shutdown.Reason {
	h.stopOnce.Do(func() {
		h.shut.SetReason(shutdown.Reason{Kind: shutdown.HostRequested, Detail: "stop requested"})
		boundCtx, cancel := context.WithTimeout(ctx, time.Duration(h.timeout.StopBoundMs)*time.Millisecond)
		defer cancel()
		if h.shut.WaitQuiescent(boundCtx) {
			h.wg.Wait()
		} else {
			h.log.Warn("stop bound elapsed with workers still running, detaching them")
		}
		if r := h.shut.Reason(); r != nil {
			h.reason = *r
		}
	})
	return h.reason
}

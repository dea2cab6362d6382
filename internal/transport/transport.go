// Package transport implements the UDP send/receive endpoints for the
// video and audio streams: DSCP-marked sockets, a PING-discovery responder,
// and retry-wrapped transient send failures.
package transport

import (
	"context"
	"net"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"

	"github.com/moonshine-stream/moonshine/internal/moonerr"
)

// DSCP class selectors used for video/audio marking: audio uses Expedited
// Forwarding, video uses Assured Forwarding class 4 drop precedence 1.
const (
	dscpEF   = 0x2E << 2
	dscpAF41 = 0x22 << 2
)

// Kind distinguishes the two media transports for DSCP marking purposes.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

// sendQueueDepth bounds the number of in-flight batches (one access
// unit's worth of shards, or one audio packet's worth of datagrams) an
// endpoint holds between the producer and the socket. It is intentionally
// shallow: the queue exists to smooth a momentary write stall, not to
// buffer depth, since buffered depth on a real-time stream is just latency.
const sendQueueDepth = 4

// Endpoint is a UDP socket bound to the host side and connected to one
// client address/port, used for one-directional media send plus best-effort
// discovery PING replies. Sends are queued rather than written inline so
// Run can apply a keep-latest overflow policy and a bounded drain on close.
type Endpoint struct {
	log    *zap.Logger
	kind   Kind
	conn   *net.UDPConn
	report *moonerr.Reporter
	queue  chan [][]byte
}

// Dial opens a UDP socket toward clientAddr and applies the DSCP marking
// appropriate for kind.
func Dial(log *zap.Logger, kind Kind, clientAddr *net.UDPAddr, report *moonerr.Reporter) (*Endpoint, error) {
	conn, err := net.DialUDP("udp", nil, clientAddr)
	if err != nil {
		return nil, err
	}

	dscp := dscpAF41
	if kind == KindAudio {
		dscp = dscpEF
	}
	if clientAddr.IP.To4() != nil {
		_ = ipv4.NewConn(conn).SetTOS(dscp)
	} else {
		_ = ipv6.NewConn(conn).SetTrafficClass(dscp)
	}

	name := "video-transport"
	if kind == KindAudio {
		name = "audio-transport"
	}
	return &Endpoint{
		log:    log.Named(name),
		kind:   kind,
		conn:   conn,
		report: report,
		queue:  make(chan [][]byte, sendQueueDepth),
	}, nil
}

// Enqueue submits one unit's worth of datagrams (a frame's FEC shards, or
// one audio packet's worth of RTP datagrams) to the send queue. If the
// queue is already full the oldest queued unit is dropped first, so a
// producer that outruns the socket loses the stale unit rather than adding
// latency: the wire always carries the most recently packetized data.
func (e *Endpoint) Enqueue(batch [][]byte) {
	select {
	case e.queue <- batch:
		return
	default:
	}
	select {
	case <-e.queue:
	default:
	}
	select {
	case e.queue <- batch:
	default:
	}
}

// Run is the endpoint's send task: it drains the queue and writes each
// datagram in order until ctx is done, then drains whatever remains in the
// queue for up to drain before closing the socket.
func (e *Endpoint) Run(ctx context.Context, drain time.Duration) {
	for {
		select {
		case batch := <-e.queue:
			e.sendBatch(ctx, batch)
		case <-ctx.Done():
			e.drainAndClose(drain)
			return
		}
	}
}

func (e *Endpoint) drainAndClose(drain time.Duration) {
	timer := time.NewTimer(drain)
	defer timer.Stop()
	dropped := 0
loop:
	for {
		select {
		case batch := <-e.queue:
			e.sendBatch(context.Background(), batch)
		case <-timer.C:
			dropped = len(e.queue)
			break loop
		default:
			break loop
		}
	}
	if dropped > 0 {
		e.log.Warn("send queue drain deadline hit, closing with data queued", zap.Int("dropped", dropped))
	}
	_ = e.conn.Close()
}

func (e *Endpoint) sendBatch(ctx context.Context, batch [][]byte) {
	for _, payload := range batch {
		_ = e.send(ctx, payload)
	}
}

// send transmits one datagram, retrying transient write failures a bounded
// number of times before classifying the error as a transient-IO condition.
// Repeated failure here is reported but does not by itself tear the
// session down; the queue's overflow policy is what keeps the stream live.
func (e *Endpoint) send(ctx context.Context, payload []byte) error {
	err := retry.Do(
		func() error {
			_, werr := e.conn.Write(payload)
			return werr
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(2*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		re := moonerr.Classify(moonerr.KindTransientIO, "transport", err)
		e.report.Report(re)
		return re
	}
	return nil
}

// ListenDiscovery opens a UDP listener that answers Moonlight's PING
// discovery probe, a fixed magic datagram clients send to verify host
// reachability before RTSP negotiation. It runs until ctx is done.
func ListenDiscovery(ctx context.Context, log *zap.Logger, addr *net.UDPAddr, pingMagic, pongMagic []byte) error {
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 64)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		if n >= len(pingMagic) && bytesEqual(buf[:len(pingMagic)], pingMagic) {
			_, _ = conn.WriteToUDP(pongMagic, from)
		}
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

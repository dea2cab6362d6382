// Package controlchan implements the reliable control channel: an
// ENet-style host endpoint carrying input, loss stats, termination, and
// rumble/LED feedback over a single reliable-UDP connection, with every
// message sealed under AES-128-GCM.
package controlchan

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/codecat/go-enet"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/cryptoutil"
	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
)

// State tracks the control channel's connection lifecycle.
type State int

const (
	StateWaitingForPeer State = iota
	StateConnected
	StateDraining
	StateClosed
)

// PeriodicPingInterval is the cadence of the keepalive ping sent to the
// connected peer.
const PeriodicPingInterval = 100 * time.Millisecond

// gcmFailureWindow and gcmFailureLimit implement the escalation rule: more
// than 16 GCM authentication failures within one second on the control
// channel is a ControlPipelineFailed condition rather than a per-packet
// protocol violation.
const (
	gcmFailureWindow = time.Second
	gcmFailureLimit  = 16
)

// Message is one decoded inbound control message.
type Message struct {
	Type    uint16
	Payload []byte
}

// Channel owns the ENet host/peer pair and the AES-GCM framing around it.
type Channel struct {
	log    *zap.Logger
	report *moonerr.Reporter

	host enet.Host
	peer enet.Peer
	gcm  *cryptoutil.GCMContext
	iv   [8]byte

	clientTimeout time.Duration
	drainGrace    time.Duration

	mu          sync.Mutex
	state       State
	sequence    uint32
	gcmFailures []time.Time
	lastRecv    time.Time

	sched gocron.Scheduler
}

// New creates an ENet host bound to localAddr for one expected peer — a
// session accepts exactly one control connection. clientTimeout bounds how
// long the channel tolerates silence from a connected peer before raising a
// liveness failure; drainGrace bounds how long the Draining state is held
// after a disconnect or termination before the channel closes.
func New(log *zap.Logger, localAddr enet.Address, gcm *cryptoutil.GCMContext, iv [8]byte, clientTimeout, drainGrace time.Duration, report *moonerr.Reporter) (*Channel, error) {
	host, err := enet.NewHost(localAddr, 1, protocol.CtrlChannelCount, 0, 0)
	if err != nil {
		return nil, err
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		host.Destroy()
		return nil, err
	}
	return &Channel{
		log:           log.Named("controlchan"),
		report:        report,
		host:          host,
		gcm:           gcm,
		iv:            iv,
		clientTimeout: clientTimeout,
		drainGrace:    drainGrace,
		sched:         sched,
		state:         StateWaitingForPeer,
	}, nil
}

// Run accepts the single inbound peer, runs the ENet service loop and the
// periodic ping job, and dispatches decoded messages to onMessage until ctx
// is done. fail is invoked once on an unrecoverable protocol failure, on a
// client liveness timeout, when the peer disconnects, or when the peer sends
// a Termination message. A protocol failure carries KindPipelineFailure; the
// other three carry KindClientTermination, and IsClientTimeout picks out the
// liveness timeout among them. Once entered, the Draining state is held for at most drainGrace
// before the channel transitions to Closed and Run returns, giving any
// already-queued reliable sends (acks, the ping the peer is waiting on) a
// chance to flush through the ENet host before the socket goes away.
func (c *Channel) Run(ctx context.Context, onMessage func(Message), fail func(err error)) {
	if _, err := c.sched.NewJob(
		gocron.DurationJob(PeriodicPingInterval),
		gocron.NewTask(func() { c.sendPing() }),
	); err != nil {
		e := moonerr.Classify(moonerr.KindPipelineFailure, "controlchan", err)
		c.report.Report(e)
		fail(e)
		return
	}
	c.sched.Start()
	defer c.sched.Shutdown()
	defer c.host.Destroy()

	c.touchLastRecv()

	var draining bool
	var drainDeadline time.Time

	for {
		if draining {
			if time.Now().After(drainDeadline) {
				c.setState(StateClosed)
				return
			}
		} else {
			select {
			case <-ctx.Done():
				c.setState(StateClosed)
				return
			default:
			}
			if c.StateOf() == StateConnected && time.Since(c.lastRecvAt()) > c.clientTimeout {
				e := moonerr.Classify(moonerr.KindClientTermination, "controlchan", errClientTimedOut)
				c.report.Report(e)
				fail(e)
				draining, drainDeadline = true, time.Now().Add(c.drainGrace)
				c.setState(StateDraining)
			}
		}

		ev := c.host.Service(50)
		switch ev.GetType() {
		case enet.EventConnect:
			c.mu.Lock()
			c.peer = ev.GetPeer()
			c.state = StateConnected
			c.lastRecv = time.Now()
			c.mu.Unlock()
			c.log.Info("control peer connected")
		case enet.EventDisconnect:
			c.log.Info("control peer disconnected")
			if !draining {
				e := moonerr.Classify(moonerr.KindClientTermination, "controlchan", errClientDisconnected)
				c.report.Report(e)
				fail(e)
				draining, drainDeadline = true, time.Now().Add(c.drainGrace)
			}
			c.setState(StateDraining)
		case enet.EventReceive:
			packet := ev.GetPacket()
			msg, ok := c.decode(packet.GetData())
			packet.Destroy()
			c.touchLastRecv()
			if !ok {
				if c.escalateGCMFailure() {
					e := moonerr.Classify(moonerr.KindPipelineFailure, "controlchan", errGCMFloodExceeded)
					c.report.Report(e)
					fail(e)
					return
				}
				continue
			}
			if msg.Type == protocol.MsgTypeTermination {
				if !draining {
					e := moonerr.Classify(moonerr.KindClientTermination, "controlchan", errClientTerminated)
					fail(e)
					draining, drainDeadline = true, time.Now().Add(c.drainGrace)
				}
				c.setState(StateDraining)
				continue
			}
			onMessage(msg)
		}
	}
}

func (c *Channel) touchLastRecv() {
	c.mu.Lock()
	c.lastRecv = time.Now()
	c.mu.Unlock()
}

func (c *Channel) lastRecvAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRecv
}

// Send encodes and reliably transmits payload as message type typ on the
// given ENet channel.
func (c *Channel) Send(channelID uint8, typ uint16, payload []byte) error {
	wire := c.encode(typ, payload)
	packet, err := enet.NewPacket(wire, enet.PacketFlagReliable)
	if err != nil {
		return err
	}
	c.mu.Lock()
	peer := c.peer
	c.mu.Unlock()
	if peer == nil {
		return errNoPeer
	}
	return peer.SendPacket(packet, channelID)
}

func (c *Channel) sendPing() {
	c.mu.Lock()
	seq := c.sequence
	c.sequence++
	c.mu.Unlock()
	if err := c.Send(protocol.CtrlChannelGeneric, protocol.MsgTypePing, []byte{byte(seq)}); err != nil {
		c.log.Debug("ping send failed", zap.Error(err))
	}
}

// gamepadChannel routes a per-controller feedback message onto the ENet
// channel reserved for that controller's slot.
func gamepadChannel(controllerNum uint16) uint8 {
	return uint8(protocol.CtrlChannelGamepadBase + int(controllerNum))
}

// SendRumble pushes low-frequency/high-frequency motor rumble to the
// controller in slot controllerNum. Wire layout (4 reserved bytes, then
// controllerNum/lowFreq/highFreq as little-endian uint16) matches the
// RumbleData message Moonlight clients decode.
func (c *Channel) SendRumble(controllerNum, lowFreq, highFreq uint16) error {
	payload := make([]byte, 10)
	binary.LittleEndian.PutUint16(payload[4:6], controllerNum)
	binary.LittleEndian.PutUint16(payload[6:8], lowFreq)
	binary.LittleEndian.PutUint16(payload[8:10], highFreq)
	return c.Send(gamepadChannel(controllerNum), protocol.MsgTypeRumbleData, payload)
}

// SendRumbleTriggers pushes Xbox-style adaptive trigger rumble to the
// controller in slot controllerNum.
func (c *Channel) SendRumbleTriggers(controllerNum, leftTrigger, rightTrigger uint16) error {
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], controllerNum)
	binary.LittleEndian.PutUint16(payload[2:4], leftTrigger)
	binary.LittleEndian.PutUint16(payload[4:6], rightTrigger)
	return c.Send(gamepadChannel(controllerNum), protocol.MsgTypeRumbleTriggers, payload)
}

// SendMotionEventEnable asks the client to start or stop streaming a
// motion sensor (accelerometer or gyroscope) for the controller in slot
// controllerNum at the given report rate. A reportRateHz of zero disables
// the sensor.
func (c *Channel) SendMotionEventEnable(controllerNum uint16, motionType uint8, reportRateHz uint16) error {
	payload := make([]byte, 5)
	binary.LittleEndian.PutUint16(payload[0:2], controllerNum)
	payload[2] = motionType
	binary.LittleEndian.PutUint16(payload[3:5], reportRateHz)
	channel := uint8(protocol.CtrlChannelSensorBase + int(controllerNum))
	return c.Send(channel, protocol.MsgTypeSetMotionEvent, payload)
}

// SendRGBLED sets the controller's RGB indicator LED, where supported.
func (c *Channel) SendRGBLED(controllerNum uint16, r, g, b byte) error {
	payload := []byte{byte(controllerNum), byte(controllerNum >> 8), r, g, b}
	return c.Send(gamepadChannel(controllerNum), protocol.MsgTypeSetRGBLED, payload)
}

// SendTriggerEffect configures an adaptive-trigger haptic effect (DualSense
// style) on the given trigger mask (bit 0 = left, bit 1 = right).
func (c *Channel) SendTriggerEffect(controllerNum uint16, triggerMask byte, effectType byte, params [6]byte) error {
	payload := make([]byte, 4+len(params))
	binary.LittleEndian.PutUint16(payload[0:2], controllerNum)
	payload[2] = triggerMask
	payload[3] = effectType
	copy(payload[4:], params[:])
	return c.Send(gamepadChannel(controllerNum), protocol.MsgTypeSetAdaptiveTriggers, payload)
}

// SendHDRMode tells the client whether the stream is now carrying HDR
// content.
func (c *Channel) SendHDRMode(enabled bool) error {
	var b byte
	if enabled {
		b = 1
	}
	return c.Send(protocol.CtrlChannelUrgent, protocol.MsgTypeHDRMode, []byte{b})
}

func (c *Channel) encode(typ uint16, payload []byte) []byte {
	c.mu.Lock()
	seq := c.sequence
	c.sequence++
	c.mu.Unlock()

	plaintext := make([]byte, 2+len(payload))
	plaintext[0] = byte(typ)
	plaintext[1] = byte(typ >> 8)
	copy(plaintext[2:], payload)

	nonce := protocol.ControlNonce(c.iv, seq)
	ciphertext, tag := c.gcm.Seal(nonce, plaintext)

	wire := make([]byte, protocol.ControlHeaderSize+len(ciphertext)+len(tag))
	protocol.MarshalControlHeader(wire, uint16(len(ciphertext)+len(tag)), seq)
	copy(wire[protocol.ControlHeaderSize:], ciphertext)
	copy(wire[protocol.ControlHeaderSize+len(ciphertext):], tag)
	return wire
}

func (c *Channel) decode(wire []byte) (Message, bool) {
	ctLen, seq, ok := protocol.UnmarshalControlHeader(wire)
	if !ok || len(wire) < protocol.ControlHeaderSize+int(ctLen) {
		return Message{}, false
	}
	body := wire[protocol.ControlHeaderSize : protocol.ControlHeaderSize+int(ctLen)]
	tagStart := len(body) - 16
	if tagStart < 2 {
		return Message{}, false
	}
	nonce := protocol.ControlNonce(c.iv, seq)
	plaintext, err := c.gcm.Open(nonce, body[:tagStart], body[tagStart:])
	if err != nil {
		return Message{}, false
	}
	typ := uint16(plaintext[0]) | uint16(plaintext[1])<<8
	return Message{Type: typ, Payload: plaintext[2:]}, true
}

// escalateGCMFailure records a GCM auth failure and reports whether the
// rolling-window failure count has crossed the flood threshold.
func (c *Channel) escalateGCMFailure() bool {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gcmFailures = append(c.gcmFailures, now)
	cutoff := now.Add(-gcmFailureWindow)
	kept := c.gcmFailures[:0]
	for _, t := range c.gcmFailures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	c.gcmFailures = kept
	return len(c.gcmFailures) > gcmFailureLimit
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// StateOf returns the channel's current connection state.
func (c *Channel) StateOf() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

type controlError string

func (e controlError) Error() string { return string(e) }

const (
	errNoPeer           = controlError("controlchan: no connected peer")
	errGCMFloodExceeded = controlError("controlchan: GCM authentication failure flood")
	errClientTerminated = controlError("controlchan: peer sent Termination")
	errClientTimedOut   = controlError("controlchan: no inbound packet within client timeout")
)

const errClientDisconnected = controlError("controlchan: peer disconnected")

// IsClientTimeout reports whether err was raised because the connected
// peer went silent past the configured client timeout, as opposed to
// sending an explicit Termination message.
func IsClientTimeout(err error) bool {
	return errors.Is(err, errClientTimedOut)
}

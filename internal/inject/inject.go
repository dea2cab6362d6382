// Package inject implements the input injector: decodes input packets
// carried over the control channel's InputData messages and drives a
// virtual keyboard, a virtual pointer, and up to four virtual gamepads.
package inject

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/bnema/wayland-virtual-input-go/virtual_keyboard"
	"github.com/bnema/wayland-virtual-input-go/virtual_pointer"
	"go.uber.org/zap"

	"github.com/moonshine-stream/moonshine/internal/moonerr"
	"github.com/moonshine-stream/moonshine/internal/protocol"
)

const maxControllers = 4

// GamepadState is one full input report for a virtual gamepad.
type GamepadState struct {
	Buttons                  uint32
	LeftTrigger, RightTrigger byte
	LeftStickX, LeftStickY    int16
	RightStickX, RightStickY  int16
}

// Gamepad is the device-side interface a virtual controller backend must
// implement. The Wayland virtual-input library this package otherwise
// relies on for keyboard and pointer devices has no gamepad surface, so
// the concrete backend is supplied by the outer program, the same way
// capture.Source and videnc.Encoder are: this package owns protocol
// decoding and slot bookkeeping, not the device binding.
type Gamepad interface {
	SetState(GamepadState) error
	SetTouch(pointerID uint32, x, y float32) error
	SetMotion(motionType uint8, x, y, z float32) error
	SetBattery(state, percent byte) error
	Close() error
}

// GamepadFactory constructs a Gamepad backend for a newly reported
// controller slot of the given kind.
type GamepadFactory func(kind protocol.ControllerKind) (Gamepad, error)

// Injector owns one virtual keyboard, one virtual pointer, and a pool of
// up to four virtual gamepads.
type Injector struct {
	log    *zap.Logger
	report *moonerr.Reporter

	keyboard *virtual_keyboard.VirtualKeyboard
	pointer  *virtual_pointer.VirtualPointer

	newGamepad GamepadFactory

	screenWidth, screenHeight int

	mu            sync.Mutex
	pointerX      float64
	pointerY      float64
	posInitialized bool

	controllers [maxControllers]Gamepad
	kinds       [maxControllers]protocol.ControllerKind
	present     [maxControllers]bool
}

// New constructs an Injector with a fresh virtual keyboard and pointer.
// screenWidth/screenHeight are the capture resolution, used to convert
// absolute pointer/touch coordinates into the relative deltas the Wayland
// virtual pointer protocol requires. newGamepad may be nil, in which case
// controller input is decoded but silently has no device effect.
func New(log *zap.Logger, report *moonerr.Reporter, keyboardMgr *virtual_keyboard.VirtualKeyboardManager, pointerMgr *virtual_pointer.VirtualPointerManager, screenWidth, screenHeight int, newGamepad GamepadFactory) (*Injector, error) {
	kb, err := keyboardMgr.CreateKeyboard()
	if err != nil {
		return nil, err
	}
	ptr, err := pointerMgr.CreatePointer()
	if err != nil {
		return nil, err
	}
	return &Injector{
		log:          log.Named("inject"),
		report:       report,
		keyboard:     kb,
		pointer:      ptr,
		newGamepad:   newGamepad,
		screenWidth:  screenWidth,
		screenHeight: screenHeight,
		pointerX:     float64(screenWidth) / 2,
		pointerY:     float64(screenHeight) / 2,
	}, nil
}

// Dispatch decodes one InputData payload and applies it to the appropriate
// virtual device. Unrecognized magic numbers are logged and ignored rather
// than treated as protocol violations, since a client dialect may send
// subtypes a given host build doesn't yet model. Mouse button and scroll
// events are matched on their Gen5 magic numbers only; the pre-Gen5 values
// for those events coincide with other Gen5 magics and are decoded as those.
func (inj *Injector) Dispatch(payload []byte) {
	if len(payload) < 4 {
		return
	}
	magic := binary.LittleEndian.Uint32(payload[0:4])
	body := payload[4:]

	switch magic {
	case protocol.KeyboardMagicDown, protocol.KeyboardMagicUp:
		inj.handleKeyboard(magic, body)
	case protocol.MouseMoveRelMagic, protocol.MouseMoveRelMagicGen5:
		inj.handleMouseMoveRel(body)
	case protocol.MouseMoveAbsMagic:
		inj.handleMouseMoveAbs(body)
	case protocol.MouseButtonDownGen5:
		inj.handleMouseButton(body, true)
	case protocol.MouseButtonUpGen5:
		inj.handleMouseButton(body, false)
	case protocol.ScrollMagicGen5, protocol.SSHScrollMagic:
		inj.handleScroll(body)
	case protocol.ControllerMagic, protocol.MultiControllerMagic, protocol.MultiControllerMagicGen5:
		inj.handleController(body)
	case protocol.SSControllerArrivalMagic:
		inj.handleControllerArrival(body)
	case protocol.SSControllerRemovalMagic:
		inj.handleControllerRemoval(body)
	case protocol.SSControllerTouchMagic:
		inj.handleControllerTouch(body)
	case protocol.SSControllerMotionMagic:
		inj.handleControllerMotion(body)
	case protocol.SSControllerBatteryMagic:
		inj.handleControllerBattery(body)
	case protocol.SSTouchMagic:
		inj.handleTouch(body)
	case protocol.SSPenMagic:
		inj.handlePen(body)
	case protocol.UTF8TextEventMagic:
		inj.handleUTF8Text(body)
	default:
		inj.log.Debug("unrecognized input magic, ignoring", zap.Uint32("magic", magic))
	}
}

func (inj *Injector) handleKeyboard(magic uint32, body []byte) {
	if len(body) < 4 {
		return
	}
	vk := binary.LittleEndian.Uint16(body[0:2])
	evdev := vkToEvdevCode(vk)
	if evdev == 0 {
		inj.log.Debug("no evdev mapping for vk code", zap.Uint16("vk", vk))
		return
	}
	state := virtual_keyboard.KeyStateReleased
	if magic == protocol.KeyboardMagicDown {
		state = virtual_keyboard.KeyStatePressed
	}
	if err := inj.keyboard.Key(time.Now(), uint32(evdev), state); err != nil {
		inj.reportErr("keyboard send failed", err)
	}
}

func (inj *Injector) handleMouseMoveRel(body []byte) {
	if len(body) < 4 {
		return
	}
	dx := int16(binary.BigEndian.Uint16(body[0:2]))
	dy := int16(binary.BigEndian.Uint16(body[2:4]))
	inj.moveRelative(float64(dx), float64(dy))
}

func (inj *Injector) handleMouseMoveAbs(body []byte) {
	if len(body) < 8 {
		return
	}
	x := binary.BigEndian.Uint16(body[0:2])
	y := binary.BigEndian.Uint16(body[2:4])
	width := binary.BigEndian.Uint16(body[4:6])
	height := binary.BigEndian.Uint16(body[6:8])
	if width == 0 || height == 0 {
		return
	}
	inj.moveAbsoluteNormalized(float64(x)/float64(width), float64(y)/float64(height))
}

func (inj *Injector) handleMouseButton(body []byte, down bool) {
	if len(body) < 1 {
		return
	}
	btn := mapMouseButton(body[0])
	state := virtual_pointer.BUTTON_STATE_RELEASED
	if down {
		state = virtual_pointer.BUTTON_STATE_PRESSED
	}
	inj.pointer.Button(time.Now(), btn, state)
	inj.pointer.Frame()
}

func (inj *Injector) handleScroll(body []byte) {
	if len(body) < 2 {
		return
	}
	delta := int16(binary.BigEndian.Uint16(body[0:2]))
	inj.pointer.ScrollVertical(float64(delta) / protocol.WheelDelta)
	inj.pointer.Frame()
}

// moveRelative applies a relative pointer delta and keeps the tracked
// absolute position (used to turn later absolute moves into deltas) in
// sync, clamped to the capture resolution.
func (inj *Injector) moveRelative(dx, dy float64) {
	inj.mu.Lock()
	inj.pointerX = clamp(inj.pointerX+dx, 0, float64(inj.screenWidth-1))
	inj.pointerY = clamp(inj.pointerY+dy, 0, float64(inj.screenHeight-1))
	inj.posInitialized = true
	inj.mu.Unlock()
	inj.pointer.MoveRelative(dx, dy)
}

// moveAbsoluteNormalized moves the pointer to a normalized [0,1] position,
// translating to a relative delta since the Wayland virtual pointer
// protocol has no absolute positioning.
func (inj *Injector) moveAbsoluteNormalized(x, y float64) {
	targetX := x * float64(inj.screenWidth)
	targetY := y * float64(inj.screenHeight)

	inj.mu.Lock()
	if !inj.posInitialized {
		inj.pointerX = float64(inj.screenWidth) / 2
		inj.pointerY = float64(inj.screenHeight) / 2
		inj.posInitialized = true
	}
	dx := targetX - inj.pointerX
	dy := targetY - inj.pointerY
	inj.pointerX = targetX
	inj.pointerY = targetY
	inj.mu.Unlock()

	if dx != 0 || dy != 0 {
		inj.pointer.MoveRelative(dx, dy)
	}
}

func (inj *Injector) handleController(body []byte) {
	if len(body) < 2 {
		return
	}
	idx := int(body[0])
	if idx >= maxControllers {
		return
	}
	pad := inj.ensureController(idx, protocol.ControllerKindUnknown)
	if pad == nil || len(body) < 19 {
		return
	}
	buttons := binary.LittleEndian.Uint32(body[1:5])
	leftTrigger := body[5]
	rightTrigger := body[6]
	leftX := int16(binary.LittleEndian.Uint16(body[7:9]))
	leftY := int16(binary.LittleEndian.Uint16(body[9:11]))
	rightX := int16(binary.LittleEndian.Uint16(body[11:13]))
	rightY := int16(binary.LittleEndian.Uint16(body[13:15]))
	if err := pad.SetState(GamepadState{
		Buttons:     buttons,
		LeftTrigger: leftTrigger, RightTrigger: rightTrigger,
		LeftStickX: leftX, LeftStickY: leftY,
		RightStickX: rightX, RightStickY: rightY,
	}); err != nil {
		inj.reportErr("controller state failed", err)
	}
}

func (inj *Injector) handleControllerArrival(body []byte) {
	if len(body) < 2 {
		return
	}
	idx := int(body[0])
	if idx >= maxControllers {
		return
	}
	kind := protocol.ControllerKind(body[1])
	inj.ensureController(idx, kind)
}

func (inj *Injector) handleControllerRemoval(body []byte) {
	if len(body) < 1 {
		return
	}
	idx := int(body[0])
	if idx >= maxControllers {
		return
	}
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.present[idx] {
		if err := inj.controllers[idx].Close(); err != nil {
			inj.log.Debug("gamepad close failed", zap.Error(err))
		}
		inj.present[idx] = false
	}
}

// handleControllerTouch applies a per-controller touchpad contact (e.g. a
// DualSense touchpad). Wire layout: idx, eventType, 2 reserved bytes,
// pointerID (LE uint32), x and y as netfloats.
func (inj *Injector) handleControllerTouch(body []byte) {
	if len(body) < 16 {
		return
	}
	idx := int(body[0])
	if idx >= maxControllers {
		return
	}
	pad := inj.existingController(idx)
	if pad == nil {
		return
	}
	pointerID := binary.LittleEndian.Uint32(body[4:8])
	x := protocol.NetfloatToFloat([4]byte(body[8:12]))
	y := protocol.NetfloatToFloat([4]byte(body[12:16]))
	if err := pad.SetTouch(pointerID, x, y); err != nil {
		inj.reportErr("controller touch failed", err)
	}
}

// handleControllerMotion applies a per-controller motion sensor (gyro or
// accelerometer) sample. Wire layout: idx, motionType, 2 reserved bytes,
// x/y/z as netfloats.
func (inj *Injector) handleControllerMotion(body []byte) {
	if len(body) < 16 {
		return
	}
	idx := int(body[0])
	if idx >= maxControllers {
		return
	}
	pad := inj.existingController(idx)
	if pad == nil {
		return
	}
	motionType := body[1]
	x := protocol.NetfloatToFloat([4]byte(body[4:8]))
	y := protocol.NetfloatToFloat([4]byte(body[8:12]))
	z := protocol.NetfloatToFloat([4]byte(body[12:16]))
	if err := pad.SetMotion(motionType, x, y, z); err != nil {
		inj.reportErr("controller motion failed", err)
	}
}

// handleControllerBattery applies a battery status report. Wire layout:
// idx, batteryState, percentage.
func (inj *Injector) handleControllerBattery(body []byte) {
	if len(body) < 3 {
		return
	}
	idx := int(body[0])
	if idx >= maxControllers {
		return
	}
	pad := inj.existingController(idx)
	if pad == nil {
		return
	}
	if err := pad.SetBattery(body[1], body[2]); err != nil {
		inj.reportErr("controller battery failed", err)
	}
}

func (inj *Injector) handleTouch(body []byte) {
	if len(body) < 9 {
		return
	}
	x := protocol.NetfloatToFloat([4]byte(body[1:5]))
	y := protocol.NetfloatToFloat([4]byte(body[5:9]))
	inj.moveAbsoluteNormalized(float64(x), float64(y))
}

func (inj *Injector) handlePen(body []byte) {
	if len(body) < 9 {
		return
	}
	x := protocol.NetfloatToFloat([4]byte(body[1:5]))
	y := protocol.NetfloatToFloat([4]byte(body[5:9]))
	inj.moveAbsoluteNormalized(float64(x), float64(y))
}

// handleUTF8Text is a no-op: the Wayland virtual keyboard protocol only
// exposes evdev key press/release, with no text-commit path, so UTF-8
// text events have no device-level equivalent on this backend.
func (inj *Injector) handleUTF8Text(body []byte) {
	inj.log.Debug("utf8 text injection unsupported on this keyboard backend", zap.Int("len", len(body)))
}

// ensureController returns the gamepad occupying slot idx, creating one of
// kind if the slot is empty. If the slot already holds a gamepad of a
// different kind, it is closed and replaced — a controller swap reported
// at the same slot never leaks the old device. kind is only used to decide
// re-typing; ControllerKindUnknown (from a plain state update, as opposed
// to an arrival) never triggers a swap of an existing device.
func (inj *Injector) ensureController(idx int, kind protocol.ControllerKind) Gamepad {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if inj.present[idx] {
		if kind == protocol.ControllerKindUnknown || inj.kinds[idx] == kind {
			return inj.controllers[idx]
		}
		if err := inj.controllers[idx].Close(); err != nil {
			inj.log.Debug("gamepad close during re-type failed", zap.Error(err))
		}
		inj.present[idx] = false
	}
	if inj.newGamepad == nil {
		return nil
	}
	pad, err := inj.newGamepad(kind)
	if err != nil {
		inj.reportErrLocked("gamepad creation failed", err)
		return nil
	}
	inj.controllers[idx] = pad
	inj.kinds[idx] = kind
	inj.present[idx] = true
	return pad
}

func (inj *Injector) existingController(idx int) Gamepad {
	inj.mu.Lock()
	defer inj.mu.Unlock()
	if !inj.present[idx] {
		return nil
	}
	return inj.controllers[idx]
}

func mapMouseButton(b byte) uint32 {
	switch b {
	case protocol.MouseButtonLeft:
		return virtual_pointer.BTN_LEFT
	case protocol.MouseButtonRight:
		return virtual_pointer.BTN_RIGHT
	case protocol.MouseButtonMiddle:
		return virtual_pointer.BTN_MIDDLE
	default:
		return virtual_pointer.BTN_LEFT
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (inj *Injector) reportErr(msg string, err error) {
	e := moonerr.Classify(moonerr.KindTransientIO, "inject", err)
	inj.report.Report(e)
	inj.log.Debug(msg, zap.Error(err))
}

func (inj *Injector) reportErrLocked(msg string, err error) {
	e := moonerr.Classify(moonerr.KindTransientIO, "inject", err)
	inj.report.Report(e)
	inj.log.Debug(msg, zap.Error(err))
}

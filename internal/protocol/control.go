package protocol

// Control message type tags, bit-identical to Moonlight protocol >= v5.
const (
	MsgTypeStartA                = 0x0305
	MsgTypeStartB                = 0x0307
	MsgTypeInvalidateRefFrames   = 0x0301
	MsgTypeRequestIDR            = 0x0302
	MsgTypeLossStats             = 0x0201
	MsgTypeFrameStats            = 0x0204
	MsgTypeInputData             = 0x0206
	MsgTypePing                  = 0x0200
	MsgTypeTermination           = 0x0109
	MsgTypeRumbleData            = 0x010b
	MsgTypeHDRMode               = 0x010e
	MsgTypeRumbleTriggers        = 0x5500
	MsgTypeSetMotionEvent        = 0x5501
	MsgTypeSetRGBLED             = 0x5502
	MsgTypeSetAdaptiveTriggers   = 0x5503
)

// Input packet magic numbers identifying each input event's wire shape.
const (
	KeyboardMagicDown = 0x03
	KeyboardMagicUp   = 0x04

	MouseMoveRelMagic     = 0x06
	MouseMoveRelMagicGen5 = 0x07
	MouseMoveAbsMagic     = 0x05
	MouseButtonDownMagic  = 0x07
	MouseButtonUpMagic    = 0x08
	MouseButtonDownGen5   = 0x08
	MouseButtonUpGen5     = 0x09

	ScrollMagic     = 0x09
	ScrollMagicGen5 = 0x0A

	ControllerMagic          = 0x0d
	MultiControllerMagic     = 0x0e
	MultiControllerMagicGen5 = 0x1e

	EnableHapticsMagic = 0x55
	UTF8TextEventMagic = 0x56

	SSHScrollMagic           = 0x57
	SSTouchMagic             = 0x58
	SSPenMagic               = 0x59
	SSControllerArrivalMagic = 0x5a
	SSControllerTouchMagic   = 0x5b
	SSControllerMotionMagic  = 0x5c
	SSControllerBatteryMagic = 0x5d
	SSControllerRemovalMagic = 0x5e
)

// Control channel IDs (ENet channels).
const (
	CtrlChannelGeneric     = 0
	CtrlChannelUrgent      = 1
	CtrlChannelKeyboard    = 2
	CtrlChannelMouse       = 3
	CtrlChannelGamepadBase = 4
	CtrlChannelSensorBase  = 20
	CtrlChannelTouch       = 36
	CtrlChannelPen         = 37
	CtrlChannelUTF8        = 38
	CtrlChannelCount       = 39
)

// Key/mouse/controller constants.
const (
	KeyActionDown = 0x03
	KeyActionUp   = 0x04

	ModifierShift = 0x01
	ModifierCtrl  = 0x02
	ModifierAlt   = 0x04
	ModifierMeta  = 0x08

	MouseButtonLeft   = 0x01
	MouseButtonMiddle = 0x02
	MouseButtonRight  = 0x03
	MouseButtonX1     = 0x04
	MouseButtonX2     = 0x05
)

// ControllerKind identifies the reported gamepad type for ControllerArrival.
type ControllerKind uint8

const (
	ControllerKindUnknown ControllerKind = iota
	ControllerKindXbox
	ControllerKindPS
	ControllerKindNintendo
)

// Button flags, ported from moonlight-common-go/types.go.
const (
	ButtonUp          = 0x0001
	ButtonDown        = 0x0002
	ButtonLeft        = 0x0004
	ButtonRight       = 0x0008
	ButtonStart       = 0x0010
	ButtonBack        = 0x0020
	ButtonLeftStick   = 0x0040
	ButtonRightStick  = 0x0080
	ButtonLeftBumper  = 0x0100
	ButtonRightBumper = 0x0200
	ButtonHome        = 0x0400
	ButtonA           = 0x1000
	ButtonB           = 0x2000
	ButtonX           = 0x4000
	ButtonY           = 0x8000

	ButtonMisc     = 0x010000
	ButtonPaddle1  = 0x020000
	ButtonPaddle2  = 0x040000
	ButtonPaddle3  = 0x080000
	ButtonPaddle4  = 0x100000
	ButtonTouchpad = 0x200000
)

// WheelDelta matches Windows WHEEL_DELTA, used to interpret scroll units.
const WheelDelta = 120

package sio2

import "log/slog"

// PadButton indexes the DualShock button bitmask. A zero bit means
// pressed.
type PadButton uint

const (
	ButtonSelect PadButton = iota
	ButtonL3
	ButtonR3
	ButtonStart
	ButtonUp
	ButtonRight
	ButtonDown
	ButtonLeft
	ButtonL2
	ButtonR2
	ButtonL1
	ButtonR1
	ButtonTriangle
	ButtonCircle
	ButtonCross
	ButtonSquare
)

// DualShock command set (the 0x40..0x4F range).
const (
	padSetVrefParam   = 0x40
	padQueryButtonMask = 0x41
	padReadData       = 0x42
	padConfigMode     = 0x43
	padSetMainMode    = 0x44
	padQueryModel     = 0x45
	padQueryAct       = 0x46
	padQueryComb      = 0x47
	padQueryMode      = 0x4c
	padSetActAlign    = 0x4d
	padSetButtonInfo  = 0x4f
)

// Pad modes reported in the reply header.
const (
	ModeDigital uint8 = 0
	ModeAnalog  uint8 = 1
)

// Gamepad emulates a DualShock controller on the SIO2 byte protocol:
// a fixed three-byte header followed by a per-command reply buffer, with
// hooks that patch the buffer from bytes later in the command chain.
type Gamepad struct {
	Mode    uint8
	Buttons uint16

	responses  [16][18]uint8
	written    int
	customByte int
	response   func(byte uint8)
	command    uint8
	configMode bool
}

func NewGamepad() *Gamepad {
	g := &Gamepad{
		Buttons:    0xffff,
		customByte: -1,
	}
	g.responses[padQueryModel&0xf] = [18]uint8{0x03, 0x02, 0x00, 0x02, 0x01, 0x00}
	g.responses[padQueryComb&0xf] = [18]uint8{0x00, 0x00, 0x02, 0x00, 0x01, 0x00}
	return g
}

// Press clears a button bit.
func (g *Gamepad) Press(b PadButton) {
	g.Buttons &^= 1 << b
}

// Release sets a button bit.
func (g *Gamepad) Release(b PadButton) {
	g.Buttons |= 1 << b
}

// BeginTransfer resets the byte pointer for a new command chain.
func (g *Gamepad) BeginTransfer() {
	g.written = 0
}

// WriteByte feeds one command byte and returns the pad's reply byte.
func (g *Gamepad) WriteByte(b uint8) uint8 {
	g.written++
	if g.written == g.customByte {
		g.customByte = -1
		g.response(b)
	} else {
		switch g.written {
		case 1:
			return 0xff
		case 2:
			return g.processCommand(b)
		case 3:
			return 0x5a
		}
	}

	offset := g.written - 4
	return g.responses[g.command&0xf][offset]
}

// setResponse arms a patch hook for a later byte of the chain.
func (g *Gamepad) setResponse(byteID int, resp func(uint8)) {
	g.customByte = byteID + 1
	g.response = resp
}

func (g *Gamepad) processCommand(cmd uint8) uint8 {
	if !g.configMode && cmd != padConfigMode && cmd != padReadData {
		slog.Warn("pad command outside config mode", "cmd", cmd)
		return 0xf3
	}

	g.command = cmd
	reply := uint8(0xf3)
	switch cmd {
	case padReadData:
		g.setResponse(3, g.readButtons)
		reply = g.modeHeader()
	case padConfigMode:
		g.setResponse(3, g.setConfig)
		reply = g.modeHeader()
	case padSetMainMode:
		g.setResponse(3, g.switchMode)
	case padQueryModel:
		g.responses[padQueryModel&0xf][2] = g.Mode
	case padQueryAct:
		g.setResponse(3, g.queryAct)
	case padQueryComb:
	default:
		slog.Warn("unknown pad command", "cmd", cmd)
	}
	return reply
}

func (g *Gamepad) modeHeader() uint8 {
	if g.Mode == ModeDigital {
		return 0x41
	}
	return 0x73
}

func (g *Gamepad) switchMode(m uint8) {
	g.Mode = m & 1
}

// readButtons streams the button state into the reply buffer, one byte
// per chained call.
func (g *Gamepad) readButtons(uint8) {
	offset := g.written - 4
	g.responses[g.command&0xf][offset] = uint8(g.Buttons >> (uint(offset) * 8))
	g.setResponse(4, g.readButtons)
}

func (g *Gamepad) setConfig(value uint8) {
	if !g.configMode {
		// Outside config mode, 0x43 reads like 0x42.
		g.readButtons(value)
	} else {
		g.responses[g.command&0xf][0] = 0
		g.responses[g.command&0xf][1] = 0
	}
	g.configMode = value != 0
}

func (g *Gamepad) queryAct(half uint8) {
	constants := [2][6]uint8{
		{0x0, 0x0, 0x0, 0x2, 0x0, 0xa},
		{0x0, 0x0, 0x0, 0x0, 0x0, 0x14},
	}
	copy(g.responses[g.command&0xf][:6], constants[half&1][:])
}

// Package sio2 implements the SIO2 serial peripheral bridge and the
// DualShock gamepad behind it.
package sio2

import (
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bus"
)

// Peripheral selectors, from the first byte of a command chain.
const (
	peripheralNone       = 0x00
	peripheralController = 0x01
	peripheralMemCard    = 0x81
)

// SIO2 decodes the SEND registers and FIFOIN command stream, routing
// bytes to the selected peripheral and queueing replies in FIFOOUT.
type SIO2 struct {
	Send3 [16]uint32
	Send1 [4]uint32
	Send2 [4]uint32
	Ctrl  uint32

	fifoOut []uint8

	// Command chain state.
	cmdIndex int
	cmdSize  uint32
	device   uint8

	Pad *Gamepad

	// raiseIRQ signals the IOP SIO2 interrupt line.
	raiseIRQ func()
}

func New(b *bus.Bus, raiseIRQ func()) *SIO2 {
	s := &SIO2{Pad: NewGamepad(), raiseIRQ: raiseIRQ}
	b.Register(0x1f808200, bus.Handler{
		Read32:  s.read,
		Write32: s.write,
		Write8:  func(addr uint32, v uint8) { s.write(addr, uint32(v)) },
		Read8:   func(addr uint32) uint8 { return uint8(s.read(addr)) },
	})
	return s
}

func (s *SIO2) read(addr uint32) uint32 {
	switch addr & 0xff {
	case 0x64:
		return uint32(s.readFIFO())
	case 0x68:
		return s.Ctrl
	case 0x6c:
		// Connection status: a pad is always present.
		return 0x0d102
	case 0x70:
		return 0xf
	case 0x74:
		return 0
	default:
		slog.Warn("read from unknown SIO2 register", "addr", addr)
		return 0
	}
}

func (s *SIO2) write(addr uint32, data uint32) {
	switch off := addr & 0xff; {
	case off < 0x40:
		s.Send3[off/4] = data
	case off < 0x60:
		// Bit 2 of the address selects SEND2 over SEND1.
		idx := int(addr&0x1f) / 8
		if addr&0x4 != 0 {
			s.Send2[idx] = data
		} else {
			s.Send1[idx] = data
		}
	case off == 0x60:
		s.uploadCommand(uint8(data))
	case off == 0x68:
		s.Ctrl = data
		if data&0x1 != 0 {
			// Transfers complete instantly; acknowledge with an
			// interrupt and drop the start bit.
			s.raiseIRQ()
			s.Ctrl &^= 0x1
		}
		if data&0xc != 0 {
			s.cmdIndex = 0
			s.cmdSize = 0
			s.device = peripheralNone
		}
	default:
		slog.Warn("write to unknown SIO2 register", "addr", addr, "value", data)
	}
}

// uploadCommand feeds one FIFOIN byte into the active command chain.
func (s *SIO2) uploadCommand(cmd uint8) {
	justStarted := false
	if s.cmdSize == 0 {
		params := s.Send3[s.cmdIndex]
		if params == 0 {
			slog.Warn("SIO2 command with empty SEND3 slot", "index", s.cmdIndex)
			return
		}
		s.cmdSize = params >> 8 & 0x1ff
		s.cmdIndex++
		s.device = cmd
		justStarted = true
	}
	s.cmdSize--

	switch s.device {
	case peripheralController:
		if justStarted {
			s.Pad.BeginTransfer()
		}
		s.fifoOut = append(s.fifoOut, s.Pad.WriteByte(cmd))
	case peripheralMemCard:
		// No card inserted.
		s.fifoOut = append(s.fifoOut, 0xff)
	default:
		s.fifoOut = append(s.fifoOut, 0xff)
	}
}

func (s *SIO2) readFIFO() uint8 {
	if len(s.fifoOut) == 0 {
		return 0xff
	}
	v := s.fifoOut[0]
	s.fifoOut = s.fifoOut[1:]
	return v
}

// Package vif implements the vector interface units: stream decoders that
// move VIFcode-driven data into VU memory.
package vif

import (
	"fmt"
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bit"
	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/vu"
)

// VIFcode opcodes (top byte of the command word, interrupt bit masked).
const (
	cmdNOP      = 0x00
	cmdSTCYCL   = 0x01
	cmdOFFSET   = 0x02
	cmdBASE     = 0x03
	cmdITOP     = 0x04
	cmdSTMOD    = 0x05
	cmdMSKPATH3 = 0x06
	cmdMARK     = 0x07
	cmdFLUSHE   = 0x10
	cmdFLUSH    = 0x11
	cmdFLUSHA   = 0x13
	cmdMSCAL    = 0x14
	cmdMSCALF   = 0x15
	cmdMSCNT    = 0x17
	cmdSTMASK   = 0x20
	cmdSTROW    = 0x30
	cmdSTCOL    = 0x31
	cmdMPG      = 0x4a
	cmdDIRECT   = 0x50
	cmdDIRECTHL = 0x51

	unpackStart = 0x60
	unpackEnd   = 0x7f
)

// writeMode selects how UNPACK walks VU memory.
type writeMode int

const (
	skipping writeMode = iota
	filling
)

// The FIFO holds 64 quadwords, tracked in words.
const fifoCapWords = 256

// VIF is one of the two vector interface units. VIF1 additionally owns
// the double-buffering registers (BASE/OFST/TOPS).
type VIF struct {
	ID int

	Status uint32
	Err    uint32
	Mark   uint32
	Mode   uint32
	Num    uint32
	Mask   uint32

	CycleCL uint32
	CycleWL uint32

	Base uint32
	Ofst uint32
	Tops uint32
	ITop uint32
	Top  uint32

	Row [4]uint32
	Col [4]uint32

	fifo []uint32

	// Decoder state for the in-flight command.
	command        uint32
	subpacketCount uint32
	address        uint32
	qwordsWritten  uint32
	wordCycles     uint32
	mode           writeMode

	unit *vu.Unit
}

// New wires a VIF to its vector unit and registers its MMIO windows:
// the register block at 0x10003800|id<<10 and the FIFO at 0x10004000|id<<12.
func New(id int, unit *vu.Unit, b *bus.Bus) *VIF {
	v := &VIF{ID: id, unit: unit, CycleCL: 1, CycleWL: 1}

	b.Register(0x10003800|uint32(id)<<10, bus.Handler{Read32: v.readReg, Write32: v.writeReg})
	b.Register(0x10004000|uint32(id)<<12, bus.Handler{
		Write128: func(_ uint32, q bit.U128) { v.WriteFIFO128(q) },
		Write32:  func(_ uint32, w uint32) { v.WriteFIFO32(w) },
	})
	return v
}

// Reset clears every register and the FIFO.
func (v *VIF) Reset() {
	*v = VIF{ID: v.ID, unit: v.unit, CycleCL: 1, CycleWL: 1}
}

// WriteFIFO32 pushes one word; reports false when the FIFO is full.
func (v *VIF) WriteFIFO32(w uint32) bool {
	if len(v.fifo)+1 > fifoCapWords {
		return false
	}
	v.fifo = append(v.fifo, w)
	return true
}

// WriteFIFO64 pushes a doubleword (a DMAtag's transfer_tag payload).
func (v *VIF) WriteFIFO64(d uint64) bool {
	if len(v.fifo)+2 > fifoCapWords {
		return false
	}
	v.fifo = append(v.fifo, uint32(d), uint32(d>>32))
	return true
}

// WriteFIFO128 pushes a quadword; reports false when the FIFO is full.
func (v *VIF) WriteFIFO128(q bit.U128) bool {
	if len(v.fifo)+4 > fifoCapWords {
		return false
	}
	v.fifo = append(v.fifo, q.Word(0), q.Word(1), q.Word(2), q.Word(3))
	return true
}

func (v *VIF) readReg(addr uint32) uint32 {
	switch addr >> 4 & 0xf {
	case 0:
		// FIFO count is reported in quadwords.
		return v.Status&^uint32(0x1f<<24) | uint32(len(v.fifo)/4)<<24
	case 2:
		return v.Err
	case 3:
		return v.Mark
	case 4:
		return v.CycleWL<<8 | v.CycleCL
	case 5:
		return v.Mode
	case 6:
		return v.Num
	case 7:
		return v.Mask
	default:
		slog.Warn("read from unhandled VIF register", "vif", v.ID, "addr", addr)
		return 0
	}
}

func (v *VIF) writeReg(addr uint32, data uint32) {
	switch addr >> 4 & 0xf {
	case 0:
		// Only the FIFO-detection bit of STAT is writable.
		v.Status = v.Status&^uint32(1<<23) | data&(1<<23)
	case 1:
		if data&1 != 0 {
			v.Reset()
		}
	case 2:
		v.Err = data
	case 3:
		v.Mark = data
		v.Status &^= 1 << 6
	default:
		slog.Warn("write to unhandled VIF register", "vif", v.ID, "addr", addr, "value", data)
	}
}

// Tick advances the decoder by up to cycles*4 words.
func (v *VIF) Tick(cycles uint32) {
	v.wordCycles = cycles * 4
	for len(v.fifo) > 0 && v.wordCycles > 0 {
		v.wordCycles--
		if v.subpacketCount == 0 {
			if !v.processCommand() {
				return
			}
		} else if !v.executeCommand() {
			return
		}
	}
}

func (v *VIF) pop() uint32 {
	w := v.fifo[0]
	v.fifo = v.fifo[1:]
	return w
}

// processCommand consumes one VIFcode and latches decoder state for any
// payload that follows.
func (v *VIF) processCommand() bool {
	v.command = v.pop()
	imm := v.command & 0xffff
	num := v.command >> 16 & 0xff
	code := v.command >> 24 & 0x7f

	switch {
	case code == cmdNOP:
	case code == cmdSTCYCL:
		v.CycleCL = imm & 0xff
		v.CycleWL = imm >> 8 & 0xff
	case code == cmdOFFSET:
		v.Ofst = imm & 0x3ff
		v.Status &^= 1 << 7
		v.Base = v.Tops
	case code == cmdBASE:
		v.Base = imm & 0x3ff
	case code == cmdITOP:
		v.ITop = imm & 0x3ff
	case code == cmdSTMOD:
		v.Mode = imm & 0x3
	case code == cmdMSKPATH3:
		// PATH3 masking is advisory; the GIF ignores it.
	case code == cmdMARK:
		v.Mark = imm
	case code == cmdFLUSHE, code == cmdFLUSH, code == cmdFLUSHA:
		// Microprograms complete instantly, nothing to wait on.
	case code == cmdMSCAL, code == cmdMSCALF, code == cmdMSCNT:
		// VU micro execution is not modeled in macro-only operation.
		slog.Debug("VIF microprogram start ignored", "vif", v.ID, "code", code)
	case code == cmdSTMASK:
		v.subpacketCount = 1
	case code == cmdSTROW, code == cmdSTCOL:
		v.subpacketCount = 4
	case code == cmdMPG:
		// NUM counts doublewords for instruction transfers.
		if num == 0 {
			num = 256
		}
		v.subpacketCount = num * 2
		v.address = imm * 8
	case code >= unpackStart && code <= unpackEnd:
		v.startUnpack(imm, num)
	default:
		panic(fmt.Sprintf("vif%d: unknown VIFcode %#x", v.ID, code))
	}
	return true
}

// executeCommand consumes payload words for the latched command.
func (v *VIF) executeCommand() bool {
	code := v.command >> 24 & 0x7f

	switch {
	case code == cmdSTMASK:
		v.Mask = v.pop()
		v.subpacketCount--
	case code == cmdSTROW:
		v.Row[4-v.subpacketCount] = v.pop()
		v.subpacketCount--
	case code == cmdSTCOL:
		v.Col[4-v.subpacketCount] = v.pop()
		v.subpacketCount--
	case code == cmdMPG:
		v.unit.Write32(vu.Code, v.address, v.pop())
		v.address += 4
		v.subpacketCount--
	case code >= unpackStart && code <= unpackEnd:
		return v.unpackQword()
	default:
		// A command that latched payload state must consume it here.
		panic(fmt.Sprintf("vif%d: payload for non-payload VIFcode %#x", v.ID, code))
	}
	return true
}

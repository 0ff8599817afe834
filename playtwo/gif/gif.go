// Package gif implements the graphics interface: the GIFtag decoder that
// turns primitive packets into GS register writes.
package gif

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/gpucode/playtwo/playtwo/bit"
	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/gs"
)

// GIFtag data formats.
const (
	FormatPacked   = 0
	FormatReglist  = 1
	FormatImage    = 2
	FormatDisabled = 3
)

// Packed-mode register descriptors.
const (
	descPRIM  = 0x0
	descRGBAQ = 0x1
	descST    = 0x2
	descUV    = 0x3
	descXYZF2 = 0x4
	descXYZ2  = 0x5
	descTEX01 = 0x6
	descTEX02 = 0x7
	descCLAMP1 = 0x8
	descCLAMP2 = 0x9
	descFOG   = 0xa
	descXYZF3 = 0xc
	descXYZ3  = 0xd
	descAD    = 0xe
	descNOP   = 0xf
)

const fifoCapQwords = 64

// giftag is a decoded 128-bit primitive header.
type giftag struct {
	raw bit.U128
}

func (t giftag) nloop() uint32 { return uint32(t.raw.Lo & 0x7fff) }
func (t giftag) eop() bool     { return t.raw.Lo>>15&1 == 1 }
func (t giftag) pre() bool     { return t.raw.Lo>>46&1 == 1 }
func (t giftag) prim() uint64  { return t.raw.Lo >> 47 & 0x7ff }
func (t giftag) flg() uint32   { return uint32(t.raw.Lo >> 58 & 0x3) }
func (t giftag) nreg() uint32 {
	n := uint32(t.raw.Lo >> 60 & 0xf)
	if n == 0 {
		return 16
	}
	return n
}
func (t giftag) reg(i uint32) uint32 { return uint32(t.raw.Hi >> (4 * i) & 0xf) }

// GIF feeds GS register writes from a 64-entry qword FIFO.
type GIF struct {
	Control uint32
	Mode    uint32

	fifo []bit.U128

	tag       giftag
	dataCount uint32
	regCount  uint32

	// Q latched by the last ST packet, applied to RGBAQ writes.
	internalQ uint32

	gs *gs.GS
}

// New wires the GIF to the GS and registers its MMIO windows: the
// register block at 0x10003000 and the PATH3 FIFO at 0x10006000.
func New(g *gs.GS, b *bus.Bus) *GIF {
	gif := &GIF{gs: g}
	b.Register(0x10003000, bus.Handler{Read32: gif.readReg, Write32: gif.writeReg})
	b.Register(0x10006000, bus.Handler{
		Write128: func(_ uint32, q bit.U128) { gif.WritePath3(q) },
	})
	return gif
}

// Reset drops all decoder state.
func (g *GIF) Reset() {
	*g = GIF{gs: g.gs}
}

func (g *GIF) readReg(addr uint32) uint32 {
	switch addr >> 4 & 0xf {
	case 2:
		// GIF_STAT: report the FIFO depth.
		return uint32(len(g.fifo)) << 24
	default:
		slog.Warn("read from unhandled GIF register", "addr", addr)
		return 0
	}
}

func (g *GIF) writeReg(addr uint32, data uint32) {
	switch addr >> 4 & 0xf {
	case 0:
		g.Control = data
		if data&1 != 0 {
			g.Reset()
		}
	case 1:
		g.Mode = data
	default:
		slog.Warn("write to unhandled GIF register", "addr", addr, "value", data)
	}
}

// WritePath3 pushes a qword from the DMA PATH3 into the FIFO; reports
// false when full so the channel can stall.
func (g *GIF) WritePath3(q bit.U128) bool {
	if len(g.fifo) >= fifoCapQwords {
		return false
	}
	g.fifo = append(g.fifo, q)
	return true
}

func (g *GIF) pop() bit.U128 {
	q := g.fifo[0]
	g.fifo = g.fifo[1:]
	return q
}

// Tick advances up to cycles qwords through the decoder.
func (g *GIF) Tick(cycles uint32) {
	for len(g.fifo) > 0 && cycles > 0 {
		cycles--
		if g.dataCount == 0 {
			g.processTag()
		} else {
			g.executePacket()
		}
	}
}

// processTag begins a new primitive from a GIFtag.
func (g *GIF) processTag() {
	g.tag = giftag{raw: g.pop()}
	g.dataCount = g.tag.nloop()
	g.regCount = g.tag.nreg()

	// TODO: honor eop once chained-primitive termination is verified
	// against hardware; right now the flag is latched but advisory.

	if g.tag.pre() {
		g.gs.Write(gs.RegPRIM, g.tag.prim())
	}

	// Q resets to 1.0 on every tag.
	g.internalQ = math.Float32bits(1.0)
}

func (g *GIF) executePacket() {
	switch g.tag.flg() {
	case FormatPacked:
		qword := g.pop()
		g.processPacked(qword)
		if g.regCount == 0 {
			g.dataCount--
			g.regCount = g.tag.nreg()
		}
	case FormatReglist:
		qword := g.pop()
		g.processReglist(qword)
	case FormatImage:
		qword := g.pop()
		g.gs.WriteHWReg(qword.Lo)
		g.gs.WriteHWReg(qword.Hi)
		g.dataCount--
	case FormatDisabled:
		g.pop()
		g.dataCount--
	default:
		panic(fmt.Sprintf("gif: unknown GIFtag format %d", g.tag.flg()))
	}
}

// processPacked translates one PACKED-mode qword into a GS write.
func (g *GIF) processPacked(q bit.U128) {
	curReg := g.tag.nreg() - g.regCount
	desc := g.tag.reg(curReg)

	switch desc {
	case descPRIM:
		g.gs.Write(gs.RegPRIM, q.Lo&0x7ff)

	case descRGBAQ:
		r := q.Lo & 0xff
		gcol := q.Lo >> 32 & 0xff
		b := q.Hi & 0xff
		a := q.Hi >> 32 & 0xff
		value := r | gcol<<8 | b<<16 | a<<24 | uint64(g.internalQ)<<32
		g.gs.Write(gs.RegRGBAQ, value)

	case descST:
		g.gs.Write(gs.RegST, q.Lo)
		g.internalQ = q.Word(2)

	case descUV:
		u := q.Lo & 0x3fff
		v := q.Lo >> 32 & 0x3fff
		g.gs.Write(gs.RegUV, u|v<<16)

	case descXYZF2:
		x := q.Lo & 0xffff
		y := q.Lo >> 32 & 0xffff
		z := q.Field(68, 24)
		f := q.Field(100, 8)
		value := x | y<<16 | z<<32 | f<<56

		if q.Bit(111) {
			g.gs.Write(gs.RegXYZF3, value)
		} else {
			g.gs.Write(gs.RegXYZF2, value)
		}

	case descXYZ2:
		x := q.Lo & 0xffff
		y := q.Lo >> 32 & 0xffff
		z := q.Hi & 0xffffffff
		value := x | y<<16 | z<<32

		if q.Bit(111) {
			g.gs.Write(gs.RegXYZ3, value)
		} else {
			g.gs.Write(gs.RegXYZ2, value)
		}

	case descTEX01, descTEX02, descCLAMP1, descCLAMP2:
		g.gs.Write(uint32(desc), q.Lo)

	case descFOG:
		g.gs.Write(gs.RegFOG, q.Field(100, 8)<<56)

	case descXYZF3:
		x := q.Lo & 0xffff
		y := q.Lo >> 32 & 0xffff
		z := q.Field(68, 24)
		f := q.Field(100, 8)
		g.gs.Write(gs.RegXYZF3, x|y<<16|z<<32|f<<56)

	case descXYZ3:
		x := q.Lo & 0xffff
		y := q.Lo >> 32 & 0xffff
		z := q.Hi & 0xffffffff
		g.gs.Write(gs.RegXYZ3, x|y<<16|z<<32)

	case descAD:
		addr := uint32(q.Hi & 0xff)
		g.gs.Write(addr, q.Lo)

	case descNOP:

	default:
		panic(fmt.Sprintf("gif: unknown register descriptor %#x", desc))
	}

	g.regCount--
}

// processReglist writes the two raw 64-bit halves of a REGLIST qword.
func (g *GIF) processReglist(q bit.U128) {
	for _, half := range [2]uint64{q.Lo, q.Hi} {
		if g.dataCount == 0 {
			// nloop ran out mid-qword; the second half is padding.
			break
		}
		curReg := g.tag.nreg() - g.regCount
		desc := g.tag.reg(curReg)
		if desc != descNOP {
			g.gs.Write(uint32(desc), half)
		}

		g.regCount--
		if g.regCount == 0 {
			g.dataCount--
			g.regCount = g.tag.nreg()
		}
	}
}

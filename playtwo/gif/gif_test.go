package gif

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/gpucode/playtwo/playtwo/backend"
	"github.com/gpucode/playtwo/playtwo/bit"
	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/gs"
)

func newTestGIF(t *testing.T) (*GIF, *gs.GS, *backend.Headless) {
	t.Helper()
	b := bus.New()
	sink := backend.NewHeadless()
	graphics := gs.New(b, sink)
	return New(graphics, b), graphics, sink
}

// makeTag builds a GIFtag from its fields; regs is the packed nibble
// array.
func makeTag(nloop uint32, eop bool, pre bool, prim uint64, flg uint32, nreg uint32, regs uint64) bit.U128 {
	lo := uint64(nloop & 0x7fff)
	if eop {
		lo |= 1 << 15
	}
	if pre {
		lo |= 1 << 46
	}
	lo |= prim & 0x7ff << 47
	lo |= uint64(flg&3) << 58
	lo |= uint64(nreg&0xf) << 60
	return bit.U128From(lo, regs)
}

func TestGIF_packedADWrite(t *testing.T) {
	g, graphics, _ := newTestGIF(t)

	g.WritePath3(makeTag(1, true, false, 0, FormatPacked, 1, uint64(descAD)))
	g.WritePath3(bit.U128From(0x1234, uint64(gs.RegTEX01)))
	g.Tick(4)

	assert.Equal(t, uint64(0x1234), graphics.Tex0[0])
}

func TestGIF_preWritesPrim(t *testing.T) {
	g, graphics, _ := newTestGIF(t)

	g.WritePath3(makeTag(1, true, true, 0x7, FormatDisabled, 1, 0))
	g.WritePath3(bit.U128{})
	g.Tick(4)

	assert.Equal(t, uint64(0x7), graphics.Prim)
}

func TestGIF_packedTriangleKick(t *testing.T) {
	g, graphics, sink := newTestGIF(t)

	// PRIM = triangle via PRE, three XYZ2 packed qwords.
	g.WritePath3(makeTag(3, true, true, uint64(gs.PrimTriangle), FormatPacked, 1, uint64(descXYZ2)))
	for i := uint64(0); i < 3; i++ {
		x := (100 + i*10) << 4
		y := (200 + i*10) << 4
		g.WritePath3(bit.U128From(x|y<<32, 0x1000))
	}
	g.Tick(8)

	assert.Equal(t, 1, sink.Triangles)
	assert.Len(t, sink.Vertices, 3)
	assert.Equal(t, uint64(gs.PrimTriangle), graphics.Prim)
}

func TestGIF_packedADCDisablesDraw(t *testing.T) {
	g, graphics, sink := newTestGIF(t)

	g.WritePath3(makeTag(2, true, true, uint64(gs.PrimSprite), FormatPacked, 1, uint64(descXYZ2)))
	// Bit 111 set: route to XYZ3, no draw kick.
	g.WritePath3(bit.U128From(0x10|0x20<<32, 0x1000|1<<47))
	g.WritePath3(bit.U128From(0x30|0x40<<32, 0x2000|1<<47))
	g.Tick(8)

	assert.Zero(t, sink.Sprites)
	assert.NotZero(t, graphics.XYZ3)
}

func TestGIF_stLatchesQForRGBAQ(t *testing.T) {
	g, graphics, _ := newTestGIF(t)

	qbits := uint64(math.Float32bits(0.5))

	g.WritePath3(makeTag(1, true, false, 0, FormatPacked, 2, uint64(descST)|uint64(descRGBAQ)<<4))
	g.WritePath3(bit.U128From(0xaabbccdd, qbits))            // ST with Q
	g.WritePath3(bit.U128From(0x10|0x20<<32, 0x30|0x40<<32)) // RGBAQ
	g.Tick(8)

	assert.Equal(t, uint64(0xaabbccdd), graphics.ST)
	expected := uint64(0x10) | 0x20<<8 | 0x30<<16 | 0x40<<24 | qbits<<32
	assert.Equal(t, expected, graphics.RGBAQ)
}

func TestGIF_reglistWritesPairs(t *testing.T) {
	g, graphics, _ := newTestGIF(t)

	// Each REGLIST qword carries two raw 64-bit register writes.
	g.WritePath3(makeTag(1, true, false, 0, FormatReglist, 2, uint64(descTEX01)|uint64(descTEX01)<<4))
	g.WritePath3(bit.U128From(0x1111, 0x2222))
	g.Tick(4)

	assert.Equal(t, uint64(0x2222), graphics.Tex0[0], "second half lands last")
}

func TestGIF_imageRoutesToHWReg(t *testing.T) {
	g, graphics, _ := newTestGIF(t)

	// Arm a 2x1 PSMCT32 host-local transfer, then feed one IMAGE qword.
	graphics.Write(gs.RegBITBLTBUF, uint64(0)<<32|1<<48|uint64(gs.PSMCT32)<<56)
	graphics.Write(gs.RegTRXPOS, 0)
	graphics.Write(gs.RegTRXREG, 2|1<<32)
	graphics.Write(gs.RegTRXDIR, gs.TrxHostLocal)

	g.WritePath3(makeTag(1, true, false, 0, FormatImage, 0, 0))
	g.WritePath3(bit.U128From(0x11111111_22222222, 0x33333333_44444444))
	g.Tick(4)

	assert.Equal(t, uint32(0x22222222), graphics.VRAM[0].ReadPSMCT32(0, 0))
	assert.Equal(t, uint32(0x11111111), graphics.VRAM[0].ReadPSMCT32(1, 0))
	assert.Equal(t, uint64(gs.TrxNone), graphics.TrxDir, "transfer completed")
}

func TestGIF_disabledDiscardsPayload(t *testing.T) {
	g, graphics, _ := newTestGIF(t)

	g.WritePath3(makeTag(2, true, false, 0, FormatDisabled, 0, 0))
	g.WritePath3(bit.U128From(0xffff, 0xffff))
	g.WritePath3(bit.U128From(0xeeee, 0xeeee))
	g.Tick(8)

	assert.Equal(t, uint64(0), graphics.Tex0[0])
	assert.Equal(t, uint32(0), g.readReg(0x10003020)>>24, "FIFO drained")
}

func TestGIF_fifoBackPressure(t *testing.T) {
	g, _, _ := newTestGIF(t)

	for i := 0; i < fifoCapQwords; i++ {
		assert.True(t, g.WritePath3(bit.U128{}))
	}
	assert.False(t, g.WritePath3(bit.U128{}))
}

func TestGIF_resetClearsDecoder(t *testing.T) {
	g, _, _ := newTestGIF(t)

	g.WritePath3(makeTag(5, false, false, 0, FormatDisabled, 0, 0))
	g.Tick(1)
	g.writeReg(0x10003000, 1)

	assert.Zero(t, g.dataCount)
	assert.Empty(t, g.fifo)
}

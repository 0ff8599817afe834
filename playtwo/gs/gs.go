// Package gs implements the Graphics Synthesizer register file, vertex
// kick and the swizzled VRAM upload path. Rasterization itself lives
// behind the backend.Renderer interface.
package gs

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/gpucode/playtwo/playtwo/backend"
	"github.com/gpucode/playtwo/playtwo/bus"
)

// General register addresses (the GIF A+D address space).
const (
	RegPRIM       = 0x00
	RegRGBAQ      = 0x01
	RegST         = 0x02
	RegUV         = 0x03
	RegXYZF2      = 0x04
	RegXYZ2       = 0x05
	RegTEX01      = 0x06
	RegTEX02      = 0x07
	RegCLAMP1     = 0x08
	RegCLAMP2     = 0x09
	RegFOG        = 0x0a
	RegXYZF3      = 0x0c
	RegXYZ3       = 0x0d
	RegTEX11      = 0x14
	RegTEX12      = 0x15
	RegTEX21      = 0x16
	RegTEX22      = 0x17
	RegXYOFFSET1  = 0x18
	RegXYOFFSET2  = 0x19
	RegPRMODECONT = 0x1a
	RegPRMODE     = 0x1b
	RegTEXCLUT    = 0x1c
	RegSCANMSK    = 0x22
	RegMIPTBP11   = 0x34
	RegMIPTBP12   = 0x35
	RegMIPTBP21   = 0x36
	RegMIPTBP22   = 0x37
	RegTEXA       = 0x3b
	RegFOGCOL     = 0x3d
	RegTEXFLUSH   = 0x3f
	RegSCISSOR1   = 0x40
	RegSCISSOR2   = 0x41
	RegALPHA1     = 0x42
	RegALPHA2     = 0x43
	RegDIMX       = 0x44
	RegDTHE       = 0x45
	RegCOLCLAMP   = 0x46
	RegTEST1      = 0x47
	RegTEST2      = 0x48
	RegPABE       = 0x49
	RegFBA1       = 0x4a
	RegFBA2       = 0x4b
	RegFRAME1     = 0x4c
	RegFRAME2     = 0x4d
	RegZBUF1      = 0x4e
	RegZBUF2      = 0x4f
	RegBITBLTBUF  = 0x50
	RegTRXPOS     = 0x51
	RegTRXREG     = 0x52
	RegTRXDIR     = 0x53
	RegHWREG      = 0x54
	RegSIGNAL     = 0x60
	RegFINISH     = 0x61
	RegLABEL      = 0x62
)

// Transfer directions written to TRXDIR.
const (
	TrxHostLocal  = 0
	TrxLocalHost  = 1
	TrxLocalLocal = 2
	TrxNone       = 3
)

// Pixel storage formats used by BITBLTBUF.
const (
	PSMCT32 = 0x00
	PSMCT16 = 0x02
)

// Primitive types from PRIM.
const (
	PrimPoint        = 0
	PrimLine         = 1
	PrimLineStrip    = 2
	PrimTriangle     = 3
	PrimTriangleStrip = 4
	PrimTriangleFan  = 5
	PrimSprite       = 6
)

// GS holds the general register file, the privileged window and VRAM.
type GS struct {
	Prim       uint64
	RGBAQ      uint64
	ST         uint64
	UV         uint64
	XYZF2      uint64
	XYZ2       uint64
	XYZF3      uint64
	XYZ3       uint64
	Tex0       [2]uint64
	Tex1       [2]uint64
	Tex2       [2]uint64
	Clamp      [2]uint64
	Fog        uint64
	FogCol     uint64
	XYOffset   [2]uint64
	PRModeCont uint64
	PRMode     uint64
	TexCLUT    uint64
	ScanMsk    uint64
	MipTBP1    [2]uint64
	MipTBP2    [2]uint64
	TexA       uint64
	TexFlush   uint64
	Scissor    [2]uint64
	Alpha      [2]uint64
	DIMX       uint64
	DTHE       uint64
	ColClamp   uint64
	Test       [2]uint64
	PABE       uint64
	FBA        [2]uint64
	Frame      [2]uint64
	ZBuf       [2]uint64
	BitBltBuf  uint64
	TrxPos     uint64
	TrxReg     uint64
	TrxDir     uint64
	Signal     uint64
	Finish     uint64
	Label      uint64

	// Privileged registers, indexed by the EE-visible window layout.
	Priv [19]uint64

	VRAM []Page

	renderer backend.Renderer
	vqueue   []backend.Vertex

	// Pixels written so far in the active HWREG upload.
	dataWritten uint32
}

// Privileged register indices.
const (
	privCSR      = 15
	privSIGLBLID = 18
)

// New allocates VRAM and registers the privileged window on the bus.
func New(b *bus.Bus, r backend.Renderer) *GS {
	g := &GS{
		VRAM:     make([]Page, PageCount),
		renderer: r,
	}
	for _, addr := range []uint32{0x12000000, 0x12000080, 0x12001000} {
		b.Register(addr, bus.Handler{
			Read64:  g.readPriv,
			Write64: g.writePriv,
			Read32:  func(a uint32) uint32 { return uint32(g.readPriv(a)) },
			Write32: func(a uint32, v uint32) { g.writePriv(a, uint64(v)) },
		})
	}
	return g
}

func privOffset(addr uint32) int {
	offset := int(addr >> 4 & 0xf)
	if addr&0xf000 != 0 {
		offset += 15
	}
	return offset
}

func (g *GS) readPriv(addr uint32) uint64 {
	offset := privOffset(addr)
	if offset != privCSR && offset != privSIGLBLID {
		slog.Warn("read from write-only GS privileged register", "offset", offset)
	}
	return g.Priv[offset]
}

func (g *GS) writePriv(addr uint32, data uint64) {
	offset := privOffset(addr)
	g.Priv[offset] = data

	if offset == privCSR && data&0x8 != 0 {
		// Writing 1 to VSINT acknowledges the vsync interrupt.
		g.Priv[privCSR] &^= 0x8
	}
}

// Write decodes a general register write. XYZ2/XYZF2 also kick a vertex;
// their 3-suffixed forms submit without drawing.
func (g *GS) Write(addr uint32, data uint64) {
	context := int(addr & 1)
	switch addr {
	case RegPRIM:
		g.Prim = data
		g.vqueue = g.vqueue[:0]
	case RegRGBAQ:
		g.RGBAQ = data
	case RegST:
		g.ST = data
	case RegUV:
		g.UV = data
	case RegXYZF2:
		g.XYZF2 = data
		g.submitXYZF(data, true)
	case RegXYZ2:
		g.XYZ2 = data
		g.submitXYZ(data, true)
	case RegTEX01, RegTEX02:
		g.Tex0[context] = data
	case RegCLAMP1, RegCLAMP2:
		g.Clamp[context] = data
	case RegFOG:
		g.Fog = data
	case RegXYZF3:
		g.XYZF3 = data
		g.submitXYZF(data, false)
	case RegXYZ3:
		g.XYZ3 = data
		g.submitXYZ(data, false)
	case RegTEX11, RegTEX12:
		g.Tex1[context] = data
	case RegTEX21, RegTEX22:
		g.Tex2[context] = data
	case RegXYOFFSET1, RegXYOFFSET2:
		g.XYOffset[context] = data
	case RegPRMODECONT:
		g.PRModeCont = data
	case RegPRMODE:
		g.PRMode = data
	case RegTEXCLUT:
		g.TexCLUT = data
	case RegSCANMSK:
		g.ScanMsk = data
	case RegMIPTBP11, RegMIPTBP12:
		g.MipTBP1[context] = data
	case RegMIPTBP21, RegMIPTBP22:
		g.MipTBP2[context] = data
	case RegTEXA:
		g.TexA = data
	case RegFOGCOL:
		g.FogCol = data
	case RegTEXFLUSH:
		g.TexFlush = data
	case RegSCISSOR1, RegSCISSOR2:
		g.Scissor[context] = data
	case RegALPHA1, RegALPHA2:
		g.Alpha[context] = data
	case RegDIMX:
		g.DIMX = data
	case RegDTHE:
		g.DTHE = data
	case RegCOLCLAMP:
		g.ColClamp = data
	case RegTEST1, RegTEST2:
		g.Test[context] = data
		g.renderer.SetDepthFunction(uint32(data >> 17 & 0x3))
	case RegPABE:
		g.PABE = data
	case RegFBA1, RegFBA2:
		g.FBA[context] = data
	case RegFRAME1, RegFRAME2:
		g.Frame[context] = data
	case RegZBUF1, RegZBUF2:
		g.ZBuf[context] = data
	case RegBITBLTBUF:
		g.BitBltBuf = data
	case RegTRXPOS:
		g.TrxPos = data
	case RegTRXREG:
		g.TrxReg = data
	case RegTRXDIR:
		g.TrxDir = data
		g.dataWritten = 0
	case RegHWREG:
		g.WriteHWReg(data)
	case RegSIGNAL:
		g.Signal = data
	case RegFINISH:
		g.Finish = data
	case RegLABEL:
		g.Label = data
	default:
		panic(fmt.Sprintf("gs: write %#x to unknown register %#x", data, addr))
	}
}

/* Vertex kick */

func (g *GS) submitXYZF(data uint64, drawKick bool) {
	x := float32(data & 0xffff)
	y := float32(data >> 16 & 0xffff)
	z := float32(data >> 32 & 0xffffff)
	g.kick(x, y, z, drawKick)
}

func (g *GS) submitXYZ(data uint64, drawKick bool) {
	x := float32(data & 0xffff)
	y := float32(data >> 16 & 0xffff)
	z := float32(data >> 32 & 0xffffffff)
	g.kick(x, y, z, drawKick)
}

// kick converts the fixed-point window coordinates to clip space, latches
// the vertex and fires the primitive once enough vertices queue up.
func (g *GS) kick(x, y, z float32, drawKick bool) {
	xoff := float32(g.XYOffset[0] & 0xffff)
	yoff := float32(g.XYOffset[0] >> 32 & 0xffff)

	x = (x - xoff) / 16.0
	y = (y - yoff) / 16.0

	v := backend.Vertex{
		X: x/320.0 - 1.0,
		Y: 1.0 - y/112.0,
		Z: z / float32(math.MaxInt32),
		R: float32(g.RGBAQ&0xff) / 255.0,
		G: float32(g.RGBAQ>>8&0xff) / 255.0,
		B: float32(g.RGBAQ>>16&0xff) / 255.0,
	}

	if len(g.vqueue) == 3 {
		// A non-drawing kick past a full queue replaces the oldest vertex.
		g.vqueue = g.vqueue[1:]
	}
	g.vqueue = append(g.vqueue, v)

	if !drawKick {
		return
	}

	switch len(g.vqueue) {
	case 2:
		if g.Prim&0x7 == PrimSprite {
			g.renderer.SubmitSprite(g.vqueue[0], g.vqueue[1])
			g.vqueue = g.vqueue[:0]
		}
	case 3:
		if g.Prim&0x7 == PrimTriangle {
			for _, vx := range g.vqueue {
				g.renderer.SubmitVertex(vx)
			}
			g.vqueue = g.vqueue[:0]
		}
	}
}

/* VRAM transfers */

func (g *GS) destBasePage() uint32 {
	return uint32(g.BitBltBuf>>32&0x3fff) / BlocksPerPage
}

func (g *GS) destWidthPages() uint32 {
	return uint32(g.BitBltBuf >> 48 & 0x3f)
}

func (g *GS) destFormat() uint32 {
	return uint32(g.BitBltBuf >> 56 & 0x3f)
}

func (g *GS) destOrigin() (uint16, uint16) {
	return uint16(g.TrxPos >> 32 & 0x7ff), uint16(g.TrxPos >> 48 & 0x7ff)
}

func (g *GS) trxWidth() uint32  { return uint32(g.TrxReg & 0xfff) }
func (g *GS) trxHeight() uint32 { return uint32(g.TrxReg >> 32 & 0xfff) }

// WriteHWReg deposits pixels of an armed host-to-local transfer. PSMCT32
// packs two pixels per doubleword, PSMCT16 four.
func (g *GS) WriteHWReg(data uint64) {
	if g.TrxDir != TrxHostLocal {
		slog.Warn("HWREG write with no host-local transfer armed", "trxdir", g.TrxDir)
		return
	}

	widthPages := g.destWidthPages()
	widthPixels := g.trxWidth()
	if widthPixels == 0 || widthPages == 0 {
		return
	}
	dx, dy := g.destOrigin()

	switch g.destFormat() {
	case PSMCT32:
		for i := 0; i < 2; i++ {
			pixel := uint32(data >> (uint(i) * 32))
			x := uint16(g.dataWritten%widthPixels) + dx
			y := uint16(g.dataWritten/widthPixels) + dy

			page := g.destBasePage() +
				uint32(x/PagePixelWidth)%widthPages +
				uint32(y/PagePixelHeight)*widthPages
			g.VRAM[page%PageCount].WritePSMCT32(x, y, pixel)
			g.dataWritten++
		}
	case PSMCT16:
		for i := 0; i < 4; i++ {
			pixel := uint16(data >> (uint(i) * 16))
			x := uint16(g.dataWritten%widthPixels) + dx
			y := uint16(g.dataWritten/widthPixels) + dy

			page := g.destBasePage() +
				uint32(x/64)%widthPages +
				uint32(y/64)*widthPages
			g.VRAM[page%PageCount].WritePSMCT16(x, y, pixel)
			g.dataWritten++
		}
	default:
		panic(fmt.Sprintf("gs: unsupported transfer pixel format %#x", g.destFormat()))
	}

	if g.dataWritten >= g.trxWidth()*g.trxHeight() {
		slog.Debug("HWREG transfer complete", "pixels", g.dataWritten)
		g.dataWritten = 0
		g.TrxDir = TrxNone
		g.mirrorVRAM()
	}
}

// mirrorVRAM hands the frame buffer region to the renderer for sampling.
func (g *GS) mirrorVRAM() {
	startPage := uint32(g.Frame[0]&0x1ff) * 32
	if startPage >= PageCount {
		startPage = 0
	}

	const mirrorBytes = 640 * 256 * 4
	data := make([]byte, 0, mirrorBytes)
	for p := startPage; p < PageCount && len(data) < mirrorBytes; p++ {
		data = append(data, g.VRAM[p].Bytes()...)
	}
	if len(data) > mirrorBytes {
		data = data[:mirrorBytes]
	}
	g.renderer.UploadVRAM(data)
}

// ReadPSMCT32 reads a pixel back through the same page addressing the
// upload path uses.
func (g *GS) ReadPSMCT32(basePage, widthPages uint32, x, y uint16) uint32 {
	page := basePage +
		uint32(x/PagePixelWidth)%widthPages +
		uint32(y/PagePixelHeight)*widthPages
	return g.VRAM[page%PageCount].ReadPSMCT32(x, y)
}

package bus

import (
	"bytes"
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bit"
)

// Sizes and bases of the directly-backed regions of the physical map.
const (
	RAMSize        = 32 << 20
	BIOSSize       = 4 << 20
	ScratchpadSize = 16 << 10
	IOPRAMSize     = 2 << 20

	RAMBase        = 0x00000000
	IOPRAMBase     = 0x1c000000
	BIOSBase       = 0x1fc00000
	ScratchpadBase = 0x70000000
)

// Each 512MB segment of the virtual space folds to physical with one of
// these masks. KUSEG and KSEG2 map straight through, KSEG0 strips the MSB
// and KSEG1 strips the top three bits.
var kusegMasks = [8]uint32{
	0xffffffff, 0xffffffff, 0xffffffff, 0xffffffff,
	0x7fffffff,
	0x1fffffff,
	0xffffffff, 0xffffffff,
}

// Translate folds a virtual address into the shared physical space.
func Translate(vaddr uint32) uint32 {
	return vaddr & kusegMasks[vaddr>>29]
}

// Handlers register at 128-byte granularity.
const handlerPageSize = 0x80

// Handler is a width-specialized reader/writer pair for one MMIO page.
// Only the widths a peripheral actually decodes need to be filled in. A
// missing Read8, Read16 or Read64 is served from Read32, and a missing
// Write16 or Write64 goes to Write32. Write8, Read128 and Write128 have no
// fallback: without them the access is logged and dropped (reads return
// zero).
type Handler struct {
	Read8    func(addr uint32) uint8
	Write8   func(addr uint32, v uint8)
	Read16   func(addr uint32) uint16
	Write16  func(addr uint32, v uint16)
	Read32   func(addr uint32) uint32
	Write32  func(addr uint32, v uint32)
	Read64   func(addr uint32) uint64
	Write64  func(addr uint32, v uint64)
	Read128  func(addr uint32) bit.U128
	Write128 func(addr uint32, v bit.U128)
}

type fastRegion struct {
	start   uint32
	length  uint32
	mask    uint32
	backing []byte
}

// Bus resolves physical addresses to backing memory or MMIO handlers for
// both CPUs and all DMA engines.
type Bus struct {
	RAM        []byte
	BIOS       []byte
	Scratchpad []byte
	IOPRAM     []byte

	handlers [0x20000]*Handler
	extra    []fastRegion

	// RDRAM controller handshake state, probed by the BIOS during boot.
	mchRICM     uint32
	mchDRD      uint32
	rdramSDevID uint8

	// Bytes written to the BIOS debug console at 0x1000F180.
	Console bytes.Buffer
}

// New allocates the directly-backed memory regions, zeroed.
func New() *Bus {
	return &Bus{
		RAM:        make([]byte, RAMSize),
		BIOS:       make([]byte, BIOSSize),
		Scratchpad: make([]byte, ScratchpadSize),
		IOPRAM:     make([]byte, IOPRAMSize),
	}
}

// LoadBIOS installs a 4MB BIOS image into the ROM region.
func (b *Bus) LoadBIOS(image []byte) error {
	if len(image) != BIOSSize {
		return errBIOSSize(len(image))
	}
	copy(b.BIOS, image)
	return nil
}

// Attach adds an extra directly-backed region (VU code/data windows).
// The backing slice is shared with its owner; mask folds the offset into it.
func (b *Bus) Attach(start, length uint32, backing []byte, mask uint32) {
	b.extra = append(b.extra, fastRegion{start: start, length: length, mask: mask, backing: backing})
}

// page computes the flat handler index for an MMIO address.
func page(addr uint32) uint32 {
	opt := (addr&0x0ff00000)>>4 | addr&0x000fffff
	return opt / handlerPageSize
}

// Register installs an MMIO handler at a 128-byte-aligned address.
// Handlers stay registered for the lifetime of the machine.
func (b *Bus) Register(addr uint32, h Handler) {
	b.handlers[page(addr)] = &h
}

// fast returns the backing slice and offset for directly-backed regions.
func (b *Bus) fast(paddr uint32) ([]byte, uint32) {
	switch {
	case paddr < RAMSize:
		return b.RAM, paddr
	case paddr >= BIOSBase && paddr < BIOSBase+BIOSSize:
		return b.BIOS, paddr - BIOSBase
	case paddr >= ScratchpadBase && paddr < ScratchpadBase+ScratchpadSize:
		return b.Scratchpad, paddr & (ScratchpadSize - 1)
	case paddr >= IOPRAMBase && paddr < IOPRAMBase+IOPRAMSize:
		return b.IOPRAM, paddr - IOPRAMBase
	}
	for i := range b.extra {
		r := &b.extra[i]
		if paddr >= r.start && paddr < r.start+r.length {
			return r.backing, paddr & r.mask
		}
	}
	return nil, 0
}

func (b *Bus) handler(paddr uint32) *Handler {
	return b.handlers[page(paddr)]
}

func warnRead(paddr uint32, width int) {
	slog.Warn("read from unbacked address", "addr", paddr, "width", width)
}

func warnWrite(paddr uint32, width int, v uint64) {
	slog.Warn("write to unbacked address", "addr", paddr, "width", width, "value", v)
}

func (b *Bus) Read8(vaddr uint32) uint8 {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		return mem[off]
	}
	if h := b.handler(paddr); h != nil {
		if h.Read8 != nil {
			return h.Read8(paddr)
		}
		if h.Read32 != nil {
			return uint8(h.Read32(paddr &^ 3) >> ((paddr & 3) * 8))
		}
	}
	warnRead(paddr, 8)
	return 0
}

func (b *Bus) Write8(vaddr uint32, v uint8) {
	paddr := Translate(vaddr)
	if paddr == 0x1000f180 {
		b.Console.WriteByte(v)
		return
	}
	if mem, off := b.fast(paddr); mem != nil {
		if &mem[0] == &b.BIOS[0] {
			warnWrite(paddr, 8, uint64(v))
			return
		}
		mem[off] = v
		return
	}
	if h := b.handler(paddr); h != nil && h.Write8 != nil {
		h.Write8(paddr, v)
		return
	}
	warnWrite(paddr, 8, uint64(v))
}

func (b *Bus) Read16(vaddr uint32) uint16 {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		return uint16(mem[off]) | uint16(mem[off+1])<<8
	}
	if h := b.handler(paddr); h != nil {
		if h.Read16 != nil {
			return h.Read16(paddr)
		}
		if h.Read32 != nil {
			return uint16(h.Read32(paddr &^ 3) >> ((paddr & 2) * 8))
		}
	}
	warnRead(paddr, 16)
	return 0
}

func (b *Bus) Write16(vaddr uint32, v uint16) {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		if &mem[0] == &b.BIOS[0] {
			warnWrite(paddr, 16, uint64(v))
			return
		}
		mem[off] = uint8(v)
		mem[off+1] = uint8(v >> 8)
		return
	}
	if h := b.handler(paddr); h != nil {
		if h.Write16 != nil {
			h.Write16(paddr, v)
			return
		}
		if h.Write32 != nil {
			h.Write32(paddr, uint32(v))
			return
		}
	}
	warnWrite(paddr, 16, uint64(v))
}

func (b *Bus) Read32(vaddr uint32) uint32 {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		return uint32(mem[off]) | uint32(mem[off+1])<<8 |
			uint32(mem[off+2])<<16 | uint32(mem[off+3])<<24
	}
	switch paddr {
	case 0x1000f130, 0x1000f430:
		return 0
	case 0x1000f440:
		return b.readMCH()
	}
	if h := b.handler(paddr); h != nil && h.Read32 != nil {
		return h.Read32(paddr)
	}
	warnRead(paddr, 32)
	return 0
}

func (b *Bus) Write32(vaddr uint32, v uint32) {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		if &mem[0] == &b.BIOS[0] {
			warnWrite(paddr, 32, uint64(v))
			return
		}
		mem[off] = uint8(v)
		mem[off+1] = uint8(v >> 8)
		mem[off+2] = uint8(v >> 16)
		mem[off+3] = uint8(v >> 24)
		return
	}
	switch paddr {
	case 0x1000f180:
		b.Console.WriteByte(uint8(v))
		return
	case 0x1000f430:
		b.writeMCHRICM(v)
		return
	case 0x1000f440:
		b.mchDRD = v
		return
	case 0x1000f500, 0x1000f510:
		return
	}
	if h := b.handler(paddr); h != nil && h.Write32 != nil {
		h.Write32(paddr, v)
		return
	}
	warnWrite(paddr, 32, uint64(v))
}

func (b *Bus) Read64(vaddr uint32) uint64 {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		var v uint64
		for i := uint(0); i < 8; i++ {
			v |= uint64(mem[off+uint32(i)]) << (i * 8)
		}
		return v
	}
	if h := b.handler(paddr); h != nil {
		if h.Read64 != nil {
			return h.Read64(paddr)
		}
		if h.Read32 != nil {
			return uint64(h.Read32(paddr))
		}
	}
	warnRead(paddr, 64)
	return 0
}

func (b *Bus) Write64(vaddr uint32, v uint64) {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		if &mem[0] == &b.BIOS[0] {
			warnWrite(paddr, 64, v)
			return
		}
		for i := uint(0); i < 8; i++ {
			mem[off+uint32(i)] = uint8(v >> (i * 8))
		}
		return
	}
	if h := b.handler(paddr); h != nil {
		if h.Write64 != nil {
			h.Write64(paddr, v)
			return
		}
		if h.Write32 != nil {
			h.Write32(paddr, uint32(v))
			return
		}
	}
	warnWrite(paddr, 64, v)
}

func (b *Bus) Read128(vaddr uint32) bit.U128 {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		return bit.LoadU128(mem[off:])
	}
	if h := b.handler(paddr); h != nil && h.Read128 != nil {
		return h.Read128(paddr)
	}
	warnRead(paddr, 128)
	return bit.U128{}
}

func (b *Bus) Write128(vaddr uint32, v bit.U128) {
	paddr := Translate(vaddr)
	if mem, off := b.fast(paddr); mem != nil {
		if &mem[0] == &b.BIOS[0] {
			warnWrite(paddr, 128, v.Lo)
			return
		}
		bit.StoreU128(mem[off:], v)
		return
	}
	if h := b.handler(paddr); h != nil && h.Write128 != nil {
		h.Write128(paddr, v)
		return
	}
	warnWrite(paddr, 128, v.Lo)
}

// ReadRAM128 reads a quadword straight out of main RAM, bypassing
// translation. Used by the DMA engines which deal in physical addresses.
func (b *Bus) ReadRAM128(paddr uint32) bit.U128 {
	return bit.LoadU128(b.RAM[paddr&(RAMSize-1):])
}

// WriteRAM128 stores a quadword straight into main RAM.
func (b *Bus) WriteRAM128(paddr uint32, v bit.U128) {
	bit.StoreU128(b.RAM[paddr&(RAMSize-1):], v)
}

// The RDRAM init sequence reads back a per-device ID through MCH_RICM.
// The BIOS expects two devices to answer 0x1F before the scan terminates.
func (b *Bus) readMCH() uint32 {
	sop := b.mchRICM >> 6 & 0xf
	sa := b.mchRICM >> 16 & 0xfff
	if sop != 0 {
		return 0
	}
	switch sa {
	case 0x21:
		if b.rdramSDevID < 2 {
			b.rdramSDevID++
			return 0x1f
		}
		return 0
	case 0x23:
		return 0x0d0d
	case 0x24:
		return 0x0090
	case 0x40:
		return b.mchRICM & 0x1f
	}
	return 0
}

func (b *Bus) writeMCHRICM(v uint32) {
	sa := v >> 16 & 0xfff
	sbc := v >> 6 & 0xf
	if sa == 0x21 && sbc == 0x1 && b.mchDRD>>7&1 == 0 {
		b.rdramSDevID = 0
	}
	b.mchRICM = v &^ 0x80000000
}

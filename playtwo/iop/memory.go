package iop

import "github.com/gpucode/playtwo/playtwo/bus"

// The IOP sees its own 2MB of RAM at the bottom of the physical space;
// everything else routes to the local peripherals or the shared bus.

func (c *CPU) ramOffset(paddr uint32) (uint32, bool) {
	if paddr < bus.IOPRAMSize {
		return paddr, true
	}
	return 0, false
}

func (c *CPU) read8(addr uint32) uint8 {
	paddr := bus.Translate(addr)
	if off, ok := c.ramOffset(paddr); ok {
		return c.Bus.IOPRAM[off]
	}
	return c.Bus.Read8(paddr)
}

func (c *CPU) read16(addr uint32) uint16 {
	paddr := bus.Translate(addr)
	if off, ok := c.ramOffset(paddr); ok {
		return uint16(c.Bus.IOPRAM[off]) | uint16(c.Bus.IOPRAM[off+1])<<8
	}
	return c.Bus.Read16(paddr)
}

func (c *CPU) read32(addr uint32) uint32 {
	paddr := bus.Translate(addr)
	if off, ok := c.ramOffset(paddr); ok {
		m := c.Bus.IOPRAM
		return uint32(m[off]) | uint32(m[off+1])<<8 | uint32(m[off+2])<<16 | uint32(m[off+3])<<24
	}
	switch {
	case paddr >= 0x1f801070 && paddr <= 0x1f801078:
		return c.INTR.read(paddr)
	case paddr >= 0x1f801100 && paddr <= 0x1f80112c,
		paddr >= 0x1f801480 && paddr <= 0x1f8014ac:
		return c.Timers.read(paddr)
	case paddr >= 0x1f801080 && paddr <= 0x1f8010ff,
		paddr >= 0x1f801500 && paddr <= 0x1f80157f:
		return c.DMA.read(paddr)
	case paddr == 0x1f801450, paddr == 0x1f801578, paddr == 0xfffe0130:
		return 0
	}
	return c.Bus.Read32(paddr)
}

func (c *CPU) write8(addr uint32, v uint8) {
	paddr := bus.Translate(addr)
	if off, ok := c.ramOffset(paddr); ok {
		c.Bus.IOPRAM[off] = v
		return
	}
	c.Bus.Write8(paddr, v)
}

func (c *CPU) write16(addr uint32, v uint16) {
	paddr := bus.Translate(addr)
	if off, ok := c.ramOffset(paddr); ok {
		c.Bus.IOPRAM[off] = uint8(v)
		c.Bus.IOPRAM[off+1] = uint8(v >> 8)
		return
	}
	c.Bus.Write16(paddr, v)
}

func (c *CPU) write32(addr uint32, v uint32) {
	paddr := bus.Translate(addr)
	if off, ok := c.ramOffset(paddr); ok {
		m := c.Bus.IOPRAM
		m[off] = uint8(v)
		m[off+1] = uint8(v >> 8)
		m[off+2] = uint8(v >> 16)
		m[off+3] = uint8(v >> 24)
		return
	}
	switch {
	case paddr >= 0x1f801070 && paddr <= 0x1f801078:
		c.INTR.write(paddr, v)
		return
	case paddr >= 0x1f801100 && paddr <= 0x1f80112c,
		paddr >= 0x1f801480 && paddr <= 0x1f8014ac:
		c.Timers.write(paddr, v)
		return
	case paddr >= 0x1f801080 && paddr <= 0x1f8010ff,
		paddr >= 0x1f801500 && paddr <= 0x1f80157f:
		c.DMA.write(paddr, v)
		return
	case paddr == 0x1f801450, paddr == 0x1f801578, paddr == 0xfffe0130:
		return
	}
	c.Bus.Write32(paddr, v)
}

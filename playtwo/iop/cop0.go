package iop

// COP0 register indices.
const (
	regTAR    = 6
	regBadA   = 8
	regStatus = 12
	regCause  = 13
	regEPC    = 14
	regPRId   = 15
)

// Status register bits.
const (
	srIEc = 1 << 0
	srIsC = 1 << 16
	srBEV = 1 << 22
)

// Cause register bits.
const (
	causeBT = 1 << 30
	causeBD = 1 << 31
)

// COP0 is the IOP exception unit. As on the EE, the registers live packed
// and bits are reached through mask-and-shift accessors.
type COP0 struct {
	Regs [32]uint32
}

func (c *COP0) Reset() {
	c.Regs = [32]uint32{}
	// Boot exception vectors live in the BIOS until the kernel moves them.
	c.Regs[regStatus] = srBEV
	c.Regs[regPRId] = 0x1f
}

func (c *COP0) SR() uint32       { return c.Regs[regStatus] }
func (c *COP0) SetSR(v uint32)   { c.Regs[regStatus] = v }
func (c *COP0) Cause() uint32    { return c.Regs[regCause] }
func (c *COP0) EPC() uint32      { return c.Regs[regEPC] }
func (c *COP0) SetEPC(v uint32)  { c.Regs[regEPC] = v }
func (c *COP0) SetBadA(v uint32) { c.Regs[regBadA] = v }
func (c *COP0) SetTAR(v uint32)  { c.Regs[regTAR] = v }

func (c *COP0) IEc() bool { return c.Regs[regStatus]&srIEc != 0 }
func (c *COP0) IsC() bool { return c.Regs[regStatus]&srIsC != 0 }
func (c *COP0) BEV() bool { return c.Regs[regStatus]&srBEV != 0 }

// Im returns the hardware interrupt mask field.
func (c *COP0) Im() uint32 { return c.Regs[regStatus] >> 8 & 0xff }

// IP returns the pending-interrupt field of Cause.
func (c *COP0) IP() uint32 { return c.Regs[regCause] >> 8 & 0xff }

// SetIPBit2 drives the INTC line into Cause.IP[2].
func (c *COP0) SetIPBit2(on bool) {
	if on {
		c.Regs[regCause] |= 1 << 10
	} else {
		c.Regs[regCause] &^= 1 << 10
	}
}

func (c *COP0) SetExcCode(code uint32) {
	c.Regs[regCause] = c.Regs[regCause]&^uint32(0x7c) | code<<2
}

func (c *COP0) SetCE(ce uint32) {
	c.Regs[regCause] = c.Regs[regCause]&^uint32(3<<28) | ce<<28
}

func (c *COP0) SetBD(on bool) {
	if on {
		c.Regs[regCause] |= causeBD
	} else {
		c.Regs[regCause] &^= causeBD
	}
}

func (c *COP0) SetBT(on bool) {
	if on {
		c.Regs[regCause] |= causeBT
	} else {
		c.Regs[regCause] &^= causeBT
	}
}

// PushMode rotates the K/U and IE bit pairs one level deeper, entering
// kernel mode with interrupts disabled.
func (c *COP0) PushMode() {
	sr := c.Regs[regStatus]
	mode := sr & 0x3f
	sr &^= 0x3f
	sr |= mode << 2 & 0x3f
	c.Regs[regStatus] = sr
}

// PopMode is the RFE inverse rotation.
func (c *COP0) PopMode() {
	sr := c.Regs[regStatus]
	mode := sr & 0x3f
	sr &^= 0xf
	sr |= mode >> 2
	c.Regs[regStatus] = sr
}

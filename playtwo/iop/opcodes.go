package iop

import "math"

func (c *CPU) loadAddr() uint32 {
	return c.GPR[c.Instr.Rs()] + uint32(c.Instr.SImm16())
}

/* Loads: all route through the delay-slot machinery. */

func (c *CPU) opLB() {
	if c.COP0.IsC() {
		return
	}
	c.load(c.Instr.Rt(), uint32(int32(int8(c.read8(c.loadAddr())))))
}

func (c *CPU) opLBU() {
	if c.COP0.IsC() {
		return
	}
	c.load(c.Instr.Rt(), uint32(c.read8(c.loadAddr())))
}

func (c *CPU) opLH() {
	if c.COP0.IsC() {
		return
	}
	vaddr := c.loadAddr()
	if vaddr&0x1 != 0 {
		c.COP0.SetBadA(vaddr)
		c.exception(ExcReadError, 0)
		return
	}
	c.load(c.Instr.Rt(), uint32(int32(int16(c.read16(vaddr)))))
}

func (c *CPU) opLHU() {
	if c.COP0.IsC() {
		return
	}
	vaddr := c.loadAddr()
	if vaddr&0x1 != 0 {
		c.COP0.SetBadA(vaddr)
		c.exception(ExcReadError, 0)
		return
	}
	c.load(c.Instr.Rt(), uint32(c.read16(vaddr)))
}

func (c *CPU) opLW() {
	if c.COP0.IsC() {
		return
	}
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.COP0.SetBadA(vaddr)
		c.exception(ExcReadError, 0)
		return
	}
	c.load(c.Instr.Rt(), c.read32(vaddr))
}

// LWL/LWR merge with an in-flight load of the same register so that
// paired unaligned loads behave as one access.
func (c *CPU) opLWL() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	aligned := c.read32(addr &^ 0x3)

	current := c.GPR[rt]
	if rt == c.MemoryLoad.Reg {
		current = c.MemoryLoad.Value
	}

	var value uint32
	switch addr & 0x3 {
	case 0:
		value = current&0x00ffffff | aligned<<24
	case 1:
		value = current&0x0000ffff | aligned<<16
	case 2:
		value = current&0x000000ff | aligned<<8
	case 3:
		value = aligned
	}
	c.load(rt, value)
}

func (c *CPU) opLWR() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	aligned := c.read32(addr &^ 0x3)

	current := c.GPR[rt]
	if rt == c.MemoryLoad.Reg {
		current = c.MemoryLoad.Value
	}

	var value uint32
	switch addr & 0x3 {
	case 0:
		value = aligned
	case 1:
		value = current&0xff000000 | aligned>>8
	case 2:
		value = current&0xffff0000 | aligned>>16
	case 3:
		value = current&0xffffff00 | aligned>>24
	}
	c.load(rt, value)
}

func (c *CPU) opLUI() {
	c.setReg(c.Instr.Rt(), uint32(c.Instr.Imm16())<<16)
}

/* Stores */

func (c *CPU) opSB() {
	if c.COP0.IsC() {
		return
	}
	c.write8(c.loadAddr(), uint8(c.GPR[c.Instr.Rt()]))
}

func (c *CPU) opSH() {
	if c.COP0.IsC() {
		return
	}
	vaddr := c.loadAddr()
	if vaddr&0x1 != 0 {
		c.COP0.SetBadA(vaddr)
		c.exception(ExcWriteError, 0)
		return
	}
	c.write16(vaddr, uint16(c.GPR[c.Instr.Rt()]))
}

func (c *CPU) opSW() {
	if c.COP0.IsC() {
		return
	}
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.COP0.SetBadA(vaddr)
		c.exception(ExcWriteError, 0)
		return
	}
	c.write32(vaddr, c.GPR[c.Instr.Rt()])
}

func (c *CPU) opSWL() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	aligned := addr &^ 0x3
	current := c.read32(aligned)

	var value uint32
	switch addr & 0x3 {
	case 0:
		value = current&0xffffff00 | c.GPR[rt]>>24
	case 1:
		value = current&0xffff0000 | c.GPR[rt]>>16
	case 2:
		value = current&0xff000000 | c.GPR[rt]>>8
	case 3:
		value = c.GPR[rt]
	}
	c.write32(aligned, value)
}

func (c *CPU) opSWR() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	aligned := addr &^ 0x3
	current := c.read32(aligned)

	var value uint32
	switch addr & 0x3 {
	case 0:
		value = c.GPR[rt]
	case 1:
		value = current&0x000000ff | c.GPR[rt]<<8
	case 2:
		value = current&0x0000ffff | c.GPR[rt]<<16
	case 3:
		value = current&0x00ffffff | c.GPR[rt]<<24
	}
	c.write32(aligned, value)
}

/* Arithmetic */

func (c *CPU) opADD() {
	a := int32(c.GPR[c.Instr.Rs()])
	b := int32(c.GPR[c.Instr.Rt()])
	r := a + b
	if (a >= 0) == (b >= 0) && (r >= 0) != (a >= 0) {
		c.exception(ExcOverflow, 0)
		return
	}
	c.setReg(c.Instr.Rd(), uint32(r))
}

func (c *CPU) opADDU() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rs()]+c.GPR[c.Instr.Rt()])
}

func (c *CPU) opADDI() {
	a := int32(c.GPR[c.Instr.Rs()])
	b := c.Instr.SImm16()
	r := a + b
	if (a >= 0) == (b >= 0) && (r >= 0) != (a >= 0) {
		c.exception(ExcOverflow, 0)
		return
	}
	c.setReg(c.Instr.Rt(), uint32(r))
}

func (c *CPU) opADDIU() {
	c.setReg(c.Instr.Rt(), c.GPR[c.Instr.Rs()]+uint32(c.Instr.SImm16()))
}

func (c *CPU) opSUB() {
	a := int32(c.GPR[c.Instr.Rs()])
	b := int32(c.GPR[c.Instr.Rt()])
	r := a - b
	if (a >= 0) != (b >= 0) && (r >= 0) != (a >= 0) {
		c.exception(ExcOverflow, 0)
		return
	}
	c.setReg(c.Instr.Rd(), uint32(r))
}

func (c *CPU) opSUBU() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rs()]-c.GPR[c.Instr.Rt()])
}

func (c *CPU) opSLT() {
	var r uint32
	if int32(c.GPR[c.Instr.Rs()]) < int32(c.GPR[c.Instr.Rt()]) {
		r = 1
	}
	c.setReg(c.Instr.Rd(), r)
}

func (c *CPU) opSLTU() {
	var r uint32
	if c.GPR[c.Instr.Rs()] < c.GPR[c.Instr.Rt()] {
		r = 1
	}
	c.setReg(c.Instr.Rd(), r)
}

func (c *CPU) opSLTI() {
	var r uint32
	if int32(c.GPR[c.Instr.Rs()]) < c.Instr.SImm16() {
		r = 1
	}
	c.setReg(c.Instr.Rt(), r)
}

func (c *CPU) opSLTIU() {
	var r uint32
	if c.GPR[c.Instr.Rs()] < uint32(c.Instr.SImm16()) {
		r = 1
	}
	c.setReg(c.Instr.Rt(), r)
}

/* Logic */

func (c *CPU) opAND() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rs()]&c.GPR[c.Instr.Rt()])
}

func (c *CPU) opOR() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rs()]|c.GPR[c.Instr.Rt()])
}

func (c *CPU) opXOR() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rs()]^c.GPR[c.Instr.Rt()])
}

func (c *CPU) opNOR() {
	c.setReg(c.Instr.Rd(), ^(c.GPR[c.Instr.Rs()] | c.GPR[c.Instr.Rt()]))
}

func (c *CPU) opANDI() {
	c.setReg(c.Instr.Rt(), c.GPR[c.Instr.Rs()]&uint32(c.Instr.Imm16()))
}

func (c *CPU) opORI() {
	c.setReg(c.Instr.Rt(), c.GPR[c.Instr.Rs()]|uint32(c.Instr.Imm16()))
}

func (c *CPU) opXORI() {
	c.setReg(c.Instr.Rt(), c.GPR[c.Instr.Rs()]^uint32(c.Instr.Imm16()))
}

/* Shifts */

func (c *CPU) opSLL() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rt()]<<c.Instr.Sa())
}

func (c *CPU) opSRL() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rt()]>>c.Instr.Sa())
}

func (c *CPU) opSRA() {
	c.setReg(c.Instr.Rd(), uint32(int32(c.GPR[c.Instr.Rt()])>>c.Instr.Sa()))
}

func (c *CPU) opSLLV() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rt()]<<(c.GPR[c.Instr.Rs()]&0x1f))
}

func (c *CPU) opSRLV() {
	c.setReg(c.Instr.Rd(), c.GPR[c.Instr.Rt()]>>(c.GPR[c.Instr.Rs()]&0x1f))
}

func (c *CPU) opSRAV() {
	c.setReg(c.Instr.Rd(), uint32(int32(c.GPR[c.Instr.Rt()])>>(c.GPR[c.Instr.Rs()]&0x1f)))
}

/* Multiply / divide */

func (c *CPU) opMULT() {
	result := int64(int32(c.GPR[c.Instr.Rs()])) * int64(int32(c.GPR[c.Instr.Rt()]))
	c.HI = uint32(result >> 32)
	c.LO = uint32(result)
}

func (c *CPU) opMULTU() {
	result := uint64(c.GPR[c.Instr.Rs()]) * uint64(c.GPR[c.Instr.Rt()])
	c.HI = uint32(result >> 32)
	c.LO = uint32(result)
}

func (c *CPU) opDIV() {
	dividend := int32(c.GPR[c.Instr.Rs()])
	divisor := int32(c.GPR[c.Instr.Rt()])
	switch {
	case divisor == 0:
		c.HI = uint32(dividend)
		if dividend >= 0 {
			c.LO = 0xffffffff
		} else {
			c.LO = 1
		}
	case dividend == math.MinInt32 && divisor == -1:
		c.HI = 0
		c.LO = 0x80000000
	default:
		c.HI = uint32(dividend % divisor)
		c.LO = uint32(dividend / divisor)
	}
}

func (c *CPU) opDIVU() {
	dividend := c.GPR[c.Instr.Rs()]
	divisor := c.GPR[c.Instr.Rt()]
	if divisor == 0 {
		c.HI = dividend
		c.LO = 0xffffffff
		return
	}
	c.HI = dividend % divisor
	c.LO = dividend / divisor
}

func (c *CPU) opMFHI() { c.setReg(c.Instr.Rd(), c.HI) }
func (c *CPU) opMFLO() { c.setReg(c.Instr.Rd(), c.LO) }
func (c *CPU) opMTHI() { c.HI = c.GPR[c.Instr.Rs()] }
func (c *CPU) opMTLO() { c.LO = c.GPR[c.Instr.Rs()] }

/* Jumps and branches */

func (c *CPU) opJ() {
	c.NextInstr.IsDelaySlot = true
	c.NextInstr.BranchTaken = true
	c.PC = c.NextInstr.PC&0xf0000000 | c.Instr.Target()<<2
}

func (c *CPU) opJAL() {
	c.setReg(31, c.PC)
	c.opJ()
}

func (c *CPU) opJR() {
	c.NextInstr.IsDelaySlot = true
	c.NextInstr.BranchTaken = true
	c.PC = c.GPR[c.Instr.Rs()]
}

func (c *CPU) opJALR() {
	c.setReg(c.Instr.Rd(), c.Instr.PC+8)
	c.opJR()
}

func (c *CPU) opBEQ() {
	c.NextInstr.IsDelaySlot = true
	if c.GPR[c.Instr.Rs()] == c.GPR[c.Instr.Rt()] {
		c.branchTo()
	}
}

func (c *CPU) opBNE() {
	c.NextInstr.IsDelaySlot = true
	if c.GPR[c.Instr.Rs()] != c.GPR[c.Instr.Rt()] {
		c.branchTo()
	}
}

func (c *CPU) opBLEZ() {
	c.NextInstr.IsDelaySlot = true
	if int32(c.GPR[c.Instr.Rs()]) <= 0 {
		c.branchTo()
	}
}

func (c *CPU) opBGTZ() {
	c.NextInstr.IsDelaySlot = true
	if int32(c.GPR[c.Instr.Rs()]) > 0 {
		c.branchTo()
	}
}

// BCOND folds BLTZ/BGEZ and their linking forms: bit 0 of rt selects the
// comparison, rt & 0x1e == 0x10 selects linking.
func (c *CPU) opBCOND() {
	rt := c.Instr.Rt()
	c.NextInstr.IsDelaySlot = true

	shouldLink := rt&0x1e == 0x10
	shouldBranch := int32(c.GPR[c.Instr.Rs()]^rt<<31) < 0

	if shouldLink {
		c.GPR[31] = c.Instr.PC + 8
	}
	if shouldBranch {
		c.branchTo()
	}
}

/* System */

func (c *CPU) opSYSCALL() {
	c.exception(ExcSyscall, 0)
}

func (c *CPU) opBREAK() {
	c.exception(ExcBreak, 0)
}

func (c *CPU) opRFE() {
	c.COP0.PopMode()
}

/* COP0 moves */

func (c *CPU) opMFC0() {
	c.load(c.Instr.Rt(), c.COP0.Regs[c.Instr.Rd()])
}

func (c *CPU) opMTC0() {
	c.COP0.Regs[c.Instr.Rd()] = c.GPR[c.Instr.Rt()]
}

package ee

import (
	"fmt"
	"math/bits"
)

// The MMI opcode space holds the parallel (128-bit SIMD) instructions plus
// the second multiply/divide pipe.
func (c *CPU) opMMI() {
	switch c.Instr.Funct() {
	case 0b000000:
		c.opMADD()
	case 0b000100:
		c.opPLZCW()
	case 0b001000:
		switch c.Instr.Sa() {
		case 0b00001:
			c.opPSUBW()
		case 0b01001:
			c.opPSUBB()
		default:
			panic(fmt.Sprintf("ee: unimplemented MMI0 function %#05b at %#x", c.Instr.Sa(), c.Instr.PC))
		}
	case 0b001001:
		switch c.Instr.Sa() {
		case 0b01110:
			c.opPCPYLD()
		case 0b10010:
			c.opPAND()
		case 0b10011:
			c.opPXOR()
		default:
			panic(fmt.Sprintf("ee: unimplemented MMI2 function %#05b at %#x", c.Instr.Sa(), c.Instr.PC))
		}
	case 0b010000:
		c.opMFHI1()
	case 0b010001:
		c.opMTHI1()
	case 0b010010:
		c.opMFLO1()
	case 0b010011:
		c.opMTLO1()
	case 0b011000:
		c.opMULT1()
	case 0b011011:
		c.opDIVU1()
	case 0b100000:
		c.opMADD1()
	case 0b101000:
		switch c.Instr.Sa() {
		case 0b10000:
			c.opPADDUW()
		default:
			panic(fmt.Sprintf("ee: unimplemented MMI1 function %#05b at %#x", c.Instr.Sa(), c.Instr.PC))
		}
	case 0b101001:
		switch c.Instr.Sa() {
		case 0b01110:
			c.opPCPYUD()
		case 0b10010:
			c.opPOR()
		case 0b10011:
			c.opPNOR()
		case 0b11011:
			c.opPCPYH()
		default:
			panic(fmt.Sprintf("ee: unimplemented MMI3 function %#05b at %#x", c.Instr.Sa(), c.Instr.PC))
		}
	default:
		panic(fmt.Sprintf("ee: unimplemented MMI function %#06b at %#x", c.Instr.Funct(), c.Instr.PC))
	}
}

/* Second multiply/divide pipe */

func (c *CPU) opMULT1() {
	result := int64(int32(c.w0(c.Instr.Rs()))) * int64(int32(c.w0(c.Instr.Rt())))
	c.LO1 = se64(uint32(result))
	c.HI1 = se64(uint32(result >> 32))
	c.setLo(c.Instr.Rd(), c.LO1)
}

func (c *CPU) opDIVU1() {
	dividend := c.w0(c.Instr.Rs())
	divisor := c.w0(c.Instr.Rt())
	if divisor == 0 {
		c.HI1 = se64(dividend)
		c.LO1 = se64(0xffffffff)
		return
	}
	c.LO1 = se64(dividend / divisor)
	c.HI1 = se64(dividend % divisor)
}

func (c *CPU) opMADD() {
	acc := c.HI0<<32 | c.LO0&0xffffffff
	result := int64(acc) + int64(int32(c.w0(c.Instr.Rs())))*int64(int32(c.w0(c.Instr.Rt())))
	c.LO0 = se64(uint32(result))
	c.HI0 = se64(uint32(result >> 32))
	c.setLo(c.Instr.Rd(), c.LO0)
}

func (c *CPU) opMADD1() {
	acc := c.HI1<<32 | c.LO1&0xffffffff
	result := int64(acc) + int64(int32(c.w0(c.Instr.Rs())))*int64(int32(c.w0(c.Instr.Rt())))
	c.LO1 = se64(uint32(result))
	c.HI1 = se64(uint32(result >> 32))
	c.setLo(c.Instr.Rd(), c.LO1)
}

func (c *CPU) opMFHI1() { c.setLo(c.Instr.Rd(), c.HI1) }
func (c *CPU) opMTHI1() { c.HI1 = c.GPR[c.Instr.Rs()].Lo }
func (c *CPU) opMFLO1() { c.setLo(c.Instr.Rd(), c.LO1) }
func (c *CPU) opMTLO1() { c.LO1 = c.GPR[c.Instr.Rs()].Lo }

/* Parallel operations */

// PLZCW counts leading equal bits (sign bits minus one) in each low word.
func (c *CPU) opPLZCW() {
	rd, rs := c.Instr.Rd(), c.Instr.Rs()
	for i := 0; i < 2; i++ {
		word := c.GPR[rs].Word(i)
		if word&0x80000000 != 0 {
			word = ^word
		}
		count := uint32(0x1f)
		if word != 0 {
			count = uint32(bits.LeadingZeros32(word)) - 1
		}
		c.GPR[rd].SetWord(i, count)
	}
}

// PADDUW adds word lanes with unsigned saturation.
func (c *CPU) opPADDUW() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	for i := 0; i < 4; i++ {
		sum := uint64(c.GPR[rs].Word(i)) + uint64(c.GPR[rt].Word(i))
		if sum > 0xffffffff {
			sum = 0xffffffff
		}
		c.GPR[rd].SetWord(i, uint32(sum))
	}
}

func (c *CPU) opPSUBB() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	for i := 0; i < 16; i++ {
		c.GPR[rd].SetByte(i, c.GPR[rs].Byte(i)-c.GPR[rt].Byte(i))
	}
}

func (c *CPU) opPSUBW() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	for i := 0; i < 4; i++ {
		c.GPR[rd].SetWord(i, c.GPR[rs].Word(i)-c.GPR[rt].Word(i))
	}
}

func (c *CPU) opPAND() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	c.GPR[rd] = c.GPR[rs].And(c.GPR[rt])
}

func (c *CPU) opPOR() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	c.GPR[rd] = c.GPR[rs].Or(c.GPR[rt])
}

func (c *CPU) opPXOR() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	c.GPR[rd] = c.GPR[rs].Xor(c.GPR[rt])
}

func (c *CPU) opPNOR() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	or := c.GPR[rs].Or(c.GPR[rt])
	c.GPR[rd] = Register{Lo: ^or.Lo, Hi: ^or.Hi}
}

// PCPYLD packs the low dwords of rt and rs.
func (c *CPU) opPCPYLD() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	lo := c.GPR[rt].Lo
	hi := c.GPR[rs].Lo
	c.GPR[rd] = Register{Lo: lo, Hi: hi}
}

// PCPYUD packs the high dwords of rs and rt.
func (c *CPU) opPCPYUD() {
	rd, rs, rt := c.Instr.Rd(), c.Instr.Rs(), c.Instr.Rt()
	lo := c.GPR[rs].Hi
	hi := c.GPR[rt].Hi
	c.GPR[rd] = Register{Lo: lo, Hi: hi}
}

// PCPYH broadcasts halfword 0 across the low dword and halfword 4 across
// the high dword.
func (c *CPU) opPCPYH() {
	rd, rt := c.Instr.Rd(), c.Instr.Rt()
	low := c.GPR[rt].Hword(0)
	high := c.GPR[rt].Hword(4)
	for i := 0; i < 4; i++ {
		c.GPR[rd].SetHword(i, low)
		c.GPR[rd].SetHword(i+4, high)
	}
}

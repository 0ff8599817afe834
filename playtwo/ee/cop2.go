package ee

import "fmt"

// COP2 is VU0 in macro mode. Moves exchange data with the VU register
// files; formats 16..31 execute vector arithmetic directly.
func (c *CPU) opCOP2() {
	format := c.Instr.Rs()
	switch {
	case format == 0b00001:
		c.opQMFC2()
	case format == 0b00010:
		c.opCFC2()
	case format == 0b00101:
		c.opQMTC2()
	case format == 0b00110:
		c.opCTC2()
	case format >= 0b10000:
		c.VU0.Special1(c.Instr.Value)
	default:
		panic(fmt.Sprintf("ee: unimplemented COP2 format %#05b at %#x", format, c.Instr.PC))
	}
}

func (c *CPU) opQMFC2() {
	c.GPR[c.Instr.Rt()] = c.VU0.VF[c.Instr.Rd()]
}

func (c *CPU) opQMTC2() {
	c.VU0.VF[c.Instr.Rd()] = c.GPR[c.Instr.Rt()]
}

func (c *CPU) opCFC2() {
	c.setLo(c.Instr.Rt(), se64(c.VU0.ReadReg(c.Instr.Rd())))
}

func (c *CPU) opCTC2() {
	c.VU0.WriteReg(c.Instr.Rd(), c.w0(c.Instr.Rt()))
}

func (c *CPU) opSQC2() {
	vaddr := c.loadAddr()
	c.Bus.Write128(vaddr, c.VU0.VF[c.Instr.Rt()])
}

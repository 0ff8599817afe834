package ee

import (
	"log/slog"
	"math"

	"github.com/gpucode/playtwo/playtwo/bit"
)

func se64(v uint32) uint64 { return bit.SignExtend32to64(v) }

// w0 reads the low word of a register, the view most 32-bit operations use.
func (c *CPU) w0(r uint32) uint32 { return uint32(c.GPR[r].Lo) }

func (c *CPU) setLo(r uint32, v uint64) { c.GPR[r].Lo = v }

// loadAddr computes base + sign-extended offset for memory operations.
func (c *CPU) loadAddr() uint32 {
	return c.w0(c.Instr.Rs()) + uint32(c.Instr.SImm16())
}

// branch marks the delay slot and, if the condition held, redirects the PC
// to the branch target. The PC currently points one past the delay slot.
func (c *CPU) branch(cond bool) {
	c.NextInstr.IsDelaySlot = true
	if cond {
		c.BranchTaken = true
		c.PC += uint32(c.Instr.SImm16()<<2) - 4
	}
}

// branchLikely squashes the delay slot when the condition fails.
func (c *CPU) branchLikely(cond bool) {
	if cond {
		c.BranchTaken = true
		c.PC += uint32(c.Instr.SImm16()<<2) - 4
	} else {
		c.SkipBranchDelay = true
	}
	c.NextInstr.IsDelaySlot = !c.SkipBranchDelay
}

/* Loads */

func (c *CPU) opLB() {
	c.setLo(c.Instr.Rt(), uint64(int64(int8(c.read8(c.loadAddr())))))
}

func (c *CPU) opLBU() {
	c.setLo(c.Instr.Rt(), uint64(c.read8(c.loadAddr())))
}

func (c *CPU) opLH() {
	vaddr := c.loadAddr()
	if vaddr&0x1 != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.setLo(c.Instr.Rt(), uint64(int64(int16(c.read16(vaddr)))))
}

func (c *CPU) opLHU() {
	vaddr := c.loadAddr()
	if vaddr&0x1 != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.setLo(c.Instr.Rt(), uint64(c.read16(vaddr)))
}

func (c *CPU) opLW() {
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.setLo(c.Instr.Rt(), se64(c.read32(vaddr)))
}

func (c *CPU) opLWU() {
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.setLo(c.Instr.Rt(), uint64(c.read32(vaddr)))
}

func (c *CPU) opLD() {
	vaddr := c.loadAddr()
	if vaddr&0x7 != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.setLo(c.Instr.Rt(), c.read64(vaddr))
}

func (c *CPU) opLQ() {
	vaddr := c.loadAddr()
	if vaddr&0xf != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.GPR[c.Instr.Rt()] = c.Bus.Read128(vaddr)
}

func (c *CPU) opLUI() {
	c.setLo(c.Instr.Rt(), se64(uint32(c.Instr.Imm16())<<16))
}

/* Stores */

func (c *CPU) opSB() {
	c.write8(c.loadAddr(), uint8(c.w0(c.Instr.Rt())))
}

func (c *CPU) opSH() {
	vaddr := c.loadAddr()
	if vaddr&0x1 != 0 {
		c.Exception(ExcAddrErrorStore)
		return
	}
	c.write16(vaddr, uint16(c.w0(c.Instr.Rt())))
}

func (c *CPU) opSW() {
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.Exception(ExcAddrErrorStore)
		return
	}
	c.write32(vaddr, c.w0(c.Instr.Rt()))
}

func (c *CPU) opSD() {
	vaddr := c.loadAddr()
	if vaddr&0x7 != 0 {
		c.Exception(ExcAddrErrorStore)
		return
	}
	c.write64(vaddr, c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opSQ() {
	vaddr := c.loadAddr()
	if vaddr&0xf != 0 {
		c.Exception(ExcAddrErrorStore)
		return
	}
	c.Bus.Write128(vaddr, c.GPR[c.Instr.Rt()])
}

/* Unaligned word helpers */

var (
	lwlMask  = [4]uint32{0x00ffffff, 0x0000ffff, 0x000000ff, 0x00000000}
	lwlShift = [4]uint{24, 16, 8, 0}
	lwrMask  = [4]uint32{0x00000000, 0xff000000, 0xffff0000, 0xffffff00}
	lwrShift = [4]uint{0, 8, 16, 24}
	swlMask  = [4]uint32{0xffffff00, 0xffff0000, 0xff000000, 0x00000000}
	swlShift = [4]uint{24, 16, 8, 0}
	swrMask  = [4]uint32{0x00000000, 0x000000ff, 0x0000ffff, 0x00ffffff}
	swrShift = [4]uint{0, 8, 16, 24}
)

func (c *CPU) opLWL() {
	rt := c.Instr.Rt()
	vaddr := c.loadAddr()
	shift := vaddr & 0x3

	data := c.read32(vaddr &^ 0x3)
	result := c.w0(rt)&lwlMask[shift] | data<<lwlShift[shift]
	c.setLo(rt, se64(result))
}

func (c *CPU) opLWR() {
	rt := c.Instr.Rt()
	vaddr := c.loadAddr()
	shift := vaddr & 0x3

	data := c.read32(vaddr &^ 0x3)
	result := c.w0(rt)&lwrMask[shift] | data>>lwrShift[shift]
	c.setLo(rt, se64(result))
}

func (c *CPU) opSWL() {
	rt := c.Instr.Rt()
	vaddr := c.loadAddr()
	aligned := vaddr &^ 0x3
	shift := vaddr & 0x3

	data := c.read32(aligned)
	c.write32(aligned, c.w0(rt)>>swlShift[shift]|data&swlMask[shift])
}

func (c *CPU) opSWR() {
	rt := c.Instr.Rt()
	vaddr := c.loadAddr()
	aligned := vaddr &^ 0x3
	shift := vaddr & 0x3

	data := c.read32(aligned)
	c.write32(aligned, c.w0(rt)<<swrShift[shift]|data&swrMask[shift])
}

/* Unaligned doubleword helpers */

func (c *CPU) opLDL() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	qword := c.read64(addr &^ 0x7)

	bcount := int(addr & 0x7)
	for i := bcount; i >= 0; i-- {
		c.GPR[rt].SetByte(bcount-i, uint8(qword>>(8*uint(i))))
	}
}

func (c *CPU) opLDR() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	qword := c.read64(addr &^ 0x7)

	bcount := int(addr & 0x7)
	for i := bcount; i < 8; i++ {
		c.GPR[rt].SetByte(7-(i-bcount), uint8(qword>>(8*uint(i))))
	}
}

func (c *CPU) opSDL() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	aligned := addr &^ 0x7
	qword := c.read64(aligned)

	bcount := int(addr & 0x7)
	for i := bcount; i >= 0; i-- {
		shift := 8 * uint(i)
		qword = qword&^(uint64(0xff)<<shift) | uint64(c.GPR[rt].Byte(bcount-i))<<shift
	}
	c.write64(aligned, qword)
}

func (c *CPU) opSDR() {
	rt := c.Instr.Rt()
	addr := c.loadAddr()
	aligned := addr &^ 0x7
	qword := c.read64(aligned)

	bcount := int(addr & 0x7)
	for i := bcount; i < 8; i++ {
		shift := 8 * uint(i)
		qword = qword&^(uint64(0xff)<<shift) | uint64(c.GPR[rt].Byte(7-(i-bcount)))<<shift
	}
	c.write64(aligned, qword)
}

/* Arithmetic */

func (c *CPU) opADD() {
	a := int32(c.w0(c.Instr.Rs()))
	b := int32(c.w0(c.Instr.Rt()))
	r := a + b
	if (a >= 0) == (b >= 0) && (r >= 0) != (a >= 0) {
		c.Exception(ExcOverflow)
		return
	}
	c.setLo(c.Instr.Rd(), se64(uint32(r)))
}

func (c *CPU) opADDU() {
	r := c.w0(c.Instr.Rs()) + c.w0(c.Instr.Rt())
	c.setLo(c.Instr.Rd(), se64(r))
}

func (c *CPU) opSUB() {
	a := int32(c.w0(c.Instr.Rs()))
	b := int32(c.w0(c.Instr.Rt()))
	r := a - b
	if (a >= 0) != (b >= 0) && (r >= 0) != (a >= 0) {
		c.Exception(ExcOverflow)
		return
	}
	c.setLo(c.Instr.Rd(), se64(uint32(r)))
}

func (c *CPU) opSUBU() {
	r := c.w0(c.Instr.Rs()) - c.w0(c.Instr.Rt())
	c.setLo(c.Instr.Rd(), se64(r))
}

func (c *CPU) opADDI() {
	a := int32(c.w0(c.Instr.Rs()))
	b := c.Instr.SImm16()
	r := a + b
	if (a >= 0) == (b >= 0) && (r >= 0) != (a >= 0) {
		c.Exception(ExcOverflow)
		return
	}
	c.setLo(c.Instr.Rt(), se64(uint32(r)))
}

func (c *CPU) opADDIU() {
	r := c.w0(c.Instr.Rs()) + uint32(c.Instr.SImm16())
	c.setLo(c.Instr.Rt(), se64(r))
}

func (c *CPU) opDADDU() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo+c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opDSUBU() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo-c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opDADDIU() {
	c.setLo(c.Instr.Rt(), c.GPR[c.Instr.Rs()].Lo+uint64(int64(c.Instr.SImm16())))
}

func (c *CPU) opSLT() {
	var r uint64
	if int64(c.GPR[c.Instr.Rs()].Lo) < int64(c.GPR[c.Instr.Rt()].Lo) {
		r = 1
	}
	c.setLo(c.Instr.Rd(), r)
}

func (c *CPU) opSLTU() {
	var r uint64
	if c.GPR[c.Instr.Rs()].Lo < c.GPR[c.Instr.Rt()].Lo {
		r = 1
	}
	c.setLo(c.Instr.Rd(), r)
}

func (c *CPU) opSLTI() {
	var r uint64
	if int64(c.GPR[c.Instr.Rs()].Lo) < int64(c.Instr.SImm16()) {
		r = 1
	}
	c.setLo(c.Instr.Rt(), r)
}

func (c *CPU) opSLTIU() {
	var r uint64
	if c.GPR[c.Instr.Rs()].Lo < uint64(int64(c.Instr.SImm16())) {
		r = 1
	}
	c.setLo(c.Instr.Rt(), r)
}

/* Logic */

func (c *CPU) opAND() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo&c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opOR() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo|c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opXOR() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo^c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opNOR() {
	c.setLo(c.Instr.Rd(), ^(c.GPR[c.Instr.Rs()].Lo | c.GPR[c.Instr.Rt()].Lo))
}

func (c *CPU) opANDI() {
	c.setLo(c.Instr.Rt(), c.GPR[c.Instr.Rs()].Lo&uint64(c.Instr.Imm16()))
}

func (c *CPU) opORI() {
	c.setLo(c.Instr.Rt(), c.GPR[c.Instr.Rs()].Lo|uint64(c.Instr.Imm16()))
}

func (c *CPU) opXORI() {
	c.setLo(c.Instr.Rt(), c.GPR[c.Instr.Rs()].Lo^uint64(c.Instr.Imm16()))
}

/* Shifts */

func (c *CPU) opSLL() {
	c.setLo(c.Instr.Rd(), se64(c.w0(c.Instr.Rt())<<c.Instr.Sa()))
}

func (c *CPU) opSRL() {
	c.setLo(c.Instr.Rd(), se64(c.w0(c.Instr.Rt())>>c.Instr.Sa()))
}

func (c *CPU) opSRA() {
	c.setLo(c.Instr.Rd(), se64(uint32(int32(c.w0(c.Instr.Rt()))>>c.Instr.Sa())))
}

func (c *CPU) opSLLV() {
	sa := c.w0(c.Instr.Rs()) & 0x3f
	c.setLo(c.Instr.Rd(), se64(c.w0(c.Instr.Rt())<<sa))
}

func (c *CPU) opSRLV() {
	sa := c.w0(c.Instr.Rs()) & 0x3f
	c.setLo(c.Instr.Rd(), se64(c.w0(c.Instr.Rt())>>sa))
}

func (c *CPU) opSRAV() {
	sa := c.w0(c.Instr.Rs()) & 0x3f
	c.setLo(c.Instr.Rd(), se64(uint32(int32(c.w0(c.Instr.Rt()))>>sa)))
}

func (c *CPU) opDSLL() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rt()].Lo<<c.Instr.Sa())
}

func (c *CPU) opDSRL() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rt()].Lo>>c.Instr.Sa())
}

func (c *CPU) opDSRA() {
	c.setLo(c.Instr.Rd(), uint64(int64(c.GPR[c.Instr.Rt()].Lo)>>c.Instr.Sa()))
}

func (c *CPU) opDSLL32() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rt()].Lo<<(c.Instr.Sa()+32))
}

func (c *CPU) opDSRL32() {
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rt()].Lo>>(c.Instr.Sa()+32))
}

func (c *CPU) opDSRA32() {
	c.setLo(c.Instr.Rd(), uint64(int64(c.GPR[c.Instr.Rt()].Lo)>>(c.Instr.Sa()+32)))
}

func (c *CPU) opDSLLV() {
	sa := c.w0(c.Instr.Rs()) & 0x3f
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rt()].Lo<<sa)
}

func (c *CPU) opDSRLV() {
	sa := c.w0(c.Instr.Rs()) & 0x3f
	c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rt()].Lo>>sa)
}

func (c *CPU) opDSRAV() {
	sa := c.w0(c.Instr.Rs()) & 0x3f
	c.setLo(c.Instr.Rd(), uint64(int64(c.GPR[c.Instr.Rt()].Lo)>>sa))
}

/* Multiply / divide */

func (c *CPU) opMULT() {
	result := int64(int32(c.w0(c.Instr.Rs()))) * int64(int32(c.w0(c.Instr.Rt())))
	c.LO0 = se64(uint32(result))
	c.HI0 = se64(uint32(result >> 32))
	c.setLo(c.Instr.Rd(), c.LO0)
}

func (c *CPU) opMULTU() {
	result := uint64(c.w0(c.Instr.Rs())) * uint64(c.w0(c.Instr.Rt()))
	c.LO0 = se64(uint32(result))
	c.HI0 = se64(uint32(result >> 32))
	c.setLo(c.Instr.Rd(), c.LO0)
}

func (c *CPU) opDIV() {
	dividend := int32(c.w0(c.Instr.Rs()))
	divisor := int32(c.w0(c.Instr.Rt()))
	switch {
	case divisor == 0:
		c.HI0 = se64(uint32(dividend))
		if dividend >= 0 {
			c.LO0 = se64(0xffffffff)
		} else {
			c.LO0 = 1
		}
	case dividend == math.MinInt32 && divisor == -1:
		c.LO0 = se64(0x80000000)
		c.HI0 = 0
	default:
		c.LO0 = se64(uint32(dividend / divisor))
		c.HI0 = se64(uint32(dividend % divisor))
	}
}

func (c *CPU) opDIVU() {
	dividend := c.w0(c.Instr.Rs())
	divisor := c.w0(c.Instr.Rt())
	if divisor == 0 {
		c.HI0 = se64(dividend)
		c.LO0 = se64(0xffffffff)
		return
	}
	c.LO0 = se64(dividend / divisor)
	c.HI0 = se64(dividend % divisor)
}

func (c *CPU) opMFHI() { c.setLo(c.Instr.Rd(), c.HI0) }
func (c *CPU) opMFLO() { c.setLo(c.Instr.Rd(), c.LO0) }
func (c *CPU) opMTHI() { c.HI0 = c.GPR[c.Instr.Rs()].Lo }
func (c *CPU) opMTLO() { c.LO0 = c.GPR[c.Instr.Rs()].Lo }

func (c *CPU) opMFSA() { c.setLo(c.Instr.Rd(), uint64(c.SA)) }
func (c *CPU) opMTSA() { c.SA = c.w0(c.Instr.Rs()) }

/* Conditional moves */

func (c *CPU) opMOVN() {
	if c.GPR[c.Instr.Rt()].Lo != 0 {
		c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo)
	}
}

func (c *CPU) opMOVZ() {
	if c.GPR[c.Instr.Rt()].Lo == 0 {
		c.setLo(c.Instr.Rd(), c.GPR[c.Instr.Rs()].Lo)
	}
}

/* Jumps and branches */

func (c *CPU) opJ() {
	c.PC = (c.PC-4)&0xf0000000 | c.Instr.Target()<<2
	c.NextInstr.IsDelaySlot = true
	c.BranchTaken = true
}

func (c *CPU) opJAL() {
	c.setLo(31, uint64(c.PC))
	c.PC = (c.PC-4)&0xf0000000 | c.Instr.Target()<<2
	c.NextInstr.IsDelaySlot = true
	c.BranchTaken = true
}

func (c *CPU) opJR() {
	c.PC = c.w0(c.Instr.Rs())
	c.NextInstr.IsDelaySlot = true
	c.BranchTaken = true
}

func (c *CPU) opJALR() {
	c.setLo(c.Instr.Rd(), uint64(c.PC))
	c.PC = c.w0(c.Instr.Rs())
	c.NextInstr.IsDelaySlot = true
	c.BranchTaken = true
}

func (c *CPU) opBEQ() {
	c.branch(c.GPR[c.Instr.Rs()].Lo == c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opBNE() {
	c.branch(c.GPR[c.Instr.Rs()].Lo != c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opBLEZ() {
	c.branch(int64(c.GPR[c.Instr.Rs()].Lo) <= 0)
}

func (c *CPU) opBGTZ() {
	c.branch(int64(c.GPR[c.Instr.Rs()].Lo) > 0)
}

func (c *CPU) opBLTZ() {
	c.branch(int64(c.GPR[c.Instr.Rs()].Lo) < 0)
}

func (c *CPU) opBGEZ() {
	c.branch(int64(c.GPR[c.Instr.Rs()].Lo) >= 0)
}

func (c *CPU) opBEQL() {
	c.branchLikely(c.GPR[c.Instr.Rs()].Lo == c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opBNEL() {
	c.branchLikely(c.GPR[c.Instr.Rs()].Lo != c.GPR[c.Instr.Rt()].Lo)
}

func (c *CPU) opBLEZL() {
	c.branchLikely(int64(c.GPR[c.Instr.Rs()].Lo) <= 0)
}

func (c *CPU) opBLTZL() {
	c.branchLikely(int64(c.GPR[c.Instr.Rs()].Lo) < 0)
}

func (c *CPU) opBGEZL() {
	c.branchLikely(int64(c.GPR[c.Instr.Rs()].Lo) >= 0)
}

/* System */

// Known kernel entry points, logged on SYSCALL for boot tracing.
var syscallNames = map[uint8]string{
	0x05: "_ExceptionEpilogue",
	0x12: "AddDmacHandler",
	0x16: "_EnableDmac",
	0x3c: "InitMainThread",
	0x3d: "InitHeap",
	0x40: "CreateSema",
	0x43: "iSignalSema",
	0x44: "WaitSema",
	0x64: "FlushCache",
	0x77: "SifSetDma",
	0x78: "sceSifSetDChain",
	0x79: "sceSifSetReg",
	0x7a: "sceSifGetReg",
	0x7c: "Deci2Call",
}

func (c *CPU) opSYSCALL() {
	// The syscall id sits in the low byte of the preceding li; negative
	// ids name the same call.
	code := int8(c.read8(c.Instr.PC - 4))
	id := uint8(code)
	if code < 0 {
		id = uint8(-code)
	}
	slog.Debug("EE syscall", "id", id, "name", syscallNames[id])
	c.Exception(ExcSyscall)
}

func (c *CPU) opBREAK() {
	c.Exception(ExcBreak)
}

/* COP0 */

func (c *CPU) opMFC0() {
	if c.COP0.OperatingMode() != KernelMode {
		c.Exception(ExcCopUnusable)
		return
	}
	c.setLo(c.Instr.Rt(), uint64(c.COP0.Regs[c.Instr.Rd()]))
}

func (c *CPU) opMTC0() {
	if c.COP0.OperatingMode() != KernelMode {
		c.Exception(ExcCopUnusable)
		return
	}
	c.COP0.Regs[c.Instr.Rd()] = c.w0(c.Instr.Rt())
}

func (c *CPU) opERET() {
	if c.COP0.ERL() {
		c.PC = c.COP0.ErrorEPC()
		c.COP0.SetERL(false)
	} else {
		c.PC = c.COP0.EPC()
		c.COP0.SetEXL(false)
	}
	// ERET has no delay slot.
	c.fetchNext()
}

func (c *CPU) opEI() {
	cop0 := &c.COP0
	if cop0.EDI() || cop0.EXL() || cop0.ERL() || cop0.KSU() == 0 {
		cop0.SetEIE(true)
	}
}

func (c *CPU) opDI() {
	cop0 := &c.COP0
	if cop0.EDI() || cop0.EXL() || cop0.ERL() || cop0.KSU() == 0 {
		cop0.SetEIE(false)
	}
}

/* COP1 moves */

func (c *CPU) opMTC1() {
	c.COP1.FPR[c.Instr.Rd()] = c.w0(c.Instr.Rt())
}

func (c *CPU) opMFC1() {
	c.setLo(c.Instr.Rt(), se64(c.COP1.FPR[c.Instr.Rd()]))
}

func (c *CPU) opCTC1() {
	switch c.Instr.Rd() {
	case 0:
		c.COP1.FCR0 = c.w0(c.Instr.Rt())
	case 31:
		c.COP1.FCR31 = c.w0(c.Instr.Rt())
	}
}

func (c *CPU) opCFC1() {
	switch c.Instr.Rd() {
	case 0:
		c.setLo(c.Instr.Rt(), se64(c.COP1.FCR0))
	case 31:
		c.setLo(c.Instr.Rt(), se64(c.COP1.FCR31))
	}
}

func (c *CPU) opLWC1() {
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.Exception(ExcAddrErrorLoad)
		return
	}
	c.COP1.FPR[c.Instr.Rt()] = c.read32(vaddr)
}

func (c *CPU) opSWC1() {
	vaddr := c.loadAddr()
	if vaddr&0x3 != 0 {
		c.Exception(ExcAddrErrorStore)
		return
	}
	c.write32(vaddr, c.COP1.FPR[c.Instr.Rt()])
}

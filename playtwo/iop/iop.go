// Package iop implements the PS2 I/O processor, a MIPS R3000A running at
// an eighth of the EE clock.
package iop

import (
	"github.com/gpucode/playtwo/playtwo/bus"
)

// Exception codes.
type Exception uint32

const (
	ExcInterrupt  Exception = 0x0
	ExcReadError  Exception = 0x4
	ExcWriteError Exception = 0x5
	ExcBusError   Exception = 0x6
	ExcSyscall    Exception = 0x8
	ExcBreak      Exception = 0x9
	ExcIllegal    Exception = 0xa
	ExcCoprocessor Exception = 0xb
	ExcOverflow   Exception = 0xc
)

// Instruction is a fetched R3000A instruction word with pipeline context.
type Instruction struct {
	Value       uint32
	PC          uint32
	IsDelaySlot bool
	BranchTaken bool
}

func (i Instruction) Opcode() uint32 { return i.Value >> 26 }
func (i Instruction) Rs() uint32     { return i.Value >> 21 & 0x1f }
func (i Instruction) Rt() uint32     { return i.Value >> 16 & 0x1f }
func (i Instruction) Rd() uint32     { return i.Value >> 11 & 0x1f }
func (i Instruction) Sa() uint32     { return i.Value >> 6 & 0x1f }
func (i Instruction) Funct() uint32  { return i.Value & 0x3f }
func (i Instruction) Imm16() uint16  { return uint16(i.Value) }
func (i Instruction) SImm16() int32  { return int32(int16(i.Value)) }
func (i Instruction) Target() uint32 { return i.Value & 0x03ffffff }

// loadSlot carries a register update through the load-delay pipeline.
type loadSlot struct {
	Reg   uint32
	Value uint32
}

// CPU is the I/O processor core. Loads retire through a two-deep delay
// pipeline; ALU results land in a write-back slot applied at the end of
// the cycle so the delay slots observe the pre-instruction register file.
type CPU struct {
	Bus *bus.Bus

	GPR [32]uint32
	PC  uint32
	HI  uint32
	LO  uint32

	Instr     Instruction
	NextInstr Instruction

	WriteBack         loadSlot
	MemoryLoad        loadSlot
	DelayedMemoryLoad loadSlot

	COP0   COP0
	INTR   *INTR
	Timers *Timers
	DMA    *DMA
}

func New(b *bus.Bus) *CPU {
	c := &CPU{Bus: b}
	c.INTR = &INTR{cpu: c}
	c.Timers = &Timers{cpu: c}
	c.DMA = &DMA{}
	c.Reset()
	return c
}

func (c *CPU) Reset() {
	c.PC = 0xbfc00000
	c.GPR = [32]uint32{}
	c.HI, c.LO = 0, 0
	c.WriteBack, c.MemoryLoad, c.DelayedMemoryLoad = loadSlot{}, loadSlot{}, loadSlot{}
	c.COP0.Reset()
	c.fetchNext()
}

// Jump redirects execution to addr with no delay slot.
func (c *CPU) Jump(addr uint32) {
	c.PC = addr
	c.fetchNext()
}

func (c *CPU) fetchNext() {
	c.NextInstr = Instruction{Value: c.read32(c.PC), PC: c.PC}
	c.PC += 4
}

// Tick executes a batch of instructions, then advances the timers and
// samples the interrupt lines.
func (c *CPU) Tick(cycles uint32) {
	for i := cycles; i > 0; i-- {
		c.step()
	}

	c.Timers.Tick(cycles)

	if c.INTR.Pending() {
		c.exception(ExcInterrupt, 0)
	}
}

func (c *CPU) step() {
	c.Instr = c.NextInstr

	if c.PC&0x3 != 0 {
		c.COP0.SetBadA(c.PC)
		c.exception(ExcReadError, 0)
		return
	}

	c.fetchNext()
	c.dispatch()
	c.retireLoadDelay()
}

// retireLoadDelay commits the load pipeline: the older load lands unless
// the newer one targets the same register, then everything shifts forward
// and the ALU write-back is applied.
func (c *CPU) retireLoadDelay() {
	if c.DelayedMemoryLoad.Reg != c.MemoryLoad.Reg {
		c.GPR[c.MemoryLoad.Reg] = c.MemoryLoad.Value
	}
	c.MemoryLoad = c.DelayedMemoryLoad
	c.DelayedMemoryLoad = loadSlot{}

	c.GPR[c.WriteBack.Reg] = c.WriteBack.Value
	c.WriteBack = loadSlot{}
	c.GPR[0] = 0
}

// setReg schedules an ALU result for write-back this cycle.
func (c *CPU) setReg(reg, value uint32) {
	c.WriteBack = loadSlot{Reg: reg, Value: value}
}

// load schedules a memory result one cycle out.
func (c *CPU) load(reg, value uint32) {
	c.DelayedMemoryLoad = loadSlot{Reg: reg, Value: value}
}

// exception rotates the status mode stack and vectors to the BEV-selected
// handler. For interrupts the EPC points at the prefetched instruction.
func (c *CPU) exception(cause Exception, cop uint32) {
	c.COP0.PushMode()
	c.COP0.SetExcCode(uint32(cause))
	c.COP0.SetCE(cop)

	isDelaySlot := c.Instr.IsDelaySlot
	branchTaken := c.Instr.BranchTaken
	if cause == ExcInterrupt {
		c.COP0.SetEPC(c.NextInstr.PC)
		isDelaySlot = c.NextInstr.IsDelaySlot
		branchTaken = c.NextInstr.BranchTaken
	} else {
		c.COP0.SetEPC(c.Instr.PC)
	}

	if isDelaySlot {
		c.COP0.SetEPC(c.COP0.EPC() - 4)
		c.COP0.SetBD(true)
		c.COP0.SetTAR(c.NextInstr.PC)
		if branchTaken {
			c.COP0.SetBT(true)
		}
	}

	if c.COP0.BEV() {
		c.PC = 0xbfc00180
	} else {
		c.PC = 0x80000080
	}
	c.fetchNext()
}

// branchTo redirects the PC relative to the delay slot.
func (c *CPU) branchTo() {
	c.NextInstr.BranchTaken = true
	c.PC = c.NextInstr.PC + uint32(c.Instr.SImm16()<<2)
}

func (c *CPU) dispatch() {
	switch c.Instr.Opcode() {
	case 0b000000:
		c.opSpecial()
	case 0b000001:
		c.opBCOND()
	case 0b000010:
		c.opJ()
	case 0b000011:
		c.opJAL()
	case 0b000100:
		c.opBEQ()
	case 0b000101:
		c.opBNE()
	case 0b000110:
		c.opBLEZ()
	case 0b000111:
		c.opBGTZ()
	case 0b001000:
		c.opADDI()
	case 0b001001:
		c.opADDIU()
	case 0b001010:
		c.opSLTI()
	case 0b001011:
		c.opSLTIU()
	case 0b001100:
		c.opANDI()
	case 0b001101:
		c.opORI()
	case 0b001110:
		c.opXORI()
	case 0b001111:
		c.opLUI()
	case 0b010000:
		c.opCOP0()
	case 0b100000:
		c.opLB()
	case 0b100001:
		c.opLH()
	case 0b100010:
		c.opLWL()
	case 0b100011:
		c.opLW()
	case 0b100100:
		c.opLBU()
	case 0b100101:
		c.opLHU()
	case 0b100110:
		c.opLWR()
	case 0b101000:
		c.opSB()
	case 0b101001:
		c.opSH()
	case 0b101010:
		c.opSWL()
	case 0b101011:
		c.opSW()
	case 0b101110:
		c.opSWR()
	default:
		c.exception(ExcIllegal, 0)
	}
}

func (c *CPU) opSpecial() {
	switch c.Instr.Funct() {
	case 0b000000:
		c.opSLL()
	case 0b000010:
		c.opSRL()
	case 0b000011:
		c.opSRA()
	case 0b000100:
		c.opSLLV()
	case 0b000110:
		c.opSRLV()
	case 0b000111:
		c.opSRAV()
	case 0b001000:
		c.opJR()
	case 0b001001:
		c.opJALR()
	case 0b001100:
		c.opSYSCALL()
	case 0b001101:
		c.opBREAK()
	case 0b010000:
		c.opMFHI()
	case 0b010001:
		c.opMTHI()
	case 0b010010:
		c.opMFLO()
	case 0b010011:
		c.opMTLO()
	case 0b011000:
		c.opMULT()
	case 0b011001:
		c.opMULTU()
	case 0b011010:
		c.opDIV()
	case 0b011011:
		c.opDIVU()
	case 0b100000:
		c.opADD()
	case 0b100001:
		c.opADDU()
	case 0b100010:
		c.opSUB()
	case 0b100011:
		c.opSUBU()
	case 0b100100:
		c.opAND()
	case 0b100101:
		c.opOR()
	case 0b100110:
		c.opXOR()
	case 0b100111:
		c.opNOR()
	case 0b101010:
		c.opSLT()
	case 0b101011:
		c.opSLTU()
	default:
		c.exception(ExcIllegal, 0)
	}
}

func (c *CPU) opCOP0() {
	switch c.Instr.Rs() {
	case 0b00000:
		c.opMFC0()
	case 0b00100:
		c.opMTC0()
	case 0b10000:
		c.opRFE()
	default:
		c.exception(ExcIllegal, 0)
	}
}

package ee

import (
	"fmt"
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/vu"
)

// Exception codes written into Cause.ExcCode.
type Exception uint32

const (
	ExcInterrupt      Exception = 0
	ExcTLBModified    Exception = 1
	ExcTLBLoad        Exception = 2
	ExcTLBStore       Exception = 3
	ExcAddrErrorLoad  Exception = 4
	ExcAddrErrorStore Exception = 5
	ExcSyscall        Exception = 8
	ExcBreak          Exception = 9
	ExcReserved       Exception = 10
	ExcCopUnusable    Exception = 11
	ExcOverflow       Exception = 12
	ExcTrap           Exception = 13
)

// Exception vector offsets.
const (
	vecTLBRefill = 0x000
	vecCommon    = 0x180
	vecInterrupt = 0x200
)

// CPU is the Emotion Engine, a MIPS R5900 with 128-bit general registers.
type CPU struct {
	Bus *bus.Bus

	GPR [32]Register
	PC  uint32
	HI0 uint64
	LO0 uint64
	HI1 uint64
	LO1 uint64
	SA  uint32

	// Pipeline shadow: Instr executes this cycle, NextInstr is the fetched
	// delay-slot candidate.
	Instr     Instruction
	NextInstr Instruction

	// Set by a likely branch whose condition failed; the shadowed delay
	// slot is squashed on the next cycle.
	SkipBranchDelay bool
	BranchTaken     bool

	COP0   COP0
	COP1   COP1
	INTC   *INTC
	Timers *Timers
	VU0    *vu.Unit
}

// New wires a CPU to the bus and its macro-mode vector unit and resets it.
func New(b *bus.Bus, vu0 *vu.Unit) *CPU {
	c := &CPU{Bus: b, VU0: vu0}
	c.INTC = NewINTC(c, b)
	c.Timers = NewTimers(c.INTC, b)
	c.Reset()
	return c
}

// Reset puts the CPU into its power-on state: PC at the boot vector,
// BEV/ERL set, PRId identifying the R5900.
func (c *CPU) Reset() {
	c.PC = 0xbfc00000
	c.GPR = [32]Register{}
	c.HI0, c.LO0, c.HI1, c.LO1 = 0, 0, 0, 0
	c.SA = 0
	c.SkipBranchDelay = false
	c.BranchTaken = false
	c.COP0.Reset()
	c.fetchNext()
}

// Jump redirects execution to addr with no delay slot, refilling the
// pipeline shadow. Used by loaders.
func (c *CPU) Jump(addr uint32) {
	c.PC = addr
	c.fetchNext()
}

// fetchNext refills the pipeline shadow from the current PC.
func (c *CPU) fetchNext() {
	c.NextInstr = Instruction{Value: c.read32(c.PC), PC: c.PC}
	c.PC += 4
}

func (c *CPU) read8(addr uint32) uint8     { return c.Bus.Read8(addr) }
func (c *CPU) read16(addr uint32) uint16   { return c.Bus.Read16(addr) }
func (c *CPU) read32(addr uint32) uint32   { return c.Bus.Read32(addr) }
func (c *CPU) read64(addr uint32) uint64   { return c.Bus.Read64(addr) }
func (c *CPU) write8(addr uint32, v uint8)   { c.Bus.Write8(addr, v) }
func (c *CPU) write16(addr uint32, v uint16) { c.Bus.Write16(addr, v) }
func (c *CPU) write32(addr uint32, v uint32) { c.Bus.Write32(addr, v) }
func (c *CPU) write64(addr uint32, v uint64) { c.Bus.Write64(addr, v) }

// Tick executes a batch of cycles, then advances COP0.Count and the
// timers and samples the interrupt lines.
func (c *CPU) Tick(cycles uint32) {
	for i := cycles; i > 0; i-- {
		c.Instr = c.NextInstr
		c.fetchNext()

		if c.SkipBranchDelay {
			c.SkipBranchDelay = false
			continue
		}

		c.dispatch()

		// An instruction may target GPR 0; it stays hardwired to zero.
		c.GPR[0] = Register{}
	}

	c.COP0.AddCount(cycles)
	c.Timers.Tick(cycles / 2)

	if c.INTC.IntPending() {
		c.Exception(ExcInterrupt)
	}
}

// Exception enters the given exception: records EPC and the delay-slot
// flag, raises EXL and jumps to the BEV-selected vector.
func (c *CPU) Exception(exc Exception) {
	vector := uint32(vecCommon)
	c.COP0.SetExcCode(uint32(exc))
	if !c.COP0.EXL() {
		epc := c.Instr.PC
		if c.Instr.IsDelaySlot {
			epc -= 4
		}
		c.COP0.SetEPC(epc)
		c.COP0.SetBD(c.Instr.IsDelaySlot)

		switch exc {
		case ExcTLBLoad, ExcTLBStore:
			vector = vecTLBRefill
		case ExcInterrupt:
			vector = vecInterrupt
		}

		c.COP0.SetEXL(true)
	}

	if c.COP0.BEV() {
		c.PC = 0xbfc00200 + vector
	} else {
		c.PC = 0x80000000 + vector
	}

	// Exception entry has no delay slot.
	c.fetchNext()
}

func (c *CPU) dispatch() {
	instr := c.Instr
	switch instr.Opcode() {
	case 0b000000:
		c.opSpecial()
	case 0b000001:
		c.opRegimm()
	case 0b010000:
		c.opCOP0()
	case 0b010001:
		c.opCOP1()
	case 0b010010:
		c.opCOP2()
	case 0b011100:
		c.opMMI()
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
	case 0b010100:
		c.opBEQL()
	case 0b010101:
		c.opBNEL()
	case 0b010110:
		c.opBLEZL()
	case 0b011001:
		c.opDADDIU()
	case 0b011010:
		c.opLDL()
	case 0b011011:
		c.opLDR()
	case 0b011110:
		c.opLQ()
	case 0b011111:
		c.opSQ()
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
	case 0b100111:
		c.opLWU()
	case 0b101000:
		c.opSB()
	case 0b101001:
		c.opSH()
	case 0b101010:
		c.opSWL()
	case 0b101011:
		c.opSW()
	case 0b101100:
		c.opSDL()
	case 0b101101:
		c.opSDR()
	case 0b101110:
		c.opSWR()
	case 0b101111:
		// CACHE
	case 0b110001:
		c.opLWC1()
	case 0b110011:
		// PREF
	case 0b110111:
		c.opLD()
	case 0b111001:
		c.opSWC1()
	case 0b111110:
		c.opSQC2()
	case 0b111111:
		c.opSD()
	default:
		panic(fmt.Sprintf("ee: unimplemented opcode %#08b at %#x", instr.Opcode(), instr.PC))
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
	case 0b001010:
		c.opMOVZ()
	case 0b001011:
		c.opMOVN()
	case 0b001100:
		c.opSYSCALL()
	case 0b001101:
		c.opBREAK()
	case 0b001111:
		// SYNC
	case 0b010000:
		c.opMFHI()
	case 0b010001:
		c.opMTHI()
	case 0b010010:
		c.opMFLO()
	case 0b010011:
		c.opMTLO()
	case 0b010100:
		c.opDSLLV()
	case 0b010110:
		c.opDSRLV()
	case 0b010111:
		c.opDSRAV()
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
	case 0b101000:
		c.opMFSA()
	case 0b101001:
		c.opMTSA()
	case 0b101010:
		c.opSLT()
	case 0b101011:
		c.opSLTU()
	case 0b101101:
		c.opDADDU()
	case 0b101111:
		c.opDSUBU()
	case 0b111000:
		c.opDSLL()
	case 0b111010:
		c.opDSRL()
	case 0b111011:
		c.opDSRA()
	case 0b111100:
		c.opDSLL32()
	case 0b111110:
		c.opDSRL32()
	case 0b111111:
		c.opDSRA32()
	default:
		panic(fmt.Sprintf("ee: unimplemented SPECIAL function %#06b at %#x", c.Instr.Funct(), c.Instr.PC))
	}
}

func (c *CPU) opRegimm() {
	switch c.Instr.Rt() {
	case 0b00000:
		c.opBLTZ()
	case 0b00001:
		c.opBGEZ()
	case 0b00010:
		c.opBLTZL()
	case 0b00011:
		c.opBGEZL()
	default:
		panic(fmt.Sprintf("ee: unimplemented REGIMM function %#05b at %#x", c.Instr.Rt(), c.Instr.PC))
	}
}

func (c *CPU) opCOP0() {
	switch c.Instr.Rs() {
	case 0b00000:
		c.opMFC0()
	case 0b00100:
		c.opMTC0()
	case 0b10000:
		switch c.Instr.Funct() {
		case 0b000010:
			// TLBWI: the TLB is not modeled.
		case 0b011000:
			c.opERET()
		case 0b111000:
			c.opEI()
		case 0b111001:
			c.opDI()
		default:
			slog.Warn("unimplemented COP0 TLB function", "funct", c.Instr.Funct())
		}
	default:
		panic(fmt.Sprintf("ee: unimplemented COP0 format %#05b at %#x", c.Instr.Rs(), c.Instr.PC))
	}
}

func (c *CPU) opCOP1() {
	switch c.Instr.Rs() {
	case 0b00000:
		c.opMFC1()
	case 0b00010:
		c.opCFC1()
	case 0b00100:
		c.opMTC1()
	case 0b00110:
		c.opCTC1()
	case 0b10000:
		c.COP1.execute(c.Instr)
	default:
		panic(fmt.Sprintf("ee: unimplemented COP1 format %#05b at %#x", c.Instr.Rs(), c.Instr.PC))
	}
}

// ConsoleLog returns what the BIOS printed through the debug channel.
func (c *CPU) ConsoleLog() string {
	return c.Bus.Console.String()
}

package iop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/gpucode/playtwo/playtwo/bus"
)

const testBase = 0x1000

func newTestCPU() *CPU {
	return New(bus.New())
}

func encodeR(rs, rt, rd, sa, funct uint32) uint32 {
	return rs<<21 | rt<<16 | rd<<11 | sa<<6 | funct
}

func encodeI(op, rs, rt uint32, imm uint16) uint32 {
	return op<<26 | rs<<21 | rt<<16 | uint32(imm)
}

func loadProgram(c *CPU, words ...uint32) {
	for i, w := range words {
		off := testBase + i*4
		c.Bus.IOPRAM[off] = uint8(w)
		c.Bus.IOPRAM[off+1] = uint8(w >> 8)
		c.Bus.IOPRAM[off+2] = uint8(w >> 16)
		c.Bus.IOPRAM[off+3] = uint8(w >> 24)
	}
	c.Jump(testBase)
}

func TestCPU_reset(t *testing.T) {
	c := newTestCPU()

	assert.Equal(t, uint32(0xbfc00004), c.PC)
	assert.Equal(t, uint32(0x1f), c.COP0.Regs[15])
}

func TestCPU_loadDelaySlot(t *testing.T) {
	c := newTestCPU()

	// Store a known word, then: lw r4 ; move r5 <- r4 (sees OLD value) ;
	// move r6 <- r4 (sees NEW value).
	c.write32(0x2000, 0xcafe)
	c.GPR[8] = 0x2000
	c.GPR[4] = 0x1111

	loadProgram(c,
		encodeI(0b100011, 8, 4, 0),   // lw r4, 0(r8)
		encodeR(0, 4, 5, 0, 0b100001), // addu r5, r0, r4
		encodeR(0, 4, 6, 0, 0b100001), // addu r6, r0, r4
	)
	c.Tick(3)

	assert.Equal(t, uint32(0x1111), c.GPR[5], "delay slot sees the old value")
	assert.Equal(t, uint32(0xcafe), c.GPR[6])
	assert.Equal(t, uint32(0xcafe), c.GPR[4])
}

func TestCPU_loadDelayCancelledByNewerLoad(t *testing.T) {
	c := newTestCPU()

	// Two back-to-back loads into the same register: only the second
	// lands.
	c.write32(0x2000, 0xaaaa)
	c.write32(0x2004, 0xbbbb)
	c.GPR[8] = 0x2000

	loadProgram(c,
		encodeI(0b100011, 8, 4, 0), // lw r4, 0(r8)
		encodeI(0b100011, 8, 4, 4), // lw r4, 4(r8)
		encodeR(0, 0, 0, 0, 0),     // nop
		encodeR(0, 0, 0, 0, 0),     // nop
	)
	c.Tick(4)

	assert.Equal(t, uint32(0xbbbb), c.GPR[4])
}

func TestCPU_gprZeroStaysZero(t *testing.T) {
	c := newTestCPU()

	loadProgram(c, encodeI(0b001001, 0, 0, 0x1234)) // addiu r0, r0, 0x1234
	c.Tick(1)

	assert.Equal(t, uint32(0), c.GPR[0])
}

func TestCPU_divBoundaries(t *testing.T) {
	c := newTestCPU()

	testCases := []struct {
		desc   string
		rs, rt uint32
		wantLO uint32
		wantHI uint32
	}{
		{desc: "positive by zero", rs: 9, rt: 0, wantLO: 0xffffffff, wantHI: 9},
		{desc: "negative by zero", rs: 0xfffffff7, rt: 0, wantLO: 1, wantHI: 0xfffffff7},
		{desc: "min by minus one", rs: 0x80000000, rt: 0xffffffff, wantLO: 0x80000000, wantHI: 0},
		{desc: "ordinary", rs: 100, rt: 7, wantLO: 14, wantHI: 2},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c.GPR[4] = tC.rs
			c.GPR[5] = tC.rt
			loadProgram(c, encodeR(4, 5, 0, 0, 0b011010)) // div r4, r5
			c.Tick(1)
			assert.Equal(t, tC.wantLO, c.LO)
			assert.Equal(t, tC.wantHI, c.HI)
		})
	}
}

func TestCPU_addOverflowRaisesException(t *testing.T) {
	c := newTestCPU()

	c.GPR[4] = 0x7fffffff
	c.GPR[5] = 1
	loadProgram(c, encodeR(4, 5, 6, 0, 0b100000)) // add r6, r4, r5
	c.Tick(1)

	assert.Equal(t, uint32(ExcOverflow)<<2, c.COP0.Cause()&0x7c)
	assert.Equal(t, uint32(0), c.GPR[6])
	assert.Equal(t, uint32(0xbfc00184), c.PC, "vectored through BEV")
}

func TestCPU_misalignedLoadSetsBadA(t *testing.T) {
	c := newTestCPU()

	c.GPR[8] = 0x2001
	loadProgram(c, encodeI(0b100011, 8, 4, 0)) // lw r4, 0(r8)
	c.Tick(1)

	assert.Equal(t, uint32(ExcReadError)<<2, c.COP0.Cause()&0x7c)
	assert.Equal(t, uint32(0x2001), c.COP0.Regs[8], "BadA latches the address")
}

func TestCPU_exceptionRotatesModeStack(t *testing.T) {
	c := newTestCPU()

	c.COP0.SetSR(c.COP0.SR() | 0x1) // IEc on
	loadProgram(c, 0b001100)        // syscall
	c.Tick(1)

	// Mode stack pushed: current disabled kernel, previous = old bits.
	assert.Equal(t, uint32(0x4), c.COP0.SR()&0x3f)
	assert.Equal(t, uint32(testBase), c.COP0.EPC())
}

func TestCPU_rfeRestoresModeStack(t *testing.T) {
	c := newTestCPU()

	c.COP0.SetSR(c.COP0.SR() | 0x4) // previous bits hold IEp
	loadProgram(c, 0b010000<<26|0b10000<<21|0b010000) // rfe
	c.Tick(1)

	assert.Equal(t, uint32(0x1), c.COP0.SR()&0x3f, "IEc restored")
}

func TestCPU_bcondVariants(t *testing.T) {
	testCases := []struct {
		desc       string
		rt         uint32
		value      uint32
		wantBranch bool
		wantLink   bool
	}{
		{desc: "bltz taken", rt: 0x00, value: 0x80000000, wantBranch: true},
		{desc: "bltz not taken", rt: 0x00, value: 1, wantBranch: false},
		{desc: "bgez taken", rt: 0x01, value: 1, wantBranch: true},
		{desc: "bltzal links", rt: 0x10, value: 0x80000000, wantBranch: true, wantLink: true},
		{desc: "bgezal links even when not taken", rt: 0x11, value: 0x80000000, wantBranch: false, wantLink: true},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c := newTestCPU()
			c.GPR[4] = tC.value

			loadProgram(c,
				encodeI(0b000001, 4, tC.rt, 4), // bcond r4, +4
				encodeR(0, 0, 0, 0, 0),
			)
			c.Tick(2)

			target := uint32(testBase + 4 + 4*4)
			if tC.wantBranch {
				assert.Equal(t, target+4, c.PC)
			} else {
				assert.Equal(t, uint32(testBase+12), c.PC)
			}
			if tC.wantLink {
				assert.Equal(t, uint32(testBase+8), c.GPR[31])
			} else {
				assert.Equal(t, uint32(0), c.GPR[31])
			}
		})
	}
}

func TestCPU_interruptUsesPrefetchEPC(t *testing.T) {
	c := newTestCPU()

	c.COP0.SetSR(c.COP0.SR() | 0x1 | 0x4<<8) // IEc + Im bit 2
	c.INTR.Ctrl = 1                          // I_CTRL global enable
	c.INTR.Mask = 1 << uint32(IntDMA)
	c.INTR.Trigger(IntDMA)

	loadProgram(c,
		encodeI(0b001001, 0, 4, 1),
		encodeI(0b001001, 0, 5, 1),
	)
	c.Tick(1)

	// EPC points at the already-prefetched instruction, not the retired
	// one.
	assert.Equal(t, uint32(ExcInterrupt)<<2, c.COP0.Cause()&0x7c)
	assert.Equal(t, uint32(testBase+4), c.COP0.EPC())
}

func TestINTR_readCtrlClears(t *testing.T) {
	c := newTestCPU()

	c.INTR.Ctrl = 1
	assert.Equal(t, uint32(1), c.read32(0x1f801078))
	assert.Equal(t, uint32(0), c.INTR.Ctrl)
}

func TestINTR_statAckSemantics(t *testing.T) {
	c := newTestCPU()

	c.INTR.Trigger(IntVBlankBegin)
	c.INTR.Trigger(IntCDVD)
	assert.Equal(t, uint32(0x5), c.read32(0x1f801070))

	// Writing keeps only the bits written as 1.
	c.write32(0x1f801070, 0x4)
	assert.Equal(t, uint32(0x4), c.INTR.Stat)
}

func TestTimers_modeWriteRestartsCount(t *testing.T) {
	c := newTestCPU()

	c.write32(0x1f8014a0, 500)       // timer 5 count
	c.write32(0x1f8014a4, 1<<4)      // mode: compare interrupt
	assert.Equal(t, uint32(0), c.read32(0x1f8014a0))

	mode := c.read32(0x1f8014a4)
	assert.NotZero(t, mode&(1<<10), "interrupt-enabled bit set on write")
}

func TestTimers_timer5CompareInterrupt(t *testing.T) {
	c := newTestCPU()

	c.write32(0x1f8014a8, 100)  // target
	c.write32(0x1f8014a4, 1<<4) // compare interrupt enable
	c.Timers.Tick(150)

	assert.NotZero(t, c.INTR.Stat&(1<<uint32(IntTimer5)))
}

func TestDMA_registerFileRoundTrip(t *testing.T) {
	c := newTestCPU()

	c.write32(0x1f801080, 0x00123450) // channel 0 MADR
	c.write32(0x1f8010f0, 0x07654321) // DPCR
	c.write32(0x1f801510, 0xabcd0000) // channel 8 MADR

	assert.Equal(t, uint32(0x00123450), c.read32(0x1f801080))
	assert.Equal(t, uint32(0x07654321), c.read32(0x1f8010f0))
	assert.Equal(t, uint32(0xabcd0000), c.read32(0x1f801510))
}

package ee

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/vu"
)

const testBase = 0x1000

func newTestCPU() *CPU {
	return New(bus.New(), vu.New())
}

func encodeR(rs, rt, rd, sa, funct uint32) uint32 {
	return rs<<21 | rt<<16 | rd<<11 | sa<<6 | funct
}

func encodeI(op, rs, rt uint32, imm uint16) uint32 {
	return op<<26 | rs<<21 | rt<<16 | uint32(imm)
}

// loadProgram stores instructions at the test base and points the CPU at
// them.
func loadProgram(c *CPU, words ...uint32) {
	for i, w := range words {
		c.Bus.Write32(testBase+uint32(i)*4, w)
	}
	c.Jump(testBase)
}

func TestCPU_reset(t *testing.T) {
	c := newTestCPU()

	assert.Equal(t, uint32(0xbfc00004), c.PC)
	assert.Equal(t, uint32(0xbfc00000), c.NextInstr.PC)
	assert.True(t, c.COP0.BEV())
	assert.True(t, c.COP0.ERL())
	assert.Equal(t, uint32(0x2e20), c.COP0.Regs[15])
}

func TestCPU_gprZeroStaysZero(t *testing.T) {
	c := newTestCPU()

	// addiu r0, r0, 0x1234 must not stick.
	loadProgram(c, encodeI(0b001001, 0, 0, 0x1234))
	c.Tick(1)

	assert.True(t, c.GPR[0].IsZero())
}

func TestCPU_arith32SignExtends(t *testing.T) {
	c := newTestCPU()

	testCases := []struct {
		desc  string
		setup func()
		instr uint32
		reg   uint32
		want  uint64
	}{
		{
			desc:  "addiu sign-extends negative result",
			setup: func() { c.GPR[4].Lo = 0 },
			instr: encodeI(0b001001, 4, 5, 0xffff), // addiu r5, r4, -1
			reg:   5,
			want:  0xffffffffffffffff,
		},
		{
			desc:  "addu wraps and sign-extends",
			setup: func() { c.GPR[4].Lo = 0x7fffffff; c.GPR[6].Lo = 1 },
			instr: encodeR(4, 6, 5, 0, 0b100001), // addu r5, r4, r6
			reg:   5,
			want:  0xffffffff80000000,
		},
		{
			desc:  "daddu keeps 64 bits",
			setup: func() { c.GPR[4].Lo = 0x100000000; c.GPR[6].Lo = 1 },
			instr: encodeR(4, 6, 5, 0, 0b101101), // daddu r5, r4, r6
			reg:   5,
			want:  0x100000001,
		},
		{
			desc:  "sll sign-extends bit 31",
			setup: func() { c.GPR[4].Lo = 0x00800000 },
			instr: encodeR(0, 4, 5, 8, 0b000000), // sll r5, r4, 8
			reg:   5,
			want:  0xffffffff80000000,
		},
		{
			desc:  "dsll32 shifts into the high word",
			setup: func() { c.GPR[4].Lo = 0x1 },
			instr: encodeR(0, 4, 5, 0, 0b111100), // dsll32 r5, r4, 0
			reg:   5,
			want:  0x100000000,
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			tC.setup()
			loadProgram(c, tC.instr)
			c.Tick(1)
			assert.Equal(t, tC.want, c.GPR[tC.reg].Lo)
		})
	}
}

func TestCPU_divBoundaries(t *testing.T) {
	c := newTestCPU()

	t.Run("divide by zero", func(t *testing.T) {
		c.GPR[4].Lo = 7
		c.GPR[5].Lo = 0
		loadProgram(c, encodeR(4, 5, 0, 0, 0b011010)) // div r4, r5
		c.Tick(1)

		assert.Equal(t, uint32(0xffffffff), uint32(c.LO0))
		assert.Equal(t, uint32(7), uint32(c.HI0))
	})

	t.Run("divide by zero negative dividend", func(t *testing.T) {
		c.GPR[4].Lo = 0xffffffffffffffff // -1
		c.GPR[5].Lo = 0
		loadProgram(c, encodeR(4, 5, 0, 0, 0b011010))
		c.Tick(1)

		assert.Equal(t, uint32(1), uint32(c.LO0))
		assert.Equal(t, uint32(0xffffffff), uint32(c.HI0))
	})

	t.Run("min int divided by minus one", func(t *testing.T) {
		c.GPR[4].Lo = 0xffffffff80000000
		c.GPR[5].Lo = 0xffffffffffffffff
		loadProgram(c, encodeR(4, 5, 0, 0, 0b011010))
		c.Tick(1)

		assert.Equal(t, uint32(0x80000000), uint32(c.LO0))
		assert.Equal(t, uint64(0), c.HI0)
	})
}

func TestCPU_addOverflowRaisesException(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].Lo = 0x7fffffff
	c.GPR[5].Lo = 1
	loadProgram(c, encodeR(4, 5, 6, 0, 0b100000)) // add r6, r4, r5
	c.Tick(1)

	assert.Equal(t, uint32(ExcOverflow), c.COP0.ExcCode())
	assert.Equal(t, uint64(0), c.GPR[6].Lo)
}

func TestCPU_branchDelaySlot(t *testing.T) {
	c := newTestCPU()

	// beq r0, r0, +2 ; addiu r4, r0, 1 (delay slot) ; addiu r5, r0, 1
	// (skipped) ; addiu r6, r0, 1 (branch target)
	loadProgram(c,
		encodeI(0b000100, 0, 0, 2),
		encodeI(0b001001, 0, 4, 1),
		encodeI(0b001001, 0, 5, 1),
		encodeI(0b001001, 0, 6, 1),
	)
	c.Tick(3)

	assert.Equal(t, uint64(1), c.GPR[4].Lo, "delay slot must execute")
	assert.Equal(t, uint64(0), c.GPR[5].Lo, "branched-over instruction must not")
	assert.Equal(t, uint64(1), c.GPR[6].Lo, "branch target must execute")
}

func TestCPU_likelyBranchSquashesDelaySlot(t *testing.T) {
	c := newTestCPU()

	// bnel r0, r0 never branches, so its delay slot is squashed.
	loadProgram(c,
		encodeI(0b010101, 0, 0, 2),
		encodeI(0b001001, 0, 4, 1), // squashed
		encodeI(0b001001, 0, 5, 1), // falls through here
	)
	c.Tick(3)

	assert.Equal(t, uint64(0), c.GPR[4].Lo, "squashed slot must have no effect")
	assert.Equal(t, uint64(1), c.GPR[5].Lo)
}

func TestCPU_jalLinksPastDelaySlot(t *testing.T) {
	c := newTestCPU()

	target := uint32(testBase+0x100) >> 2
	loadProgram(c,
		0b000011<<26|target, // jal
		encodeI(0b001001, 0, 4, 1),
	)
	c.Tick(2)

	assert.Equal(t, uint64(testBase+8), c.GPR[31].Lo)
	assert.Equal(t, uint32(testBase+0x100+4), c.PC)
	assert.Equal(t, uint64(1), c.GPR[4].Lo)
}

func TestCPU_exceptionInDelaySlot(t *testing.T) {
	c := newTestCPU()

	// The delay slot performs a misaligned LW.
	c.GPR[4].Lo = 0x2001
	loadProgram(c,
		encodeI(0b000100, 0, 0, 2), // beq r0, r0
		encodeI(0b100011, 4, 5, 0), // lw r5, 0(r4) -> AddressError
	)
	c.Tick(2)

	assert.Equal(t, uint32(ExcAddrErrorLoad), c.COP0.ExcCode())
	assert.Equal(t, uint32(testBase), c.COP0.EPC(), "EPC points at the branch")
	assert.NotZero(t, c.COP0.Cause()&(1<<31), "BD must be set")
	assert.Equal(t, uint32(0xbfc00380+4), c.PC, "vectored through BEV common")
}

func TestCPU_eret(t *testing.T) {
	c := newTestCPU()

	c.COP0.SetEPC(0x2000)
	c.COP0.SetERL(false)
	c.COP0.SetEXL(true)

	loadProgram(c, 0b010000<<26|0b10000<<21|0b011000) // eret
	c.Tick(1)

	assert.False(t, c.COP0.EXL())
	assert.Equal(t, uint32(0x2000+4), c.PC)
	assert.Equal(t, uint32(0x2000), c.NextInstr.PC)
}

func TestCPU_eretFromErrorLevel(t *testing.T) {
	c := newTestCPU()

	c.COP0.Regs[30] = 0x3000 // error EPC
	loadProgram(c, 0b010000<<26|0b10000<<21|0b011000)
	c.Tick(1)

	assert.False(t, c.COP0.ERL())
	assert.Equal(t, uint32(0x3000), c.NextInstr.PC)
}

func TestCPU_loadStoreRoundTrip(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].Lo = 0x4000
	c.GPR[5].Lo = 0x11223344aabbccdd
	loadProgram(c,
		encodeI(0b111111, 4, 5, 0), // sd r5, 0(r4)
		encodeI(0b110111, 4, 6, 0), // ld r6, 0(r4)
	)
	c.Tick(2)

	assert.Equal(t, c.GPR[5].Lo, c.GPR[6].Lo)
}

func TestCPU_quadLoadStore(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].Lo = 0x4000
	c.GPR[5] = Register{Lo: 0xdeadbeefcafebabe, Hi: 0x0123456789abcdef}
	loadProgram(c,
		encodeI(0b011111, 4, 5, 0), // sq r5, 0(r4)
		encodeI(0b011110, 4, 6, 0), // lq r6, 0(r4)
	)
	c.Tick(2)

	assert.Equal(t, c.GPR[5], c.GPR[6])
}

func TestCPU_lwlLwrAssembleUnalignedWord(t *testing.T) {
	c := newTestCPU()

	c.Bus.Write32(0x4000, 0x11223344)
	c.Bus.Write32(0x4004, 0x55667788)

	// Classic ulw idiom at offset 2: lwl r5, 5(r4) ; lwr r5, 2(r4)
	c.GPR[4].Lo = 0x4000
	loadProgram(c,
		encodeI(0b100010, 4, 5, 5),
		encodeI(0b100110, 4, 5, 2),
	)
	c.Tick(2)

	assert.Equal(t, uint32(0x77881122), uint32(c.GPR[5].Lo))
}

func TestCPU_syscallVectorsThroughCommon(t *testing.T) {
	c := newTestCPU()

	loadProgram(c, 0b001100) // syscall
	c.Tick(1)

	assert.Equal(t, uint32(ExcSyscall), c.COP0.ExcCode())
	assert.Equal(t, uint32(0xbfc00380), c.NextInstr.PC)
}

func TestCPU_cop2MovesQuadwords(t *testing.T) {
	c := newTestCPU()

	c.GPR[4] = Register{Lo: 0x1111222233334444, Hi: 0x5555666677778888}
	loadProgram(c,
		0b010010<<26|0b00101<<21|4<<16|7<<11, // qmtc2 r4, vf7
		0b010010<<26|0b00001<<21|5<<16|7<<11, // qmfc2 r5, vf7
	)
	c.Tick(2)

	assert.Equal(t, c.GPR[4], c.GPR[5])
	assert.Equal(t, c.GPR[4], c.VU0.VF[7])
}

package ee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMMI_padduwSaturates(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].SetWord(0, 0xfffffffe)
	c.GPR[4].SetWord(1, 0x00000010)
	c.GPR[4].SetWord(2, 0xffffffff)
	c.GPR[4].SetWord(3, 0)
	c.GPR[5].SetWord(0, 0x5)
	c.GPR[5].SetWord(1, 0x20)
	c.GPR[5].SetWord(2, 0xffffffff)
	c.GPR[5].SetWord(3, 0)

	// padduw r6, r4, r5
	loadProgram(c, encodeR(4, 5, 6, 0b10000, 0b101000)|0b011100<<26)
	c.Tick(1)

	assert.Equal(t, uint32(0xffffffff), c.GPR[6].Word(0), "saturated")
	assert.Equal(t, uint32(0x30), c.GPR[6].Word(1))
	assert.Equal(t, uint32(0xffffffff), c.GPR[6].Word(2), "saturated")
	assert.Equal(t, uint32(0), c.GPR[6].Word(3))
}

func TestMMI_bitwiseCoverFullWidth(t *testing.T) {
	c := newTestCPU()

	c.GPR[4] = Register{Lo: 0xff00ff00ff00ff00, Hi: 0x0f0f0f0f0f0f0f0f}
	c.GPR[5] = Register{Lo: 0x00ff00ff00ff00ff, Hi: 0xf0f0f0f0f0f0f0f0}

	testCases := []struct {
		desc string
		sa   uint32
		fn   uint32
		want Register
	}{
		{desc: "pand", sa: 0b10010, fn: 0b001001, want: Register{}},
		{desc: "por", sa: 0b10010, fn: 0b101001,
			want: Register{Lo: 0xffffffffffffffff, Hi: 0xffffffffffffffff}},
		{desc: "pxor", sa: 0b10011, fn: 0b001001,
			want: Register{Lo: 0xffffffffffffffff, Hi: 0xffffffffffffffff}},
		{desc: "pnor", sa: 0b10011, fn: 0b101001, want: Register{}},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			loadProgram(c, encodeR(4, 5, 6, tC.sa, tC.fn)|0b011100<<26)
			c.Tick(1)
			assert.Equal(t, tC.want, c.GPR[6])
		})
	}
}

func TestMMI_copyOps(t *testing.T) {
	c := newTestCPU()

	c.GPR[4] = Register{Lo: 0x1111111111111111, Hi: 0x2222222222222222}
	c.GPR[5] = Register{Lo: 0x3333333333333333, Hi: 0x4444444444444444}

	t.Run("pcpyld packs low dwords", func(t *testing.T) {
		loadProgram(c, encodeR(4, 5, 6, 0b01110, 0b001001)|0b011100<<26)
		c.Tick(1)
		assert.Equal(t, Register{Lo: 0x3333333333333333, Hi: 0x1111111111111111}, c.GPR[6])
	})

	t.Run("pcpyud packs high dwords", func(t *testing.T) {
		loadProgram(c, encodeR(4, 5, 6, 0b01110, 0b101001)|0b011100<<26)
		c.Tick(1)
		assert.Equal(t, Register{Lo: 0x2222222222222222, Hi: 0x4444444444444444}, c.GPR[6])
	})

	t.Run("pcpyh broadcasts halfwords", func(t *testing.T) {
		c.GPR[5] = Register{Lo: 0x000000000000abcd, Hi: 0x0000000000001234}
		loadProgram(c, encodeR(4, 5, 6, 0b11011, 0b101001)|0b011100<<26)
		c.Tick(1)
		assert.Equal(t, Register{Lo: 0xabcdabcdabcdabcd, Hi: 0x1234123412341234}, c.GPR[6])
	})
}

func TestMMI_plzcw(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].SetWord(0, 0x00010000) // 15 leading zeros - 1 = 14
	c.GPR[4].SetWord(1, 0xffffffff) // all ones: 31

	loadProgram(c, encodeR(4, 0, 6, 0, 0b000100)|0b011100<<26)
	c.Tick(1)

	assert.Equal(t, uint32(14), c.GPR[6].Word(0))
	assert.Equal(t, uint32(31), c.GPR[6].Word(1))
}

func TestMMI_secondPipe(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].Lo = 6
	c.GPR[5].Lo = 7
	// mult1 r6, r4, r5
	loadProgram(c, encodeR(4, 5, 6, 0, 0b011000)|0b011100<<26)
	c.Tick(1)

	assert.Equal(t, uint64(42), c.LO1)
	assert.Equal(t, uint64(0), c.HI1)
	assert.Equal(t, uint64(42), c.GPR[6].Lo)
	assert.Equal(t, uint64(0), c.LO0, "first pipe untouched")
}

func TestMMI_psubb(t *testing.T) {
	c := newTestCPU()

	for i := 0; i < 16; i++ {
		c.GPR[4].SetByte(i, uint8(10+i))
		c.GPR[5].SetByte(i, uint8(i))
	}
	loadProgram(c, encodeR(4, 5, 6, 0b01001, 0b001000)|0b011100<<26)
	c.Tick(1)

	for i := 0; i < 16; i++ {
		assert.Equal(t, uint8(10), c.GPR[6].Byte(i))
	}
}

package vu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/gpucode/playtwo/playtwo/bit"
)

func setVF(u *Unit, reg int, x, y, z, w float32) {
	u.VF[reg].SetWord(0, math.Float32bits(x))
	u.VF[reg].SetWord(1, math.Float32bits(y))
	u.VF[reg].SetWord(2, math.Float32bits(z))
	u.VF[reg].SetWord(3, math.Float32bits(w))
}

func vfLane(u *Unit, reg, lane int) float32 {
	return math.Float32frombits(u.VF[reg].Word(lane))
}

func TestUnit_vf0IsConstant(t *testing.T) {
	u := New()

	assert.Equal(t, float32(0), vfLane(u, 0, 0))
	assert.Equal(t, float32(1), vfLane(u, 0, 3))
}

func TestUnit_memoryRoundTrip(t *testing.T) {
	u := New()

	q := bit.U128From(0x1122334455667788, 0x99aabbccddeeff00)
	u.Write128(Data, 0x200, q)
	assert.Equal(t, q, u.Read128(Data, 0x200))

	u.Write32(Code, 0x100, 0xdeadbeef)
	assert.Equal(t, uint32(0xdeadbeef), u.Read128(Code, 0x100).Word(0))
}

func TestUnit_registerFileIsFlat(t *testing.T) {
	u := New()

	u.WriteReg(3, 0x1234)
	assert.Equal(t, uint32(0x1234), u.VI[3])

	u.WriteReg(16, 0x5678)
	assert.Equal(t, uint32(0x5678), u.Control[0])
	assert.Equal(t, uint32(0x5678), u.ReadReg(16))
}

func TestUnit_vsub(t *testing.T) {
	u := New()

	setVF(u, 2, 5, 6, 7, 8)
	setVF(u, 3, 1, 2, 3, 4)

	// vsub.xyzw vf4, vf2, vf3
	u.Special1(0xf<<21 | 3<<16 | 2<<11 | 4<<6 | 0b101100)

	for lane := 0; lane < 4; lane++ {
		assert.Equal(t, float32(4), vfLane(u, 4, lane))
	}
}

func TestUnit_vaddRespectsDestMask(t *testing.T) {
	u := New()

	setVF(u, 2, 1, 1, 1, 1)
	setVF(u, 3, 2, 2, 2, 2)
	setVF(u, 4, 9, 9, 9, 9)

	// vadd.x only: dest mask = x.
	u.Special1(0x8<<21 | 3<<16 | 2<<11 | 4<<6 | 0b101000)

	assert.Equal(t, float32(3), vfLane(u, 4, 0))
	assert.Equal(t, float32(9), vfLane(u, 4, 1), "unmasked lanes keep values")
}

func TestUnit_viadd(t *testing.T) {
	u := New()

	u.VI[1] = 10
	u.VI[2] = 20
	// viadd vi3, vi1, vi2
	u.Special1(0xf<<21 | 2<<16 | 1<<11 | 3<<6 | 0b110000)

	assert.Equal(t, uint32(30), u.VI[3])
}

func TestUnit_viswrStoresMaskedLanes(t *testing.T) {
	u := New()

	u.VI[1] = 2 // address 0x20
	u.VI[2] = 0xabcd

	// viswr.x vi2, (vi1): special2 with fhi=01111, flo=11.
	u.Special1(0x8<<21 | 2<<16 | 1<<11 | 0b01111<<6 | 0b111111)

	q := u.Read128(Data, 0x20)
	assert.Equal(t, uint32(0xabcd), q.Word(0))
	assert.Equal(t, uint32(0), q.Word(1))
}

func TestUnit_vsqiPostIncrements(t *testing.T) {
	u := New()

	setVF(u, 5, 1, 2, 3, 4)
	u.VI[3] = 4 // address 0x40

	// vsqi.xyzw vf5, (vi3++): special2 with fhi=01101, flo=01.
	u.Special1(0xf<<21 | 3<<16 | 5<<11 | 0b01101<<6 | 0b111101)

	q := u.Read128(Data, 0x40)
	assert.Equal(t, math.Float32bits(1), q.Word(0))
	assert.Equal(t, math.Float32bits(4), q.Word(3))
	assert.Equal(t, uint32(5), u.VI[3], "pointer post-increments")
}

package ee

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCOP1_moveRoundTrip(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].Lo = 0x3f800000 // 1.0f
	loadProgram(c,
		0b010001<<26|0b00100<<21|4<<16|9<<11, // mtc1 r4, f9
		0b010001<<26|0b00000<<21|5<<16|9<<11, // mfc1 r5, f9
	)
	c.Tick(2)

	assert.Equal(t, uint64(0x3f800000), c.GPR[5].Lo)
}

func TestCOP1_addaAccumulates(t *testing.T) {
	c := newTestCPU()

	c.COP1.FPR[3] = math.Float32bits(1.5)
	c.COP1.FPR[7] = math.Float32bits(2.25)

	// adda.s f3, f7
	loadProgram(c, 0b010001<<26|0b10000<<21|7<<16|3<<11|0b011000)
	c.Tick(1)

	assert.Equal(t, float32(3.75), math.Float32frombits(c.COP1.Acc))
}

func TestCOP1_maddUsesAccumulator(t *testing.T) {
	c := newTestCPU()

	c.COP1.Acc = math.Float32bits(10)
	c.COP1.FPR[1] = math.Float32bits(3)
	c.COP1.FPR[2] = math.Float32bits(4)

	// madd.s f5, f1, f2
	loadProgram(c, 0b010001<<26|0b10000<<21|2<<16|1<<11|5<<6|0b011100)
	c.Tick(1)

	assert.Equal(t, float32(22), math.Float32frombits(c.COP1.FPR[5]))
}

func TestCOP1_overflowClampsToMax(t *testing.T) {
	c := newTestCPU()

	// Two values whose sum overflows to infinity must clamp to FLT_MAX.
	c.COP1.FPR[1] = math.Float32bits(math.MaxFloat32)
	c.COP1.FPR[2] = math.Float32bits(math.MaxFloat32)

	loadProgram(c, 0b010001<<26|0b10000<<21|2<<16|1<<11|0b011000) // adda.s
	c.Tick(1)

	assert.Equal(t, uint32(0x7f7fffff), c.COP1.Acc, "clamped, not infinity")
}

func TestCOP1_infinityInputTreatedAsMax(t *testing.T) {
	// The FPU has no infinities: an inf bit pattern reads back as the
	// largest magnitude.
	raw := math.Float32bits(float32(math.Inf(1)))
	assert.Equal(t, float32(math.MaxFloat32), overflowCheck(raw))

	raw = math.Float32bits(float32(math.Inf(-1)))
	assert.Equal(t, float32(-math.MaxFloat32), overflowCheck(raw))
}

func TestCOP1_controlRegisters(t *testing.T) {
	c := newTestCPU()

	c.GPR[4].Lo = 0xdead
	loadProgram(c,
		0b010001<<26|0b00110<<21|4<<16|31<<11, // ctc1 r4, fcr31
		0b010001<<26|0b00010<<21|5<<16|31<<11, // cfc1 r5, fcr31
	)
	c.Tick(2)

	assert.Equal(t, uint64(0xdead), c.GPR[5].Lo)
}

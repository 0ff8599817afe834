package playtwo

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/gpucode/playtwo/playtwo/backend"
)

// buildELF assembles a minimal 32-bit little-endian MIPS ELF with one
// loadable segment.
func buildELF(entry, vaddr uint32, code []uint32) []byte {
	const (
		ehsize = 0x34
		phsize = 0x20
	)
	img := make([]byte, ehsize+phsize+len(code)*4)
	le := binary.LittleEndian

	copy(img, "\x7fELF")
	img[4] = 1 // 32-bit
	img[5] = 1 // little-endian
	img[6] = 1
	le.PutUint16(img[0x10:], 2)    // ET_EXEC
	le.PutUint16(img[0x12:], 8)    // EM_MIPS
	le.PutUint32(img[0x18:], entry)
	le.PutUint32(img[0x1c:], ehsize) // phoff
	le.PutUint16(img[0x2a:], phsize)
	le.PutUint16(img[0x2c:], 1) // phnum

	ph := img[ehsize:]
	le.PutUint32(ph[0x00:], 1) // PT_LOAD
	le.PutUint32(ph[0x04:], ehsize+phsize)
	le.PutUint32(ph[0x08:], vaddr)
	le.PutUint32(ph[0x0c:], vaddr)
	le.PutUint32(ph[0x10:], uint32(len(code)*4))
	le.PutUint32(ph[0x14:], uint32(len(code)*4)+16) // trailing bss

	for i, w := range code {
		le.PutUint32(img[ehsize+phsize+i*4:], w)
	}
	return img
}

func TestLoadELF_runsProgram(t *testing.T) {
	m := New(backend.NewHeadless())

	// addiu r2, r0, 5 ; j . ; nop
	code := []uint32{
		0b001001<<26 | 2<<16 | 5,
		0b000010<<26 | 0x10004>>2,
		0,
	}
	err := m.LoadELF(buildELF(0x10000, 0x10000, code))
	assert.NoError(t, err)
	assert.Equal(t, uint32(0x10004), m.EE.PC)

	m.Tick()
	assert.Equal(t, uint64(5), m.EE.GPR[2].Lo)
}

func TestLoadELF_zeroesBSS(t *testing.T) {
	m := New(backend.NewHeadless())

	// Dirty the bss range first.
	for i := 0x20000; i < 0x20020; i++ {
		m.Bus.RAM[i] = 0xff
	}

	err := m.LoadELF(buildELF(0x20000, 0x20000, []uint32{0x12345678}))
	assert.NoError(t, err)

	assert.Equal(t, uint8(0x78), m.Bus.RAM[0x20000])
	for i := 0x20004; i < 0x20014; i++ {
		assert.Equal(t, uint8(0), m.Bus.RAM[i], "bss byte %#x", i)
	}
}

func TestLoadELF_rejectsGarbage(t *testing.T) {
	m := New(backend.NewHeadless())

	assert.Error(t, m.LoadELF([]byte("not an elf")))
	assert.Error(t, m.LoadELF(make([]byte, 0x100)))
}

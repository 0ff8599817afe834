package playtwo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gpucode/playtwo/playtwo/bus"
)

var errNotELF = errors.New("not a 32-bit little-endian ELF image")

const ptLoad = 1

// LoadELF copies the loadable segments of a 32-bit MIPS ELF into EE RAM
// and points the EE at its entry. Used to boot test programs without
// going through the full BIOS loader.
func (m *Machine) LoadELF(data []byte) error {
	if len(data) < 0x34 || string(data[:4]) != "\x7fELF" {
		return errNotELF
	}
	if data[4] != 1 || data[5] != 1 {
		return errNotELF
	}

	le := binary.LittleEndian
	entry := le.Uint32(data[0x18:])
	phoff := le.Uint32(data[0x1c:])
	phentsize := le.Uint16(data[0x2a:])
	phnum := le.Uint16(data[0x2c:])

	for i := uint16(0); i < phnum; i++ {
		ph := data[phoff+uint32(i)*uint32(phentsize):]
		if le.Uint32(ph) != ptLoad {
			continue
		}

		offset := le.Uint32(ph[0x04:])
		paddr := le.Uint32(ph[0x0c:])
		filesz := le.Uint32(ph[0x10:])
		memsz := le.Uint32(ph[0x14:])

		dest := bus.Translate(paddr) & (bus.RAMSize - 1)
		if uint64(dest)+uint64(memsz) > bus.RAMSize {
			return fmt.Errorf("ELF segment %d does not fit in EE RAM", i)
		}

		copy(m.Bus.RAM[dest:dest+filesz], data[offset:offset+filesz])
		for j := dest + filesz; j < dest+memsz; j++ {
			m.Bus.RAM[j] = 0
		}
	}

	slog.Debug("loaded ELF", "entry", entry, "segments", phnum)

	m.EE.Jump(entry)
	return nil
}

// LoadELFFile is the file-path convenience wrapper around LoadELF.
func (m *Machine) LoadELFFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return m.LoadELF(data)
}

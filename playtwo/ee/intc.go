package ee

import (
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bus"
)

// EE interrupt sources.
const (
	IntGS = iota
	IntSBUS
	IntVBlankStart
	IntVBlankEnd
	IntVIF0
	IntVIF1
	IntVU0
	IntVU1
	IntIPU
	IntTimer0
	IntTimer1
	IntTimer2
	IntTimer3
	IntSFIFO
	IntVU0Watchdog
)

// INTC aggregates the EE interrupt sources into the INT0 cause bit.
// INTC_STAT bits clear on write-1; INTC_MASK bits toggle on write-1.
type INTC struct {
	Stat uint32
	Mask uint32

	cpu *CPU
}

func NewINTC(cpu *CPU, b *bus.Bus) *INTC {
	intc := &INTC{cpu: cpu}
	for _, addr := range []uint32{0x1000f000, 0x1000f010} {
		b.Register(addr, bus.Handler{
			Read32:  intc.read,
			Write32: intc.write,
			Read64:  func(a uint32) uint64 { return uint64(intc.read(a)) },
			Write64: func(a uint32, v uint64) { intc.write(a, uint32(v)) },
		})
	}
	return intc
}

func (i *INTC) read(addr uint32) uint32 {
	if addr>>4&0xf == 1 {
		return i.Mask
	}
	return i.Stat
}

func (i *INTC) write(addr uint32, data uint32) {
	if addr>>4&0xf == 1 {
		i.Mask ^= data
	} else {
		i.Stat &^= data
	}
	i.update()
}

// Trigger raises interrupt source n.
func (i *INTC) Trigger(n uint32) {
	slog.Debug("INTC interrupt", "source", n)
	i.Stat |= 1 << n
	i.update()
}

func (i *INTC) update() {
	i.cpu.COP0.SetIP0Pending(i.Stat&i.Mask != 0)
}

// IntPending reports whether an enabled interrupt should be taken. Both
// EIE and IE must be set and neither ERL nor EXL, then any of the three
// asserted interrupt signals qualifies through its mask bit.
func (i *INTC) IntPending() bool {
	cop0 := &i.cpu.COP0
	enabled := cop0.EIE() && cop0.IE() && !cop0.ERL() && !cop0.EXL()

	pending := (cop0.IP0Pending() && cop0.IM0()) ||
		(cop0.IP1Pending() && cop0.IM1()) ||
		(cop0.TimerIPPending() && cop0.IM7())

	return enabled && pending
}

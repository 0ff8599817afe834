package ee

import (
	"github.com/gpucode/playtwo/playtwo/bus"
)

// Timer clock constants, in EE cycles.
const (
	EEClock    = 294912000
	BusClock   = EEClock / 2
	HBlankNTSC = 15734
	HBlankPAL  = 15625
)

// Tn_MODE bits.
const (
	modeClockMask       = 0x3
	modeClearWhenCmp    = 1 << 6
	modeEnable          = 1 << 7
	modeCmpIntrEnable   = 1 << 8
	modeOvflIntrEnable  = 1 << 9
	modeCmpFlag         = 1 << 10
	modeOvflFlag        = 1 << 11
)

// Timer is one of the four EE timers. Counter advances by cycles*ratio
// per BUSCLK tick, where ratio derives from the mode clock select.
type Timer struct {
	Counter uint32
	Mode    uint32
	Compare uint32
	Hold    uint32

	ratio uint32
}

// Timers owns the four EE timers and raises INTC timer interrupts.
type Timers struct {
	timers [4]Timer
	intc   *INTC
}

func NewTimers(intc *INTC, b *bus.Bus) *Timers {
	t := &Timers{intc: intc}
	for i, addr := range []uint32{0x10000000, 0x10000800, 0x10001000, 0x10001800} {
		num := i
		b.Register(addr, bus.Handler{
			Read32:  func(a uint32) uint32 { return t.read(num, a) },
			Write32: func(a uint32, v uint32) { t.write(num, a, v) },
		})
	}
	return t
}

func (t *Timers) read(num int, addr uint32) uint32 {
	tm := &t.timers[num]
	switch addr >> 4 & 0xf {
	case 0:
		return tm.Counter
	case 1:
		return tm.Mode
	case 2:
		return tm.Compare
	default:
		return tm.Hold
	}
}

func (t *Timers) write(num int, addr uint32, data uint32) {
	tm := &t.timers[num]
	switch addr >> 4 & 0xf {
	case 0:
		tm.Counter = data
	case 1:
		switch data & modeClockMask {
		case 0:
			tm.ratio = 1
		case 1:
			tm.ratio = 16
		case 2:
			tm.ratio = 256
		case 3:
			tm.ratio = BusClock / HBlankNTSC
		}
		// Mode writes clear both interrupt flags.
		tm.Mode = data & 0x3ff
	case 2:
		tm.Compare = data
	default:
		tm.Hold = data
	}
}

// Tick advances all timers by the given number of BUSCLK cycles.
// Interrupts are edge-triggered: a compare or overflow event only raises
// INTC if its flag goes from 0 to 1.
func (t *Timers) Tick(cycles uint32) {
	for i := range t.timers {
		tm := &t.timers[i]
		if tm.Mode&modeEnable == 0 {
			continue
		}

		old := tm.Counter
		tm.Counter += cycles * tm.ratio

		if tm.Counter >= tm.Compare && old < tm.Compare {
			if tm.Mode&modeCmpIntrEnable != 0 && tm.Mode&modeCmpFlag == 0 {
				t.intc.Trigger(uint32(IntTimer0 + i))
				tm.Mode |= modeCmpFlag
			}
			if tm.Mode&modeClearWhenCmp != 0 {
				tm.Counter = 0
			}
		}

		if tm.Counter > 0xffff {
			if tm.Mode&modeOvflIntrEnable != 0 && tm.Mode&modeOvflFlag == 0 {
				t.intc.Trigger(uint32(IntTimer0 + i))
				tm.Mode |= modeOvflFlag
			}
			tm.Counter -= 0xffff
		}
	}
}

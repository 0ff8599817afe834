package ee

import (
	"log/slog"
	"math"
)

// COP1 is the EE floating point unit. Values stay in raw bit form so that
// MTC1/MFC1 round-trip exactly; arithmetic goes through overflowCheck,
// which models the FPU's clamp-to-max behavior instead of IEEE infinities.
type COP1 struct {
	FPR   [32]uint32
	Acc   uint32
	FCR0  uint32
	FCR31 uint32
}

// overflowCheck replaces an infinity or NaN exponent with the largest
// representable magnitude, keeping the sign.
func overflowCheck(raw uint32) float32 {
	if raw&0x7f800000 == 0x7f800000 {
		raw = raw&0x80000000 | 0x7f7fffff
	}
	return math.Float32frombits(raw)
}

func clampBits(f float32) uint32 {
	raw := math.Float32bits(f)
	if raw&0x7f800000 == 0x7f800000 {
		raw = raw&0x80000000 | 0x7f7fffff
	}
	return raw
}

func (c *COP1) execute(instr Instruction) {
	switch instr.Funct() {
	case 0b011000:
		c.opADDA(instr)
	case 0b011100:
		c.opMADD(instr)
	default:
		slog.Warn("unimplemented COP1.S operation", "funct", instr.Funct())
	}
}

// ADDA.S accumulates fs + ft into ACC.
func (c *COP1) opADDA(instr Instruction) {
	fs := instr.Rd()
	ft := instr.Rt()

	sum := overflowCheck(c.FPR[fs]) + overflowCheck(c.FPR[ft])
	c.Acc = clampBits(sum)
}

// MADD.S computes ACC + fs*ft into fd.
func (c *COP1) opMADD(instr Instruction) {
	fs := instr.Rd()
	ft := instr.Rt()
	fd := instr.Sa()

	a := overflowCheck(c.FPR[fs])
	b := overflowCheck(c.FPR[ft])
	acc := overflowCheck(c.Acc)
	c.FPR[fd] = clampBits(acc + a*b)
}

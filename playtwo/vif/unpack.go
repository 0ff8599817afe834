package vif

import (
	"github.com/gpucode/playtwo/playtwo/bit"
	"github.com/gpucode/playtwo/playtwo/vu"
)

// UNPACK format components, from the low nibble of the opcode: VL selects
// the element size (32 >> VL bits), VN the element count minus one.
func (v *VIF) unpackVL() uint32 { return v.command >> 24 & 0x3 }
func (v *VIF) unpackVN() uint32 { return v.command >> 26 & 0x3 }

// masked reports whether this UNPACK applies the STMASK write mask.
func (v *VIF) unpackMasked() bool { return v.command>>28&1 == 1 }

// unsigned reports whether elements zero-extend instead of sign-extend.
func (v *VIF) unpackUnsigned() bool { return v.command>>14&1 == 1 }

// startUnpack latches the transfer geometry for an UNPACK command.
func (v *VIF) startUnpack(imm, num uint32) {
	v.address = (imm & 0x3ff) * 16
	if v.command>>15&1 == 1 {
		v.address += v.Tops * 16
	}

	// How many input words make one output qword. The element stream is
	// rounded up to a word boundary per qword.
	bitSize := (32 >> v.unpackVL()) * (v.unpackVN() + 1)
	wordCount := (bitSize + 31) / 32

	if num == 0 {
		num = 256
	}
	v.Num = num
	v.subpacketCount = wordCount * num
	v.qwordsWritten = 0

	if v.CycleCL >= v.CycleWL {
		v.mode = skipping
	} else {
		v.mode = filling
	}
}

// unpackQword produces one quadword of VU data memory. Returns false if
// the FIFO does not yet hold a full qword's worth of input.
func (v *VIF) unpackQword() bool {
	// In filling mode, rows past CL within a write cycle come from the
	// row registers without consuming input.
	if v.mode == filling && v.qwordsWritten%v.CycleWL >= v.CycleCL {
		q := bit.U128{}
		for i := 0; i < 4; i++ {
			q.SetWord(i, v.Row[i])
		}
		v.writeUnpacked(q)
		return true
	}

	bitSize := (32 >> v.unpackVL()) * (v.unpackVN() + 1)
	words := int((bitSize + 31) / 32)
	if len(v.fifo) < words {
		return false
	}

	input := make([]byte, 0, 16)
	for i := 0; i < words; i++ {
		w := v.pop()
		input = append(input, uint8(w), uint8(w>>8), uint8(w>>16), uint8(w>>24))
		v.subpacketCount--
		if v.wordCycles > 0 {
			v.wordCycles--
		}
	}
	// The loop in Tick already charged one word.
	v.wordCycles++

	q := v.expand(input)
	v.writeUnpacked(q)
	return true
}

// expand decodes one qword's worth of elements from the input bytes.
func (v *VIF) expand(input []byte) bit.U128 {
	vl := v.unpackVL()
	vn := int(v.unpackVN())

	var q bit.U128
	if vl == 3 && vn == 3 {
		// V4-5: one RGB5A1 halfword expands to four byte lanes.
		h := uint32(input[0]) | uint32(input[1])<<8
		q.SetWord(0, h&0x1f<<3)
		q.SetWord(1, h>>5&0x1f<<3)
		q.SetWord(2, h>>10&0x1f<<3)
		q.SetWord(3, h>>15&1<<7)
		return q
	}

	elemBits := 32 >> vl
	for i := 0; i <= vn; i++ {
		q.SetWord(i, v.element(input, i, elemBits))
	}

	// Scalar unpacks broadcast the value to every lane; shorter vectors
	// leave the remaining lanes zero.
	if vn == 0 {
		for i := 1; i < 4; i++ {
			q.SetWord(i, q.Word(0))
		}
	}
	return q
}

func (v *VIF) element(input []byte, index, elemBits int) uint32 {
	bitOff := index * elemBits
	byteOff := bitOff / 8

	switch elemBits {
	case 32:
		return uint32(input[byteOff]) | uint32(input[byteOff+1])<<8 |
			uint32(input[byteOff+2])<<16 | uint32(input[byteOff+3])<<24
	case 16:
		h := uint16(input[byteOff]) | uint16(input[byteOff+1])<<8
		if v.unpackUnsigned() {
			return uint32(h)
		}
		return bit.SignExtend16(h)
	default:
		b := input[byteOff]
		if v.unpackUnsigned() {
			return uint32(b)
		}
		return bit.SignExtend8(b)
	}
}

// writeUnpacked applies mask and mode, stores the qword and advances the
// write pointer per the cycle registers.
func (v *VIF) writeUnpacked(q bit.U128) {
	row := v.qwordsWritten
	cycleRow := row % max32(v.CycleWL, 1)
	if cycleRow > 3 {
		cycleRow = 3
	}

	out := v.unit.Read128(vu.Data, v.address)
	for field := 0; field < 4; field++ {
		code := uint32(0)
		if v.unpackMasked() {
			code = v.Mask >> (uint(field)*2 + uint(cycleRow)*8) & 3
		}

		var value uint32
		switch code {
		case 0:
			value = v.applyMode(field, q.Word(field))
		case 1:
			value = v.Row[field]
		case 2:
			value = v.Col[cycleRow]
		case 3:
			// Masked out: keep the existing memory contents.
			continue
		}
		out.SetWord(field, value)
	}

	v.unit.Write128(vu.Data, v.address, out)
	v.address += 16
	v.qwordsWritten++

	if v.mode == skipping && v.CycleWL > 0 && v.qwordsWritten%v.CycleWL == 0 {
		v.address += (v.CycleCL - v.CycleWL) * 16
	}

	// NUM counts output qwords; the command retires once they are all
	// written even if the per-qword input estimate has words left over.
	if v.qwordsWritten >= v.Num {
		v.subpacketCount = 0
	}
}

// applyMode folds the STMOD addition modes into a data element.
func (v *VIF) applyMode(field int, value uint32) uint32 {
	switch v.Mode {
	case 1:
		return value + v.Row[field]
	case 2:
		result := value + v.Row[field]
		v.Row[field] = result
		return result
	default:
		return value
	}
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

package ee

// Instruction is a fetched R5900 instruction word together with the
// pipeline context it was fetched under.
type Instruction struct {
	Value       uint32
	PC          uint32
	IsDelaySlot bool
}

func (i Instruction) Opcode() uint32 { return i.Value >> 26 }

// I-type fields.
func (i Instruction) Rs() uint32    { return i.Value >> 21 & 0x1f }
func (i Instruction) Rt() uint32    { return i.Value >> 16 & 0x1f }
func (i Instruction) Imm16() uint16 { return uint16(i.Value) }

// SImm16 returns the immediate sign-extended to 32 bits.
func (i Instruction) SImm16() int32 { return int32(int16(i.Value)) }

// J-type field.
func (i Instruction) Target() uint32 { return i.Value & 0x03ffffff }

// R-type fields.
func (i Instruction) Rd() uint32    { return i.Value >> 11 & 0x1f }
func (i Instruction) Sa() uint32    { return i.Value >> 6 & 0x1f }
func (i Instruction) Funct() uint32 { return i.Value & 0x3f }

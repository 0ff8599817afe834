// Package sif implements the sub-CPU interface: the control registers and
// bidirectional FIFOs linking the EE and the IOP.
package sif

import (
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bus"
)

// Register offsets inside either window.
const (
	regMSCOM = 0
	regSMCOM = 1
	regMSFLG = 2
	regSMFLG = 3
	regCTRL  = 4
	regBD6   = 6
)

// SIF holds the shared registers and the two word FIFOs. SIF0 carries
// IOP->EE traffic, SIF1 EE->IOP. Writes land at 0x1000F200 from the EE
// and at the 0x1D000000 mirror from the IOP; bit 9 of the address tells
// the sides apart.
type SIF struct {
	MSCOM uint32
	SMCOM uint32
	MSFLG uint32
	SMFLG uint32
	CTRL  uint32
	BD6   uint32

	SIF0 []uint32
	SIF1 []uint32
}

func New(b *bus.Bus) *SIF {
	s := &SIF{}
	for _, addr := range []uint32{0x1000f200, 0x1d000000} {
		b.Register(addr, bus.Handler{Read32: s.read, Write32: s.write})
	}
	return s
}

func (s *SIF) reg(offset uint32) *uint32 {
	switch offset {
	case regMSCOM:
		return &s.MSCOM
	case regSMCOM:
		return &s.SMCOM
	case regMSFLG:
		return &s.MSFLG
	case regSMFLG:
		return &s.SMFLG
	case regCTRL:
		return &s.CTRL
	default:
		return &s.BD6
	}
}

func (s *SIF) read(addr uint32) uint32 {
	return *s.reg(addr >> 4 & 0xf)
}

func (s *SIF) write(addr uint32, data uint32) {
	offset := addr >> 4 & 0xf
	fromEE := addr>>9&1 == 1

	if offset != regCTRL {
		*s.reg(offset) = data
		return
	}

	// CTRL is bit-manipulative and differs per side.
	if fromEE {
		// Bit 8 works as an "EE ready" flag.
		if data&0x100 == 0 {
			s.CTRL &^= 0x100
		} else {
			s.CTRL |= 0x100
		}
		return
	}

	temp := data & 0xf0
	if data&0xa0 != 0 {
		s.CTRL &^= 0xf000
		s.CTRL |= 0x2000
	}
	if s.CTRL&temp != 0 {
		s.CTRL &^= temp
	} else {
		s.CTRL |= temp
	}
}

// PushSIF0 queues a word from the IOP toward the EE.
func (s *SIF) PushSIF0(v uint32) {
	s.SIF0 = append(s.SIF0, v)
}

// PopSIF0 drains one word of IOP->EE traffic.
func (s *SIF) PopSIF0() (uint32, bool) {
	if len(s.SIF0) == 0 {
		return 0, false
	}
	v := s.SIF0[0]
	s.SIF0 = s.SIF0[1:]
	return v, true
}

// PushSIF1 queues a word from the EE toward the IOP.
func (s *SIF) PushSIF1(v uint32) {
	s.SIF1 = append(s.SIF1, v)
	slog.Debug("SIF1 push", "value", v, "depth", len(s.SIF1))
}

// PopSIF1 drains one word of EE->IOP traffic.
func (s *SIF) PopSIF1() (uint32, bool) {
	if len(s.SIF1) == 0 {
		return 0, false
	}
	v := s.SIF1[0]
	s.SIF1 = s.SIF1[1:]
	return v, true
}

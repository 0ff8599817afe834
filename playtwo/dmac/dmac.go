// Package dmac implements the EE DMA controller: ten channels moving
// quadwords between main RAM and the VIF/GIF/SIF peripherals, programmed
// through in-memory DMAtag chains.
package dmac

import (
	"fmt"
	"log/slog"

	"github.com/gpucode/playtwo/playtwo/bit"
	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/gif"
	"github.com/gpucode/playtwo/playtwo/sif"
	"github.com/gpucode/playtwo/playtwo/vif"
)

// Channel ids.
const (
	ChannelVIF0 = 0
	ChannelVIF1 = 1
	ChannelGIF  = 2
	ChannelIPUFrom = 3
	ChannelIPUTo   = 4
	ChannelSIF0 = 5
	ChannelSIF1 = 6
	ChannelSIF2 = 7
	ChannelSPRFrom = 8
	ChannelSPRTo   = 9
)

// DMAtag ids.
const (
	tagREFE = 0
	tagCNT  = 1
	tagNEXT = 2
	tagREF  = 3
	tagREFS = 4
	tagCALL = 5
	tagRET  = 6
	tagEND  = 7
)

// CHCR bits.
const (
	chcrMode        = 3 << 2
	chcrTransferTag = 1 << 6
	chcrEnableIRQ   = 1 << 7
	chcrRunning     = 1 << 8
)

// Channel is one DMA channel's register file plus transfer state.
type Channel struct {
	Control    uint32
	Address    uint32
	QWordCount uint32
	TagAddress uint32
	SavedTag   [2]uint32
	Scratchpad uint32

	EndTransfer bool
}

func (c *Channel) Running() bool     { return c.Control&chcrRunning != 0 }
func (c *Channel) setRunning(b bool) {
	if b {
		c.Control |= chcrRunning
	} else {
		c.Control &^= chcrRunning
	}
}

// Mode returns the transfer mode: 0 normal, 1 chain, 2 interleave.
func (c *Channel) Mode() uint32 { return c.Control >> 2 & 3 }

// TagAddr returns the 30-bit tag address without the mem-select bit.
func (c *Channel) TagAddr() uint32 { return c.TagAddress & 0x3fffffff }

// tag is a decoded 128-bit DMAtag.
type tag struct {
	raw bit.U128
}

func (t tag) qwords() uint32 { return uint32(t.raw.Lo & 0xffff) }
func (t tag) id() uint32     { return uint32(t.raw.Lo >> 28 & 0x7) }
func (t tag) irq() bool      { return t.raw.Lo>>31&1 == 1 }
func (t tag) addr() uint32   { return uint32(t.raw.Lo >> 32 & 0x7fffffff) }
func (t tag) data() uint64   { return t.raw.Hi }

// Controller is the ten-channel EE DMA engine.
type Controller struct {
	Channels [10]Channel

	DCtrl   uint32
	DStat   uint32
	DPCR    uint32
	DSQWC   uint32
	DRBSR   uint32
	DRBOR   uint32
	DSTADR  uint32
	DEnable uint32

	bus  *bus.Bus
	vif1 *vif.VIF
	gif  *gif.GIF
	sif  *sif.SIF

	// setInt1 drives the EE COP0 INT1 pending bit.
	setInt1 func(bool)
}

var channelBases = map[uint32]int{
	0x80: 0, 0x90: 1, 0xa0: 2, 0xb0: 3, 0xb4: 4,
	0xc0: 5, 0xc4: 6, 0xc8: 7, 0xd0: 8, 0xd4: 9,
}

// New wires the controller to its peripherals and registers the channel
// and global register windows on the bus.
func New(b *bus.Bus, vif1 *vif.VIF, g *gif.GIF, s *sif.SIF, setInt1 func(bool)) *Controller {
	c := &Controller{bus: b, vif1: vif1, gif: g, sif: s, setInt1: setInt1}

	bases := []uint32{
		0x10008000, 0x10009000, 0x1000a000, 0x1000b000, 0x1000b400,
		0x1000c000, 0x1000c400, 0x1000c800, 0x1000d000, 0x1000d400,
	}
	for _, addr := range bases {
		h := bus.Handler{Read32: c.readChannel, Write32: c.writeChannel}
		b.Register(addr, h)
		// The SADR register spills into the following page.
		b.Register(addr+0x80, h)
	}

	b.Register(0x1000e000, bus.Handler{Read32: c.readGlobal, Write32: c.writeGlobal})
	b.Register(0x1000f520, bus.Handler{Read32: func(uint32) uint32 { return c.DEnable }})
	b.Register(0x1000f590, bus.Handler{Write32: func(_ uint32, v uint32) { c.DEnable = v }})
	return c
}

func channelID(addr uint32) int {
	id, ok := channelBases[addr>>8&0xff]
	if !ok {
		panic(fmt.Sprintf("dmac: invalid channel register address %#x", addr))
	}
	return id
}

func (c *Controller) channelReg(addr uint32) *uint32 {
	ch := &c.Channels[channelID(addr)]
	switch addr >> 4 & 0xf {
	case 0:
		return &ch.Control
	case 1:
		return &ch.Address
	case 2:
		return &ch.QWordCount
	case 3:
		return &ch.TagAddress
	case 4:
		return &ch.SavedTag[0]
	case 5:
		return &ch.SavedTag[1]
	default:
		return &ch.Scratchpad
	}
}

func (c *Controller) readChannel(addr uint32) uint32 {
	return *c.channelReg(addr)
}

func (c *Controller) writeChannel(addr uint32, data uint32) {
	// MADR must be quadword aligned; the BIOS writes unaligned GIF
	// addresses and relies on the truncation.
	if addr>>4&0xf == 1 {
		data &= 0x01fffff0
	}
	*c.channelReg(addr) = data

	id := channelID(addr)
	if c.Channels[id].Running() {
		slog.Debug("DMA transfer started", "channel", id)
	}
}

func (c *Controller) globalReg(offset uint32) *uint32 {
	switch offset {
	case 0:
		return &c.DCtrl
	case 1:
		return &c.DStat
	case 2:
		return &c.DPCR
	case 3:
		return &c.DSQWC
	case 4:
		return &c.DRBSR
	case 5:
		return &c.DRBOR
	default:
		return &c.DSTADR
	}
}

func (c *Controller) readGlobal(addr uint32) uint32 {
	return *c.globalReg(addr >> 4 & 0xf)
}

func (c *Controller) writeGlobal(addr uint32, data uint32) {
	offset := addr >> 4 & 0xf
	if offset == 1 {
		// D_STAT: the low half clears on 1, the high half toggles on 1.
		c.DStat &^= data & 0xffff
		c.DStat ^= data & 0xffff0000
		c.updateInt1()
		return
	}
	*c.globalReg(offset) = data
}

func (c *Controller) updateInt1() {
	irq := c.DStat & 0x3ff
	mask := c.DStat >> 16 & 0x3ff
	c.setInt1(irq&mask != 0)
}

// Tick advances every running channel by the given number of bus cycles.
func (c *Controller) Tick(cycles uint32) {
	if c.DEnable&0x10000 != 0 {
		return
	}

	for cycle := cycles; cycle > 0; cycle-- {
		for id := range c.Channels {
			ch := &c.Channels[id]
			if !ch.Running() {
				continue
			}

			switch {
			case ch.QWordCount > 0:
				c.step(id, ch)
			case ch.EndTransfer:
				c.finish(id, ch)
			default:
				c.fetchTag(id, ch)
			}
		}
	}
}

// step moves one qword through a channel's peripheral sink.
func (c *Controller) step(id int, ch *Channel) {
	switch id {
	case ChannelVIF1:
		qword := c.bus.ReadRAM128(ch.Address)
		if !c.vif1.WriteFIFO128(qword) {
			return // FIFO full, retry next cycle
		}
		ch.Address += 16
		ch.QWordCount--

	case ChannelGIF:
		qword := c.bus.ReadRAM128(ch.Address)
		if !c.gif.WritePath3(qword) {
			return
		}
		ch.Address += 16
		ch.QWordCount--

		// The GIF channel only runs normal mode transfers.
		if ch.Mode() != 0 {
			panic("dmac: GIF channel programmed with chain mode")
		}
		if ch.QWordCount == 0 {
			ch.EndTransfer = true
		}

	case ChannelSIF0:
		if len(c.sif.SIF0) < 4 {
			return
		}
		var q bit.U128
		for i := 0; i < 4; i++ {
			w, _ := c.sif.PopSIF0()
			q.SetWord(i, w)
		}
		c.bus.WriteRAM128(ch.Address, q)
		ch.Address += 16
		ch.QWordCount--

	case ChannelSIF1:
		qword := c.bus.ReadRAM128(ch.Address)
		for i := 0; i < 4; i++ {
			c.sif.PushSIF1(qword.Word(i))
		}
		ch.Address += 16
		ch.QWordCount--

	default:
		panic(fmt.Sprintf("dmac: transfer step on unmodeled channel %d", id))
	}
}

// finish retires a completed channel and raises its D_STAT interrupt bit.
func (c *Controller) finish(id int, ch *Channel) {
	slog.Debug("DMA transfer complete", "channel", id)

	ch.EndTransfer = false
	ch.setRunning(false)

	c.DStat |= 1 << uint(id)
	c.updateInt1()
}

// fetchTag reads the next DMAtag of a chain-mode transfer.
func (c *Controller) fetchTag(id int, ch *Channel) {
	switch id {
	case ChannelVIF1, ChannelSIF1:
		t := tag{raw: c.bus.ReadRAM128(ch.TagAddr())}

		// With TTE set the tag's upper half goes to the peripheral
		// ahead of the data.
		if id == ChannelVIF1 && ch.Control&chcrTransferTag != 0 {
			if !c.vif1.WriteFIFO64(t.data()) {
				return
			}
		}

		c.applyTag(id, ch, t)

	case ChannelSIF0:
		// SIF0 chains read their (64-bit) tags out of the SIF0 FIFO.
		if len(c.sif.SIF0) < 2 {
			return
		}
		lo, _ := c.sif.PopSIF0()
		hi, _ := c.sif.PopSIF0()
		t := tag{raw: bit.U128From(uint64(lo)|uint64(hi)<<32, 0)}

		ch.QWordCount = t.qwords()
		ch.Control = ch.Control&0xffff | uint32(t.raw.Lo>>16&0xffff)<<16
		ch.Address = t.addr()
		ch.TagAddress += 16

		if ch.Control&chcrEnableIRQ != 0 && t.irq() {
			ch.EndTransfer = true
		}

	default:
		panic(fmt.Sprintf("dmac: tag fetch on unmodeled channel %d", id))
	}
}

// applyTag updates a channel from a fetched memory tag.
func (c *Controller) applyTag(id int, ch *Channel, t tag) {
	ch.QWordCount = t.qwords()
	ch.Control = ch.Control&0xffff | uint32(t.raw.Lo>>16&0xffff)<<16

	switch t.id() {
	case tagCNT:
		ch.Address = ch.TagAddr() + 16
		ch.TagAddress = ch.Address + ch.QWordCount*16
	case tagNEXT:
		ch.Address = ch.TagAddr() + 16
		ch.TagAddress = t.addr()
	case tagREF, tagREFS:
		ch.Address = t.addr()
		ch.TagAddress += 16
	case tagREFE:
		ch.Address = t.addr()
		ch.TagAddress += 16
		ch.EndTransfer = true
	case tagEND:
		ch.Address = ch.TagAddr() + 16
		ch.EndTransfer = true
	default:
		panic(fmt.Sprintf("dmac: unrecognized DMAtag id %d on channel %d", t.id(), id))
	}

	if ch.Control&chcrEnableIRQ != 0 && t.irq() {
		ch.EndTransfer = true
	}
}

// Package playtwo wires the PS2 core together: both CPUs, the DMA
// engines, the stream decoders and the GS, driven by a single
// cooperative scheduler.
package playtwo

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gpucode/playtwo/playtwo/backend"
	"github.com/gpucode/playtwo/playtwo/bus"
	"github.com/gpucode/playtwo/playtwo/dmac"
	"github.com/gpucode/playtwo/playtwo/ee"
	"github.com/gpucode/playtwo/playtwo/gif"
	"github.com/gpucode/playtwo/playtwo/gs"
	"github.com/gpucode/playtwo/playtwo/iop"
	"github.com/gpucode/playtwo/playtwo/sif"
	"github.com/gpucode/playtwo/playtwo/sio2"
	"github.com/gpucode/playtwo/playtwo/vif"
	"github.com/gpucode/playtwo/playtwo/vu"
)

// BatchCycles is how many EE cycles one scheduler pass covers. The IOP
// runs at an eighth of that, the historical clock ratio.
const BatchCycles = 32

// Machine owns every component of the core. All cross-component calls go
// through it or through the callbacks wired at construction.
type Machine struct {
	Bus  *bus.Bus
	EE   *ee.CPU
	IOP  *iop.CPU
	VU0  *vu.Unit
	VU1  *vu.Unit
	VIF0 *vif.VIF
	VIF1 *vif.VIF
	GS   *gs.GS
	GIF  *gif.GIF
	SIF  *sif.SIF
	DMAC *dmac.Controller
	SIO2 *sio2.SIO2

	stop atomic.Bool
}

// New builds and wires a machine around the given renderer sink.
func New(renderer backend.Renderer) *Machine {
	b := bus.New()

	m := &Machine{Bus: b}
	m.VU0 = vu.New()
	m.VU1 = vu.New()

	// The VU RAM windows sit on the bus as directly-backed regions.
	b.Attach(0x11000000, vu.MemSize, m.VU0.CodeRAM, vu.MemSize-1)
	b.Attach(0x11004000, vu.MemSize, m.VU0.DataRAM, vu.MemSize-1)
	b.Attach(0x11008000, vu.MemSize, m.VU1.CodeRAM, vu.MemSize-1)
	b.Attach(0x1100c000, vu.MemSize, m.VU1.DataRAM, vu.MemSize-1)

	m.EE = ee.New(b, m.VU0)
	m.IOP = iop.New(b)
	m.SIF = sif.New(b)
	m.GS = gs.New(b, renderer)
	m.GIF = gif.New(m.GS, b)
	m.VIF0 = vif.New(0, m.VU0, b)
	m.VIF1 = vif.New(1, m.VU1, b)
	m.DMAC = dmac.New(b, m.VIF1, m.GIF, m.SIF, m.EE.COP0.SetIP1Pending)
	m.SIO2 = sio2.New(b, func() { m.IOP.INTR.Trigger(iop.IntSIO2) })

	return m
}

// NewWithBIOS builds a machine and loads the BIOS image at path.
func NewWithBIOS(path string, renderer backend.Renderer) (*Machine, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	m := New(renderer)
	if err := m.Bus.LoadBIOS(image); err != nil {
		return nil, err
	}

	slog.Debug("loaded BIOS image", "path", path, "size", len(image))
	return m, nil
}

// Tick runs one scheduler pass: a batch of EE cycles, the IOP at an
// eighth rate, then the DMA engine and the stream decoders.
func (m *Machine) Tick() {
	m.EE.Tick(BatchCycles)
	m.IOP.Tick(BatchCycles / 8)

	m.DMAC.Tick(BatchCycles)
	m.VIF0.Tick(BatchCycles)
	m.VIF1.Tick(BatchCycles)
	m.GIF.Tick(BatchCycles)
}

// Run loops until Stop is called, checking the flag at iteration
// boundaries.
func (m *Machine) Run() {
	for !m.stop.Load() {
		m.Tick()
	}
}

// Stop requests that Run exit at its next iteration boundary. Safe to
// call from another goroutine.
func (m *Machine) Stop() {
	m.stop.Store(true)
}

// ConsoleLog returns everything the BIOS printed to the debug console.
func (m *Machine) ConsoleLog() string {
	return m.Bus.Console.String()
}

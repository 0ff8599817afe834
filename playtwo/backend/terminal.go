package backend

import (
	"github.com/gdamore/tcell/v2"
)

// Framebuffer geometry assumed for the terminal view.
const (
	termSourceWidth  = 640
	termSourceHeight = 256
)

// Terminal paints the mirrored VRAM into terminal cells using tcell.
// Each cell shows a downsampled pixel as a colored block; it exists for
// poking at boot output without a GPU backend.
type Terminal struct {
	screen tcell.Screen
	frame  []byte

	quit chan struct{}
}

var _ Renderer = (*Terminal)(nil)

// NewTerminal initializes the tcell screen.
func NewTerminal() (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.Clear()

	t := &Terminal{
		screen: screen,
		quit:   make(chan struct{}),
	}

	go t.pollEvents()
	return t, nil
}

func (t *Terminal) pollEvents() {
	for {
		switch ev := t.screen.PollEvent().(type) {
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				close(t.quit)
				return
			}
		case *tcell.EventResize:
			t.screen.Sync()
		case nil:
			return
		}
	}
}

// Quit reports a channel closed when the user asks to exit.
func (t *Terminal) Quit() <-chan struct{} {
	return t.quit
}

// Close releases the terminal.
func (t *Terminal) Close() {
	t.screen.Fini()
}

func (t *Terminal) SetDepthFunction(uint32) {}

func (t *Terminal) SubmitVertex(Vertex) {}

func (t *Terminal) SubmitSprite(Vertex, Vertex) {}

// UploadVRAM redraws the screen from the mirrored framebuffer.
func (t *Terminal) UploadVRAM(data []byte) {
	t.frame = data

	width, height := t.screen.Size()
	if width <= 0 || height <= 0 {
		return
	}

	for cy := 0; cy < height; cy++ {
		for cx := 0; cx < width; cx++ {
			// Nearest-neighbor downsample from the source frame.
			px := cx * termSourceWidth / width
			py := cy * termSourceHeight / height
			off := (py*termSourceWidth + px) * 4
			if off+2 >= len(t.frame) {
				continue
			}

			color := tcell.NewRGBColor(
				int32(t.frame[off]),
				int32(t.frame[off+1]),
				int32(t.frame[off+2]),
			)
			style := tcell.StyleDefault.Background(color)
			t.screen.SetContent(cx, cy, ' ', nil, style)
		}
	}
	t.screen.Show()
}

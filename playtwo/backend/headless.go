package backend

// Headless is a renderer that swallows primitives while counting them,
// for automated runs and tests.
type Headless struct {
	Vertices  []Vertex
	Sprites   int
	Triangles int
	DepthBits uint32
	Uploads   int

	pending int
}

var _ Renderer = (*Headless)(nil)

func NewHeadless() *Headless {
	return &Headless{}
}

func (h *Headless) SetDepthFunction(bits uint32) {
	h.DepthBits = bits
}

func (h *Headless) SubmitVertex(v Vertex) {
	h.Vertices = append(h.Vertices, v)
	h.pending++
	if h.pending == 3 {
		h.Triangles++
		h.pending = 0
	}
}

func (h *Headless) SubmitSprite(v1, v2 Vertex) {
	h.Vertices = append(h.Vertices, v1, v2)
	h.Sprites++
}

func (h *Headless) UploadVRAM([]byte) {
	h.Uploads++
}

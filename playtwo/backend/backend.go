// Package backend defines the boundary between the GS core and whatever
// presents its output. The core pushes primitives through the Renderer
// interface; backends range from the no-op headless sink used in tests to
// a terminal viewer.
package backend

// Vertex is a clip-space vertex with its flat color.
type Vertex struct {
	X, Y, Z float32
	R, G, B float32
}

// Renderer consumes the GS output stream.
type Renderer interface {
	// SetDepthFunction forwards the two-bit depth test selector written
	// through TEST_1/TEST_2.
	SetDepthFunction(bits uint32)

	// SubmitVertex adds one triangle vertex; every third completes a
	// triangle.
	SubmitVertex(v Vertex)

	// SubmitSprite draws an axis-aligned sprite from two corners.
	SubmitSprite(v1, v2 Vertex)

	// UploadVRAM mirrors VRAM into the backend for texture sampling.
	UploadVRAM(data []byte)
}

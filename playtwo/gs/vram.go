package gs

// GS memory geometry: 4MB of VRAM in 512 pages of 8KB, each page holding
// 32 blocks of 256 bytes.
const (
	PageSize      = 8192
	BlockSize     = 256
	BlocksPerPage = 32
	PageCount     = 512

	// PSMCT32 page and block dimensions in pixels.
	PagePixelWidth  = 64
	PagePixelHeight = 32
	blockPixelWidth  = 8
	blockPixelHeight = 8
	pageBlockWidth   = 8
	pageBlockHeight  = 4

	columnPixelHeight = 2
	columnsPerBlock   = 4
	columnSize        = 64
)

// Blocks within a page are not stored linearly; this table maps a block's
// (y, x) grid position to its index in memory.
var blockLayout = [4][8]int{
	{0, 1, 4, 5, 16, 17, 20, 21},
	{2, 3, 6, 7, 18, 19, 22, 23},
	{8, 9, 12, 13, 24, 25, 28, 29},
	{10, 11, 14, 15, 26, 27, 30, 31},
}

// Pixels within a column pair-interleave between the two rows.
var pixelLayout = [2][8]int{
	{0, 1, 4, 5, 8, 9, 12, 13},
	{2, 3, 6, 7, 10, 11, 14, 15},
}

// Page is one 8KB VRAM page. The (x, y) to byte mapping is a pure
// function of the coordinates: the same pixel always lands on the same
// byte no matter which path wrote it.
type Page struct {
	blocks [BlocksPerPage * BlockSize]uint8
}

// offsetPSMCT32 resolves a 32-bit pixel's byte offset within the page.
func offsetPSMCT32(x, y uint16) int {
	blockX := int(x/blockPixelWidth) % pageBlockWidth
	blockY := int(y/blockPixelHeight) % pageBlockHeight
	block := blockLayout[blockY][blockX] % BlocksPerPage

	column := int(y/columnPixelHeight) % columnsPerBlock
	pixel := pixelLayout[y&1][x%8]

	return block*BlockSize + column*columnSize + pixel*4
}

// WritePSMCT32 stores a 32-bit pixel at page-local coordinates.
func (p *Page) WritePSMCT32(x, y uint16, value uint32) {
	off := offsetPSMCT32(x, y)
	p.blocks[off] = uint8(value)
	p.blocks[off+1] = uint8(value >> 8)
	p.blocks[off+2] = uint8(value >> 16)
	p.blocks[off+3] = uint8(value >> 24)
}

// ReadPSMCT32 loads the 32-bit pixel at page-local coordinates.
func (p *Page) ReadPSMCT32(x, y uint16) uint32 {
	off := offsetPSMCT32(x, y)
	return uint32(p.blocks[off]) | uint32(p.blocks[off+1])<<8 |
		uint32(p.blocks[off+2])<<16 | uint32(p.blocks[off+3])<<24
}

// PSMCT16 pages are 64x64 pixels with 16x8-pixel blocks in a 4x8 grid.
var blockLayout16 = [8][4]int{
	{0, 2, 8, 10},
	{1, 3, 9, 11},
	{4, 6, 12, 14},
	{5, 7, 13, 15},
	{16, 18, 24, 26},
	{17, 19, 25, 27},
	{20, 22, 28, 30},
	{21, 23, 29, 31},
}

func offsetPSMCT16(x, y uint16) int {
	blockX := int(x/16) % 4
	blockY := int(y/8) % 8
	block := blockLayout16[blockY][blockX] % BlocksPerPage

	column := int(y/2) % 4
	pixel := int(y&1)*16 + int(x%16)

	return block*BlockSize + column*columnSize + pixel*2
}

// WritePSMCT16 stores a 16-bit pixel at page-local coordinates.
func (p *Page) WritePSMCT16(x, y uint16, value uint16) {
	off := offsetPSMCT16(x, y)
	p.blocks[off] = uint8(value)
	p.blocks[off+1] = uint8(value >> 8)
}

// ReadPSMCT16 loads the 16-bit pixel at page-local coordinates.
func (p *Page) ReadPSMCT16(x, y uint16) uint16 {
	off := offsetPSMCT16(x, y)
	return uint16(p.blocks[off]) | uint16(p.blocks[off+1])<<8
}

// Bytes exposes the raw page contents.
func (p *Page) Bytes() []uint8 {
	return p.blocks[:]
}

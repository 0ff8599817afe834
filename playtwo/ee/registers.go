package ee

import "github.com/gpucode/playtwo/playtwo/bit"

// Register is one 128-bit general purpose register, viewable as two
// dwords, four words, eight halfwords or sixteen bytes.
type Register = bit.U128

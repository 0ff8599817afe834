package bus

import "fmt"

type errBIOSSize int

func (e errBIOSSize) Error() string {
	return fmt.Sprintf("BIOS image must be exactly %d bytes, got %d", BIOSSize, int(e))
}

package gpu

import "github.com/cockroachdb/errors"

// MaxMemoryTypes is the size of the memory type table a device may report.
const MaxMemoryTypes = 32

type MemoryPropertyFlags uint32

const (
	MemoryPropertyDeviceLocal MemoryPropertyFlags = 1 << iota
	MemoryPropertyHostVisible
	MemoryPropertyHostCoherent
	MemoryPropertyHostCached
	MemoryPropertyLazilyAllocated
)

type MemoryType struct {
	PropertyFlags MemoryPropertyFlags
	HeapIndex     uint32
}

// MemoryProperties is the physical device memory type table.
type MemoryProperties struct {
	Types []MemoryType
}

type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// ErrNoMemoryType means no memory type satisfies both the resource's type
// bits and the requested property flags.
var ErrNoMemoryType = errors.New("gpu: no suitable memory type")

// FindMemoryType returns the lowest memory type index whose bit is set in
// typeBits and whose property flags contain flags.
func FindMemoryType(props MemoryProperties, typeBits uint32, flags MemoryPropertyFlags) (uint32, error) {
	n := len(props.Types)
	if n > MaxMemoryTypes {
		n = MaxMemoryTypes
	}
	for i := 0; i < n; i++ {
		if typeBits&(1<<uint(i)) == 0 {
			continue
		}
		if props.Types[i].PropertyFlags&flags == flags {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(ErrNoMemoryType, "type bits %#x, flags %#x", typeBits, flags)
}

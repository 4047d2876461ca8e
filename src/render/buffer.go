package render

import (
	"github.com/cockroachdb/errors"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

// Buffer is a device buffer bound to its own allocation.
type Buffer struct {
	Handle gpu.Buffer
	Memory gpu.DeviceMemory
	Size   uint64
}

// CreateBuffer creates a buffer of size bytes backed by memory of the first
// type that has props. The allocation uses the driver's required size.
func CreateBuffer(dev gpu.Device, size uint64, props gpu.MemoryPropertyFlags, usage gpu.BufferUsageFlags) (Buffer, error) {
	handle, ret := dev.CreateBuffer(size, usage)
	if err := NewError(ret); err != nil {
		return Buffer{}, errors.Wrap(err, "create buffer")
	}
	b := Buffer{Handle: handle, Size: size}

	reqs := dev.BufferMemoryRequirements(handle)
	typeIndex, err := gpu.FindMemoryType(dev.MemoryProperties(), reqs.MemoryTypeBits, props)
	if err != nil {
		b.Destroy(dev)
		return Buffer{}, err
	}
	b.Memory, ret = dev.AllocateMemory(reqs.Size, typeIndex)
	if err := NewError(ret); err != nil {
		b.Destroy(dev)
		return Buffer{}, errors.Wrapf(err, "allocate %d bytes of memory type %d", reqs.Size, typeIndex)
	}
	if err := NewError(dev.BindBufferMemory(handle, b.Memory, 0)); err != nil {
		b.Destroy(dev)
		return Buffer{}, errors.Wrap(err, "bind buffer memory")
	}
	return b, nil
}

func (b *Buffer) Destroy(dev gpu.Device) {
	if b.Handle != 0 {
		dev.DestroyBuffer(b.Handle)
		b.Handle = 0
	}
	if b.Memory != 0 {
		dev.FreeMemory(b.Memory)
		b.Memory = 0
	}
}

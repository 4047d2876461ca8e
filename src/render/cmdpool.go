package render

import (
	"github.com/cockroachdb/errors"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

// CommandSlots is a resettable command pool on the graphics family with one
// primary command buffer per frame in flight.
type CommandSlots struct {
	dev     gpu.Device
	pool    gpu.CommandPool
	buffers []gpu.CommandBuffer
}

func NewCommandSlots(dev gpu.Device, queueFamily uint32, n int) (*CommandSlots, error) {
	pool, ret := dev.CreateCommandPool(queueFamily)
	if err := NewError(ret); err != nil {
		return nil, errors.Wrapf(err, "create command pool on family %d", queueFamily)
	}
	c := &CommandSlots{dev: dev, pool: pool}
	bufs, ret := dev.AllocateCommandBuffers(pool, n)
	if err := NewError(ret); err != nil {
		c.Destroy()
		return nil, errors.Wrap(err, "allocate command buffers")
	}
	c.buffers = bufs
	if len(bufs) != n {
		c.Destroy()
		return nil, errors.Newf("allocated %d command buffers, want %d", len(bufs), n)
	}
	return c, nil
}

func (c *CommandSlots) Len() int {
	return len(c.buffers)
}

func (c *CommandSlots) Buffer(slot int) gpu.CommandBuffer {
	return c.buffers[slot]
}

// Reset returns the slot's buffer to the initial state. The slot's fence
// must have been waited on.
func (c *CommandSlots) Reset(slot int) error {
	if err := NewError(c.dev.ResetCommandBuffer(c.buffers[slot])); err != nil {
		return errors.Wrapf(err, "reset command buffer of slot %d", slot)
	}
	return nil
}

func (c *CommandSlots) Destroy() {
	if len(c.buffers) > 0 {
		c.dev.FreeCommandBuffers(c.pool, c.buffers)
		c.buffers = nil
	}
	if c.pool != 0 {
		c.dev.DestroyCommandPool(c.pool)
		c.pool = 0
	}
}

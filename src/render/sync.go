package render

import (
	"github.com/cockroachdb/errors"

	"github.com/mxplusb/epsilon/src/render/gpu"
)

// SyncSlot is the synchronization triple of one frame in flight.
type SyncSlot struct {
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	InFlight       gpu.Fence
}

// SyncSet owns one SyncSlot per frame in flight. Fences start signaled so
// the first wait on each slot returns at once. It is not thread-safe.
type SyncSet struct {
	dev   gpu.Device
	slots []SyncSlot
}

func NewSyncSet(dev gpu.Device, n int) (*SyncSet, error) {
	s := &SyncSet{dev: dev, slots: make([]SyncSlot, 0, n)}
	for i := 0; i < n; i++ {
		slot, err := s.newSlot()
		if err != nil {
			s.Destroy()
			return nil, errors.Wrapf(err, "sync slot %d", i)
		}
		s.slots = append(s.slots, slot)
	}
	return s, nil
}

func (s *SyncSet) newSlot() (SyncSlot, error) {
	var slot SyncSlot
	var ret gpu.Result
	if slot.ImageAvailable, ret = s.dev.CreateSemaphore(); ret.IsError() {
		return slot, NewError(ret)
	}
	if slot.RenderFinished, ret = s.dev.CreateSemaphore(); ret.IsError() {
		s.dev.DestroySemaphore(slot.ImageAvailable)
		return slot, NewError(ret)
	}
	if slot.InFlight, ret = s.dev.CreateFence(true); ret.IsError() {
		s.dev.DestroySemaphore(slot.RenderFinished)
		s.dev.DestroySemaphore(slot.ImageAvailable)
		return slot, NewError(ret)
	}
	return slot, nil
}

func (s *SyncSet) Len() int {
	return len(s.slots)
}

func (s *SyncSet) Slot(i int) SyncSlot {
	return s.slots[i]
}

// Destroy releases every slot, last first. The device must be idle.
func (s *SyncSet) Destroy() {
	for i := len(s.slots) - 1; i >= 0; i-- {
		slot := s.slots[i]
		s.dev.DestroyFence(slot.InFlight)
		s.dev.DestroySemaphore(slot.RenderFinished)
		s.dev.DestroySemaphore(slot.ImageAvailable)
	}
	s.slots = nil
}

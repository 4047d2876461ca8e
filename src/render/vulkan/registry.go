package vulkan

// registry hands out stable integer ids for driver handles. Id 0 always
// maps to the zero (null) handle.
type registry[T comparable] struct {
	next uint64
	byID map[uint64]T
}

func newRegistry[T comparable]() registry[T] {
	return registry[T]{byID: map[uint64]T{}}
}

func (r *registry[T]) add(v T) uint64 {
	r.next++
	r.byID[r.next] = v
	return r.next
}

func (r *registry[T]) get(id uint64) T {
	return r.byID[id]
}

// remove forgets id and returns the handle it mapped to.
func (r *registry[T]) remove(id uint64) (T, bool) {
	v, ok := r.byID[id]
	delete(r.byID, id)
	return v, ok
}

func (r *registry[T]) len() int {
	return len(r.byID)
}

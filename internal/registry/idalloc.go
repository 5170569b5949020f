package registry

// idAllocator is the unique-id allocator from §4.9: a monotone counter
// starting at 1 that wraps on overflow only to skip the sentinel 0. It is
// touched only from the state-machine goroutine, so it carries no lock.
type idAllocator struct {
	counter uint32
}

// next returns the next transaction id, guaranteed non-zero.
func (a *idAllocator) next() int32 {
	a.counter++
	if a.counter == 0 {
		a.counter = 1
	}
	return int32(a.counter)
}

// Package callback holds handler references that long-lived markers call through.
// A marker built long ago must still reach the handler the caller supplied most
// recently, so handlers are stored in a cell and looked up on every call.
package callback

import "sync/atomic"

// Ref is a replaceable handler of one argument. The zero value is an empty Ref.
type Ref[T any] struct {
	fn atomic.Pointer[func(T)]
}

// NewRef returns a Ref holding fn
func NewRef[T any](fn func(T)) *Ref[T] {
	r := &Ref[T]{}
	r.Set(fn)
	return r
}

// Set replaces the handler. A nil fn clears it.
func (r *Ref[T]) Set(fn func(T)) {
	if fn == nil {
		r.fn.Store(nil)
		return
	}
	r.fn.Store(&fn)
}

// Call invokes the current handler, if any, and reports whether one ran
func (r *Ref[T]) Call(v T) bool {
	p := r.fn.Load()
	if p == nil {
		return false
	}
	(*p)(v)
	return true
}

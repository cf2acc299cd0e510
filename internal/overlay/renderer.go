package overlay

// Renderer draws elements for the scheduler. Add and Remove are only called
// from the scheduler goroutine. The renderer animates each added element and
// calls done with its ID once it reaches EndX; done may be called from any
// goroutine and must not be called while holding renderer locks the scheduler
// could wait on.
type Renderer interface {
	Geometry() Geometry
	Add(el Element, done func(id string))
	Remove(id string)
}

// Package pool implements a paged arena allocator used for the per-function
// entity tables (instructions, basic blocks, value-list segments, ...).
//
// Handles into a Pool are dense small integers, never pointers, so entities
// can be serialized and cloned trivially and arena pages can be reused across
// function compilations without the GC having to walk a pointer graph.
package pool

const pageSize = 128

// Pool is a pool of T that can be allocated and reset in bulk. Reusing a Pool
// across many function compilations amortizes allocation: pages are kept
// around and zeroed rather than freed.
type Pool[T any] struct {
	pages            []*[pageSize]T
	allocated, index int
}

// New returns a ready-to-use Pool.
func New[T any]() Pool[T] {
	var p Pool[T]
	p.Reset()
	return p
}

// Allocated returns the number of T(s) currently allocated from the pool.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Allocate returns a pointer to a fresh, zero-valued T.
func (p *Pool[T]) Allocate() *T {
	if p.index == pageSize {
		if len(p.pages) == cap(p.pages) {
			p.pages = append(p.pages, new([pageSize]T))
		} else {
			i := len(p.pages)
			p.pages = p.pages[:i+1]
			if p.pages[i] == nil {
				p.pages[i] = new([pageSize]T)
			}
		}
		p.index = 0
	}
	ret := &p.pages[len(p.pages)-1][p.index]
	p.index++
	p.allocated++
	return ret
}

// View returns the pointer to the i-th item allocated from the pool.
func (p *Pool[T]) View(i int) *T {
	page, index := i/pageSize, i%pageSize
	return &p.pages[page][index]
}

// Reset clears every allocated entry and makes the pool's capacity available
// for reuse by the next function compilation.
func (p *Pool[T]) Reset() {
	for _, ns := range p.pages {
		page := ns[:]
		for i := range page {
			var zero T
			page[i] = zero
		}
	}
	p.pages = p.pages[:0]
	p.index = pageSize
	p.allocated = 0
}

// Slice is a bump-allocated arena of growable segments, used for the
// value-list pool: out-of-line storage for variadic operand lists (call
// arguments, branch arguments, jump-table targets) so the fixed-size
// Instruction record never needs to grow.
type Slice[T any] struct {
	elems []T
}

// SliceID identifies a contiguous run of elements inside a Slice arena.
type SliceID struct {
	offset, length int32
}

// Valid reports whether id refers to a real (possibly empty) run.
func (id SliceID) Valid() bool { return id.length >= 0 }

// InvalidSliceID is the zero value denoting "no value-list".
var InvalidSliceID = SliceID{offset: 0, length: -1}

// NewSlice returns an empty arena.
func NewSlice[T any]() Slice[T] { return Slice[T]{} }

// Append appends vs as one contiguous run and returns its handle.
func (s *Slice[T]) Append(vs ...T) SliceID {
	off := int32(len(s.elems))
	s.elems = append(s.elems, vs...)
	return SliceID{offset: off, length: int32(len(vs))}
}

// View returns the elements referenced by id. The returned slice aliases the
// arena's backing array and must not be retained past the next Append that
// could reallocate it.
func (s *Slice[T]) View(id SliceID) []T {
	if id.length <= 0 {
		return nil
	}
	return s.elems[id.offset : id.offset+id.length]
}

// PushBack appends v to the end of the run referenced by id, provided id
// currently refers to the arena's tail segment (the common case: operand
// lists are extended immediately after being created, before anything else
// is appended). Returns the possibly-new SliceID.
func (s *Slice[T]) PushBack(id SliceID, v T) SliceID {
	if id.length >= 0 && int(id.offset+id.length) == len(s.elems) {
		s.elems = append(s.elems, v)
		return SliceID{offset: id.offset, length: id.length + 1}
	}
	// The run isn't at the tail (something else grew in between): copy it out.
	cur := s.View(id)
	newOff := int32(len(s.elems))
	s.elems = append(s.elems, cur...)
	s.elems = append(s.elems, v)
	return SliceID{offset: newOff, length: id.length + 1}
}

// Reset clears the arena for reuse by the next function.
func (s *Slice[T]) Reset() { s.elems = s.elems[:0] }

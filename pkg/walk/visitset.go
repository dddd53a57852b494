package walk

// VisitSet is the set of addresses visited by a single walk. Every walk
// creates its own, they are never shared between walks or goroutines.
type VisitSet struct {
	m map[uint64]struct{}
}

// NewVisitSet returns an empty VisitSet.
func NewVisitSet() *VisitSet {
	return &VisitSet{m: make(map[uint64]struct{})}
}

// Contains returns true if addr was inserted.
func (s *VisitSet) Contains(addr uint64) bool {
	_, ok := s.m[addr]
	return ok
}

// Insert adds addr to the set.
func (s *VisitSet) Insert(addr uint64) {
	s.m[addr] = struct{}{}
}

// Size returns the number of addresses in the set.
func (s *VisitSet) Size() int {
	return len(s.m)
}

package matchsync

import "github.com/bits-and-blooms/bloom/v3"

// idSet is a match-id set with a bloom pre-check. A bloom miss means the id is
// definitely absent; a hit is confirmed against the exact set.
type idSet struct {
	bloom *bloom.BloomFilter
	exact map[string]struct{}
}

func newIDSet(ids []string) *idSet {
	n := uint(len(ids)) * 2
	if n < 1000 {
		n = 1000
	}
	s := &idSet{
		bloom: bloom.NewWithEstimates(n, 0.001),
		exact: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *idSet) Add(id string) {
	s.bloom.AddString(id)
	s.exact[id] = struct{}{}
}

func (s *idSet) Has(id string) bool {
	if !s.bloom.TestString(id) {
		return false
	}
	_, ok := s.exact[id]
	return ok
}

func (s *idSet) Len() int {
	return len(s.exact)
}

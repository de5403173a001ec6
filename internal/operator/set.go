package operator

import "github.com/ethereum/go-ethereum/common"

// Set is an insertion-ordered set of addresses with O(1) membership and index access.
// It is not safe for concurrent use; Registry adds locking.
type Set struct {
	items []common.Address
	index map[common.Address]int
}

// NewSet creates a set populated with addrs in order, skipping duplicates.
func NewSet(addrs ...common.Address) *Set {
	s := &Set{index: make(map[common.Address]int, len(addrs))}
	for _, a := range addrs {
		s.Add(a)
	}
	return s
}

// Add appends addr and returns false if it was already present.
func (s *Set) Add(addr common.Address) bool {
	if _, ok := s.index[addr]; ok {
		return false
	}
	s.index[addr] = len(s.items)
	s.items = append(s.items, addr)
	return true
}

// Remove deletes addr, keeping the remaining items in insertion order.
func (s *Set) Remove(addr common.Address) bool {
	i, ok := s.index[addr]
	if !ok {
		return false
	}
	copy(s.items[i:], s.items[i+1:])
	s.items = s.items[:len(s.items)-1]
	delete(s.index, addr)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
	return true
}

func (s *Set) Contains(addr common.Address) bool {
	_, ok := s.index[addr]
	return ok
}

// At returns the item at position i and false when i is out of range.
func (s *Set) At(i int) (common.Address, bool) {
	if i < 0 || i >= len(s.items) {
		return common.Address{}, false
	}
	return s.items[i], true
}

func (s *Set) Len() int { return len(s.items) }

// All returns a copy of the items in insertion order.
func (s *Set) All() []common.Address {
	out := make([]common.Address, len(s.items))
	copy(out, s.items)
	return out
}

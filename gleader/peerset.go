// Package gleader picks the block proposer for a round
// from the set of peers a node has heard of.
package gleader

import "sort"

// PeerSet is an append-only set of known peer identities.
// It is distinct from the peers currently connected.
type PeerSet struct {
	ids map[string]struct{}

	// Cached result of Sorted, invalidated by Add.
	sorted []string
}

func NewPeerSet(ids ...string) *PeerSet {
	s := &PeerSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add inserts id, reporting whether it was new.
// Empty identities are ignored.
func (s *PeerSet) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.sorted = nil
	return true
}

func (s *PeerSet) Contains(id string) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *PeerSet) Len() int {
	return len(s.ids)
}

// Sorted returns the identities in ascending byte order.
// The returned slice must not be modified.
func (s *PeerSet) Sorted() []string {
	if s.sorted == nil {
		s.sorted = make([]string, 0, len(s.ids))
		for id := range s.ids {
			s.sorted = append(s.sorted, id)
		}
		sort.Strings(s.sorted)
	}
	return s.sorted
}

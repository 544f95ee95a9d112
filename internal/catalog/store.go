package catalog

import (
	"fmt"

	m "irmut.dev/pkg/irmut/internal/model"
)

// Store is the in-memory catalog: the dense id table plus a per-function
// view ordered by instruction index. It is immutable after construction and
// safe to share across forked processes.
type Store struct {
	byID   []m.Mutation // byID[0] is the zero value; ids are 1-based
	byFunc map[string][]m.Mutation
}

// NewStore indexes a parsed catalog. The slice must already be in id order
// (Read enforces this); per-function runs inherit the catalog order, which
// is sorted by instruction index by construction.
func NewStore(muts []m.Mutation) (*Store, error) {
	s := &Store{
		byID:   make([]m.Mutation, len(muts)+1),
		byFunc: make(map[string][]m.Mutation),
	}

	for i, mut := range muts {
		if mut.ID != i+1 {
			return nil, fmt.Errorf("catalog: id %d at position %d", mut.ID, i)
		}

		s.byID[mut.ID] = mut
		s.byFunc[mut.Function] = append(s.byFunc[mut.Function], mut)
	}

	return s, nil
}

// Len returns the number of mutations.
func (s *Store) Len() int { return len(s.byID) - 1 }

// Get returns the mutation with the given id.
func (s *Store) Get(id int) (m.Mutation, bool) {
	if id < 1 || id >= len(s.byID) {
		return m.Mutation{}, false
	}

	return s.byID[id], true
}

// ForFunction returns the mutations targeting fn, in catalog order.
func (s *Store) ForFunction(fn string) []m.Mutation {
	return s.byFunc[fn]
}

// All returns the full catalog in id order.
func (s *Store) All() []m.Mutation {
	return s.byID[1:]
}

// Sites groups a function's mutations into contiguous per-site runs,
// preserving catalog order.
func (s *Store) Sites(fn string) [][]m.Mutation {
	var sites [][]m.Mutation

	muts := s.byFunc[fn]
	for i := 0; i < len(muts); {
		j := i + 1
		for j < len(muts) && muts[j].Index == muts[i].Index {
			j++
		}

		sites = append(sites, muts[i:j])
		i = j
	}

	return sites
}

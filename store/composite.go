package store

import (
	"sort"

	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// CompositeStore layers several ImplementationStores into one logical store
//: lookups (Contains/GetPath) check every
// member in order, while Add targets the first writable member, mirroring a
// per-user cache sitting in front of a shared read-only system store.
type CompositeStore struct {
	stores []*ImplementationStore
}

// NewCompositeStore layers stores in priority order: earlier stores are
// preferred both for reads (first hit wins) and for writes (first writable
// store receives an Add).
func NewCompositeStore(stores ...*ImplementationStore) *CompositeStore {
	return &CompositeStore{stores: stores}
}

// Contains reports whether any layer already holds id.
func (c *CompositeStore) Contains(id digest.ID) bool {
	for _, s := range c.stores {
		if s.Contains(id) {
			return true
		}
	}
	return false
}

// GetPath returns id's directory from the first layer that holds it.
func (c *CompositeStore) GetPath(id digest.ID) (string, bool) {
	for _, s := range c.stores {
		if p, ok := s.GetPath(id); ok {
			return p, true
		}
	}
	return "", false
}

// ListAll returns the union of every layer's entries, deduplicated, in the
// same digest-ordinal order ImplementationStore.ListAll uses.
func (c *CompositeStore) ListAll() ([]digest.ID, error) {
	seen := map[digest.ID]bool{}
	var out []digest.ID
	for _, s := range c.stores {
		ids, err := s.ListAll()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Add stages id into the first writable layer. If id is already present in
// any layer, Add is a no-op, matching the single-store idempotency contract.
func (c *CompositeStore) Add(id digest.ID, build BuildFunc) error {
	if c.Contains(id) {
		return nil
	}
	for _, s := range c.stores {
		if s.kind.writable() {
			return s.Add(id, build)
		}
	}
	return zerr.New(zerr.UnauthorizedAccess, "store: no writable layer to add %s", id)
}

// Remove deletes id from whichever writable layer holds it.
func (c *CompositeStore) Remove(id digest.ID) (bool, error) {
	removed := false
	for _, s := range c.stores {
		if !s.kind.writable() {
			continue
		}
		if !s.Contains(id) {
			continue
		}
		ok, err := s.Remove(id)
		if err != nil {
			return removed, err
		}
		removed = removed || ok
	}
	return removed, nil
}

// Verify checks id against whichever layer currently holds it.
func (c *CompositeStore) Verify(id digest.ID) error {
	for _, s := range c.stores {
		if s.Contains(id) {
			return s.Verify(id)
		}
	}
	return zerr.New(zerr.ImplementationNotFound, "store: verify %s: not found in any layer", id)
}

// Stores returns the underlying layers in priority order, for callers (e.g.
// a CLI's `store optimise --all`) that need to address a specific layer
// directly.
func (c *CompositeStore) Stores() []*ImplementationStore { return c.stores }

package dex

import "sort"

// Overlay is the copy-on-write layer of whole-class replacements and
// deletions sitting above the immutable base document. An identifier is
// never simultaneously replaced and deleted: each mutation clears the
// other mark.
type Overlay struct {
	replaced map[string]ClassDefinition
	deleted  map[string]struct{}
}

// OverlaySnapshot is an immutable deep copy of overlay state. The
// definitions themselves are shared structurally; they are immutable
// values, so sharing is safe.
type OverlaySnapshot struct {
	replaced map[string]ClassDefinition
	deleted  map[string]struct{}
}

// NewOverlay creates an empty overlay.
func NewOverlay() *Overlay {
	return &Overlay{
		replaced: make(map[string]ClassDefinition),
		deleted:  make(map[string]struct{}),
	}
}

// Replace records a whole-class replacement. A prior deletion mark for
// the identifier is cleared: replace after delete un-deletes.
func (o *Overlay) Replace(id string, def ClassDefinition) {
	delete(o.deleted, id)
	o.replaced[id] = def
}

// Delete marks an identifier deleted and clears any replacement.
// Identifiers absent from the base store are still recorded; export
// simply has nothing to exclude.
func (o *Overlay) Delete(id string) {
	delete(o.replaced, id)
	o.deleted[id] = struct{}{}
}

// Undelete clears a deletion mark without installing a replacement.
func (o *Overlay) Undelete(id string) {
	delete(o.deleted, id)
}

// Remove drops the replacement entry for an identifier, reverting
// reads to the base definition.
func (o *Overlay) Remove(id string) {
	delete(o.replaced, id)
}

// Replacement returns the replacement definition for an identifier.
func (o *Overlay) Replacement(id string) (ClassDefinition, bool) {
	def, ok := o.replaced[id]
	return def, ok
}

// IsDeleted reports whether an identifier is marked deleted.
func (o *Overlay) IsDeleted(id string) bool {
	_, ok := o.deleted[id]
	return ok
}

// Touched reports whether an identifier is replaced or deleted.
func (o *Overlay) Touched(id string) bool {
	if _, ok := o.replaced[id]; ok {
		return true
	}
	_, ok := o.deleted[id]
	return ok
}

// Counts returns the number of replaced and deleted identifiers.
func (o *Overlay) Counts() (replaced, deleted int) {
	return len(o.replaced), len(o.deleted)
}

// ReplacedIDs returns the replaced identifiers in sorted order.
func (o *Overlay) ReplacedIDs() []string {
	ids := make([]string, 0, len(o.replaced))
	for id := range o.replaced {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeletedIDs returns the deleted identifiers in sorted order.
func (o *Overlay) DeletedIDs() []string {
	ids := make([]string, 0, len(o.deleted))
	for id := range o.deleted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clear drops all replacements and deletions.
func (o *Overlay) Clear() {
	o.replaced = make(map[string]ClassDefinition)
	o.deleted = make(map[string]struct{})
}

// Snapshot returns an immutable deep copy of the overlay state.
func (o *Overlay) Snapshot() OverlaySnapshot {
	s := OverlaySnapshot{
		replaced: make(map[string]ClassDefinition, len(o.replaced)),
		deleted:  make(map[string]struct{}, len(o.deleted)),
	}
	for id, def := range o.replaced {
		s.replaced[id] = def
	}
	for id := range o.deleted {
		s.deleted[id] = struct{}{}
	}
	return s
}

// Restore atomically replaces the live overlay state with a snapshot.
// The snapshot itself stays intact and can be restored again.
func (o *Overlay) Restore(s OverlaySnapshot) {
	replaced := make(map[string]ClassDefinition, len(s.replaced))
	deleted := make(map[string]struct{}, len(s.deleted))
	for id, def := range s.replaced {
		replaced[id] = def
	}
	for id := range s.deleted {
		deleted[id] = struct{}{}
	}
	o.replaced = replaced
	o.deleted = deleted
}

// Counts returns the number of replaced and deleted identifiers
// captured in the snapshot.
func (s OverlaySnapshot) Counts() (replaced, deleted int) {
	return len(s.replaced), len(s.deleted)
}

// ReplacedIDs returns the captured replaced identifiers, sorted.
func (s OverlaySnapshot) ReplacedIDs() []string {
	ids := make([]string, 0, len(s.replaced))
	for id := range s.replaced {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DeletedIDs returns the captured deleted identifiers, sorted.
func (s OverlaySnapshot) DeletedIDs() []string {
	ids := make([]string, 0, len(s.deleted))
	for id := range s.deleted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

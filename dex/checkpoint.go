package dex

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// AutoCheckpointPrefix is the namespace reserved for checkpoints taken
// automatically before a mutation. User-chosen names may not use it.
const AutoCheckpointPrefix = "auto/"

// Checkpoint is a named, independently restorable snapshot of overlay
// state. It is decoupled from the linear history: restoring one does
// not alter the ledger.
type Checkpoint struct {
	Name     string
	Created  time.Time
	snapshot OverlaySnapshot
}

// ReplacedIDs returns the replaced identifiers captured at creation.
func (c *Checkpoint) ReplacedIDs() []string { return c.snapshot.ReplacedIDs() }

// DeletedIDs returns the deleted identifiers captured at creation.
func (c *Checkpoint) DeletedIDs() []string { return c.snapshot.DeletedIDs() }

// CheckpointInfo is the listing view of a checkpoint.
type CheckpointInfo struct {
	Name     string
	Created  time.Time
	Replaced int
	Deleted  int
}

// CheckpointStore holds named overlay snapshots for a document.
type CheckpointStore struct {
	overlay *Overlay
	byName  map[string]*Checkpoint
	autoSeq uint64
}

// NewCheckpointStore creates an empty store bound to an overlay.
func NewCheckpointStore(overlay *Overlay) *CheckpointStore {
	return &CheckpointStore{
		overlay: overlay,
		byName:  make(map[string]*Checkpoint),
	}
}

// Capture snapshots the live overlay under a user-chosen name,
// overwriting any existing checkpoint of the same name. Names in the
// reserved auto namespace are rejected.
func (s *CheckpointStore) Capture(name string) error {
	if name == "" {
		return fmt.Errorf("%w: checkpoint name is empty", ErrInvalidArgument)
	}
	if strings.HasPrefix(name, AutoCheckpointPrefix) {
		return fmt.Errorf("%w: %q is reserved for automatic checkpoints", ErrInvalidArgument, AutoCheckpointPrefix)
	}
	s.store(name)
	return nil
}

// CaptureAuto snapshots the live overlay under the next name in the
// reserved auto namespace and returns that name.
func (s *CheckpointStore) CaptureAuto() string {
	s.autoSeq++
	name := fmt.Sprintf("%s%d", AutoCheckpointPrefix, s.autoSeq)
	s.store(name)
	return name
}

func (s *CheckpointStore) store(name string) {
	s.byName[name] = &Checkpoint{
		Name:     name,
		Created:  time.Now(),
		snapshot: s.overlay.Snapshot(),
	}
}

// Restore atomically replaces the live overlay with the named
// snapshot. The checkpoint itself stays intact.
func (s *CheckpointStore) Restore(name string) error {
	cp, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("checkpoint %q: %w", name, ErrNotFound)
	}
	s.overlay.Restore(cp.snapshot)
	return nil
}

// Get returns the named checkpoint.
func (s *CheckpointStore) Get(name string) (*Checkpoint, bool) {
	cp, ok := s.byName[name]
	return cp, ok
}

// Delete removes the named checkpoint, reporting whether it existed.
func (s *CheckpointStore) Delete(name string) bool {
	if _, ok := s.byName[name]; !ok {
		return false
	}
	delete(s.byName, name)
	return true
}

// List returns checkpoint summaries ordered by creation time, then
// name for equal timestamps.
func (s *CheckpointStore) List() []CheckpointInfo {
	infos := make([]CheckpointInfo, 0, len(s.byName))
	for _, cp := range s.byName {
		replaced, deleted := cp.snapshot.Counts()
		infos = append(infos, CheckpointInfo{
			Name:     cp.Name,
			Created:  cp.Created,
			Replaced: replaced,
			Deleted:  deleted,
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].Created.Equal(infos[j].Created) {
			return infos[i].Created.Before(infos[j].Created)
		}
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Len returns the number of stored checkpoints.
func (s *CheckpointStore) Len() int { return len(s.byName) }

// Clear drops every checkpoint and resets the auto counter.
func (s *CheckpointStore) Clear() {
	s.byName = make(map[string]*Checkpoint)
	s.autoSeq = 0
}

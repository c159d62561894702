package dex

import "time"

// DefaultHistoryCap bounds the undo/redo ledger unless overridden.
const DefaultHistoryCap = 50

// Action discriminates history entries.
type Action uint8

const (
	// ActionModify records a whole-class replacement.
	ActionModify Action = iota

	// ActionDelete records a class deletion.
	ActionDelete
)

// String returns a human-readable name for an Action.
func (a Action) String() string {
	switch a {
	case ActionModify:
		return "modify"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// HistoryEntry records one atomic edit.
//
// PriorText is the replacement text the overlay held before the edit,
// or nil when the class resolved to its untouched base definition (or
// not at all). For a Modify, NewText is the submitted source; for a
// Delete it is nil.
type HistoryEntry struct {
	Action    Action
	Class     string
	PriorText *string
	NewText   *string
	Time      time.Time
}

// History is the bounded linear undo/redo ledger layered on the
// overlay. The cursor indexes the most recently applied entry, -1 when
// everything has been undone.
type History struct {
	codec   Codec
	overlay *Overlay
	cap     int
	entries []HistoryEntry
	cursor  int
}

// NewHistory creates an empty ledger bound to an overlay. A cap of
// zero or less falls back to DefaultHistoryCap.
func NewHistory(cap int, codec Codec, overlay *Overlay) *History {
	if cap <= 0 {
		cap = DefaultHistoryCap
	}
	return &History{
		codec:   codec,
		overlay: overlay,
		cap:     cap,
		cursor:  -1,
	}
}

// Cap returns the configured maximum ledger size.
func (h *History) Cap() int { return h.cap }

// Len returns the current number of entries.
func (h *History) Len() int { return len(h.entries) }

// Cursor returns the index of the most recently applied entry, or -1.
func (h *History) Cursor() int { return h.cursor }

// Entries returns a copy of the ledger, oldest first.
func (h *History) Entries() []HistoryEntry {
	return append([]HistoryEntry(nil), h.entries...)
}

// Clear empties the ledger.
func (h *History) Clear() {
	h.entries = nil
	h.cursor = -1
}

// Record appends an entry. Entries beyond the cursor (the redo branch)
// are discarded first; afterwards the cap is enforced by evicting from
// the front, moving the cursor back accordingly. The cursor entry is
// never evicted: after an append it is the last entry and the cap is
// at least one.
func (h *History) Record(e HistoryEntry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if h.cursor < len(h.entries)-1 {
		h.entries = h.entries[:h.cursor+1]
	}
	h.entries = append(h.entries, e)
	h.cursor = len(h.entries) - 1

	if over := len(h.entries) - h.cap; over > 0 {
		kept := make([]HistoryEntry, len(h.entries)-over)
		copy(kept, h.entries[over:])
		h.entries = kept
		h.cursor -= over
	}
}

// Undo reverts the entry at the cursor and moves the cursor back one.
// Returns ErrNothingToUndo when fully unwound. A failed re-assembly of
// the prior text leaves both the overlay and the cursor unchanged.
func (h *History) Undo() (*HistoryEntry, error) {
	if h.cursor < 0 {
		return nil, ErrNothingToUndo
	}
	e := h.entries[h.cursor]

	switch e.Action {
	case ActionModify:
		if e.PriorText == nil {
			// No replacement existed before the edit; dropping the
			// entry reverts reads to the base view and keeps the base
			// record bytes intact for export.
			h.overlay.Remove(e.Class)
		} else {
			def, err := h.codec.Assemble(*e.PriorText)
			if err != nil {
				return nil, &CodecError{Op: "assemble", Class: e.Class, Err: err}
			}
			h.overlay.Replace(e.Class, def)
		}
	case ActionDelete:
		if e.PriorText != nil {
			def, err := h.codec.Assemble(*e.PriorText)
			if err != nil {
				return nil, &CodecError{Op: "assemble", Class: e.Class, Err: err}
			}
			h.overlay.Replace(e.Class, def)
		} else {
			h.overlay.Undelete(e.Class)
		}
	}

	h.cursor--
	return &e, nil
}

// Redo re-applies the entry after the cursor, the mirror of Undo.
func (h *History) Redo() (*HistoryEntry, error) {
	if h.cursor >= len(h.entries)-1 {
		return nil, ErrNothingToRedo
	}
	e := h.entries[h.cursor+1]

	switch e.Action {
	case ActionModify:
		if e.NewText == nil {
			return nil, &CodecError{Op: "assemble", Class: e.Class, Err: ErrInvalidArgument}
		}
		def, err := h.codec.Assemble(*e.NewText)
		if err != nil {
			return nil, &CodecError{Op: "assemble", Class: e.Class, Err: err}
		}
		h.overlay.Replace(e.Class, def)
	case ActionDelete:
		h.overlay.Delete(e.Class)
	}

	h.cursor++
	return &e, nil
}

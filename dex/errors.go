package dex

import (
	"errors"
	"fmt"
)

// Sentinel errors for document operations.
var (
	// ErrNotFound indicates a class, method or checkpoint is absent.
	ErrNotFound = errors.New("not found")

	// ErrNoDocumentOpen indicates an operation before a successful open.
	ErrNoDocumentOpen = errors.New("no document open")

	// ErrInvalidArgument indicates a bad offset, limit, name or pattern.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNothingToUndo and ErrNothingToRedo mark undo/redo no-ops.
	// They are distinguishable empty results, not failures; callers
	// usually report them as a successful "nothing to do".
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// CodecError reports a failure at the codec boundary with enough
// context to be actionable.
type CodecError struct {
	Op    string // "decode", "encode", "assemble", "disassemble", "decompile"
	Class string // class identifier, empty for image-level failures
	Err   error
}

func (e *CodecError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("%s error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s error for %s: %v", e.Op, e.Class, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

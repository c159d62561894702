package dex

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckpointStore_CaptureAndRestore(t *testing.T) {
	o := NewOverlay()
	s := NewCheckpointStore(o)

	o.Replace("La;", cls("La;", "v1"))
	if err := s.Capture("before"); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}

	o.Delete("La;")
	o.Replace("Lb;", cls("Lb;", "v1"))

	if err := s.Restore("before"); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if o.IsDeleted("La;") {
		t.Error("restore should undo the later deletion")
	}
	if o.Touched("Lb;") {
		t.Error("restore should drop the later replacement")
	}
}

func TestCheckpointStore_RestoreUnknown(t *testing.T) {
	s := NewCheckpointStore(NewOverlay())
	if err := s.Restore("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Restore = %v, want ErrNotFound", err)
	}
}

func TestCheckpointStore_CaptureRejectsReservedNames(t *testing.T) {
	s := NewCheckpointStore(NewOverlay())

	if err := s.Capture(""); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("empty name = %v, want ErrInvalidArgument", err)
	}
	if err := s.Capture("auto/7"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("reserved name = %v, want ErrInvalidArgument", err)
	}
}

func TestCheckpointStore_CaptureOverwritesSameName(t *testing.T) {
	o := NewOverlay()
	s := NewCheckpointStore(o)

	o.Replace("La;", cls("La;", "v1"))
	s.Capture("work")
	o.Replace("Lb;", cls("Lb;", "v1"))
	s.Capture("work")

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}
	cp, _ := s.Get("work")
	if len(cp.ReplacedIDs()) != 2 {
		t.Errorf("overwritten checkpoint should hold the newer snapshot, got %v", cp.ReplacedIDs())
	}
}

func TestCheckpointStore_AutoNamespace(t *testing.T) {
	o := NewOverlay()
	s := NewCheckpointStore(o)

	first := s.CaptureAuto()
	second := s.CaptureAuto()

	if !strings.HasPrefix(first, AutoCheckpointPrefix) {
		t.Errorf("auto name %q lacks the reserved prefix", first)
	}
	if first == second {
		t.Error("auto names must be distinct")
	}
	if err := s.Restore(first); err != nil {
		t.Errorf("auto checkpoints must be restorable: %v", err)
	}
}

func TestCheckpointStore_DeleteReportsExistence(t *testing.T) {
	s := NewCheckpointStore(NewOverlay())
	s.Capture("work")

	if !s.Delete("work") {
		t.Error("Delete should report true for an existing checkpoint")
	}
	if s.Delete("work") {
		t.Error("Delete should report false the second time")
	}
}

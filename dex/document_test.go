package dex_test

import (
	"errors"
	"strings"
	"testing"

	"dexedit/dex"
	"dexedit/smali"
)

const mainPatched = `.class public Lcom/example/Main;
.super Ljava/lang/Object;

.method public run()V
    .registers 2
    const v0, 0x7
    return-void
.end method
`

func TestDocument_OpenReportsImages(t *testing.T) {
	doc, path := openFixture(t)

	st := doc.Status()
	if !st.Open || st.Path != path {
		t.Fatalf("status = %+v, want open document at %s", st, path)
	}
	if len(st.Images) != 2 {
		t.Fatalf("images = %d, want 2", len(st.Images))
	}
	if st.Images[0].Name != "classes" || st.Images[0].Classes != 2 {
		t.Errorf("first image = %+v, want classes with 2 classes", st.Images[0])
	}
	if st.Images[1].Name != "classes2" || st.Images[1].Classes != 1 {
		t.Errorf("second image = %+v, want classes2 with 1 class", st.Images[1])
	}
}

func TestDocument_OperationsBeforeOpen(t *testing.T) {
	doc := dex.NewDocument(smali.NewCodec())

	if _, err := doc.Resolve("Lcom/example/Main;"); !errors.Is(err, dex.ErrNoDocumentOpen) {
		t.Errorf("Resolve = %v, want ErrNoDocumentOpen", err)
	}
	if err := doc.Reset(); !errors.Is(err, dex.ErrNoDocumentOpen) {
		t.Errorf("Reset = %v, want ErrNoDocumentOpen", err)
	}
	if _, err := doc.Save(""); !errors.Is(err, dex.ErrNoDocumentOpen) {
		t.Errorf("Save = %v, want ErrNoDocumentOpen", err)
	}
}

func TestDocument_EnumerateOrderAndFilter(t *testing.T) {
	doc, _ := openFixture(t)

	classes, err := doc.Enumerate("")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	want := []string{"Lcom/example/Main;", "Lcom/example/Util;", "Lorg/other/Thing;"}
	if strings.Join(ids, " ") != strings.Join(want, " ") {
		t.Errorf("enumeration order = %v, want %v", ids, want)
	}

	only2, err := doc.Enumerate("classes2")
	if err != nil {
		t.Fatal(err)
	}
	if len(only2) != 1 || only2[0].ID != "Lorg/other/Thing;" {
		t.Errorf("filtered enumeration = %+v", only2)
	}

	if _, err := doc.Enumerate("classes99"); !errors.Is(err, dex.ErrNotFound) {
		t.Errorf("unknown image filter = %v, want ErrNotFound", err)
	}
}

func TestDocument_ModifyResolvesToReplacement(t *testing.T) {
	doc, _ := openFixture(t)

	if err := doc.Modify("Lcom/example/Main;", mainPatched); err != nil {
		t.Fatalf("Modify failed: %v", err)
	}
	text, err := doc.Text("Lcom/example/Main;")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "const v0, 0x7") {
		t.Errorf("resolved text should be the replacement, got:\n%s", text)
	}

	classes, _ := doc.Enumerate("")
	for _, c := range classes {
		if c.ID == "Lcom/example/Main;" && !c.Modified {
			t.Error("enumeration should flag the class modified")
		}
	}
}

func TestDocument_ModifyRejectsMismatchedIdentifier(t *testing.T) {
	doc, _ := openFixture(t)

	err := doc.Modify("Lcom/example/Util;", mainPatched)
	if !errors.Is(err, dex.ErrInvalidArgument) {
		t.Errorf("Modify = %v, want ErrInvalidArgument", err)
	}
}

func TestDocument_ModifyFailedAssembleChangesNothing(t *testing.T) {
	doc, _ := openFixture(t)

	err := doc.Modify("Lcom/example/Main;", "not smali at all")
	if err == nil {
		t.Fatal("Modify should fail on unparseable source")
	}
	var ce *dex.CodecError
	if !errors.As(err, &ce) || ce.Op != "assemble" {
		t.Errorf("error = %v, want assemble CodecError", err)
	}
	st := doc.Status()
	if st.Replaced != 0 || st.HistoryLen != 0 {
		t.Errorf("failed modify must not touch state: %+v", st)
	}
}

func TestDocument_DeleteHidesClass(t *testing.T) {
	doc, _ := openFixture(t)

	if err := doc.Delete("Lcom/example/Util;"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := doc.Resolve("Lcom/example/Util;"); !errors.Is(err, dex.ErrNotFound) {
		t.Errorf("Resolve after delete = %v, want ErrNotFound", err)
	}
	classes, _ := doc.Enumerate("")
	for _, c := range classes {
		if c.ID == "Lcom/example/Util;" {
			t.Error("deleted class must not be enumerated")
		}
	}
}

func TestDocument_UndoRedoRoundTrip(t *testing.T) {
	doc, _ := openFixture(t)
	id := "Lcom/example/Main;"

	original, _ := doc.Text(id)
	if err := doc.Modify(id, mainPatched); err != nil {
		t.Fatal(err)
	}

	if _, err := doc.Undo(); err != nil {
		t.Fatalf("Undo failed: %v", err)
	}
	text, _ := doc.Text(id)
	if text != original {
		t.Errorf("undo should restore the original text\ngot:\n%s\nwant:\n%s", text, original)
	}

	if _, err := doc.Redo(); err != nil {
		t.Fatalf("Redo failed: %v", err)
	}
	text, _ = doc.Text(id)
	if !strings.Contains(text, "const v0, 0x7") {
		t.Error("redo should reinstall the patched text")
	}
}

func TestDocument_ResetKeepsCheckpoints(t *testing.T) {
	doc, _ := openFixture(t)

	doc.Modify("Lcom/example/Main;", mainPatched)
	if err := doc.Checkpoint("work"); err != nil {
		t.Fatal(err)
	}

	if err := doc.Reset(); err != nil {
		t.Fatal(err)
	}
	st := doc.Status()
	if st.Replaced != 0 || st.HistoryLen != 0 {
		t.Errorf("reset should clear edits and history: %+v", st)
	}
	if st.Checkpoints != 1 {
		t.Errorf("checkpoints = %d, want 1 (survive reset)", st.Checkpoints)
	}

	if err := doc.RestoreCheckpoint("work"); err != nil {
		t.Fatal(err)
	}
	text, _ := doc.Text("Lcom/example/Main;")
	if !strings.Contains(text, "const v0, 0x7") {
		t.Error("restoring the checkpoint should bring the edit back")
	}
}

func TestDocument_CloseDropsCheckpoints(t *testing.T) {
	doc, _ := openFixture(t)
	doc.Checkpoint("work")

	doc.Close()
	if doc.Status().Checkpoints != 0 {
		t.Error("close should drop checkpoints")
	}
}

func TestDocument_AutoCheckpointBeforeMutation(t *testing.T) {
	doc, _ := openFixture(t)
	doc.SetAutoCheckpoint(true)

	if err := doc.Modify("Lcom/example/Main;", mainPatched); err != nil {
		t.Fatal(err)
	}
	infos := doc.Checkpoints().List()
	if len(infos) != 1 || !strings.HasPrefix(infos[0].Name, dex.AutoCheckpointPrefix) {
		t.Fatalf("checkpoints = %+v, want one auto checkpoint", infos)
	}
	if infos[0].Replaced != 0 {
		t.Error("auto checkpoint must capture the state before the edit")
	}
}

func TestDocument_PagedText(t *testing.T) {
	doc, _ := openFixture(t)
	id := "Lcom/example/Main;"
	full, _ := doc.Text(id)

	page, err := doc.PagedText(id, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if page.Text != full[:10] || !page.HasMore || page.Total != len(full) {
		t.Errorf("first page = %+v", page)
	}

	rest, err := doc.PagedText(id, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if rest.Text != full[10:] || rest.HasMore {
		t.Errorf("limit <= 0 should return the rest, got %+v", rest)
	}

	if _, err := doc.PagedText(id, len(full)+1, 10); !errors.Is(err, dex.ErrInvalidArgument) {
		t.Errorf("out-of-range offset = %v, want ErrInvalidArgument", err)
	}
	if _, err := doc.PagedText(id, -1, 10); !errors.Is(err, dex.ErrInvalidArgument) {
		t.Errorf("negative offset = %v, want ErrInvalidArgument", err)
	}
}

func TestDocument_ReplaceText(t *testing.T) {
	doc, _ := openFixture(t)
	id := "Lcom/example/Main;"

	replaced, total, err := doc.ReplaceText(id, "0x2a", "0x2b", false)
	if err != nil {
		t.Fatalf("ReplaceText failed: %v", err)
	}
	if replaced != 1 || total != 1 {
		t.Errorf("replaced/total = %d/%d, want 1/1", replaced, total)
	}
	text, _ := doc.Text(id)
	if !strings.Contains(text, "0x2b") {
		t.Error("replacement text should contain the new value")
	}

	if _, _, err := doc.ReplaceText(id, "no such string", "x", false); !errors.Is(err, dex.ErrNotFound) {
		t.Errorf("missing needle = %v, want ErrNotFound", err)
	}
	if _, _, err := doc.ReplaceText(id, "", "x", false); !errors.Is(err, dex.ErrInvalidArgument) {
		t.Errorf("empty needle = %v, want ErrInvalidArgument", err)
	}
}

func TestDocument_MemberText(t *testing.T) {
	doc, _ := openFixture(t)

	text, err := doc.MemberText("Lcom/example/Util;", "helper")
	if err != nil {
		t.Fatalf("MemberText failed: %v", err)
	}
	if !strings.Contains(text, ".method public helper()V") {
		t.Errorf("method text = %q", text)
	}

	if _, err := doc.MemberText("Lcom/example/Util;", "missing"); !errors.Is(err, dex.ErrNotFound) {
		t.Errorf("missing member = %v, want ErrNotFound", err)
	}
}

func TestDocument_DecompilePackage(t *testing.T) {
	doc, _ := openFixture(t)

	text, ids, truncated, err := doc.DecompilePackage("com.example.*", 10, dex.DecompileOptions{})
	if err != nil {
		t.Fatalf("DecompilePackage failed: %v", err)
	}
	if len(ids) != 2 || truncated {
		t.Errorf("ids = %v truncated = %v, want both com.example classes", ids, truncated)
	}
	if !strings.Contains(text, "package com.example;") {
		t.Errorf("decompiled output missing package clause:\n%s", text)
	}

	_, ids, truncated, err = doc.DecompilePackage("com.example.*", 1, dex.DecompileOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || !truncated {
		t.Errorf("cap 1: ids = %v truncated = %v", ids, truncated)
	}

	if _, _, _, err := doc.DecompilePackage("net.absent.*", 10, dex.DecompileOptions{}); !errors.Is(err, dex.ErrNotFound) {
		t.Errorf("no matches = %v, want ErrNotFound", err)
	}
}

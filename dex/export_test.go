package dex_test

import (
	"archive/zip"
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"dexedit/dex"
	"dexedit/smali"
)

func readZipMembers(t *testing.T, path string) (names []string, contents map[string][]byte) {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	contents = map[string][]byte{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		names = append(names, f.Name)
		contents[f.Name] = data
	}
	return names, contents
}

func TestSave_UntouchedDocumentIsByteIdentical(t *testing.T) {
	doc, src := openFixture(t)

	out, err := doc.Save(filepath.Join(t.TempDir(), "out.apk"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	srcNames, srcData := readZipMembers(t, src)
	outNames, outData := readZipMembers(t, out)

	if strings.Join(srcNames, ",") != strings.Join(outNames, ",") {
		t.Fatalf("member order changed: %v vs %v", srcNames, outNames)
	}
	for _, name := range srcNames {
		if !bytes.Equal(srcData[name], outData[name]) {
			t.Errorf("member %s changed byte-wise", name)
		}
	}
}

func TestSave_OnlyTouchedImageRebuilt(t *testing.T) {
	doc, src := openFixture(t)

	if err := doc.Modify("Lcom/example/Main;", mainPatched); err != nil {
		t.Fatal(err)
	}
	out, err := doc.Save(filepath.Join(t.TempDir(), "out.apk"))
	if err != nil {
		t.Fatal(err)
	}

	_, srcData := readZipMembers(t, src)
	_, outData := readZipMembers(t, out)

	if bytes.Equal(srcData["classes.dex"], outData["classes.dex"]) {
		t.Error("touched image should be rebuilt")
	}
	if !bytes.Equal(srcData["classes2.dex"], outData["classes2.dex"]) {
		t.Error("untouched image must stay byte-identical")
	}
	if !bytes.Equal(srcData["AndroidManifest.xml"], outData["AndroidManifest.xml"]) {
		t.Error("non-bytecode member must stay byte-identical")
	}
	if !bytes.Equal(srcData["assets/data.bin"], outData["assets/data.bin"]) {
		t.Error("asset member must stay byte-identical")
	}

	// The untouched class inside the rebuilt image keeps its record
	// bytes; only Main's record differs.
	codec := smali.NewCodec()
	defs, err := codec.DecodeImage(outData["classes.dex"])
	if err != nil {
		t.Fatalf("rebuilt image does not decode: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("rebuilt image holds %d classes, want 2", len(defs))
	}
	srcDefs, _ := codec.DecodeImage(srcData["classes.dex"])
	if !bytes.Equal(srcDefs[1].Raw(), defs[1].Raw()) {
		t.Error("unmodified class record should re-encode byte-identically")
	}
}

func TestSave_DeletedClassExcluded(t *testing.T) {
	doc, _ := openFixture(t)

	if err := doc.Delete("Lcom/example/Util;"); err != nil {
		t.Fatal(err)
	}
	out, err := doc.Save(filepath.Join(t.TempDir(), "out.apk"))
	if err != nil {
		t.Fatal(err)
	}

	_, outData := readZipMembers(t, out)
	defs, err := smali.NewCodec().DecodeImage(outData["classes.dex"])
	if err != nil {
		t.Fatal(err)
	}
	for _, def := range defs {
		if def.Name() == "Lcom/example/Util;" {
			t.Error("deleted class present in export")
		}
	}
	if len(defs) != 1 {
		t.Errorf("rebuilt image holds %d classes, want 1", len(defs))
	}
}

func TestSave_DerivedOutputPath(t *testing.T) {
	doc, src := openFixture(t)

	out, err := doc.Save("")
	if err != nil {
		t.Fatal(err)
	}
	want := strings.TrimSuffix(src, ".apk") + "_modified.apk"
	if out != want {
		t.Errorf("derived path = %s, want %s", out, want)
	}
}

func TestSave_DoesNotMutateDocument(t *testing.T) {
	doc, _ := openFixture(t)

	doc.Modify("Lcom/example/Main;", mainPatched)
	before := doc.Status()

	if _, err := doc.Save(filepath.Join(t.TempDir(), "out.apk")); err != nil {
		t.Fatal(err)
	}
	after := doc.Status()
	if before.Replaced != after.Replaced || before.HistoryLen != after.HistoryLen || before.HistoryCursor != after.HistoryCursor {
		t.Errorf("save mutated the document: %+v vs %+v", before, after)
	}

	// Undo then export again: the edit is gone from the new export.
	if _, err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	out2, err := doc.Save(filepath.Join(t.TempDir(), "out2.apk"))
	if err != nil {
		t.Fatal(err)
	}
	_, outData := readZipMembers(t, out2)
	defs, _ := smali.NewCodec().DecodeImage(outData["classes.dex"])
	text, _ := smali.NewCodec().Disassemble(defs[0])
	if !strings.Contains(text, "0x2a") {
		t.Error("export after undo should carry the original class")
	}
}

func TestSave_AfterUndoReproducesOriginalImages(t *testing.T) {
	doc, src := openFixture(t)

	if err := doc.Modify("Lcom/example/Main;", mainPatched); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Undo(); err != nil {
		t.Fatal(err)
	}
	out, err := doc.Save(filepath.Join(t.TempDir(), "out.apk"))
	if err != nil {
		t.Fatal(err)
	}

	_, srcData := readZipMembers(t, src)
	_, outData := readZipMembers(t, out)
	for _, name := range []string{"classes.dex", "classes2.dex"} {
		if !bytes.Equal(srcData[name], outData[name]) {
			t.Errorf("%s differs after modify-undo round trip", name)
		}
	}
}

func TestDefaultOutputPath(t *testing.T) {
	got := dex.DefaultOutputPath("/tmp/app.apk")
	if got != "/tmp/app_modified.apk" {
		t.Errorf("DefaultOutputPath = %s", got)
	}
}

package dex_test

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"dexedit/dex"
	"dexedit/smali"
)

// archiveMember is one entry of a fixture archive, in order.
type archiveMember struct {
	name    string
	sources []string // smali class sources for image members, nil for blobs
	blob    string
}

// buildArchive writes a fixture archive into a temp dir and returns
// its path. Image members are encoded from smali sources; everything
// else is stored verbatim.
func buildArchive(t *testing.T, members []archiveMember) string {
	t.Helper()
	codec := smali.NewCodec()

	path := filepath.Join(t.TempDir(), "app.apk")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for _, m := range members {
		var data []byte
		if m.sources != nil {
			var defs []dex.ClassDefinition
			for _, src := range m.sources {
				def, err := codec.Assemble(src)
				if err != nil {
					t.Fatalf("bad fixture source: %v", err)
				}
				defs = append(defs, def)
			}
			data, err = codec.EncodeImage(defs)
			if err != nil {
				t.Fatalf("encoding fixture image: %v", err)
			}
		} else {
			data = []byte(m.blob)
		}
		w, err := zw.Create(m.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

const mainSource = `.class public Lcom/example/Main;
.super Ljava/lang/Object;

.method public run()V
    .registers 2
    const v0, 0x2a
    const-string v1, "hello world"
    invoke-virtual {v0}, Lcom/example/Util;->helper()V
.end method
`

const utilSource = `.class public Lcom/example/Util;
.super Ljava/lang/Object;
.implements Lcom/example/Runnable;

.field private count:I

.method public helper()V
    .registers 1
    iget v0, p0, Lcom/example/Util;->count:I
    return-void
.end method
`

const extraSource = `.class public Lorg/other/Thing;
.super Lcom/example/Util;

.method public poke()V
    .registers 1
    sput v0, Lorg/other/Thing;->flag:I
    const/16 v0, 0x1337
.end method
`

// openFixture builds the standard two-image archive and opens it.
func openFixture(t *testing.T) (*dex.Document, string) {
	t.Helper()
	path := buildArchive(t, []archiveMember{
		{name: "AndroidManifest.xml", blob: "<manifest/>"},
		{name: "classes.dex", sources: []string{mainSource, utilSource}},
		{name: "classes2.dex", sources: []string{extraSource}},
		{name: "assets/data.bin", blob: "binary payload"},
	})
	doc := dex.NewDocument(smali.NewCodec())
	if _, err := doc.Open(path); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return doc, path
}

package workspace

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "ws.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := newTestStore(t)

	m := &Manifest{
		Name:     "milestone",
		Archive:  "/tmp/app.apk",
		Created:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Replaced: []string{"Lcom/example/Main;"},
		Deleted:  []string{"Lcom/example/Dead;"},
	}
	if err := s.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load("/tmp/app.apk", "milestone")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Name != m.Name || len(got.Replaced) != 1 || len(got.Deleted) != 1 {
		t.Errorf("loaded = %+v", got)
	}
	if !got.Created.Equal(m.Created) {
		t.Errorf("created = %v, want %v", got.Created, m.Created)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	s.Save(&Manifest{Name: "work", Archive: "a.apk", Created: time.Now(), Replaced: []string{"Lx/A;"}})
	s.Save(&Manifest{Name: "work", Archive: "a.apk", Created: time.Now(), Replaced: []string{"Lx/A;", "Lx/B;"}})

	got, err := s.Load("a.apk", "work")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Replaced) != 2 {
		t.Errorf("overwrite lost: %+v", got)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Load("a.apk", "missing"); !errors.Is(err, ErrManifestNotFound) {
		t.Errorf("Load = %v, want ErrManifestNotFound", err)
	}
}

func TestStore_ListScopedToArchive(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.Save(&Manifest{Name: "b", Archive: "a.apk", Created: base.Add(time.Hour)})
	s.Save(&Manifest{Name: "a", Archive: "a.apk", Created: base})
	s.Save(&Manifest{Name: "other", Archive: "z.apk", Created: base})

	list, err := s.List("a.apk")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("list = %d entries, want 2", len(list))
	}
	if list[0].Name != "a" || list[1].Name != "b" {
		t.Errorf("order = %s, %s, want oldest first", list[0].Name, list[1].Name)
	}
}

func TestStore_Delete(t *testing.T) {
	s := newTestStore(t)
	s.Save(&Manifest{Name: "work", Archive: "a.apk", Created: time.Now()})

	ok, err := s.Delete("a.apk", "work")
	if err != nil || !ok {
		t.Errorf("Delete = %v, %v", ok, err)
	}
	ok, err = s.Delete("a.apk", "work")
	if err != nil || ok {
		t.Errorf("second Delete = %v, %v, want false", ok, err)
	}
}

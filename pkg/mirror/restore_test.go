package mirror

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRestoreMixedModifications exercises spec scenario S6: a file
// absent from the source is recreated from the mirror, a file edited
// after createdAt is left untouched, and a file whose mirror
// counterpart vanished is deleted from the source.
func TestRestoreMixedModifications(t *testing.T) {
	src := t.TempDir()
	mirrorRoot := t.TempDir()

	mustWriteFile(t, filepath.Join(mirrorRoot, "a.txt"), "mirror-a")
	mustWriteFile(t, filepath.Join(mirrorRoot, "b.txt"), "mirror-b")

	mustWriteFile(t, filepath.Join(src, "b.txt"), "source-b-edited")
	mustWriteFile(t, filepath.Join(src, "c.txt"), "source-only")

	createdAt := time.Now()

	// b.txt was modified after createdAt.
	newerThanCreate := createdAt.Add(10 * time.Second)
	if err := os.Chtimes(filepath.Join(src, "b.txt"), newerThanCreate, newerThanCreate); err != nil {
		t.Fatal("Chtimes failed:", err)
	}

	if err := Restore(mirrorRoot, src, createdAt); err != nil {
		t.Fatal("Restore failed:", err)
	}

	gotA, err := os.ReadFile(filepath.Join(src, "a.txt"))
	if err != nil || string(gotA) != "mirror-a" {
		t.Errorf("a.txt = %q, %v, want recreated from mirror", gotA, err)
	}

	gotB, err := os.ReadFile(filepath.Join(src, "b.txt"))
	if err != nil || string(gotB) != "source-b-edited" {
		t.Errorf("b.txt = %q, %v, want untouched edited content", gotB, err)
	}

	if _, err := os.Stat(filepath.Join(src, "c.txt")); !os.IsNotExist(err) {
		t.Errorf("expected c.txt (absent from mirror) to be deleted, stat err = %v", err)
	}
}

func TestRestoreTypeReconciliation(t *testing.T) {
	src := t.TempDir()
	mirrorRoot := t.TempDir()

	// Mirror has a directory at "x"; source has a plain file at "x".
	if err := os.Mkdir(filepath.Join(mirrorRoot, "x"), 0755); err != nil {
		t.Fatal("Mkdir failed:", err)
	}
	mustWriteFile(t, filepath.Join(mirrorRoot, "x", "inner.txt"), "inner")
	mustWriteFile(t, filepath.Join(src, "x"), "not-a-directory")

	createdAt := time.Now()

	if err := Restore(mirrorRoot, src, createdAt); err != nil {
		t.Fatal("Restore failed:", err)
	}

	info, err := os.Stat(filepath.Join(src, "x"))
	if err != nil {
		t.Fatal("expected x to exist:", err)
	}
	if !info.IsDir() {
		t.Error("expected x to have been reconciled into a directory")
	}
	if _, err := os.Stat(filepath.Join(src, "x", "inner.txt")); err != nil {
		t.Errorf("expected inner.txt to be restored: %v", err)
	}
}

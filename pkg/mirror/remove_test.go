package mirror

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveTreeDeletesDirectoryRecursively(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal("MkdirAll failed:", err)
	}
	mustWriteFile(t, filepath.Join(sub, "f.txt"), "x")

	if err := RemoveTree(root); err != nil {
		t.Fatal("RemoveTree failed:", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat err = %v", root, err)
	}
}

func TestRemoveTreeToleratesAlreadyAbsent(t *testing.T) {
	if err := RemoveTree(filepath.Join(t.TempDir(), "nope")); err != nil {
		t.Errorf("RemoveTree on absent path = %v, want nil", err)
	}
}

func TestRenamePathReplacesStaleTarget(t *testing.T) {
	root := t.TempDir()
	oldPath := filepath.Join(root, "old")
	newPath := filepath.Join(root, "new")

	if err := os.Mkdir(oldPath, 0755); err != nil {
		t.Fatal("Mkdir failed:", err)
	}
	mustWriteFile(t, filepath.Join(oldPath, "f.txt"), "x")

	if err := os.Mkdir(newPath, 0755); err != nil {
		t.Fatal("Mkdir failed:", err)
	}
	mustWriteFile(t, filepath.Join(newPath, "stale.txt"), "stale")

	if err := renamePath(oldPath, newPath); err != nil {
		t.Fatal("renamePath failed:", err)
	}

	if _, err := os.Stat(filepath.Join(newPath, "f.txt")); err != nil {
		t.Errorf("expected moved content at new path: %v", err)
	}
	if _, err := os.Stat(filepath.Join(newPath, "stale.txt")); !os.IsNotExist(err) {
		t.Errorf("expected stale target content to be cleared, err = %v", err)
	}
}

package mirror

import (
	"os"
	"path/filepath"
	"testing"
)

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal("WriteFile failed:", err)
	}
}

func TestCopyTreeReplicatesFilesAndDirs(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	if err := os.Mkdir(filepath.Join(src, "sub"), 0755); err != nil {
		t.Fatal("Mkdir failed:", err)
	}
	mustWriteFile(t, filepath.Join(src, "top.txt"), "top")
	mustWriteFile(t, filepath.Join(src, "sub", "nested.txt"), "nested")

	if err := CopyTree(src, dst, src, dst, &StopFlag{}, nil); err != nil {
		t.Fatal("CopyTree failed:", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "top.txt"))
	if err != nil || string(got) != "top" {
		t.Errorf("top.txt = %q, %v, want \"top\", nil", got, err)
	}
	got, err = os.ReadFile(filepath.Join(dst, "sub", "nested.txt"))
	if err != nil || string(got) != "nested" {
		t.Errorf("sub/nested.txt = %q, %v, want \"nested\", nil", got, err)
	}
}

func TestCopyTreeHonorsStopFlag(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	mustWriteFile(t, filepath.Join(src, "a.txt"), "a")

	stop := &StopFlag{}
	stop.Set()

	err := CopyTree(src, dst, src, dst, stop, nil)
	if err != ErrCancelled {
		t.Errorf("CopyTree with pre-set stop flag = %v, want ErrCancelled", err)
	}
}

func TestCopySymlinkRewriteRewritesIntraMirrorAbsoluteLinks(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	mustWriteFile(t, filepath.Join(src, "target.txt"), "data")
	link := filepath.Join(src, "link")
	if err := os.Symlink(filepath.Join(src, "target.txt"), link); err != nil {
		t.Fatal("Symlink failed:", err)
	}

	dstLink := filepath.Join(dst, "link")
	if err := CopySymlinkRewrite(link, dstLink, src, dst); err != nil {
		t.Fatal("CopySymlinkRewrite failed:", err)
	}

	got, err := os.Readlink(dstLink)
	if err != nil {
		t.Fatal("Readlink failed:", err)
	}
	want := filepath.Join(dst, "target.txt")
	if got != want {
		t.Errorf("rewritten link target = %q, want %q", got, want)
	}
}

func TestCopySymlinkRewriteLeavesExternalLinksUnchanged(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	link := filepath.Join(src, "link")
	if err := os.Symlink("/etc/hostname", link); err != nil {
		t.Fatal("Symlink failed:", err)
	}

	dstLink := filepath.Join(dst, "link")
	if err := CopySymlinkRewrite(link, dstLink, src, dst); err != nil {
		t.Fatal("CopySymlinkRewrite failed:", err)
	}

	got, err := os.Readlink(dstLink)
	if err != nil {
		t.Fatal("Readlink failed:", err)
	}
	if got != "/etc/hostname" {
		t.Errorf("external link target = %q, want unchanged /etc/hostname", got)
	}
}

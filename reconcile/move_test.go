package reconcile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestQuarantineFile_Moves(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "bad.csv")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst, err := QuarantineFile(src, dstDir)
	if err != nil {
		t.Fatal(err)
	}
	if dst != filepath.Join(dstDir, "bad.csv") {
		t.Fatalf("dst = %q", dst)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source should be gone: %v", err)
	}
}

func TestQuarantineFile_CollisionGetsSuffix(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dstDir, "bad.csv"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(srcDir, "bad.csv")
	if err := os.WriteFile(src, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}

	dst, err := QuarantineFile(src, dstDir)
	if err != nil {
		t.Fatal(err)
	}
	base := filepath.Base(dst)
	if !strings.HasPrefix(base, "bad-") || !strings.HasSuffix(base, ".csv") {
		t.Fatalf("collision name = %q", base)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("content = %q", got)
	}
}

func TestQuarantineFile_EmptyDir(t *testing.T) {
	if _, err := QuarantineFile("/no/such/file.csv", ""); err == nil {
		t.Fatal("expected error for empty destination dir")
	}
}

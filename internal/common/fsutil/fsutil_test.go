package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestExpandHome(t *testing.T) {
	// Set a deterministic HOME for the duration of this test so we never skip.
	origHome, hadHome := os.LookupEnv("HOME")
	origUserProfile, hadUserProfile := os.LookupEnv("USERPROFILE")
	t.Cleanup(func() {
		if hadHome {
			_ = os.Setenv("HOME", origHome)
		} else {
			_ = os.Unsetenv("HOME")
		}
		if hadUserProfile {
			_ = os.Setenv("USERPROFILE", origUserProfile)
		} else {
			_ = os.Unsetenv("USERPROFILE")
		}
	})

	home := t.TempDir()
	// Configure both env vars for cross-platform behavior of os.UserHomeDir.
	_ = os.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		_ = os.Setenv("USERPROFILE", home)
	}
	// raw path unaffected
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// empty path
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	// ~ expansion
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	// ~/subdir
	sub := "test-sub"
	exp, err := ExpandHome("~/" + sub)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if runtime.GOOS == "windows" {
		if filepath.Base(exp) != sub {
			t.Fatalf("unexpected expanded path: %q", exp)
		}
	} else {
		expected := filepath.Join(home, sub)
		if exp != expected {
			t.Fatalf("expected %q, got %q", expected, exp)
		}
	}
}

func TestIsDirAndFileSize(t *testing.T) {
	dir := t.TempDir()
	if !IsDir(dir) {
		t.Fatalf("temp dir should be a directory")
	}
	p := filepath.Join(dir, "f.bin")
	if err := os.WriteFile(p, []byte("12345"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if IsDir(p) {
		t.Fatalf("file is not a directory")
	}
	if got := FileSize(p); got != 5 {
		t.Fatalf("file size = %d, want 5", got)
	}
	if got := FileSize(filepath.Join(dir, "missing")); got != 0 {
		t.Fatalf("missing file size = %d, want 0", got)
	}
	if PathExists(filepath.Join(dir, "missing")) {
		t.Fatalf("missing path must not exist")
	}
	if !PathExists(p) {
		t.Fatalf("written path must exist")
	}
}

package logutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRedactKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "********"},
		{"short", "********"},
		{"12345678", "********"},
		{"sk-abcdefghijklmnop", "sk-a...mnop"},
	}
	for _, tt := range tests {
		if got := RedactKey(tt.in); got != tt.want {
			t.Errorf("RedactKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultLogPathBesideExecutable(t *testing.T) {
	path := defaultLogPath()
	if filepath.Base(path) != logFileName {
		t.Errorf("log file name = %q, want %q", filepath.Base(path), logFileName)
	}
	execPath, err := os.Executable()
	if err != nil {
		t.Skipf("executable path unavailable: %v", err)
	}
	if filepath.Dir(path) != filepath.Dir(execPath) {
		t.Errorf("log dir = %q, want executable dir %q", filepath.Dir(path), filepath.Dir(execPath))
	}
}

func TestRotateIfNeeded(t *testing.T) {
	path := filepath.Join(t.TempDir(), logFileName)
	big := bytes.Repeat([]byte("x"), maxSizeBytes+1)
	if err := os.WriteFile(path, big, 0666); err != nil {
		t.Fatalf("write: %v", err)
	}

	rotateIfNeeded(path)

	if _, err := os.Stat(archiveName(path, 1)); err != nil {
		t.Fatalf("expected %s after rotation: %v", archiveName(path, 1), err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("base log should have been rotated away, stat err = %v", err)
	}

	// A second oversized base shifts the first archive to .2.
	if err := os.WriteFile(path, big, 0666); err != nil {
		t.Fatalf("write: %v", err)
	}
	rotateIfNeeded(path)
	if _, err := os.Stat(archiveName(path, 2)); err != nil {
		t.Fatalf("expected %s after second rotation: %v", archiveName(path, 2), err)
	}
}

func TestRotateIfNeededSkipsSmallFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), logFileName)
	if err := os.WriteFile(path, []byte("tiny"), 0666); err != nil {
		t.Fatalf("write: %v", err)
	}
	rotateIfNeeded(path)
	if _, err := os.Stat(path); err != nil {
		t.Errorf("small log should stay in place: %v", err)
	}
}

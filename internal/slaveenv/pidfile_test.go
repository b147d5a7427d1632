package slaveenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteAndReadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toxicslave.pid")

	if err := WritePID(path, 4242); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pid != 4242 {
		t.Errorf("pid = %d, want 4242", pid)
	}
}

func TestWritePIDDefaultsToOwnPid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toxicslave.pid")

	if err := WritePID(path, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pid, err := ReadPID(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want own pid %d", pid, os.Getpid())
	}
}

func TestProcessExistsForSelf(t *testing.T) {
	if !ProcessExists(os.Getpid()) {
		t.Error("expected own process to exist")
	}
}

func TestProcessExistsForBogusPid(t *testing.T) {
	if ProcessExists(1 << 30) {
		t.Error("expected a bogus pid to not exist")
	}
}

package slaveenv

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// WritePID writes pid (or the calling process's own pid, when pid is 0)
// to path.
func WritePID(path string, pid int) error {
	if pid == 0 {
		pid = os.Getpid()
	}
	return os.WriteFile(path, []byte(strconv.Itoa(pid)), 0o644)
}

// ReadPID parses the pid stored in path.
func ReadPID(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading pidfile: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		return 0, fmt.Errorf("parsing pidfile: %w", err)
	}
	return pid, nil
}

// ProcessExists reports whether a process with the given pid is alive,
// via the signal-0 probe (spec.md/cmds.py's _process_exist).
func ProcessExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
